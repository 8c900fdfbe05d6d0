package warc

import (
	"bufio"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"warcdex/internal/core/normalize"
	perr "warcdex/internal/platform/errors"
)

const maxHTTPHead = 256 * 1024

// HTTPHead is the status line and headers of a captured HTTP response
type HTTPHead struct {
	Proto  string
	Status int
	Header http.Header
	Size   int64 // bytes of the head including the blank line
}

// Get returns a header value cleaned for indexing, with ok false when absent
func (h *HTTPHead) Get(key string) (string, bool) {
	vs, ok := h.Header[textproto.CanonicalMIMEHeaderKey(key)]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return normalize.HeaderValue(vs[0]), true
}

// ContentType returns the declared Content-Type, or ""
func (h *HTTPHead) ContentType() string {
	v, _ := h.Get("Content-Type")
	return v
}

// ReadHTTPHead reads a response head from r, leaving r at the first body byte
// Header lines without a colon are skipped since archived servers emit plenty of them;
// only a missing status line or an oversized head is an error.
func ReadHTTPHead(r *bufio.Reader) (*HTTPHead, error) {
	var size int64
	line, n, err := headLine(r)
	size += n
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeCorrupt, "http status line")
	}
	proto, rest, ok := strings.Cut(line, " ")
	if !ok || !strings.HasPrefix(proto, "HTTP/") {
		return nil, perr.Corruptf("not an http status line: %.32q", line)
	}
	code, _, _ := strings.Cut(strings.TrimSpace(rest), " ")
	status, err := strconv.Atoi(code)
	if err != nil || status < 100 || status > 999 {
		return nil, perr.Corruptf("bad http status %q", code)
	}

	head := &HTTPHead{Proto: proto, Status: status, Header: make(http.Header)}
	var lastKey string
	for {
		line, n, err := headLine(r)
		size += n
		if err != nil {
			if perr.IsCode(err, perr.ErrorCodeCorrupt) {
				return nil, err
			}
			// heads cut off by the crawler still carry useful headers
			break
		}
		if size > maxHTTPHead {
			return nil, perr.Corruptf("http head larger than %d bytes", maxHTTPHead)
		}
		if line == "" {
			break
		}
		if (line[0] == ' ' || line[0] == '\t') && lastKey != "" {
			vs := head.Header[lastKey]
			vs[len(vs)-1] += " " + strings.TrimSpace(line)
			continue
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok || strings.TrimSpace(k) == "" {
			continue
		}
		lastKey = textproto.CanonicalMIMEHeaderKey(strings.TrimSpace(k))
		head.Header[lastKey] = append(head.Header[lastKey], strings.TrimSpace(v))
	}
	head.Size = size
	return head, nil
}

func headLine(r *bufio.Reader) (string, int64, error) {
	b, err := r.ReadSlice('\n')
	n := int64(len(b))
	if err == bufio.ErrBufferFull {
		return "", n, perr.Corruptf("http head line longer than %d bytes", r.Size())
	}
	if err != nil {
		return "", n, err
	}
	return strings.TrimRight(string(b), "\r\n"), n, nil
}
