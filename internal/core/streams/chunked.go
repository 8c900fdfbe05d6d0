package streams

import (
	"bufio"
	"bytes"
	"io"
	"net/http/httputil"
	"strings"
)

const (
	// peekWindow bounds how far detection looks into a stream
	peekWindow = 1024 + 16

	maxSizeDigits = 8
	maxExtension  = 1023
)

var crlf = []byte("\r\n")

type readCloser struct {
	io.Reader
	c io.Closer
}

func (r readCloser) Close() error { return r.c.Close() }

// Dechunk returns a reader with chunked transfer framing removed
// A hint naming "chunked" always wraps; any other hint (or none) falls back to sniffing
// the head of the stream. When the head does not look like a chunk-size line the
// stream is returned unchanged from its first byte.
func Dechunk(rc io.ReadCloser, hint Hint) io.ReadCloser {
	br := bufio.NewReaderSize(rc, 2*peekWindow)
	if saysChunked(hint) {
		return readCloser{Reader: httputil.NewChunkedReader(br), c: rc}
	}
	// a short stream returns what it has plus io.EOF; detection works on what is there
	head, _ := br.Peek(peekWindow)
	if LooksChunked(head) {
		return readCloser{Reader: httputil.NewChunkedReader(br), c: rc}
	}
	return readCloser{Reader: br, c: rc}
}

func saysChunked(h Hint) bool {
	if !h.Set() {
		return false
	}
	for tok := range strings.SplitSeq(h.Value(), ",") {
		if strings.TrimSpace(tok) == "chunked" {
			return true
		}
	}
	return false
}

// LooksChunked reports whether head starts with a chunk-size line:
// 1 to 8 lowercase hex digits, an optional ";extension" of at most 1023 bytes, then CRLF
func LooksChunked(head []byte) bool {
	i := 0
	for i < len(head) && i < maxSizeDigits && isLowerHex(head[i]) {
		i++
	}
	if i == 0 || i == len(head) {
		return false
	}
	switch head[i] {
	case '\r':
		return i+1 < len(head) && head[i+1] == '\n'
	case ';':
		ext := head[i+1:]
		if len(ext) > maxExtension+len(crlf) {
			ext = ext[:maxExtension+len(crlf)]
		}
		end := bytes.Index(ext, crlf)
		if end < 0 {
			return false
		}
		return bytes.IndexByte(ext[:end], '\n') < 0
	default:
		return false
	}
}

func isLowerHex(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f')
}
