package warc

import (
	"bufio"
	"bytes"
	"io"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"warcdex/internal/core/normalize"
	perr "warcdex/internal/platform/errors"

	"github.com/klauspost/compress/gzip"
)

const (
	bufSize    = 64 * 1024
	maxBlanks  = 16
	versionTag = "WARC/"
)

var gzipMagic = []byte{0x1f, 0x8b}

// Reader yields records from one container in file order
type Reader struct {
	name string
	src  io.ReadCloser
	cnt  *countingReader
	br   *bufio.Reader // container bytes
	dr   *bufio.Reader // record bytes, == br for plain containers
	gz   *gzip.Reader

	started    bool
	compressed bool
	memberOpen bool
	memberAt   int64

	cur     *Record
	payload *io.LimitedReader
	shared  bool

	err     error
	records int
}

// NewReader reads records from src, which is closed by Close
// name is stamped on every header as the container name.
func NewReader(src io.ReadCloser, name string) *Reader {
	cnt := &countingReader{r: src}
	return &Reader{
		name: name,
		src:  src,
		cnt:  cnt,
		br:   bufio.NewReaderSize(cnt, bufSize),
	}
}

// Next returns the next record; io.EOF when the container is exhausted
// Any unread payload of the previous record is drained first.
func (rd *Reader) Next() (*Record, error) {
	if rd.err != nil {
		return nil, rd.err
	}
	if rd.cur != nil && !rd.cur.closed {
		if err := rd.cur.Close(); err != nil {
			return nil, err
		}
	}
	rd.cur = nil

	if !rd.started {
		rd.started = true
		head, _ := rd.br.Peek(len(gzipMagic))
		rd.compressed = bytes.Equal(head, gzipMagic)
		if !rd.compressed {
			rd.dr = rd.br
		}
	}

	offset, err := rd.begin()
	if err != nil {
		return nil, rd.fail(err)
	}
	hdr, err := rd.readHeader()
	if err != nil {
		// io.EOF here means only blank lines followed the last record
		return nil, rd.fail(err)
	}
	hdr.Offset = offset
	hdr.Container = rd.name

	rd.payload = &io.LimitedReader{R: rd.dr, N: hdr.ContentLength}
	rec := &Record{Header: hdr, Payload: rd.payload, rd: rd, length: -1}
	rd.cur = rec
	rd.records++
	return rec, nil
}

// Consumed is the number of container bytes read so far, for progress reporting
func (rd *Reader) Consumed() int64 { return rd.cnt.n - int64(rd.br.Buffered()) }

// Stats returns the number of records started and container bytes consumed
func (rd *Reader) Stats() (records int, bytes int64) { return rd.records, rd.Consumed() }

// Compressed reports whether the container is gzip compressed; valid after the first Next
func (rd *Reader) Compressed() bool { return rd.compressed }

// Close closes the gzip stream and the underlying source
func (rd *Reader) Close() error {
	var first error
	if rd.gz != nil {
		if err := rd.gz.Close(); err != nil {
			first = err
		}
	}
	if rd.src != nil {
		if err := rd.src.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (rd *Reader) fail(err error) error {
	if err == io.EOF {
		rd.err = io.EOF
		return io.EOF
	}
	if _, ok := perr.As(err); !ok {
		err = perr.Wrapf(err, perr.ErrorCodeCorrupt, "%s at offset %d", rd.name, rd.Consumed())
	}
	rd.err = err
	return err
}

// begin positions dr at the next record and returns its container offset
func (rd *Reader) begin() (int64, error) {
	if !rd.compressed {
		if _, err := rd.br.Peek(1); err != nil {
			return 0, err
		}
		rd.shared = false
		return rd.Consumed(), nil
	}
	if rd.memberOpen {
		rd.shared = true
		return rd.memberAt, nil
	}

	at := rd.Consumed()
	if _, err := rd.br.Peek(1); err != nil {
		return 0, err
	}
	if rd.gz == nil {
		gz, err := gzip.NewReader(rd.br)
		if err != nil {
			return 0, perr.Wrapf(err, perr.ErrorCodeCorrupt, "%s: gzip member at %d", rd.name, at)
		}
		rd.gz = gz
		rd.dr = bufio.NewReaderSize(gz, bufSize)
	} else {
		if err := rd.gz.Reset(rd.br); err != nil {
			return 0, perr.Wrapf(err, perr.ErrorCodeCorrupt, "%s: gzip member at %d", rd.name, at)
		}
		rd.dr.Reset(rd.gz)
	}
	rd.gz.Multistream(false)
	rd.memberOpen = true
	rd.memberAt = at
	rd.shared = false
	return at, nil
}

func (rd *Reader) readHeader() (Header, error) {
	var line string
	for blanks := 0; ; blanks++ {
		l, err := readLine(rd.dr)
		if err != nil {
			return Header{}, err
		}
		if l != "" {
			line = l
			break
		}
		if blanks >= maxBlanks {
			return Header{}, perr.Corruptf("%s: no version line after %d blank lines", rd.name, blanks)
		}
	}
	if !strings.HasPrefix(line, versionTag) {
		return Header{}, perr.Corruptf("%s: expected WARC version line, got %.32q", rd.name, line)
	}

	fields, err := textproto.NewReader(rd.dr).ReadMIMEHeader()
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return Header{}, perr.Wrapf(err, perr.ErrorCodeCorrupt, "%s: header block", rd.name)
	}

	raw := fields.Get("Content-Length")
	if raw == "" {
		return Header{}, perr.Corruptf("%s: record without Content-Length", rd.name)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n < 0 {
		return Header{}, perr.Corruptf("%s: bad Content-Length %q", rd.name, raw)
	}

	h := Header{
		Version:       line,
		Type:          Type(strings.ToLower(strings.TrimSpace(fields.Get("WARC-Type")))),
		TargetURI:     strings.Trim(normalize.HeaderValue(fields.Get("WARC-Target-URI")), "<>"),
		RecordID:      strings.TrimSpace(fields.Get("WARC-Record-ID")),
		ContentType:   normalize.HeaderValue(fields.Get("Content-Type")),
		ContentLength: n,
		PayloadDigest: strings.TrimSpace(fields.Get("WARC-Payload-Digest")),
		BlockDigest:   strings.TrimSpace(fields.Get("WARC-Block-Digest")),
		Truncated:     strings.TrimSpace(fields.Get("WARC-Truncated")),
		Profile:       strings.TrimSpace(fields.Get("WARC-Profile")),
		Fields:        fields,
	}
	if d := strings.TrimSpace(fields.Get("WARC-Date")); d != "" {
		if t, err := time.Parse(time.RFC3339Nano, d); err == nil {
			h.Date = t.UTC()
		}
	}
	return h, nil
}

// finish drains the current record and its trailer and records its container length
func (rd *Reader) finish(rec *Record) error {
	if rd.err != nil {
		return rd.err
	}
	if _, err := io.Copy(io.Discard, rd.payload); err != nil {
		return rd.fail(perr.Wrapf(err, perr.ErrorCodeCorrupt, "%s: payload at %d", rd.name, rec.Header.Offset))
	}
	if rd.payload.N > 0 {
		return rd.fail(perr.Corruptf("%s: record at %d truncated, %d payload bytes missing",
			rd.name, rec.Header.Offset, rd.payload.N))
	}
	for range 2 {
		l, err := readLine(rd.dr)
		if err != nil || l != "" {
			return rd.fail(perr.Corruptf("%s: record at %d has no CRLF CRLF trailer", rd.name, rec.Header.Offset))
		}
	}

	if !rd.compressed {
		rec.length = rd.Consumed() - rec.Header.Offset
		return nil
	}

	_, err := rd.dr.Peek(1)
	switch {
	case err == io.EOF:
		rd.memberOpen = false
		if !rd.shared {
			rec.length = rd.Consumed() - rec.Header.Offset
		}
	case err != nil:
		return rd.fail(perr.Wrapf(err, perr.ErrorCodeCorrupt, "%s: gzip member at %d", rd.name, rd.memberAt))
	default:
		// more records in this member
		rd.shared = true
	}
	return nil
}

// readLine returns one line without its CR LF; lines longer than the buffer are corrupt
func readLine(r *bufio.Reader) (string, error) {
	b, err := r.ReadSlice('\n')
	switch {
	case err == bufio.ErrBufferFull:
		return "", perr.Corruptf("line longer than %d bytes", r.Size())
	case err == io.EOF && len(b) > 0:
		return "", io.ErrUnexpectedEOF
	case err != nil:
		return "", err
	}
	return strings.TrimRight(string(b), "\r\n"), nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
