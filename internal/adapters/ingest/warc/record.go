package warc

import (
	"io"
	"net/textproto"
	"strings"
	"time"
)

// Type is the WARC-Type of a record, lowercased
type Type string

// Known record types
const (
	TypeWarcinfo     Type = "warcinfo"
	TypeResponse     Type = "response"
	TypeResource     Type = "resource"
	TypeRequest      Type = "request"
	TypeMetadata     Type = "metadata"
	TypeRevisit      Type = "revisit"
	TypeConversion   Type = "conversion"
	TypeContinuation Type = "continuation"
)

// Header is the parsed WARC header block of one record
type Header struct {
	Version       string // "WARC/1.0"
	Type          Type
	TargetURI     string
	Date          time.Time
	RecordID      string
	ContentType   string
	ContentLength int64
	PayloadDigest string
	BlockDigest   string
	Truncated     string // WARC-Truncated reason, "" when complete
	Profile       string // WARC-Profile, set on revisits

	Offset    int64  // position of the record in the container file
	Container string // container name the record came from

	Fields textproto.MIMEHeader
}

// Get returns a raw header field, e.g. Get("WARC-IP-Address")
func (h *Header) Get(key string) string {
	if h == nil || h.Fields == nil {
		return ""
	}
	return h.Fields.Get(key)
}

// Empty reports whether the header carries none of the identifying fields
func (h *Header) Empty() bool {
	return h == nil || (h.Type == "" && h.TargetURI == "" && h.RecordID == "")
}

// IsHTTP reports whether the block holds an HTTP message (application/http)
func (h *Header) IsHTTP() bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(h.ContentType)), "application/http")
}

// Record is one record; Payload is single-read and only valid until Close or the next Next
type Record struct {
	Header  Header
	Payload io.Reader

	rd     *Reader
	length int64
	closed bool
}

// Close drains the rest of the payload and the record trailer
// After Close, Length reports the bytes the record occupies in the container.
func (r *Record) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.rd.finish(r)
}

// Length is the record's size in the container, -1 when unknown or before Close
func (r *Record) Length() int64 {
	if !r.closed {
		return -1
	}
	return r.length
}
