// Package warctest builds WARC containers for tests
package warctest

import (
	"bytes"
	"crypto/sha1"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"warcdex/internal/core/hashcache"

	"github.com/klauspost/compress/gzip"
)

// Date is the capture time stamped on records that do not set one
var Date = time.Date(2012, 3, 4, 5, 6, 7, 0, time.UTC)

// Record describes one record to write
type Record struct {
	Type          string            // default "response"
	URI           string            // WARC-Target-URI
	Date          time.Time         // default Date
	ContentType   string            // default application/http; msgtype=response
	Block         []byte            // full record block
	PayloadDigest string            // WARC-Payload-Digest, written when non-empty
	Extra         map[string]string // additional header fields
	OmitType      bool              // leave out WARC-Type
	OmitURI       bool              // leave out WARC-Target-URI and WARC-Record-ID
}

// HTTPResponse renders an HTTP/1.1 response with the given headers and body
func HTTPResponse(status int, headers map[string]string, body []byte) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", status, http.StatusText(status))
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\r\n", k, headers[k])
	}
	b.WriteString("\r\n")
	b.Write(body)
	return b.Bytes()
}

// Digest is the payload digest of body in WARC form
func Digest(body []byte) string {
	sum := sha1.Sum(body)
	return hashcache.FormatSHA1(sum[:])
}

// Response is a response record for uri with a 200 text/html body and a correct digest
func Response(uri string, body []byte) Record {
	return Record{
		URI:           uri,
		Block:         HTTPResponse(200, map[string]string{"Content-Type": "text/html"}, body),
		PayloadDigest: Digest(body),
	}
}

// Bytes renders r as one WARC record including its trailer
func (r Record) Bytes() []byte {
	typ := r.Type
	if typ == "" {
		typ = "response"
	}
	d := r.Date
	if d.IsZero() {
		d = Date
	}
	ct := r.ContentType
	if ct == "" {
		ct = "application/http; msgtype=response"
	}

	var b bytes.Buffer
	b.WriteString("WARC/1.0\r\n")
	if !r.OmitType {
		fmt.Fprintf(&b, "WARC-Type: %s\r\n", typ)
	}
	if !r.OmitURI {
		fmt.Fprintf(&b, "WARC-Target-URI: %s\r\n", r.URI)
		fmt.Fprintf(&b, "WARC-Record-ID: <urn:uuid:%x>\r\n", sha1.Sum([]byte(r.URI+typ)))
	}
	fmt.Fprintf(&b, "WARC-Date: %s\r\n", d.UTC().Format(time.RFC3339))
	if r.PayloadDigest != "" {
		fmt.Fprintf(&b, "WARC-Payload-Digest: %s\r\n", r.PayloadDigest)
	}
	keys := make([]string, 0, len(r.Extra))
	for k := range r.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\r\n", k, r.Extra[k])
	}
	fmt.Fprintf(&b, "Content-Type: %s\r\n", ct)
	fmt.Fprintf(&b, "Content-Length: %d\r\n", len(r.Block))
	b.WriteString("\r\n")
	b.Write(r.Block)
	b.WriteString("\r\n\r\n")
	return b.Bytes()
}

// Plain concatenates records into an uncompressed container
func Plain(recs ...Record) []byte {
	var b bytes.Buffer
	for _, r := range recs {
		b.Write(r.Bytes())
	}
	return b.Bytes()
}

// Gzip writes each record as its own gzip member
func Gzip(recs ...Record) []byte {
	var b bytes.Buffer
	for _, r := range recs {
		zw := gzip.NewWriter(&b)
		_, _ = zw.Write(r.Bytes())
		_ = zw.Close()
	}
	return b.Bytes()
}

// GzipWhole writes all records into a single gzip member
func GzipWhole(recs ...Record) []byte {
	var b bytes.Buffer
	zw := gzip.NewWriter(&b)
	_, _ = zw.Write(Plain(recs...))
	_ = zw.Close()
	return b.Bytes()
}

// WriteFile writes data under dir and returns its path
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}
