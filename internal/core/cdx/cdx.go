// Package cdx renders and parses CDX11 capture index lines
//
//	urlkey timestamp original mimetype statuscode digest redirect meta length offset filename
//
// Lines are space separated with "-" for unknown values, matching what capture index
// servers such as tinycdxserver and pywb accept on their POST endpoints.
package cdx

import (
	"strconv"
	"strings"
	"time"

	"warcdex/internal/core/surt"
	perr "warcdex/internal/platform/errors"
)

// Header is the legend line written at the top of CDX files
const Header = " CDX N b a m s k r M S V g"

const (
	fieldCount = 11
	missing    = "-"
	tsLayout   = "20060102150405"
)

// Line is one capture in CDX11 form
type Line struct {
	URLKey    string
	Timestamp string // 14 digit UTC
	Original  string
	MimeType  string
	Status    int    // 0 when unknown
	Digest    string // base32 without algorithm prefix
	Redirect  string
	Meta      string
	Length    int64 // record length in the container, -1 when unknown
	Offset    int64
	Filename  string
}

// Capture is what the indexer knows about one record
type Capture struct {
	URL       string
	Date      time.Time
	MimeType  string
	Status    int
	Digest    string // "sha1:..." or bare
	Redirect  string
	Length    int64
	Offset    int64
	Container string
}

// FromCapture builds a Line, deriving the SURT key and timestamp
func FromCapture(c Capture) Line {
	return Line{
		URLKey:    surt.Key(c.URL),
		Timestamp: Timestamp(c.Date),
		Original:  c.URL,
		MimeType:  c.MimeType,
		Status:    c.Status,
		Digest:    stripAlgo(c.Digest),
		Redirect:  c.Redirect,
		Length:    c.Length,
		Offset:    c.Offset,
		Filename:  c.Container,
	}
}

// Timestamp formats t as a 14 digit UTC capture timestamp
func Timestamp(t time.Time) string {
	if t.IsZero() {
		return missing
	}
	return t.UTC().Format(tsLayout)
}

// String renders l as one CDX11 line without a trailing newline
func (l Line) String() string {
	f := [fieldCount]string{
		field(l.URLKey),
		field(l.Timestamp),
		field(escapeSpaces(l.Original)),
		field(strings.ReplaceAll(l.MimeType, " ", "")),
		status(l.Status),
		field(l.Digest),
		field(escapeSpaces(l.Redirect)),
		field(l.Meta),
		num(l.Length),
		num(l.Offset),
		field(l.Filename),
	}
	return strings.Join(f[:], " ")
}

// Summary is the digest, url and timestamp triple used for deduplication lookups
type Summary struct {
	Digest    string
	URL       string
	Timestamp string
}

// Summary returns the dedup triple for l
func (l Line) Summary() Summary {
	return Summary{Digest: l.Digest, URL: l.Original, Timestamp: l.Timestamp}
}

// IsHeader reports whether s is a CDX legend line
func IsHeader(s string) bool { return strings.HasPrefix(s, " CDX") }

// Parse reads a CDX11 line
func Parse(s string) (Line, error) {
	f := strings.Fields(s)
	if len(f) != fieldCount {
		return Line{}, perr.Corruptf("cdx line has %d fields, want %d", len(f), fieldCount)
	}
	var (
		l   Line
		err error
	)
	l.URLKey = unfield(f[0])
	l.Timestamp = unfield(f[1])
	l.Original = unfield(f[2])
	l.MimeType = unfield(f[3])
	if f[4] != missing {
		if l.Status, err = strconv.Atoi(f[4]); err != nil {
			return Line{}, perr.Wrapf(err, perr.ErrorCodeCorrupt, "cdx status %q", f[4])
		}
	}
	l.Digest = unfield(f[5])
	l.Redirect = unfield(f[6])
	l.Meta = unfield(f[7])
	if l.Length, err = parseNum(f[8]); err != nil {
		return Line{}, err
	}
	if l.Offset, err = parseNum(f[9]); err != nil {
		return Line{}, err
	}
	l.Filename = unfield(f[10])
	return l, nil
}

func field(s string) string {
	if s == "" {
		return missing
	}
	return s
}

func unfield(s string) string {
	if s == missing {
		return ""
	}
	return s
}

func status(code int) string {
	if code <= 0 {
		return missing
	}
	return strconv.Itoa(code)
}

func num(n int64) string {
	if n < 0 {
		return missing
	}
	return strconv.FormatInt(n, 10)
}

func parseNum(s string) (int64, error) {
	if s == missing {
		return -1, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, perr.Wrapf(err, perr.ErrorCodeCorrupt, "cdx number %q", s)
	}
	return n, nil
}

func escapeSpaces(s string) string { return strings.ReplaceAll(s, " ", "%20") }

func stripAlgo(d string) string {
	if _, v, ok := strings.Cut(d, ":"); ok {
		return v
	}
	return d
}
