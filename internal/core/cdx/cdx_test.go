package cdx

import (
	"testing"
	"time"

	perr "warcdex/internal/platform/errors"
)

func TestFromCapture_String(t *testing.T) {
	c := Capture{
		URL:       "http://www.example.com/a page?b=1&a=2",
		Date:      time.Date(2011, 2, 3, 4, 5, 6, 0, time.FixedZone("x", 3600)),
		MimeType:  "text/html",
		Status:    200,
		Digest:    "sha1:VGMT4NSHA2AWVOR6EVYXQUGCNSONBWE5",
		Length:    1234,
		Offset:    0,
		Container: "crawl-1.warc.gz",
	}
	got := FromCapture(c).String()
	want := "com,example)/a%20page?a=2&b=1 20110203030506 http://www.example.com/a%20page?b=1&a=2 text/html 200 VGMT4NSHA2AWVOR6EVYXQUGCNSONBWE5 - - 1234 0 crawl-1.warc.gz"
	if got != want {
		t.Fatalf("line mismatch\n got %q\nwant %q", got, want)
	}
}

func TestString_Missing(t *testing.T) {
	got := Line{URLKey: "dns:example.com", Length: -1, Offset: 10}.String()
	want := "dns:example.com - - - - - - - - 10 -"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestParse(t *testing.T) {
	in := "com,example)/ 20110203030506 http://example.com/ text/html 200 ABC - - 99 7 f.warc.gz"
	l, err := Parse(in)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if l.URLKey != "com,example)/" || l.Status != 200 || l.Length != 99 || l.Offset != 7 || l.Redirect != "" {
		t.Fatalf("unexpected %+v", l)
	}
	if l.String() != in {
		t.Fatalf("render mismatch %q", l.String())
	}
	s := l.Summary()
	if s.Digest != "ABC" || s.URL != "http://example.com/" || s.Timestamp != "20110203030506" {
		t.Fatalf("summary %+v", s)
	}
}

func TestParse_Errors(t *testing.T) {
	bad := []string{
		"too few fields",
		"k t o m abc d r M 1 2 f",
		"k t o m 200 d r M x 2 f",
		"k t o m 200 d r M 1 y f",
	}
	for _, in := range bad {
		if _, err := Parse(in); !perr.IsCode(err, perr.ErrorCodeCorrupt) {
			t.Fatalf("Parse(%q) err = %v, want corrupt", in, err)
		}
	}
}

func TestIsHeader(t *testing.T) {
	if !IsHeader(Header) || IsHeader("com,example)/ 2011") {
		t.Fatalf("IsHeader mismatch")
	}
}

func TestTimestamp_Zero(t *testing.T) {
	if Timestamp(time.Time{}) != "-" {
		t.Fatalf("zero time should render as missing")
	}
}
