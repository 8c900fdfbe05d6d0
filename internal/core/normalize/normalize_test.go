package normalize

import "testing"

func TestSanitize(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ""},
		{"clean value", "clean value"},
		{"a\x00b", "ab"},
		{"tab\tsep", "tab sep"},
		{"line\r\nfolded", "line  folded"},
		{"del\x7f", "del"},
		{"c1\u0085x", "c1x"},
		{"bad\xffutf8", "badutf8"},
		{"ünïcödé", "ünïcödé"},
	}
	for _, c := range cases {
		if got := Sanitize(c.in); got != c.want {
			t.Fatalf("Sanitize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestHeaderValue(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ""},
		{"  text/html  ", "text/html"},
		{"multi \r\n  line\tvalue", "multi line value"},
		{"zero\u200bwidth", "zerowidth"},
		{"e\u0301", "\u00e9"}, // NFC composes
		{"\ufeffbom", "bom"},
	}
	for _, c := range cases {
		if got := HeaderValue(c.in); got != c.want {
			t.Fatalf("HeaderValue(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestMediaType(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Text/HTML; charset=UTF-8", "text/html"},
		{"image/png", "image/png"},
		{"  application/pdf  ", "application/pdf"},
		{"", ""},
	}
	for _, c := range cases {
		if got := MediaType(c.in); got != c.want {
			t.Fatalf("MediaType(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCharset(t *testing.T) {
	cases := []struct{ in, want string }{
		{"text/html; charset=UTF-8", "utf-8"},
		{`text/html; foo=bar; Charset="ISO-8859-1"`, "iso-8859-1"},
		{"text/html", ""},
		{"text/html; foo=bar", ""},
	}
	for _, c := range cases {
		if got := Charset(c.in); got != c.want {
			t.Fatalf("Charset(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
