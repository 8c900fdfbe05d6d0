// Package normalize cleans header values read from archived records
//
// Archived headers come from decades of crawls and carry every kind of junk:
// invalid UTF-8, control bytes, zero-width runes, folded lines. Values go through
//  1. control and invalid byte removal (Sanitize)
//  2. Unicode NFC
//  3. removal of format runes (ZWJ, ZWNJ, BOM)
//  4. whitespace collapse and trim
package normalize

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var chainPool = sync.Pool{
	New: func() any {
		return transform.Chain(
			norm.NFC,
			runes.Remove(runes.In(unicode.Cf)),
		)
	},
}

// HeaderValue returns s cleaned for storage and comparison
func HeaderValue(s string) string {
	if s == "" {
		return ""
	}
	s = Sanitize(s)

	tr := chainPool.Get().(transform.Transformer)
	ns, _, err := transform.String(tr, s)
	tr.Reset()
	chainPool.Put(tr)
	if err != nil {
		ns = s
	}
	return strings.Join(strings.Fields(ns), " ")
}

// MediaType returns the lowercased type/subtype of a Content-Type value with
// parameters dropped, e.g. "Text/HTML; charset=UTF-8" -> "text/html"
func MediaType(s string) string {
	mt, _, _ := strings.Cut(s, ";")
	return strings.ToLower(strings.TrimSpace(HeaderValue(mt)))
}

// Charset returns the lowercased charset parameter of a Content-Type value, or ""
func Charset(s string) string {
	_, params, ok := strings.Cut(s, ";")
	if !ok {
		return ""
	}
	for p := range strings.SplitSeq(params, ";") {
		k, v, ok := strings.Cut(p, "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(k), "charset") {
			continue
		}
		return strings.ToLower(strings.Trim(strings.TrimSpace(v), `"'`))
	}
	return ""
}
