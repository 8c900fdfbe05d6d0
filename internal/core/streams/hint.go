package streams

import "strings"

// Hint is an optional header value such as Transfer-Encoding or Content-Encoding
// The zero value is an absent hint, which turns on auto-detection where supported
type Hint struct {
	v   string
	set bool
}

// Absent is the zero Hint
var Absent Hint

// Header wraps a header value that was present on the record, even if empty
func Header(v string) Hint { return Hint{v: v, set: true} }

// HeaderIf returns Header(v) when ok, else Absent; handy with map lookups
func HeaderIf(v string, ok bool) Hint {
	if !ok {
		return Absent
	}
	return Header(v)
}

// Set reports whether the header was present
func (h Hint) Set() bool { return h.set }

// Value returns the lowercased, trimmed header value
func (h Hint) Value() string { return strings.ToLower(strings.TrimSpace(h.v)) }

func (h Hint) String() string {
	if !h.set {
		return "<absent>"
	}
	return h.v
}
