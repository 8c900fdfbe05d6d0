package normalize

import (
	"strings"
	"unicode/utf8"
)

// Sanitize makes s safe for a single index or CDX field
// Tab, CR and LF become a space. Other C0 and C1 controls, DEL and invalid UTF-8
// are dropped. s is returned as is when it is already clean.
func Sanitize(s string) string {
	if isClean(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		switch {
		case r == '\t' || r == '\r' || r == '\n':
			b.WriteByte(' ')
		case dropped(r, size):
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isClean(s string) bool {
	for i := 0; i < len(s); {
		if c := s[i]; c >= 0x20 && c < 0x7f {
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r < 0x20 || dropped(r, size) {
			return false
		}
		i += size
	}
	return true
}

func dropped(r rune, size int) bool {
	return (r == utf8.RuneError && size == 1) || r < 0x20 || r == 0x7f || (r >= 0x80 && r <= 0x9f)
}
