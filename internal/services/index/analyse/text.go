package analyse

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"unicode"

	perr "warcdex/internal/platform/errors"
	"warcdex/internal/services/index/domain"

	"golang.org/x/text/encoding/htmlindex"
)

// Text counts words and lines of plain text payloads after charset decoding
type Text struct{}

// Name implements Analyser
func (Text) Name() string { return "text" }

// Caps implements Analyser
func (Text) Caps() Capability { return CapText }

// Analyse implements Analyser
func (Text) Analyse(ctx context.Context, in *Input, res *domain.Result) error {
	body, cs := decodeCharset(in.Body, in.Charset)
	if cs != "" {
		setAttr(res, "charset", cs)
	}

	br := bufio.NewReader(body)
	var words, lines int
	inWord := false
	for {
		r, _, err := br.ReadRune()
		if err == io.EOF {
			break
		}
		if err != nil {
			return perr.Wrap(err, perr.ErrorCodeIO, "read text")
		}
		if r == '\n' {
			lines++
		}
		if unicode.IsSpace(r) {
			inWord = false
			continue
		}
		if !inWord {
			words++
			inWord = true
		}
	}
	setAttr(res, "words", strconv.Itoa(words))
	setAttr(res, "lines", strconv.Itoa(lines))
	return ctx.Err()
}

// decodeCharset wraps r with a decoder for the declared charset
// Unknown labels and UTF-8 leave r untouched. The canonical charset name is returned.
func decodeCharset(r io.Reader, label string) (io.Reader, string) {
	if label == "" {
		return r, ""
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return r, ""
	}
	name, _ := htmlindex.Name(enc)
	if name == "utf-8" {
		return r, name
	}
	return enc.NewDecoder().Reader(r), name
}
