package analyse

import (
	"context"
	"io"
	"net/url"
	"strings"

	"warcdex/internal/core/normalize"
	perr "warcdex/internal/platform/errors"
	"warcdex/internal/services/index/domain"

	"golang.org/x/net/html"
)

// HTML pulls the title, outlinks and a few meta tags from HTML pages
type HTML struct {
	MaxLinks int // 0 means unlimited
}

// Name implements Analyser
func (HTML) Name() string { return "html" }

// Caps implements Analyser
func (HTML) Caps() Capability { return CapText | CapLinks | CapMetadata }

var metaNames = map[string]bool{"description": true, "keywords": true, "generator": true, "robots": true}

// Analyse implements Analyser
func (h HTML) Analyse(ctx context.Context, in *Input, res *domain.Result) error {
	base, _ := url.Parse(in.Header.TargetURI)
	body, _ := decodeCharset(in.Body, in.Charset)
	z := html.NewTokenizer(body)

	var title strings.Builder
	inTitle := false
	seen := map[string]bool{}
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return perr.Wrap(err, perr.ErrorCodeCorrupt, "html tokenizer")
			}
			res.Title = normalize.HeaderValue(title.String())
			return ctx.Err()

		case html.TextToken:
			if inTitle {
				title.Write(z.Text())
			}

		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == "title" {
				inTitle = false
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			name, more := z.TagName()
			attrs := map[string]string{}
			for more {
				var k, v []byte
				k, v, more = z.TagAttr()
				attrs[string(k)] = string(v)
			}
			switch string(name) {
			case "title":
				inTitle = tt == html.StartTagToken && res.Title == "" && title.Len() == 0
			case "html":
				if lang := strings.TrimSpace(attrs["lang"]); lang != "" {
					setAttr(res, "lang", strings.ToLower(lang))
				}
			case "meta":
				key := strings.ToLower(strings.TrimSpace(attrs["name"]))
				if metaNames[key] {
					setAttr(res, "meta_"+key, normalize.HeaderValue(attrs["content"]))
				}
			case "a", "area":
				if h.MaxLinks > 0 && len(res.Links) >= h.MaxLinks {
					continue
				}
				if link, ok := resolve(base, attrs["href"]); ok && !seen[link] {
					seen[link] = true
					res.Links = append(res.Links, link)
				}
			}
		}
	}
}

// resolve makes href absolute against base, keeping http(s) links only
func resolve(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), true
}

func setAttr(res *domain.Result, k, v string) {
	if v == "" {
		return
	}
	if res.Attrs == nil {
		res.Attrs = map[string]string{}
	}
	res.Attrs[k] = v
}
