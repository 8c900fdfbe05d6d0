// Package analyse extracts index fields from a record payload
//
// Analysers are picked by media type prefix from a Registry, so supporting a new
// format means registering a new analyser rather than editing a dispatch chain.
package analyse

import (
	"context"
	"io"
	"sort"
	"strings"

	"warcdex/internal/adapters/ingest/warc"
	"warcdex/internal/core/hashcache"
	"warcdex/internal/services/index/domain"
)

// Capability tags what an analyser contributes
type Capability uint8

// Capabilities
const (
	CapText Capability = 1 << iota
	CapLinks
	CapImage
	CapMetadata
)

// Has reports whether c includes all of o
func (c Capability) Has(o Capability) bool { return c&o == o }

func (c Capability) String() string {
	var parts []string
	for _, x := range []struct {
		c    Capability
		name string
	}{{CapText, "text"}, {CapLinks, "links"}, {CapImage, "image"}, {CapMetadata, "metadata"}} {
		if c.Has(x.c) {
			parts = append(parts, x.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Input is what an analyser sees of one record
type Input struct {
	Header    *warc.Header
	HTTP      *warc.HTTPHead // nil for non-HTTP records
	Payload   *hashcache.Payload
	MediaType string // sniffed, or declared when sniffing was inconclusive
	Charset   string // declared charset, may be empty
	Body      io.Reader
}

// Analyser fills fields of res from in
// Analysers may read Body once; they should not retain it.
type Analyser interface {
	Name() string
	Caps() Capability
	Analyse(ctx context.Context, in *Input, res *domain.Result) error
}

type entry struct {
	prefix string
	a      Analyser
}

// Registry maps media type prefixes to analysers
type Registry struct {
	entries []entry
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry { return &Registry{} }

// Register binds prefix (e.g. "text/html", "image/") to a
// Registering the same prefix again replaces the earlier analyser.
func (r *Registry) Register(prefix string, a Analyser) *Registry {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	for i := range r.entries {
		if r.entries[i].prefix == prefix {
			r.entries[i].a = a
			return r
		}
	}
	r.entries = append(r.entries, entry{prefix: prefix, a: a})
	sort.SliceStable(r.entries, func(i, j int) bool { return len(r.entries[i].prefix) > len(r.entries[j].prefix) })
	return r
}

// Lookup returns the analyser with the longest prefix matching mediaType
func (r *Registry) Lookup(mediaType string) (Analyser, bool) {
	mt := strings.ToLower(mediaType)
	for _, e := range r.entries {
		if strings.HasPrefix(mt, e.prefix) {
			return e.a, true
		}
	}
	return nil, false
}

// Names lists registered analysers by prefix, for startup logs
func (r *Registry) Names() map[string]string {
	out := make(map[string]string, len(r.entries))
	for _, e := range r.entries {
		out[e.prefix] = e.a.Name() + "(" + e.a.Caps().String() + ")"
	}
	return out
}

// Default returns the built in analysers, limited to the named ones when any are given
func Default(enabled ...string) *Registry {
	want := map[string]bool{}
	for _, n := range enabled {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			want[n] = true
		}
	}
	r := NewRegistry()
	add := func(a Analyser, prefixes ...string) {
		if len(want) > 0 && !want[a.Name()] {
			return
		}
		for _, p := range prefixes {
			r.Register(p, a)
		}
	}
	add(HTML{MaxLinks: 1000}, "text/html", "application/xhtml+xml")
	add(Text{}, "text/")
	add(Image{}, "image/")
	return r
}
