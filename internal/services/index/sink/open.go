package sink

import (
	"context"
	"path/filepath"
	"strings"

	perr "warcdex/internal/platform/errors"
	"warcdex/internal/platform/store"
	"warcdex/internal/services/index/domain"
)

// Sink names accepted by Open
const (
	NameNDJSON     = "ndjson"
	NameCDX        = "cdx"
	NameClickHouse = "clickhouse"
	NameRelay      = "relay"
)

// Options select and configure the sinks of a run
type Options struct {
	Names   []string
	OutDir  string
	Gzip    bool // compress ndjson shards
	CH      store.Clickhouse
	CHTable string
	CHBatch int
	Relay   LineRelay
}

// Open builds the sinks named in opt
// A single sink is returned as is, several are wrapped in Multi.
func Open(ctx context.Context, opt Options) (domain.Sink, error) {
	var out Multi
	fail := func(err error) (domain.Sink, error) {
		_ = out.Close()
		return nil, err
	}
	seen := map[string]bool{}
	for _, raw := range opt.Names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		switch name {
		case NameNDJSON:
			s, err := NewNDJSON(filepath.Join(opt.OutDir, "ndjson"), opt.Gzip)
			if err != nil {
				return fail(err)
			}
			out = append(out, s)
		case NameCDX:
			s, err := NewCDX(filepath.Join(opt.OutDir, "cdx"))
			if err != nil {
				return fail(err)
			}
			out = append(out, s)
		case NameClickHouse:
			if opt.CH == nil {
				return fail(perr.InvalidArgf("sink %q needs clickhouse enabled", name))
			}
			s := NewClickHouse(opt.CH, opt.CHTable, opt.CHBatch)
			if err := s.EnsureSchema(ctx); err != nil {
				return fail(err)
			}
			out = append(out, s)
		case NameRelay:
			if opt.Relay == nil {
				return fail(perr.InvalidArgf("sink %q needs a relay endpoint", name))
			}
			out = append(out, NewRelay(opt.Relay))
		default:
			return fail(perr.InvalidArgf("unknown sink %q", raw))
		}
	}
	switch len(out) {
	case 0:
		return nil, perr.InvalidArgf("no sinks configured")
	case 1:
		return out[0], nil
	}
	return out, nil
}
