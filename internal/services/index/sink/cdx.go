package sink

import (
	"context"

	"warcdex/internal/adapters/ingest/warc"
	"warcdex/internal/core/cdx"
	"warcdex/internal/services/index/domain"
)

// revisitMime is the CDX mimetype convention for revisit records
const revisitMime = "warc/revisit"

// CDXLine derives the capture index line for res
// ok is false when res has no payload digest, such lines are useless for lookups.
func CDXLine(res *domain.Result) (cdx.Line, bool) {
	if res == nil || res.Digest == "" || res.URL == "" {
		return cdx.Line{}, false
	}
	mt := res.SniffedType
	if mt == "" {
		mt = res.DeclaredType
	}
	if res.Type == string(warc.TypeRevisit) {
		mt = revisitMime
	}
	return cdx.FromCapture(cdx.Capture{
		URL:       res.URL,
		Date:      res.Timestamp,
		MimeType:  mt,
		Status:    res.Status,
		Digest:    res.Digest,
		Redirect:  res.Redirect,
		Length:    res.Length,
		Offset:    res.Offset,
		Container: res.Container,
	}), true
}

// CDX writes CDX11 lines into part-NNNNN.cdx shards, each starting with the legend
type CDX struct {
	set *shardSet
}

var _ domain.Sink = (*CDX)(nil)

// NewCDX creates dir and returns a sink writing shards into it
func NewCDX(dir string) (*CDX, error) {
	set, err := newShardSet(dir, "cdx", false, cdx.Header)
	if err != nil {
		return nil, err
	}
	return &CDX{set: set}, nil
}

// Emit implements domain.Sink; results without a digest are dropped
func (c *CDX) Emit(_ context.Context, partition int, res *domain.Result) error {
	l, ok := CDXLine(res)
	if !ok {
		return nil
	}
	return c.set.write(partition, []byte(l.String()+"\n"))
}

// Paths lists the shards written so far
func (c *CDX) Paths() []string { return c.set.paths() }

// Close flushes and closes every shard
func (c *CDX) Close() error { return c.set.close() }
