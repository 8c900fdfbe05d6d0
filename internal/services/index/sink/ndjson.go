package sink

import (
	"context"
	"encoding/json"

	perr "warcdex/internal/platform/errors"
	"warcdex/internal/services/index/domain"
)

// NDJSON writes one JSON document per result into part-NNNNN.ndjson shards
type NDJSON struct {
	set *shardSet
}

var _ domain.Sink = (*NDJSON)(nil)

// NewNDJSON creates dir and returns a sink writing shards into it
func NewNDJSON(dir string, gz bool) (*NDJSON, error) {
	set, err := newShardSet(dir, "ndjson", gz, "")
	if err != nil {
		return nil, err
	}
	return &NDJSON{set: set}, nil
}

// Emit implements domain.Sink
func (n *NDJSON) Emit(_ context.Context, partition int, res *domain.Result) error {
	b, err := json.Marshal(res)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeInvalidArgument, "encode result")
	}
	return n.set.write(partition, append(b, '\n'))
}

// Paths lists the shards written so far
func (n *NDJSON) Paths() []string { return n.set.paths() }

// Close flushes and closes every shard
func (n *NDJSON) Close() error { return n.set.close() }
