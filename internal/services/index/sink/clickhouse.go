package sink

import (
	"context"
	"fmt"
	"sync"
	"time"

	perr "warcdex/internal/platform/errors"
	"warcdex/internal/platform/logger"
	"warcdex/internal/platform/store"
	"warcdex/internal/services/index/domain"

	"github.com/dustin/go-humanize"
)

// DefaultCHTable is the table results land in when none is configured
const DefaultCHTable = "warc_index"

// Schema returns the DDL for the results table
// Column order matches the rows built by ClickHouse.Emit.
func Schema(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	partition           UInt16,
	key                 String,
	url                 String,
	urlkey              String,
	timestamp           DateTime64(3, 'UTC'),
	type                LowCardinality(String),
	record_id           String,
	status              UInt16,
	content_type        LowCardinality(String),
	content_type_served LowCardinality(String),
	content_encoding    LowCardinality(String),
	hash                String,
	truncated           Bool,
	content_length      Int64,
	content_ffb         String,
	record_length       Int64,
	source_file_offset  Int64,
	source_file         String,
	analyser            LowCardinality(String),
	title               String,
	links               Array(String),
	attrs               Map(String, String),
	redirect            String,
	parse_errors        Array(String)
) ENGINE = MergeTree
PARTITION BY partition
ORDER BY (urlkey, timestamp)`, table)
}

// ClickHouse batches results and inserts them with the native protocol
type ClickHouse struct {
	ch      store.Clickhouse
	table   string
	batch   int
	timeout time.Duration

	mu    sync.Mutex
	rows  [][]any
	sent  int64
	bytes uint64
}

var _ domain.Sink = (*ClickHouse)(nil)

// NewClickHouse returns a sink inserting into table every batch rows
func NewClickHouse(ch store.Clickhouse, table string, batch int) *ClickHouse {
	if table == "" {
		table = DefaultCHTable
	}
	if batch <= 0 {
		batch = 5000
	}
	return &ClickHouse{ch: ch, table: table, batch: batch, timeout: time.Minute}
}

// EnsureSchema creates the results table when missing
func (c *ClickHouse) EnsureSchema(ctx context.Context) error {
	if err := c.ch.Exec(ctx, Schema(c.table)); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "create table %s", c.table)
	}
	return nil
}

// Emit implements domain.Sink
func (c *ClickHouse) Emit(ctx context.Context, partition int, res *domain.Result) error {
	row := Row(partition, res)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = append(c.rows, row)
	c.bytes += uint64(max(res.Size, 0))
	if len(c.rows) < c.batch {
		return nil
	}
	return c.flushLocked(ctx)
}

// Flush inserts any buffered rows
func (c *ClickHouse) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushLocked(ctx)
}

func (c *ClickHouse) flushLocked(ctx context.Context) error {
	if len(c.rows) == 0 {
		return nil
	}
	if err := c.ch.Insert(ctx, c.table, c.rows); err != nil {
		return perr.Wrapf(err, perr.CodeOf(err), "insert %d rows into %s", len(c.rows), c.table)
	}
	c.sent += int64(len(c.rows))
	logger.C(ctx).Debug().Str("component", "sink.ch").
		Int("rows", len(c.rows)).
		Int64("sent", c.sent).
		Str("payload", humanize.IBytes(c.bytes)).
		Msg("batch inserted")
	c.rows = c.rows[:0]
	c.bytes = 0
	return nil
}

// Sent is the number of rows inserted so far
func (c *ClickHouse) Sent() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent
}

// Close flushes the tail batch; the connection belongs to the store
func (c *ClickHouse) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return c.Flush(ctx)
}

// Row flattens res into column order of Schema
func Row(partition int, res *domain.Result) []any {
	links := res.Links
	if links == nil {
		links = []string{}
	}
	attrs := res.Attrs
	if attrs == nil {
		attrs = map[string]string{}
	}
	errs := res.ParseErrors
	if errs == nil {
		errs = []string{}
	}
	urlkey := ""
	if l, ok := CDXLine(res); ok {
		urlkey = l.URLKey
	}
	return []any{
		uint16(partition),
		res.Key,
		res.URL,
		urlkey,
		res.Timestamp.UTC(),
		res.Type,
		res.RecordID,
		uint16(max(res.Status, 0)),
		res.SniffedType,
		res.DeclaredType,
		res.Encoding,
		res.Digest,
		res.Truncated,
		res.Size,
		res.FFB,
		res.Length,
		res.Offset,
		res.Container,
		res.Analyser,
		res.Title,
		links,
		attrs,
		res.Redirect,
		errs,
	}
}
