package sink_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"warcdex/internal/core/cdx"
	perr "warcdex/internal/platform/errors"
	"warcdex/internal/platform/store"
	"warcdex/internal/services/index/domain"
	"warcdex/internal/services/index/sink"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var when = time.Date(2024, 3, 1, 12, 30, 45, 0, time.UTC)

func result(url string) *domain.Result {
	return &domain.Result{
		Key:          "a.warc.gz",
		URL:          url,
		Timestamp:    when,
		Type:         "response",
		Status:       200,
		DeclaredType: "text/html",
		SniffedType:  "text/html",
		Digest:       "sha1:3I42H3S6NNFQ2MSVX7XZKYAYSCX5QBYJ",
		Size:         12,
		Length:       345,
		Offset:       1024,
		Container:    "a.warc.gz",
		Title:        "Hi",
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var r = bufio.NewScanner(f)
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(f)
		require.NoError(t, err)
		r = bufio.NewScanner(zr)
	}
	var out []string
	for r.Scan() {
		out = append(out, r.Text())
	}
	require.NoError(t, r.Err())
	return out
}

func TestCDXLine(t *testing.T) {
	t.Parallel()
	l, ok := sink.CDXLine(result("http://www.Example.test/a?b=1"))
	require.True(t, ok)
	assert.Equal(t, "test,example)/a?b=1", l.URLKey)
	assert.Equal(t, "20240301123045", l.Timestamp)
	assert.Equal(t, "text/html", l.MimeType)
	assert.Equal(t, "3I42H3S6NNFQ2MSVX7XZKYAYSCX5QBYJ", l.Digest)
	assert.Equal(t, int64(345), l.Length)
	assert.Equal(t, int64(1024), l.Offset)

	r := result("http://example.test/")
	r.Type = "revisit"
	l, ok = sink.CDXLine(r)
	require.True(t, ok)
	assert.Equal(t, "warc/revisit", l.MimeType)

	r = result("http://example.test/")
	r.Digest = ""
	_, ok = sink.CDXLine(r)
	assert.False(t, ok)

	r = result("http://example.test/")
	r.SniffedType = ""
	l, _ = sink.CDXLine(r)
	assert.Equal(t, "text/html", l.MimeType)
}

func TestNDJSON_ShardsByPartition(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s, err := sink.NewNDJSON(dir, false)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Emit(ctx, 0, result("http://a.test/")))
	require.NoError(t, s.Emit(ctx, 3, result("http://b.test/")))
	require.NoError(t, s.Emit(ctx, 0, result("http://c.test/")))
	require.NoError(t, s.Close())

	assert.Equal(t, []string{
		filepath.Join(dir, "part-00000.ndjson"),
		filepath.Join(dir, "part-00003.ndjson"),
	}, s.Paths())

	lines := readLines(t, filepath.Join(dir, "part-00000.ndjson"))
	require.Len(t, lines, 2)
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &got))
	assert.Equal(t, "http://c.test/", got["url"])
	assert.Equal(t, "sha1:3I42H3S6NNFQ2MSVX7XZKYAYSCX5QBYJ", got["hash"])
	assert.Equal(t, "a.warc.gz", got["source_file"])

	err = s.Emit(ctx, 1, result("http://late.test/"))
	require.Error(t, err)
	assert.True(t, perr.IsCode(err, perr.ErrorCodeFatal))
}

func TestNDJSON_Gzip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s, err := sink.NewNDJSON(dir, true)
	require.NoError(t, err)
	require.NoError(t, s.Emit(context.Background(), 2, result("http://a.test/")))
	require.NoError(t, s.Close())

	lines := readLines(t, filepath.Join(dir, "part-00002.ndjson.gz"))
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"url":"http://a.test/"`)
}

func TestCDX_HeaderFirstAndDigestlessDropped(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s, err := sink.NewCDX(dir)
	require.NoError(t, err)
	ctx := context.Background()

	nodigest := result("http://x.test/")
	nodigest.Digest = ""
	require.NoError(t, s.Emit(ctx, 1, result("http://a.test/")))
	require.NoError(t, s.Emit(ctx, 1, nodigest))
	require.NoError(t, s.Close())

	lines := readLines(t, filepath.Join(dir, "part-00001.cdx"))
	require.Len(t, lines, 2)
	assert.Equal(t, cdx.Header, lines[0])
	l, err := cdx.Parse(lines[1])
	require.NoError(t, err)
	assert.Equal(t, "http://a.test/", l.Original)
	assert.Equal(t, 200, l.Status)
}

func TestNDJSON_ConcurrentEmit(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s, err := sink.NewNDJSON(dir, false)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				assert.NoError(t, s.Emit(context.Background(), w%2, result("http://c.test/")))
			}
		}()
	}
	wg.Wait()
	require.NoError(t, s.Close())
	n := len(readLines(t, filepath.Join(dir, "part-00000.ndjson"))) + len(readLines(t, filepath.Join(dir, "part-00001.ndjson")))
	assert.Equal(t, 200, n)
}

type fakeCH struct {
	mu      sync.Mutex
	inserts [][][]any
	execs   []string
	err     error
}

func (f *fakeCH) Insert(_ context.Context, _ string, rows [][]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.inserts = append(f.inserts, append([][]any(nil), rows...))
	return nil
}

func (f *fakeCH) Exec(_ context.Context, sql string, _ ...any) error {
	f.execs = append(f.execs, sql)
	return f.err
}

func (f *fakeCH) Close() error { return nil }

var _ store.Clickhouse = (*fakeCH)(nil)

func TestClickHouse_BatchesAndFlushesOnClose(t *testing.T) {
	t.Parallel()
	ch := &fakeCH{}
	s := sink.NewClickHouse(ch, "idx", 2)
	ctx := context.Background()

	require.NoError(t, s.EnsureSchema(ctx))
	require.Len(t, ch.execs, 1)
	assert.Contains(t, ch.execs[0], "CREATE TABLE IF NOT EXISTS idx")

	for i := range 3 {
		require.NoError(t, s.Emit(ctx, i, result("http://a.test/")))
	}
	require.Len(t, ch.inserts, 1)
	assert.Len(t, ch.inserts[0], 2)
	require.NoError(t, s.Close())
	require.Len(t, ch.inserts, 2)
	assert.Len(t, ch.inserts[1], 1)
	assert.Equal(t, int64(3), s.Sent())

	row := ch.inserts[1][0]
	assert.Equal(t, uint16(2), row[0])
	assert.Equal(t, "test,a)/", row[3])
	assert.Equal(t, []string{}, row[20])
}

func TestClickHouse_InsertErrorKeepsRows(t *testing.T) {
	t.Parallel()
	ch := &fakeCH{err: perr.Unavailablef("down")}
	s := sink.NewClickHouse(ch, "", 1)

	err := s.Emit(context.Background(), 0, result("http://a.test/"))
	require.Error(t, err)
	assert.True(t, perr.IsCode(err, perr.ErrorCodeUnavailable))

	ch.err = nil
	require.NoError(t, s.Close())
	require.Len(t, ch.inserts, 1)
	assert.Equal(t, int64(1), s.Sent())
}

func TestRow_MatchesSchemaColumns(t *testing.T) {
	t.Parallel()
	schema := sink.Schema("t")
	body := schema[strings.Index(schema, "(")+1 : strings.Index(schema, ") ENGINE")]
	cols := 0
	for line := range strings.SplitSeq(body, "\n") {
		if strings.TrimSpace(line) != "" {
			cols++
		}
	}
	assert.Len(t, sink.Row(0, result("http://a.test/")), cols)
}

type fakeRelay struct {
	lines  []string
	closed bool
}

func (f *fakeRelay) Add(_ context.Context, line string) error {
	f.lines = append(f.lines, line)
	return nil
}

func (f *fakeRelay) Close(context.Context) error {
	f.closed = true
	return nil
}

func TestRelay_SendsCDXLines(t *testing.T) {
	t.Parallel()
	r := &fakeRelay{}
	s := sink.NewRelay(r)
	nodigest := result("http://b.test/")
	nodigest.Digest = ""

	require.NoError(t, s.Emit(context.Background(), 4, result("http://a.test/")))
	require.NoError(t, s.Emit(context.Background(), 4, nodigest))
	require.NoError(t, s.Close())

	require.Len(t, r.lines, 1)
	assert.True(t, strings.HasPrefix(r.lines[0], "test,a)/ 20240301123045 http://a.test/ text/html 200 "))
	assert.True(t, r.closed)
}

type failing struct{ closed bool }

func (f *failing) Emit(context.Context, int, *domain.Result) error { return errors.New("boom") }
func (f *failing) Close() error {
	f.closed = true
	return nil
}

func TestMulti_TriesEverySink(t *testing.T) {
	t.Parallel()
	r := &fakeRelay{}
	bad := &failing{}
	m := sink.Multi{bad, sink.NewRelay(r)}

	err := m.Emit(context.Background(), 0, result("http://a.test/"))
	require.EqualError(t, err, "boom")
	assert.Len(t, r.lines, 1)
	require.NoError(t, m.Close())
	assert.True(t, bad.closed)
	assert.True(t, r.closed)
}

func TestOpen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	s, err := sink.Open(ctx, sink.Options{Names: []string{"cdx"}, OutDir: dir})
	require.NoError(t, err)
	assert.IsType(t, &sink.CDX{}, s)
	require.NoError(t, s.Close())

	s, err = sink.Open(ctx, sink.Options{Names: []string{"ndjson", " CDX ", "cdx", "clickhouse"}, OutDir: dir, CH: &fakeCH{}})
	require.NoError(t, err)
	require.IsType(t, sink.Multi{}, s)
	assert.Len(t, s.(sink.Multi), 3)
	require.NoError(t, s.Close())

	_, err = sink.Open(ctx, sink.Options{Names: []string{"clickhouse"}, OutDir: dir})
	assert.True(t, perr.IsCode(err, perr.ErrorCodeInvalidArgument))

	_, err = sink.Open(ctx, sink.Options{Names: []string{"parquet"}, OutDir: dir})
	assert.True(t, perr.IsCode(err, perr.ErrorCodeInvalidArgument))

	_, err = sink.Open(ctx, sink.Options{OutDir: dir})
	assert.True(t, perr.IsCode(err, perr.ErrorCodeInvalidArgument))
}
