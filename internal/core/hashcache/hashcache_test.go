package hashcache

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	perr "warcdex/internal/platform/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sha1Of(b []byte) string {
	sum := sha1.Sum(b)
	return FormatSHA1(sum[:])
}

func newCache(t *testing.T, mem, disk int64) *Cache {
	t.Helper()
	c := New(Options{InMemoryThreshold: mem, OnDiskThreshold: disk, SpoolDir: t.TempDir()})
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func contents(t *testing.T, p *Payload) []byte {
	t.Helper()
	rc, err := p.Open()
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return b
}

func TestFormatSHA1_KnownVector(t *testing.T) {
	sum := sha1.Sum([]byte("abc"))
	// well known base32 rendering of sha1("abc")
	assert.Equal(t, "sha1:VGMT4NSHA2AWVOR6EVYXQUGCNSONBWE5", FormatSHA1(sum[:]))
	assert.Len(t, strings.TrimPrefix(FormatSHA1(sum[:]), DigestPrefix), 32)
}

func TestCanonical(t *testing.T) {
	sum := sha1.Sum([]byte("abc"))
	b32 := FormatSHA1(sum[:])

	got, ok := Canonical(" SHA1:" + strings.ToLower(strings.TrimPrefix(b32, DigestPrefix)) + " ")
	require.True(t, ok)
	assert.Equal(t, b32, got)

	got, ok = Canonical("sha1:" + hex.EncodeToString(sum[:]))
	require.True(t, ok)
	assert.Equal(t, b32, got)

	for _, bad := range []string{"", "sha256:abc", "sha1:short", "nocolon", "sha1:" + strings.Repeat("!", 32)} {
		_, ok := Canonical(bad)
		assert.False(t, ok, bad)
	}
}

func TestLoad_MemoryAndDiskAgree(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789"), 300)
	want := sha1Of(data)

	memCache := newCache(t, int64(len(data))+1, 1<<20)
	diskCache := newCache(t, 16, 1<<20)

	pm, err := memCache.Load(context.Background(), bytes.NewReader(data), Meta{Length: int64(len(data))})
	require.NoError(t, err)
	defer pm.Release()
	pd, err := diskCache.Load(context.Background(), bytes.NewReader(data), Meta{Length: int64(len(data))})
	require.NoError(t, err)
	defer pd.Release()

	assert.False(t, pm.OnDisk())
	assert.True(t, pd.OnDisk())
	assert.Equal(t, want, pm.Digest())
	assert.Equal(t, want, pd.Digest())
	assert.False(t, pm.Truncated())
	assert.False(t, pd.Truncated())
	assert.Equal(t, data, contents(t, pm))
	assert.Equal(t, data, contents(t, pd))
}

func TestLoad_ThresholdBoundary(t *testing.T) {
	c := newCache(t, 10, 100)

	p, err := c.Load(context.Background(), strings.NewReader("123456789"), Meta{Length: 9})
	require.NoError(t, err)
	assert.False(t, p.OnDisk(), "length below threshold stays in memory")
	require.NoError(t, p.Release())

	p, err = c.Load(context.Background(), strings.NewReader("1234567890"), Meta{Length: 10})
	require.NoError(t, err)
	assert.True(t, p.OnDisk(), "length equal to threshold spools")
	require.NoError(t, p.Release())
}

func TestLoad_ReplayIsIndependent(t *testing.T) {
	c := newCache(t, 4, 1<<10)
	p, err := c.Load(context.Background(), strings.NewReader("replay me"), Meta{Length: 9})
	require.NoError(t, err)
	defer p.Release()

	a, err := p.Open()
	require.NoError(t, err)
	b, err := p.Open()
	require.NoError(t, err)

	buf := make([]byte, 3)
	_, err = io.ReadFull(a, buf)
	require.NoError(t, err)
	assert.Equal(t, "rep", string(buf))

	all, err := io.ReadAll(b)
	require.NoError(t, err)
	assert.Equal(t, "replay me", string(all))
	_ = a.Close()
	_ = b.Close()
}

func TestLoad_TruncatesPastDiskBudget(t *testing.T) {
	data := bytes.Repeat([]byte("abcdefgh"), 64) // 512 bytes
	c := newCache(t, 8, 100)

	p, err := c.Load(context.Background(), bytes.NewReader(data), Meta{Length: int64(len(data))})
	require.NoError(t, err)
	defer p.Release()

	assert.True(t, p.Truncated())
	assert.Equal(t, int64(100), p.Size())
	assert.Equal(t, int64(512), p.Consumed())
	assert.Equal(t, data[:100], contents(t, p))
	assert.Equal(t, sha1Of(data), p.Digest(), "digest covers the full declared range")
}

func TestLoad_ReadsOnlyDeclaredLength(t *testing.T) {
	c := newCache(t, 1<<10, 1<<20)
	r := strings.NewReader("payloadTRAILER")
	p, err := c.Load(context.Background(), r, Meta{Length: 7})
	require.NoError(t, err)
	defer p.Release()

	assert.Equal(t, "payload", string(contents(t, p)))
	rest, _ := io.ReadAll(r)
	assert.Equal(t, "TRAILER", string(rest))
}

func TestLoad_ResponseDigestMismatchIsIntegrityFault(t *testing.T) {
	c := newCache(t, 1<<10, 1<<20)
	wrong := sha1Of([]byte("something else"))

	p, err := c.Load(context.Background(), strings.NewReader("body"), Meta{
		Length: 4, RecordType: TypeResponse, DeclaredDigest: wrong,
	})
	require.Error(t, err)
	assert.True(t, perr.IsCode(err, perr.ErrorCodeIntegrity))
	assert.False(t, p.Failed(), "integrity faults keep the cached payload")
	assert.Equal(t, sha1Of([]byte("body")), p.Digest())
	assert.Equal(t, "body", string(contents(t, p)))
	require.NoError(t, p.Release())
}

func TestLoad_ResponseDigestMatch(t *testing.T) {
	c := newCache(t, 1<<10, 1<<20)
	sum := sha1.Sum([]byte("body"))

	p, err := c.Load(context.Background(), strings.NewReader("body"), Meta{
		Length: 4, RecordType: "Response", DeclaredDigest: "sha1:" + hex.EncodeToString(sum[:]),
	})
	require.NoError(t, err)
	assert.Nil(t, p.Err())
	require.NoError(t, p.Release())
}

func TestLoad_RevisitTakesDeclaredDigest(t *testing.T) {
	c := newCache(t, 1<<10, 1<<20)
	declared := sha1Of([]byte("original capture"))

	p, err := c.Load(context.Background(), strings.NewReader(""), Meta{
		Length: 0, RecordType: TypeRevisit, DeclaredDigest: declared,
	})
	require.NoError(t, err)
	defer p.Release()
	assert.Equal(t, declared, p.Digest())
	assert.Equal(t, sha1Of(nil), p.Computed())
}

func TestLoad_UncomparableDeclaredDigestIsIgnored(t *testing.T) {
	c := newCache(t, 1<<10, 1<<20)
	p, err := c.Load(context.Background(), strings.NewReader("body"), Meta{
		Length: 4, RecordType: TypeResponse, DeclaredDigest: "sha256:deadbeef",
	})
	require.NoError(t, err)
	defer p.Release()
	assert.Equal(t, sha1Of([]byte("body")), p.Digest())
}

type failingReader struct{ after int }

func (f *failingReader) Read(p []byte) (int, error) {
	if f.after <= 0 {
		return 0, errors.New("disk on fire")
	}
	n := min(len(p), f.after)
	f.after -= n
	return n, nil
}

func TestLoad_IOErrorYieldsFailedPayload(t *testing.T) {
	c := newCache(t, 4, 1<<20)
	p, err := c.Load(context.Background(), &failingReader{after: 10}, Meta{Length: 100})
	require.Error(t, err)
	assert.True(t, perr.IsCode(err, perr.ErrorCodeIO))
	assert.True(t, p.Failed())
	assert.Empty(t, p.Digest())
	assert.Empty(t, contents(t, p))
	assert.Zero(t, c.Outstanding(), "failed spool files are removed immediately")
	require.NoError(t, p.Release())
}

func TestLoad_ShortSourceIsFault(t *testing.T) {
	c := newCache(t, 1<<10, 1<<20)
	p, err := c.Load(context.Background(), strings.NewReader("abc"), Meta{Length: 10})
	require.Error(t, err)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.True(t, p.Failed())
}

func TestLoad_CanceledContext(t *testing.T) {
	c := newCache(t, 1<<10, 1<<20)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p, err := c.Load(ctx, strings.NewReader("abc"), Meta{Length: 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, p.Failed())
}

func TestLoad_NegativeLength(t *testing.T) {
	c := newCache(t, 1<<10, 1<<20)
	p, err := c.Load(context.Background(), strings.NewReader(""), Meta{Length: -1})
	require.Error(t, err)
	assert.True(t, perr.IsCode(err, perr.ErrorCodeInvalidArgument))
	assert.True(t, p.Failed())
}

func TestRelease_RemovesSpoolFile(t *testing.T) {
	dir := t.TempDir()
	c := New(Options{InMemoryThreshold: 1, OnDiskThreshold: 1 << 10, SpoolDir: dir})

	p, err := c.Load(context.Background(), strings.NewReader("spooled"), Meta{Length: 7})
	require.NoError(t, err)
	assert.Equal(t, 1, c.Outstanding())

	entries, _ := os.ReadDir(dir)
	require.Len(t, entries, 1)

	require.NoError(t, p.Release())
	require.NoError(t, p.Release(), "second release is a no-op")
	assert.Zero(t, c.Outstanding())

	entries, _ = os.ReadDir(dir)
	assert.Empty(t, entries)

	_, err = p.Open()
	assert.Error(t, err)
}

func TestClose_RemovesLeakedSpoolFiles(t *testing.T) {
	dir := t.TempDir()
	c := New(Options{InMemoryThreshold: 1, OnDiskThreshold: 1 << 10, SpoolDir: dir})
	for range 3 {
		_, err := c.Load(context.Background(), strings.NewReader("leak"), Meta{Length: 4})
		require.NoError(t, err)
	}
	require.NoError(t, c.Close())

	matches, _ := filepath.Glob(filepath.Join(dir, "warcdex-payload-*"))
	assert.Empty(t, matches)
}

func TestNew_Defaults(t *testing.T) {
	c := New(Options{})
	assert.Equal(t, DefaultOptions().InMemoryThreshold, c.Options().InMemoryThreshold)
	assert.Equal(t, DefaultOptions().OnDiskThreshold, c.Options().OnDiskThreshold)
}
