// Package hashcache spools a record payload to memory or disk while hashing it
//
// The digest always covers the raw bytes exactly as they sit in the container, before
// any dechunking or decompression. Small payloads are kept in memory, large ones in a
// temp file under the spool dir, and bytes past the disk budget are hashed then dropped.
package hashcache

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"sync"

	perr "warcdex/internal/platform/errors"
	"warcdex/internal/platform/logger"

	"github.com/dustin/go-humanize"
)

// Record types with digest rules
const (
	TypeResponse = "response"
	TypeRevisit  = "revisit"
)

// Options bounds memory and disk use per payload
type Options struct {
	InMemoryThreshold int64  // payloads shorter than this stay in memory
	OnDiskThreshold   int64  // at most this many bytes are spooled to disk
	SpoolDir          string // temp file dir, "" means os.TempDir()
}

// DefaultOptions returns 1 MiB in memory and 100 MiB on disk
func DefaultOptions() Options {
	return Options{InMemoryThreshold: 1 << 20, OnDiskThreshold: 100 << 20}
}

// Meta is what the container header says about a payload
type Meta struct {
	Length         int64  // bytes to read from the source
	RecordType     string // "response", "revisit", ...
	DeclaredDigest string // e.g. WARC-Payload-Digest, may be empty
}

// Cache creates payloads and tracks their spool files until released
type Cache struct {
	opt Options
	log *logger.Logger

	mu    sync.Mutex
	spool map[string]struct{}
}

// New builds a Cache; zero thresholds fall back to the defaults
func New(opt Options) *Cache {
	def := DefaultOptions()
	if opt.InMemoryThreshold <= 0 {
		opt.InMemoryThreshold = def.InMemoryThreshold
	}
	if opt.OnDiskThreshold <= 0 {
		opt.OnDiskThreshold = def.OnDiskThreshold
	}
	return &Cache{
		opt:   opt,
		log:   logger.Named("hashcache"),
		spool: make(map[string]struct{}),
	}
}

// Options returns the effective options
func (c *Cache) Options() Options { return c.opt }

// Load reads meta.Length bytes from r into a new Payload
//
// Load always returns a non-nil Payload. An I/O failure yields an empty, failed payload
// with no digest plus an error. A digest mismatch on a response record yields a fully
// cached payload plus an ErrorCodeIntegrity error. Release must be called either way.
func (c *Cache) Load(ctx context.Context, r io.Reader, meta Meta) (*Payload, error) {
	p := &Payload{owner: c}
	if meta.Length < 0 {
		err := perr.InvalidArgf("negative payload length %d", meta.Length)
		p.fail(err)
		return p, err
	}

	src := ctxReader{ctx: ctx, r: r}
	h := newHash()

	store := min(meta.Length, c.opt.OnDiskThreshold)
	var dst io.Writer
	var file *os.File
	var mem *bytes.Buffer
	if meta.Length < c.opt.InMemoryThreshold {
		mem = bytes.NewBuffer(make([]byte, 0, store))
		dst = mem
	} else {
		f, err := os.CreateTemp(c.opt.SpoolDir, "warcdex-payload-*")
		if err != nil {
			err = perr.Wrap(err, perr.ErrorCodeIO, "create spool file")
			p.fail(err)
			return p, err
		}
		c.track(f.Name())
		p.path = f.Name()
		file = f
		dst = f
	}

	n, err := io.CopyN(io.MultiWriter(dst, h), src, store)
	p.read = n
	if err == nil && meta.Length > store {
		var rest int64
		rest, err = io.CopyN(h, src, meta.Length-store)
		p.read += rest
		p.truncated = true
	}
	if file != nil {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		err = perr.Wrapf(err, perr.ErrorCodeIO, "hash payload (%d of %d bytes)", p.read, meta.Length)
		p.fail(err)
		return p, err
	}

	if mem != nil {
		p.mem = mem.Bytes()
	}
	p.size = n
	p.computed = FormatSHA1(h.Sum(nil))
	p.digest = p.computed

	if meta.Length >= c.opt.InMemoryThreshold {
		c.log.Debug().Str("spool", p.path).Str("size", humanize.IBytes(uint64(n))).
			Bool("truncated", p.truncated).Msg("payload spooled")
	}

	declared := strings.TrimSpace(meta.DeclaredDigest)
	if declared == "" {
		return p, nil
	}
	switch strings.ToLower(meta.RecordType) {
	case TypeRevisit:
		// the bytes referenced by a revisit live in an earlier record
		p.digest = declared
	case TypeResponse:
		want, ok := Canonical(declared)
		if !ok {
			c.log.Debug().Str("declared", declared).Msg("declared digest not comparable, skipping check")
			return p, nil
		}
		if want != p.computed {
			err := perr.Integrityf("payload digest mismatch: declared %s, computed %s", declared, p.computed)
			p.err = err
			return p, err
		}
	}
	return p, nil
}

// Close removes any spool files that were never released
func (c *Cache) Close() error {
	c.mu.Lock()
	leaked := make([]string, 0, len(c.spool))
	for path := range c.spool {
		leaked = append(leaked, path)
	}
	c.spool = make(map[string]struct{})
	c.mu.Unlock()

	var first error
	for _, path := range leaked {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) && first == nil {
			first = err
		}
	}
	if len(leaked) > 0 {
		c.log.Warn().Int("files", len(leaked)).Msg("removed unreleased spool files")
	}
	return first
}

// Outstanding returns how many spool files are still held
func (c *Cache) Outstanding() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.spool)
}

func (c *Cache) track(path string) {
	c.mu.Lock()
	c.spool[path] = struct{}{}
	c.mu.Unlock()
}

func (c *Cache) untrack(path string) {
	c.mu.Lock()
	delete(c.spool, path)
	c.mu.Unlock()
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
