package fetch

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	perr "warcdex/internal/platform/errors"
	"warcdex/internal/platform/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/dustin/go-humanize"
)

// CachedFetcher downloads remote containers into a local dir
// Each container is stored once under a name derived from its URL, with a .meta sidecar.
// Containers are immutable so a cached file is never revalidated.
type CachedFetcher struct {
	dir        string
	client     *http.Client
	retries    uint64
	retryDelay time.Duration
	keep       Retention

	locks sync.Map // cache path -> *sync.Mutex
	swept sweepClock
	log   *logger.Logger
}

type cacheMeta struct {
	URL       string    `json:"url"`
	ETag      string    `json:"etag,omitempty"`
	Size      int64     `json:"size"`
	FetchedAt time.Time `json:"fetched_at"`
}

// CachedOption configures the fetcher
type CachedOption func(*CachedFetcher)

// WithClient sets the http client
func WithClient(c *http.Client) CachedOption {
	return func(f *CachedFetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithRetry sets how often a failed download is retried and the first delay
func WithRetry(retries uint64, delay time.Duration) CachedOption {
	return func(f *CachedFetcher) {
		f.retries = retries
		f.retryDelay = delay
	}
}

// WithRetention bounds the cache by age and total size
func WithRetention(r Retention) CachedOption {
	return func(f *CachedFetcher) { f.keep = r }
}

// NewCachedFetcher builds a fetcher storing files under dir
func NewCachedFetcher(dir string, opts ...CachedOption) (*CachedFetcher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeIO, "create cache dir %s", dir)
	}
	f := &CachedFetcher{
		dir:        dir,
		client:     &http.Client{},
		retries:    3,
		retryDelay: time.Second,
		log:        logger.Named("fetch"),
	}
	for _, o := range opts {
		o(f)
	}
	return f, nil
}

// Path returns where the container for rawURL is cached
func (c *CachedFetcher) Path(rawURL string) string {
	sum := sha1.Sum([]byte(rawURL))
	base := "container"
	if u, err := url.Parse(rawURL); err == nil {
		if b := path.Base(u.Path); b != "" && b != "/" && b != "." {
			base = b
		}
	}
	return filepath.Join(c.dir, hex.EncodeToString(sum[:8])+"-"+base)
}

// Fetch returns the local path of rawURL, downloading it on a cache miss
func (c *CachedFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	dst := c.Path(rawURL)

	mu, _ := c.locks.LoadOrStore(dst, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
	defer mu.(*sync.Mutex).Unlock()

	if fi, err := os.Stat(dst); err == nil && fi.Mode().IsRegular() {
		c.sweep()
		return dst, nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.retryDelay
	eb.MaxElapsedTime = 0
	bo := backoff.WithContext(backoff.WithMaxRetries(eb, c.retries), ctx)
	op := func() error {
		err := c.download(ctx, rawURL, dst)
		if err != nil && !perr.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, d time.Duration) {
		c.log.Warn().Err(err).Str("url", rawURL).Dur("retry_in", d).Msg("container download failed")
	}
	if err := backoff.RetryNotify(op, bo, notify); err != nil {
		return "", err
	}
	c.sweep()
	return dst, nil
}

func (c *CachedFetcher) download(ctx context.Context, rawURL, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "container url %s", rawURL)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "get %s", rawURL)
	}
	defer resp.Body.Close()

	if code, failed := perr.FromHTTPStatus(resp.StatusCode); failed {
		return perr.Newf(code, "get %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	n, err := writeAtomic(dst, resp.Body)
	if err != nil {
		return err
	}
	if resp.ContentLength >= 0 && n != resp.ContentLength {
		_ = os.Remove(dst)
		return perr.Unavailablef("get %s: short body %d of %d bytes", rawURL, n, resp.ContentLength)
	}

	meta, _ := json.Marshal(cacheMeta{
		URL:       rawURL,
		ETag:      strings.TrimSpace(resp.Header.Get("ETag")),
		Size:      n,
		FetchedAt: time.Now().UTC(),
	})
	if _, err := writeAtomic(dst+".meta", bytes.NewReader(meta)); err != nil {
		c.log.Debug().Err(err).Str("url", rawURL).Msg("container meta not written")
	}
	c.log.Info().Str("url", rawURL).Str("size", humanize.IBytes(uint64(n))).Msg("container cached")
	return nil
}

// writeAtomic copies r to p through a .part file renamed into place
// A body read failure is Unavailable, local failures are IO.
func writeAtomic(p string, r io.Reader) (int64, error) {
	tmp := p + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return 0, perr.Wrap(err, perr.ErrorCodeIO, "create cache file")
	}
	defer func() { _ = os.Remove(tmp) }()

	n, err := io.Copy(out, r)
	if cerr := out.Close(); err == nil && cerr != nil {
		return n, perr.Wrap(cerr, perr.ErrorCodeIO, "close cache file")
	}
	if err != nil {
		return n, perr.Wrapf(err, perr.ErrorCodeUnavailable, "copy into %s", filepath.Base(p))
	}
	if err := os.Rename(tmp, p); err != nil {
		return n, perr.Wrap(err, perr.ErrorCodeIO, "rename cache file")
	}
	return n, nil
}
