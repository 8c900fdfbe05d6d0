package fetch

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

// SweepEvery throttles retention sweeps triggered by Fetch
const SweepEvery = 10 * time.Minute

// Retention bounds the container cache
// Zero disables the matching limit.
type Retention struct {
	MaxAge   time.Duration
	MaxBytes int64
}

func (r Retention) enabled() bool { return r.MaxAge > 0 || r.MaxBytes > 0 }

type sweepClock struct {
	mu   sync.Mutex
	last time.Time
}

// due reports whether a sweep should run at now and claims it
func (s *sweepClock) due(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.last.IsZero() && now.Sub(s.last) < SweepEvery {
		return false
	}
	s.last = now
	return true
}

type cached struct {
	path string
	size int64
	mod  time.Time
}

// evictions picks what to delete: everything older than MaxAge, then the oldest
// of the rest until the total fits MaxBytes
func (r Retention) evictions(files []cached, now time.Time) []string {
	slices.SortFunc(files, func(a, b cached) int { return a.mod.Compare(b.mod) })
	var out []string
	var total int64
	var kept []cached
	for _, f := range files {
		if r.MaxAge > 0 && now.Sub(f.mod) > r.MaxAge {
			out = append(out, f.path)
			continue
		}
		kept = append(kept, f)
		total += f.size
	}
	for _, f := range kept {
		if r.MaxBytes <= 0 || total <= r.MaxBytes {
			break
		}
		out = append(out, f.path)
		total -= f.size
	}
	return out
}

func (c *CachedFetcher) sweep() {
	if !c.keep.enabled() || !c.swept.due(time.Now()) {
		return
	}
	if err := c.sweepNow(time.Now()); err != nil {
		c.log.Warn().Err(err).Msg("cache sweep failed")
	}
}

// sweepNow applies the retention to the cache dir, containers and their .meta together
func (c *CachedFetcher) sweepNow(now time.Time) error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}
	var files []cached
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || strings.HasSuffix(name, ".meta") || strings.HasSuffix(name, ".part") {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, cached{path: filepath.Join(c.dir, name), size: fi.Size(), mod: fi.ModTime()})
	}
	for _, p := range c.keep.evictions(files, now) {
		_ = os.Remove(p)
		_ = os.Remove(p + ".meta")
		c.log.Debug().Str("path", p).Msg("evicted cached container")
	}
	return nil
}
