package source

import (
	"context"
	"sort"

	"warcdex/internal/adapters/ingest/fetch"
	perr "warcdex/internal/platform/errors"
	"warcdex/internal/platform/logger"
	"warcdex/internal/services/index/domain"
)

// Stater reports container sizes; fetch.Opener satisfies it
type Stater interface {
	Stat(ctx context.Context, path string) (int64, error)
}

var _ Stater = fetch.Opener(nil)

// Inventory stats every path and returns the usable files in input order
// Zero length files and paths rejected by skip are dropped. Paths that cannot be
// stat'ed are dropped and logged; if that leaves nothing while at least one path
// failed, the inventory is unusable and a fatal error is returned.
func Inventory(ctx context.Context, st Stater, paths []string, skip func(string) bool) ([]domain.File, error) {
	log := logger.C(ctx).With().Str("component", "source").Logger()

	files := make([]domain.File, 0, len(paths))
	var failed int
	var lastErr error
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if skip != nil && skip(p) {
			log.Info().Str("path", p).Msg("already indexed, skipping")
			continue
		}
		n, err := st.Stat(ctx, p)
		if err != nil {
			failed++
			lastErr = err
			log.Warn().Err(err).Str("path", p).Msg("cannot stat container, skipping")
			continue
		}
		if n == 0 {
			log.Warn().Str("path", p).Msg("skipping empty file")
			continue
		}
		files = append(files, domain.File{Path: p, Size: n})
	}
	if len(files) == 0 && failed > 0 {
		return nil, perr.Wrapf(lastErr, perr.ErrorCodeFatal, "none of %d containers are readable", failed)
	}
	return files, nil
}

// Plan deals files out to n splits, balancing by size
// Larger files are placed first on the lightest split; each split keeps input order.
func Plan(files []domain.File, n int) []domain.Split {
	n = max(n, 1)
	n = min(n, max(len(files), 1))

	type item struct {
		pos int
		f   domain.File
	}
	items := make([]item, len(files))
	for i, f := range files {
		items[i] = item{pos: i, f: f}
	}
	sort.SliceStable(items, func(a, b int) bool { return items[a].f.Size > items[b].f.Size })

	load := make([]int64, n)
	picked := make([][]item, n)
	for _, it := range items {
		best := 0
		for i := 1; i < n; i++ {
			if load[i] < load[best] {
				best = i
			}
		}
		load[best] += it.f.Size
		picked[best] = append(picked[best], it)
	}

	out := make([]domain.Split, n)
	for i := range picked {
		sort.Slice(picked[i], func(a, b int) bool { return picked[i][a].pos < picked[i][b].pos })
		fs := make([]domain.File, len(picked[i]))
		for j, it := range picked[i] {
			fs[j] = it.f
		}
		out[i] = domain.Split{Index: i, Files: fs}
	}
	return out
}
