package service

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"

	"warcdex/internal/core/cdx"
	perr "warcdex/internal/platform/errors"
	"warcdex/internal/platform/logger"
	"warcdex/internal/services/relay/domain"

	"github.com/klauspost/compress/gzip"
)

const maxLine = 1 << 20

// Feed adds every summary line of r to relay
// Blank lines and CDX legend lines are skipped. It returns the number of lines added.
func Feed(ctx context.Context, r io.Reader, relay domain.RelayPort) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64<<10), maxLine)
	n := 0
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" || cdx.IsHeader(line) {
			continue
		}
		if err := relay.Add(ctx, line); err != nil {
			return n, err
		}
		n++
	}
	if err := sc.Err(); err != nil {
		return n, perr.Wrap(err, perr.ErrorCodeIO, "read summary lines")
	}
	return n, nil
}

// FeedFiles feeds each file in order; ".gz" files are decompressed
func FeedFiles(ctx context.Context, paths []string, relay domain.RelayPort) (int, error) {
	total := 0
	for _, p := range paths {
		n, err := feedFile(ctx, p, relay)
		total += n
		if err != nil {
			return total, err
		}
		logger.C(ctx).Info().Str("component", "relay").Str("path", p).Int("lines", n).Msg("relay: file queued")
	}
	return total, nil
}

func feedFile(ctx context.Context, path string, relay domain.RelayPort) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, perr.Wrapf(err, perr.ErrorCodeNotFound, "open %s", path)
	}
	defer func() { _ = f.Close() }()
	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return 0, perr.Wrapf(err, perr.ErrorCodeCorrupt, "gunzip %s", path)
		}
		defer func() { _ = zr.Close() }()
		r = zr
	}
	return Feed(ctx, r, relay)
}
