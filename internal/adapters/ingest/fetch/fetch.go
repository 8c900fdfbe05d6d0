// Package fetch resolves container paths to local files
//
// Paths are either local filesystem paths or http(s) URLs. Remote containers are
// downloaded once into a cache dir (written to a .part file then renamed) so a split
// can be stat'ed, filtered and read like local files.
package fetch

import (
	"context"
	"io"
	"os"
	"strings"

	perr "warcdex/internal/platform/errors"
)

// Opener stats and opens container paths
type Opener interface {
	// Stat returns the container size in bytes
	Stat(ctx context.Context, path string) (int64, error)
	// Open returns a reader over the container and its size
	Open(ctx context.Context, path string) (io.ReadCloser, int64, error)
}

// IsRemote reports whether path is an http(s) URL
func IsRemote(path string) bool {
	p := strings.ToLower(path)
	return strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://")
}

// Local opens paths on the local filesystem
type Local struct{}

// Stat implements Opener
func (Local) Stat(_ context.Context, path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, classify(err, path)
	}
	if !fi.Mode().IsRegular() {
		return 0, perr.InvalidArgf("%s is not a regular file", path)
	}
	return fi.Size(), nil
}

// Open implements Opener
func (Local) Open(_ context.Context, path string) (io.ReadCloser, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, classify(err, path)
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, classify(err, path)
	}
	return f, fi.Size(), nil
}

// Router sends URLs to a CachedFetcher and everything else to Local
type Router struct {
	Local  Local
	Remote *CachedFetcher // nil disables remote paths
}

// Stat implements Opener
func (r Router) Stat(ctx context.Context, path string) (int64, error) {
	if !IsRemote(path) {
		return r.Local.Stat(ctx, path)
	}
	if r.Remote == nil {
		return 0, perr.InvalidArgf("remote container %s but no cache dir configured", path)
	}
	local, err := r.Remote.Fetch(ctx, path)
	if err != nil {
		return 0, err
	}
	return r.Local.Stat(ctx, local)
}

// Open implements Opener
func (r Router) Open(ctx context.Context, path string) (io.ReadCloser, int64, error) {
	if !IsRemote(path) {
		return r.Local.Open(ctx, path)
	}
	if r.Remote == nil {
		return nil, 0, perr.InvalidArgf("remote container %s but no cache dir configured", path)
	}
	local, err := r.Remote.Fetch(ctx, path)
	if err != nil {
		return nil, 0, err
	}
	return r.Local.Open(ctx, local)
}

func classify(err error, path string) error {
	switch {
	case os.IsNotExist(err):
		return perr.Wrapf(err, perr.ErrorCodeNotFound, "container %s", path)
	case os.IsPermission(err):
		return perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "container %s", path)
	default:
		return perr.Wrapf(err, perr.ErrorCodeIO, "container %s", path)
	}
}
