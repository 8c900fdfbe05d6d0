// Package sink writes index results to their destinations
//
// Every sink is safe for concurrent Emit calls from several workers. Results are
// grouped by the partition the worker picked, one shard file or batch column per
// partition, so downstream reducers can each take one shard.
package sink

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	perr "warcdex/internal/platform/errors"

	"github.com/klauspost/compress/gzip"
)

// shardSet lazily opens one file per partition under dir
type shardSet struct {
	dir    string
	ext    string
	gz     bool
	header string // written first in every shard when set

	mu     sync.Mutex
	open   map[int]*shard
	closed bool
}

type shard struct {
	path string
	f    *os.File
	zw   *gzip.Writer
	bw   *bufio.Writer
}

func newShardSet(dir, ext string, gz bool, header string) (*shardSet, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeIO, "create output dir %s", dir)
	}
	return &shardSet{dir: dir, ext: ext, gz: gz, header: header, open: map[int]*shard{}}, nil
}

// ShardName is the file name used for partition p
func ShardName(p int, ext string, gz bool) string {
	name := fmt.Sprintf("part-%05d.%s", p, ext)
	if gz {
		name += ".gz"
	}
	return name
}

func (s *shardSet) write(p int, line []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return perr.New(perr.ErrorCodeFatal, "write to closed sink")
	}
	sh, err := s.get(p)
	if err != nil {
		return err
	}
	if _, err := sh.bw.Write(line); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeIO, "write %s", sh.path)
	}
	return nil
}

func (s *shardSet) get(p int) (*shard, error) {
	if sh, ok := s.open[p]; ok {
		return sh, nil
	}
	path := filepath.Join(s.dir, ShardName(p, s.ext, s.gz))
	f, err := os.Create(path)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeIO, "create %s", path)
	}
	sh := &shard{path: path, f: f}
	if s.gz {
		sh.zw = gzip.NewWriter(f)
		sh.bw = bufio.NewWriterSize(sh.zw, 64<<10)
	} else {
		sh.bw = bufio.NewWriterSize(f, 64<<10)
	}
	if s.header != "" {
		if _, err := sh.bw.WriteString(s.header + "\n"); err != nil {
			_ = f.Close()
			return nil, perr.Wrapf(err, perr.ErrorCodeIO, "write %s", path)
		}
	}
	s.open[p] = sh
	return sh, nil
}

// paths lists the shard files opened so far in partition order
func (s *shardSet) paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.open))
	for _, sh := range s.open {
		out = append(out, sh.path)
	}
	sort.Strings(out)
	return out
}

func (s *shardSet) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	for _, sh := range s.open {
		keep(sh.bw.Flush())
		if sh.zw != nil {
			keep(sh.zw.Close())
		}
		keep(sh.f.Close())
	}
	if first != nil {
		return perr.Wrap(first, perr.ErrorCodeIO, "close shards")
	}
	return nil
}
