// Package source turns a split of container files into one stream of records
//
// A file that cannot be opened, a malformed record or a truncated container only ends
// the current file; iteration carries on with the next path. Records come out in split
// order, then in on-disk order within a file.
package source

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"warcdex/internal/adapters/ingest/fetch"
	"warcdex/internal/adapters/ingest/warc"
	perr "warcdex/internal/platform/errors"
	"warcdex/internal/platform/logger"
	"warcdex/internal/services/index/domain"
)

// Event describes a file transition
type Event struct {
	File    domain.File
	Status  domain.FileStatus
	Records int
	Bytes   int64
	Elapsed time.Duration
	Err     error
}

// Hooks observe file transitions; either may be nil
type Hooks struct {
	Opened func(ctx context.Context, f domain.File)
	Closed func(ctx context.Context, ev Event)
}

// Source iterates the records of one split
type Source struct {
	opener fetch.Opener
	split  domain.Split
	hooks  Hooks

	next    int // index of the next file to open
	cur     domain.File
	rd      *warc.Reader
	started time.Time
	recs    int

	opened int
	failed int
	done   bool
}

// New returns a Source over split; files are opened lazily by Next
func New(opener fetch.Opener, split domain.Split, hooks Hooks) *Source {
	return &Source{opener: opener, split: split, hooks: hooks}
}

// Next returns the key (container name) and the next record
// io.EOF means the split is exhausted. The record is valid until the following call.
// Only context cancellation and a split where no file could be opened are returned
// as errors; every other fault moves on to the next file.
func (s *Source) Next(ctx context.Context) (string, *warc.Record, error) {
	for {
		if err := ctx.Err(); err != nil {
			s.abandon(ctx, err)
			return "", nil, err
		}
		if s.done {
			return "", nil, io.EOF
		}
		if s.rd == nil {
			if s.next >= len(s.split.Files) {
				s.done = true
				if s.opened == 0 && s.failed > 0 {
					return "", nil, perr.Fatalf("split %d: none of %d containers could be opened",
						s.split.Index, s.failed)
				}
				return "", nil, io.EOF
			}
			s.open(ctx, s.split.Files[s.next])
			s.next++
			continue
		}

		rec, err := s.pull()
		switch {
		case err == nil:
			s.recs++
			return path.Base(s.cur.Path), rec, nil
		case err == io.EOF:
			s.closeFile(ctx, domain.FileDone, nil)
		default:
			logger.C(ctx).Error().Err(err).Str("component", "source").Str("path", s.cur.Path).
				Int("records", s.recs).Int64("consumed", s.rd.Consumed()).
				Msg("error reading container, moving to next file")
			s.closeFile(ctx, domain.FileCorrupt, err)
		}
	}
}

// Progress is the fraction of the current file consumed, 0 before the first
// file and 1 once the split is exhausted
func (s *Source) Progress() float64 {
	if s.done {
		return 1
	}
	if s.rd == nil || s.cur.Size <= 0 {
		return 0
	}
	return min(float64(s.rd.Consumed())/float64(s.cur.Size), 1)
}

// Current returns the open file and its 1-based position in the split
func (s *Source) Current() (domain.File, int) {
	if s.rd == nil {
		return domain.File{}, s.next
	}
	return s.cur, s.next
}

// Split returns the split being read
func (s *Source) Split() domain.Split { return s.split }

// Opened reports how many containers were opened and how many could not be
func (s *Source) Opened() (opened, failed int) { return s.opened, s.failed }

// Close releases the open container, if any
func (s *Source) Close() error {
	if s.rd == nil {
		return nil
	}
	err := s.rd.Close()
	s.rd = nil
	return err
}

func (s *Source) open(ctx context.Context, f domain.File) {
	log := logger.C(ctx).With().Str("component", "source").Str("path", f.Path).Logger()
	start := time.Now()
	rc, size, err := s.opener.Open(ctx, f.Path)
	if err != nil {
		s.failed++
		log.Warn().Err(err).Msg("cannot open container, skipping")
		if s.hooks.Closed != nil {
			s.hooks.Closed(ctx, Event{File: f, Status: domain.FileFailed, Elapsed: time.Since(start), Err: err})
		}
		return
	}
	if size > 0 {
		f.Size = size
	}
	s.opened++
	s.cur = f
	s.rd = warc.NewReader(rc, path.Base(f.Path))
	s.started = start
	s.recs = 0
	log.Info().Int("file_no", s.next+1).Int("files", len(s.split.Files)).Msg("opening container")
	if s.hooks.Opened != nil {
		s.hooks.Opened(ctx, f)
	}
}

// pull reads one record, turning a reader panic into a corrupt error
func (s *Source) pull() (rec *warc.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec = nil
			err = perr.Newf(perr.ErrorCodeCorrupt, "reader panic: %v", r)
		}
	}()
	return s.rd.Next()
}

func (s *Source) closeFile(ctx context.Context, status domain.FileStatus, cause error) {
	ev := Event{
		File:    s.cur,
		Status:  status,
		Records: s.recs,
		Bytes:   s.rd.Consumed(),
		Elapsed: time.Since(s.started),
		Err:     cause,
	}
	if err := s.rd.Close(); err != nil {
		logger.C(ctx).Debug().Err(err).Str("path", s.cur.Path).Msg("close container")
	}
	s.rd = nil
	if s.hooks.Closed != nil {
		s.hooks.Closed(ctx, ev)
	}
}

// abandon closes the current file when the run is cancelled mid file
func (s *Source) abandon(ctx context.Context, cause error) {
	if s.rd == nil {
		return
	}
	s.closeFile(context.WithoutCancel(ctx), domain.FileFailed, fmt.Errorf("cancelled: %w", cause))
	s.done = true
}
