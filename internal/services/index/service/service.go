// Package service runs the index pipeline
//
// Paths are inventoried once, planned into size balanced splits and each split is
// drained by its own Worker. Per file outcomes go to the ledger on a best effort
// basis; a ledger outage never stops indexing.
package service

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"warcdex/internal/adapters/ingest/fetch"
	"warcdex/internal/modkit/repokit"
	perr "warcdex/internal/platform/errors"
	"warcdex/internal/platform/logger"
	"warcdex/internal/services/index/domain"
	"warcdex/internal/services/index/guardrails"
	"warcdex/internal/services/index/source"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Config holds the index run settings
type Config struct {
	Workers     int // splits read in parallel; <=0 -> 1
	Reducers    int // partitions are [0, Reducers]
	StatusEvery int // status line cadence; <=0 -> 1000

	Resume bool // skip files the ledger has as done
	Leases bool // claim each file before reading it

	Timeouts guardrails.Timeouts
}

// Service implements domain.RunnerPort
type Service struct {
	DB      repokit.TxRunner                  // nil disables the ledger
	Binder  repokit.Binder[domain.LedgerRepo] // binds q -> domain.LedgerRepo
	Opener  fetch.Opener
	Extract domain.Extractor
	Sink    domain.Sink
	Cfg     Config

	// Lease(ctx, path, runID) claims a file for this run; used when Cfg.Leases is set
	Lease domain.Lease

	mu    sync.Mutex
	runID string
	live  []*splitState
}

var _ domain.RunnerPort = (*Service)(nil)

type splitState struct {
	split  domain.Split
	worker *Worker

	mu        sync.Mutex
	file      domain.File
	fileNo    int
	fileStart domain.CounterSnapshot
	done      bool
}

// New constructs the index service
// db and binder may both be nil to run without a ledger.
func New(
	db repokit.TxRunner,
	binder repokit.Binder[domain.LedgerRepo],
	opener fetch.Opener,
	ex domain.Extractor,
	sink domain.Sink,
	cfg Config,
	lease domain.Lease,
) *Service {
	if opener == nil {
		panic("index.Service requires an Opener")
	}
	if ex == nil || sink == nil {
		panic("index.Service requires an Extractor and a Sink")
	}
	if (db == nil) != (binder == nil) {
		panic("index.Service requires both or neither of TxRunner and Binder")
	}
	return &Service{
		DB: db, Binder: binder,
		Opener: opener, Extract: ex, Sink: sink,
		Cfg:   cfg,
		Lease: lease,
	}
}

// Run implements domain.RunnerPort
func (s *Service) Run(ctx context.Context, paths []string) (domain.Report, error) {
	runID := uuid.NewString()
	ctx = logger.WithRun(ctx, runID, -1)
	rep := domain.Report{RunID: runID}
	start := time.Now()
	log := logger.C(ctx).With().Str("component", "index").Logger()

	opener := guardrails.Opener(s.Opener, s.Cfg.Timeouts)
	files, err := source.Inventory(ctx, opener, paths, s.skipper(ctx, runID, paths))
	if err != nil {
		return rep, err
	}
	splits := source.Plan(files, max(s.Cfg.Workers, 1))
	rep.Files = len(files)
	rep.Splits = len(splits)

	var total int64
	for _, f := range files {
		total += f.Size
	}
	log.Info().Int("paths", len(paths)).Int("files", len(files)).Int("splits", len(splits)).
		Str("bytes", humanize.IBytes(uint64(total))).Msg("index: run planned")

	states := make([]*splitState, len(splits))
	for i, sp := range splits {
		states[i] = &splitState{
			split:  sp,
			worker: NewWorker(sp.Index, s.Extract, s.Sink, s.Cfg.Reducers, s.Cfg.StatusEvery),
		}
	}
	s.mu.Lock()
	s.runID = runID
	s.live = states
	s.mu.Unlock()

	var failed, opened atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for _, st := range states {
		g.Go(func() error { return s.runSplit(gctx, runID, opener, st, &failed, &opened) })
	}
	err = g.Wait()
	if err == nil && len(files) > 0 && opened.Load() == 0 {
		err = perr.Fatalf("none of %d containers could be opened", len(files))
	}

	for _, st := range states {
		rep.Totals = rep.Totals.Add(st.worker.Counters.Snapshot())
	}
	rep.Failed = int(failed.Load())
	rep.Elapsed = time.Since(start)

	ev := log.Info()
	if err != nil {
		ev = log.Error().Err(err)
	}
	ev.Int64("records", rep.Totals.Records).
		Int64("errors", rep.Totals.Errors).
		Int64("nulls", rep.Totals.Nulls).
		Int64("empty_headers", rep.Totals.EmptyHeaders).
		Int64("emitted", rep.Totals.Emitted).
		Int("failed_files", rep.Failed).
		Dur("elapsed", rep.Elapsed).
		Msg("index: run finished")
	return rep, err
}

// RunID returns the id of the current or last run, empty before the first
func (s *Service) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

// Progress implements domain.RunnerPort
func (s *Service) Progress() []domain.Progress {
	s.mu.Lock()
	states := s.live
	s.mu.Unlock()

	out := make([]domain.Progress, 0, len(states))
	for _, st := range states {
		st.mu.Lock()
		p := domain.Progress{
			Worker:   st.split.Index,
			File:     st.file.Path,
			FileNo:   st.fileNo,
			Files:    len(st.split.Files),
			Fraction: st.worker.Progress(),
			Counts:   st.worker.Counters.Snapshot(),
			Done:     st.done,
		}
		st.mu.Unlock()
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Worker < out[j].Worker })
	return out
}

// runSplit drains one split; a split none of whose files open is left to Run to judge
// against the other splits
func (s *Service) runSplit(
	ctx context.Context,
	runID string,
	opener fetch.Opener,
	st *splitState,
	failed, opened *atomic.Int64,
) error {
	ctx = logger.WithRun(ctx, runID, st.split.Index)
	src := source.New(opener, st.split, source.Hooks{
		Opened: func(ctx context.Context, f domain.File) {
			st.mu.Lock()
			st.file = f
			st.fileNo++
			st.fileStart = st.worker.Counters.Snapshot()
			st.mu.Unlock()
			s.ledger(ctx, func(ctx context.Context, r domain.LedgerRepo) error { return r.StartFile(ctx, f.Path, runID) })
		},
		Closed: func(ctx context.Context, ev source.Event) {
			st.mu.Lock()
			delta := st.worker.Counters.Snapshot().Sub(st.fileStart)
			st.mu.Unlock()
			if ev.Status != domain.FileDone {
				failed.Add(1)
			}
			fin := domain.FileFinish{
				Status:    ev.Status,
				Counts:    delta,
				Bytes:     ev.Bytes,
				ElapsedMS: int(ev.Elapsed.Milliseconds()),
			}
			if ev.Err != nil {
				fin.ErrText = ev.Err.Error()
			}
			s.ledger(ctx, func(ctx context.Context, r domain.LedgerRepo) error {
				return r.FinishFile(ctx, ev.File.Path, runID, fin)
			})
		},
	})
	defer func() { _ = src.Close() }()

	err := st.worker.Drain(ctx, src)
	n, bad := src.Opened()
	opened.Add(int64(n))
	if n == 0 && bad > 0 && perr.IsCode(err, perr.ErrorCodeFatal) {
		logger.C(ctx).Warn().Err(err).Str("component", "index").Msg("index: no container in split could be opened")
		err = nil
	}
	st.mu.Lock()
	st.done = true
	st.mu.Unlock()
	return err
}

// skipper returns the Inventory skip func for resume and leases
func (s *Service) skipper(ctx context.Context, runID string, paths []string) func(string) bool {
	log := logger.C(ctx).With().Str("component", "index").Logger()
	done := map[string]bool{}
	if s.Cfg.Resume && s.DB != nil {
		s.ledger(ctx, func(ctx context.Context, r domain.LedgerRepo) error {
			m, err := r.DonePaths(ctx, paths)
			if err == nil {
				done = m
			}
			return err
		})
		if len(done) > 0 {
			log.Info().Int("done", len(done)).Msg("index: resuming, finished files skipped")
		}
	}
	return func(p string) bool {
		if done[p] {
			return true
		}
		if !s.Cfg.Leases || s.Lease == nil {
			return false
		}
		claimed, err := s.Lease(ctx, p, runID)
		if err != nil {
			log.Warn().Err(err).Str("path", p).Msg("index: lease unavailable, reading anyway")
			return false
		}
		if !claimed {
			log.Info().Str("path", p).Msg("index: file leased by another run, skipping")
		}
		return !claimed
	}
}

// ledger runs fn in a DB bounded transaction; failures are logged and dropped
func (s *Service) ledger(ctx context.Context, fn func(context.Context, domain.LedgerRepo) error) {
	if s.DB == nil {
		return
	}
	dbCtx, cancel := guardrails.ForDB(ctx, s.Cfg.Timeouts)
	defer cancel()
	if err := s.DB.Tx(dbCtx, func(q repokit.Queryer) error {
		return fn(dbCtx, s.Binder.Bind(q))
	}); err != nil {
		logger.C(ctx).Warn().Err(err).Str("component", "index").Msg("index: ledger write failed")
	}
}
