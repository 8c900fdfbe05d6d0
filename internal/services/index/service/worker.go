package service

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"runtime/debug"
	"slices"
	"sync/atomic"

	"warcdex/internal/adapters/ingest/warc"
	perr "warcdex/internal/platform/errors"
	"warcdex/internal/platform/logger"
	"warcdex/internal/services/index/domain"
)

// DefaultStatusEvery is the status line cadence in records
const DefaultStatusEvery = 1000

// RecordStream is what a worker drains, source.Source in production
type RecordStream interface {
	Next(ctx context.Context) (key string, rec *warc.Record, err error)
	Progress() float64
}

// Worker is the per split record loop
// A Worker is not safe for concurrent use; each split gets its own.
type Worker struct {
	ID          int
	Extract     domain.Extractor
	Sink        domain.Sink
	Counters    *domain.Counters
	Reducers    int // partitions are drawn from [0, Reducers]
	StatusEvery int

	rng      *rand.Rand
	progress atomic.Uint64 // float64 bits of the stream progress
}

// NewWorker builds a worker with its own counters and random source
func NewWorker(id int, ex domain.Extractor, sink domain.Sink, reducers, statusEvery int) *Worker {
	if reducers < 0 {
		reducers = 0
	}
	if statusEvery <= 0 {
		statusEvery = DefaultStatusEvery
	}
	return &Worker{
		ID:          id,
		Extract:     ex,
		Sink:        sink,
		Counters:    &domain.Counters{},
		Reducers:    reducers,
		StatusEvery: statusEvery,
		rng:         rand.New(rand.NewPCG(rand.Uint64(), uint64(id))),
	}
}

// Drain processes every record of src until io.EOF
// Only a fatal source error, a sink failure or ctx cancellation stop it early.
func (w *Worker) Drain(ctx context.Context, src RecordStream) error {
	for {
		key, rec, err := src.Next(ctx)
		if err == io.EOF {
			w.setProgress(1)
			return nil
		}
		if err != nil {
			return err
		}
		if err := w.Process(ctx, key, rec); err != nil {
			return err
		}
		w.setProgress(src.Progress())
	}
}

// Process handles one record
// Content faults are counted and annotated on the emitted result, never returned.
// The returned error is always a sink failure and is fatal for the worker.
func (w *Worker) Process(ctx context.Context, key string, rec *warc.Record) error {
	n := w.Counters.Records.Add(1)
	defer func() {
		if n%int64(w.StatusEvery) == 0 {
			w.status(ctx)
		}
	}()

	if rec.Header.Empty() {
		w.Counters.EmptyHeaders.Add(1)
		_ = rec.Close()
		return nil
	}

	res, err := w.extract(ctx, key, rec)
	if cerr := rec.Close(); cerr != nil {
		logger.C(ctx).Debug().Err(cerr).Str("component", "worker").Str("url", rec.Header.TargetURI).Msg("drain record")
	}

	switch {
	case err != nil:
		w.Counters.Errors.Add(1)
		logger.C(ctx).Warn().Err(err).Str("component", "worker").
			Str("key", key).Str("url", rec.Header.TargetURI).Str("code", perr.CodeOf(err).String()).
			Msg("record analysis failed")
		if res == nil {
			res = domain.NewResult(key, &rec.Header)
		}
		if !slices.Contains(res.ParseErrors, err.Error()) {
			res.AddParseError(err)
		}
	case res == nil:
		w.Counters.Nulls.Add(1)
		return nil
	}

	if res.Length < 0 {
		res.Length = rec.Length()
	}
	p := w.Partition()
	if err := w.Sink.Emit(ctx, p, res); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeFatal, "emit %s to partition %d", res.URL, p)
	}
	w.Counters.Emitted.Add(1)
	return nil
}

// Partition draws a partition uniformly from [0, Reducers]
func (w *Worker) Partition() int { return w.rng.IntN(w.Reducers + 1) }

// Progress is the fraction of the current file consumed by the last record
func (w *Worker) Progress() float64 { return math.Float64frombits(w.progress.Load()) }

func (w *Worker) setProgress(f float64) { w.progress.Store(math.Float64bits(f)) }

// extract runs the extractor, turning a panic into an ErrorCodePanic error
func (w *Worker) extract(ctx context.Context, key string, rec *warc.Record) (res *domain.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.C(ctx).Error().Str("component", "worker").Str("url", rec.Header.TargetURI).
				Bytes("stack", debug.Stack()).Msg("panic in analysis")
			res, err = nil, perr.PanicErrf("analysis panic: %s", fmt.Sprint(r))
		}
	}()
	return w.Extract.Extract(ctx, key, rec)
}

func (w *Worker) status(ctx context.Context) {
	c := w.Counters.Snapshot()
	logger.C(ctx).Info().Str("component", "worker").
		Int64("records", c.Records).
		Int64("errors", c.Errors).
		Int64("nulls", c.Nulls).
		Int64("empty_headers", c.EmptyHeaders).
		Int64("emitted", c.Emitted).
		Float64("progress", w.Progress()).
		Msg("status")
}
