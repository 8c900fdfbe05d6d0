// Package logger owns the process zerolog logger and the run scoped fields
// (run id, worker slot, current container) carried on a context
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"warcdex/internal/platform/config/raw"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

// Logger is the logging type handed around the pipeline
type Logger = zerolog.Logger

// Options configures the root logger
type Options struct {
	Level        string // trace..panic, debug when unknown
	Format       string // console or json
	Service      string
	Component    string
	Writer       io.Writer // stdout when nil
	WithCaller   bool
	SampleEvery  int               // keep one event in N, off when < 2
	StaticFields map[string]string // e.g. version and commit
}

// FromEnv reads LOG_* through the raw view, which does not log
func FromEnv() Options {
	rc := raw.New().Prefix("LOG_")
	return Options{
		Level:       rc.Get("LEVEL", "debug"),
		Format:      strings.ToLower(rc.Get("FORMAT", "console")),
		Service:     rc.Get("SERVICE", ""),
		Component:   rc.Get("COMPONENT", ""),
		WithCaller:  rc.GetBool("CALLER", false),
		SampleEvery: rc.GetInt("SAMPLE_EVERY", 0),
	}
}

var (
	once sync.Once
	root atomic.Pointer[Logger]
)

// Init builds the root logger from opt
// Only the first call has an effect; Get initialises from FromEnv when nobody called Init.
func Init(opt Options) {
	once.Do(func() {
		zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
		zerolog.TimeFieldFormat = time.RFC3339Nano
		l := build(opt)
		root.Store(&l)
	})
}

func build(opt Options) Logger {
	w := opt.Writer
	if w == nil {
		w = os.Stdout
	}
	if opt.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	c := zerolog.New(w).Level(parseLevel(opt.Level)).With().Timestamp()
	if opt.Service != "" {
		c = c.Str("service", opt.Service)
	}
	if opt.Component != "" {
		c = c.Str("component", opt.Component)
	}
	for k, v := range opt.StaticFields {
		c = c.Str(k, v)
	}
	if opt.WithCaller {
		c = c.Caller()
	}
	l := c.Logger()
	if opt.SampleEvery > 1 {
		l = l.Sample(&zerolog.BasicSampler{N: uint32(opt.SampleEvery)})
	}
	return l
}

func parseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || s == "" {
		return zerolog.DebugLevel
	}
	return lvl
}

// Get returns the root logger
func Get() *Logger {
	if l := root.Load(); l != nil {
		return l
	}
	Init(FromEnv())
	return root.Load()
}

// Named returns a child of the root logger tagged with component
func Named(component string) *Logger {
	if component == "" {
		return Get()
	}
	l := Get().With().Str("component", component).Logger()
	return &l
}

// Nop returns a disabled logger for injected defaults
func Nop() *Logger {
	l := zerolog.Nop()
	return &l
}

type scopeKey struct{}

type scope struct {
	runID  string
	worker int // -1 when unset
	file   string
}

func scopeOf(ctx context.Context) scope {
	if s, ok := ctx.Value(scopeKey{}).(scope); ok {
		return s
	}
	return scope{worker: -1}
}

// WithRun annotates ctx with the job run id and worker slot
// Empty runID or negative worker leave the existing value in place.
func WithRun(ctx context.Context, runID string, worker int) context.Context {
	s := scopeOf(ctx)
	if runID != "" {
		s.runID = runID
	}
	if worker >= 0 {
		s.worker = worker
	}
	return context.WithValue(ctx, scopeKey{}, s)
}

// WithFile annotates ctx with the container currently being read
func WithFile(ctx context.Context, path string) context.Context {
	if path == "" {
		return ctx
	}
	s := scopeOf(ctx)
	s.file = path
	return context.WithValue(ctx, scopeKey{}, s)
}

// C returns the root logger with the run_id, worker and file fields found on ctx
func C(ctx context.Context) *Logger {
	s := scopeOf(ctx)
	c := Get().With()
	if s.runID != "" {
		c = c.Str("run_id", s.runID)
	}
	if s.worker >= 0 {
		c = c.Int("worker", s.worker)
	}
	if s.file != "" {
		c = c.Str("file", s.file)
	}
	l := c.Logger()
	return &l
}
