package pg

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	perr "warcdex/internal/platform/errors"
	"warcdex/internal/platform/testkit"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

func TestOpen_BadURLIsInvalidArgument(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Config{URL: "://bad"}, nil)
	if !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("want invalid_argument, got %v", err)
	}
}

func TestOpen_PoolErrorIsUnavailable(t *testing.T) {
	testkit.Serial(t)
	testkit.Swap(t, &newPool, func(context.Context, *pgxpool.Config) (*pgxpool.Pool, error) {
		return nil, errors.New("boom")
	})

	_, err := Open(context.Background(), Config{URL: "postgres://u:p@h:5432/ledger?sslmode=disable"}, nil)
	if !perr.IsCode(err, perr.ErrorCodeUnavailable) {
		t.Fatalf("want unavailable, got %v", err)
	}
}

func TestOpen_AppliesPoolSettings(t *testing.T) {
	testkit.Serial(t)

	var seen *pgxpool.Config
	testkit.Swap(t, &newPool, func(_ context.Context, c *pgxpool.Config) (*pgxpool.Pool, error) {
		seen = c
		return &pgxpool.Pool{}, nil
	})

	p, err := Open(context.Background(), Config{
		URL:      "postgres://u:p@h:5432/ledger?sslmode=disable",
		MaxConns: 3,
		AppName:  "warcdex-index",
		Slow:     time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if seen.MaxConns != 3 {
		t.Fatalf("MaxConns = %d", seen.MaxConns)
	}
	if got := seen.ConnConfig.RuntimeParams["application_name"]; got != "warcdex-index" {
		t.Fatalf("application_name = %q", got)
	}
	if p.Slow != time.Second {
		t.Fatalf("Slow = %v", p.Slow)
	}
}

type captureTracer struct{ events []QueryEvent }

func (c *captureTracer) OnQuery(_ context.Context, ev QueryEvent) { c.events = append(c.events, ev) }

func TestObserve_FlagsSlowStatements(t *testing.T) {
	t.Parallel()

	tr := &captureTracer{}
	p := &PG{Tracer: tr, Slow: time.Millisecond}
	ctx := context.Background()

	p.Observe(ctx, "select 1", nil, time.Now(), nil)
	p.Observe(ctx, "update ingest_files", []any{"a"}, time.Now().Add(-time.Second), errors.New("x"))

	if len(tr.events) != 2 {
		t.Fatalf("events = %d", len(tr.events))
	}
	if tr.events[0].Slow {
		t.Fatalf("fast statement flagged slow")
	}
	if !tr.events[1].Slow || tr.events[1].Err == nil || len(tr.events[1].Args) != 1 {
		t.Fatalf("slow event = %+v", tr.events[1])
	}

	var nilPG *PG
	nilPG.Observe(ctx, "select 1", nil, time.Now(), nil)
	(&PG{}).Observe(ctx, "select 1", nil, time.Now(), nil)
}

func TestClose_NilSafe(t *testing.T) {
	t.Parallel()

	var p *PG
	p.Close()
	(&PG{}).Close()
}

func TestCompact(t *testing.T) {
	t.Parallel()

	cases := []struct{ in, want string }{
		{"select 1", "select 1"},
		{"  select   1  ", "select 1"},
		{"UPDATE\tingest_files\n  SET status = $1\r", "UPDATE ingest_files SET status = $1"},
		{"", ""},
	}
	for _, c := range cases {
		if got := compact(c.in); got != c.want {
			t.Fatalf("compact(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestTracer_LevelsBySlowAndError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tr := Tracer(zerolog.New(&buf).Level(zerolog.ErrorLevel))
	ctx := context.Background()

	tr.OnQuery(ctx, QueryEvent{SQL: "select\n 1"})
	tr.OnQuery(ctx, QueryEvent{SQL: "select 2", Slow: true})
	tr.OnQuery(ctx, QueryEvent{SQL: "select 3", Err: errors.New("boom")})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("want 3 lines, got %d: %s", len(lines), buf.String())
	}
	testkit.MustContain(t, lines[0], `"level":"debug"`)
	testkit.MustContain(t, lines[0], `"sql":"select 1"`)
	testkit.MustContain(t, lines[0], `"component":"pg"`)
	testkit.MustContain(t, lines[1], `"level":"warn"`)
	testkit.MustContain(t, lines[2], `"error":"boom"`)
}
