package store

import (
	"bytes"
	"context"
	"testing"

	perr "warcdex/internal/platform/errors"

	"github.com/rs/zerolog"
)

func TestOpen_NothingEnabled(t *testing.T) {
	t.Parallel()

	s, err := Open(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.PG != nil || s.CH != nil {
		t.Fatalf("unexpected backends PG=%T CH=%T", s.PG, s.CH)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestOpen_IndexStoreOnly(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// the driver dials lazily
	s, err := Open(ctx, Config{AppName: "warcdex", CH: CHConfig{Enabled: true, URL: "clickhouse://localhost:9000/warcdex", Role: "index"}})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.CH == nil || s.PG != nil {
		t.Fatalf("want CH only, got PG=%T CH=%T", s.PG, s.CH)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestOpen_BadLedgerURL(t *testing.T) {
	t.Parallel()

	s, err := Open(context.Background(), Config{
		PG: PGConfig{Enabled: true, URL: "://bad"},
		CH: CHConfig{Enabled: true, URL: "clickhouse://localhost:9000/warcdex"},
	})
	if s != nil {
		t.Fatalf("want nil store, got %#v", s)
	}
	if !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("want invalid_argument, got %v", err)
	}
}

func TestWithLogger_TagsComponent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s, err := Open(context.Background(), Config{}, WithLogger(zerolog.New(&buf)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.Log.Info().Msg("hello")
	if !bytes.Contains(buf.Bytes(), []byte(`"component":"store"`)) {
		t.Fatalf("component field missing: %s", buf.String())
	}
}
