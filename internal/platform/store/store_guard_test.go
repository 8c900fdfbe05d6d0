package store

import (
	"context"
	"errors"
	"testing"

	perr "warcdex/internal/platform/errors"
)

// ledgerNoPing satisfies TxRunner but not Pinger
type ledgerNoPing struct{}

func (ledgerNoPing) Tx(context.Context, func(q RowQuerier) error) error       { return nil }
func (ledgerNoPing) Exec(context.Context, string, ...any) (CommandTag, error) { return nil, nil }
func (ledgerNoPing) Query(context.Context, string, ...any) (Rows, error)      { return nil, nil }
func (ledgerNoPing) QueryRow(context.Context, string, ...any) Row             { return nil }

type ledgerPing struct {
	ledgerNoPing
	err error
}

func (l ledgerPing) Ping(context.Context) error { return l.err }

type chPing struct{ err error }

func (chPing) Insert(context.Context, string, [][]any) error { return nil }
func (chPing) Exec(context.Context, string, ...any) error    { return nil }
func (chPing) Close() error                                  { return nil }
func (c chPing) Ping(context.Context) error                  { return c.err }

func TestGuard(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	boom := errors.New("boom")

	var nilStore *Store
	if err := nilStore.Guard(ctx); !perr.IsCode(err, perr.ErrorCodeUnavailable) {
		t.Fatalf("nil store: %v", err)
	}
	if err := (&Store{}).Guard(ctx); err != nil {
		t.Fatalf("no backends: %v", err)
	}
	if err := (&Store{PG: ledgerNoPing{}}).Guard(ctx); err != nil {
		t.Fatalf("non pinger must be skipped: %v", err)
	}
	if err := (&Store{PG: ledgerPing{}, CH: chPing{}}).Guard(ctx); err != nil {
		t.Fatalf("healthy: %v", err)
	}

	err := (&Store{PG: ledgerPing{err: boom}, CH: chPing{err: boom}}).Guard(ctx)
	if !errors.Is(err, boom) {
		t.Fatalf("cause lost: %v", err)
	}
	if !perr.IsCode(err, perr.ErrorCodeUnavailable) {
		t.Fatalf("want unavailable, got %v", err)
	}
	if e, ok := perr.As(err); !ok || e.Field() != "pg" {
		t.Fatalf("first failure should name pg: %v", err)
	}
}

func TestClose_ClosesBackends(t *testing.T) {
	t.Parallel()

	if err := (&Store{PG: ledgerNoPing{}, CH: chPing{}}).Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
