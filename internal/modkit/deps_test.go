package modkit

import (
	"context"
	"errors"
	"testing"
)

func TestDeps_CheckWithoutProbe(t *testing.T) {
	t.Parallel()

	var d Deps
	if err := d.Check(context.Background()); err != nil {
		t.Fatalf("zero Deps should be ready, got %v", err)
	}
}

func TestDeps_CheckRunsProbe(t *testing.T) {
	t.Parallel()

	boom := errors.New("pg down")
	calls := 0
	d := Deps{Ready: func(context.Context) error { calls++; return boom }}
	if err := d.Check(context.Background()); !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}
