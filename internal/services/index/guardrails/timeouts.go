// Package guardrails holds the time budgets and leases applied around index I/O
package guardrails

import (
	"context"
	"io"
	"time"

	"warcdex/internal/adapters/ingest/fetch"
)

// Timeouts bounds the blocking calls made around one container
// Zero values mean no extra limit at that level.
type Timeouts struct {
	// Fetch caps stat and open of one container, including a remote download
	Fetch time.Duration

	// DB caps each ledger write
	DB time.Duration
}

// ForFetch bounds one stat or open by Fetch
func ForFetch(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return bound(parent, t.Fetch)
}

// ForDB bounds one ledger call by DB
func ForDB(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return bound(parent, t.DB)
}

// bound never outlives parent; d <= 0 only adds cancellation
func bound(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d > 0 {
		return context.WithTimeout(parent, d)
	}
	return context.WithCancel(parent)
}

// Opener applies the Fetch budget to every Stat and Open of op
func Opener(op fetch.Opener, t Timeouts) fetch.Opener {
	if t.Fetch <= 0 {
		return op
	}
	return timedOpener{Opener: op, t: t}
}

type timedOpener struct {
	fetch.Opener
	t Timeouts
}

func (o timedOpener) Stat(ctx context.Context, path string) (int64, error) {
	ctx, cancel := ForFetch(ctx, o.t)
	defer cancel()
	return o.Opener.Stat(ctx, path)
}

// Open bounds only the open itself; reading the returned container is not timed
func (o timedOpener) Open(ctx context.Context, path string) (io.ReadCloser, int64, error) {
	ctx, cancel := ForFetch(ctx, o.t)
	defer cancel()
	return o.Opener.Open(ctx, path)
}
