package sink

import (
	"context"
	"sync"

	"warcdex/internal/services/index/domain"
)

// LineRelay is the batch relay surface the relay sink feeds
type LineRelay interface {
	Add(ctx context.Context, line string) error
	Close(ctx context.Context) error
}

// Relay posts CDX lines straight to a capture index endpoint
// The relay itself is single writer, so Emit serialises callers.
type Relay struct {
	mu sync.Mutex
	r  LineRelay
}

var _ domain.Sink = (*Relay)(nil)

// NewRelay wraps r as a sink
func NewRelay(r LineRelay) *Relay { return &Relay{r: r} }

// Emit implements domain.Sink
func (s *Relay) Emit(ctx context.Context, _ int, res *domain.Result) error {
	l, ok := CDXLine(res)
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Add(ctx, l.String())
}

// Close flushes the partial batch
func (s *Relay) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Close(context.Background())
}
