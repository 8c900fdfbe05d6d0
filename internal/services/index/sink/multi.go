package sink

import (
	"context"
	"errors"

	"warcdex/internal/services/index/domain"
)

// Multi fans every result out to several sinks
type Multi []domain.Sink

var _ domain.Sink = Multi(nil)

// Emit implements domain.Sink; every sink is tried even when one fails
func (m Multi) Emit(ctx context.Context, partition int, res *domain.Result) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(ctx, partition, res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
