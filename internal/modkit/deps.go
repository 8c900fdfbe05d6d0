package modkit

import (
	"context"

	"warcdex/internal/modkit/repokit"
	"warcdex/internal/platform/config"
	"warcdex/internal/platform/logger"
	"warcdex/internal/platform/store"
)

// Deps is what a binary hands every module
// PG and CH are nil when the backend is not configured.
type Deps struct {
	Log logger.Logger
	Cfg config.Conf
	PG  repokit.TxRunner
	CH  store.Clickhouse

	// Ready pings the configured backends, usually Store.Guard
	Ready func(context.Context) error
}

// Check runs Ready, treating a nil Ready as ready
func (d Deps) Check(ctx context.Context) error {
	if d.Ready == nil {
		return nil
	}
	return d.Ready(ctx)
}
