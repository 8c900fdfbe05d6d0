package store

import (
	"time"

	"warcdex/internal/platform/logger"
)

// Config selects and configures the backends for a run
type Config struct {
	AppName string // application_name for pg, client product for ch

	PG PGConfig
	CH CHConfig
}

// PGConfig configures the ledger database
type PGConfig struct {
	Enabled     bool
	URL         string
	MaxConns    int32
	LogSQL      bool
	SlowQueryMs int

	ConnectRetries int           // pings before giving up, default 6
	PingTimeout    time.Duration // per ping, default 5s
}

// CHConfig configures the index row store
type CHConfig struct {
	Enabled bool
	URL     string
	Role    string // pipeline stage reported as client info, e.g. "index"
}

// Option mutates Store during Open
type Option func(*Store) error

// WithLogger sets the logger used by the backends
func WithLogger(log logger.Logger) Option {
	return func(s *Store) error {
		s.Log = log
		return nil
	}
}
