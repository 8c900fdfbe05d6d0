package domain

import (
	"context"
)

// RunnerPort is the entry point used by the index binary
type RunnerPort interface {
	// Run reads every path, split across the configured workers
	Run(ctx context.Context, paths []string) (Report, error)
	// RunID is the id of the current or last run
	RunID() string
	// Progress returns the live per worker view
	Progress() []Progress
}

// LedgerRepo records per file progress so runs can resume
type LedgerRepo interface {
	StartFile(ctx context.Context, path, runID string) error
	FinishFile(ctx context.Context, path, runID string, fin FileFinish) error
	// DonePaths returns the subset of paths already finished with status done
	DonePaths(ctx context.Context, paths []string) (map[string]bool, error)
}

// Extractor turns one record into a Result
// A nil Result with a nil error means nothing indexable. On failure the Result,
// when non-nil, is a best effort partial document.
type Extractor interface {
	Extract(ctx context.Context, key string, rec *ArchiveRecord) (*Result, error)
}

// Sink accepts (partition, result) pairs; implementations must be safe for concurrent use
type Sink interface {
	Emit(ctx context.Context, partition int, r *Result) error
	Close() error
}

// Lease claims a container for this process; claimed is false when another run owns it
type Lease func(ctx context.Context, path, runID string) (claimed bool, err error)
