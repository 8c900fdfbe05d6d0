// Package domain holds the batch relay ports and types
package domain

import "context"

// RelayPort is the batch relay surface used by the index sink and the relay command
type RelayPort interface {
	// Add appends a line, flushing synchronously once the batch is full
	Add(ctx context.Context, line string) error
	// Flush posts the pending batch until accepted or the failure threshold is passed
	Flush(ctx context.Context) error
	// Close flushes the partial batch; Add after Close is an error
	Close(ctx context.Context) error
	Stats() Stats
}

// Stats are running totals for one relay
type Stats struct {
	Sent     int64 `json:"sent"`     // lines accepted by the endpoint
	Batches  int64 `json:"batches"`  // successful posts
	Failures int64 `json:"failures"` // failed posts, all batches
	Pending  int   `json:"pending"`  // lines waiting in the current batch
}
