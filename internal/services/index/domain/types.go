// Package domain holds the types and ports shared by the index pipeline
package domain

import (
	"sync/atomic"
	"time"

	"warcdex/internal/adapters/ingest/warc"
)

// ArchiveRecord re-exports the container record shape read by the source
type ArchiveRecord = warc.Record

// File is one container in a split with the size seen when the split was built
type File struct {
	Path string
	Size int64
}

// Split is the ordered list of containers one worker reads
// Zero length files are never part of a Split.
type Split struct {
	Index int
	Files []File
}

// Empty reports whether the split holds no files
func (s Split) Empty() bool { return len(s.Files) == 0 }

// Bytes is the total container size of the split
func (s Split) Bytes() int64 {
	var n int64
	for _, f := range s.Files {
		n += f.Size
	}
	return n
}

// Counters are the per worker tallies
// Each worker owns one; the status server only reads them.
type Counters struct {
	Records      atomic.Int64
	Errors       atomic.Int64
	Nulls        atomic.Int64
	EmptyHeaders atomic.Int64
	Emitted      atomic.Int64
}

// CounterSnapshot is a point in time copy of Counters
type CounterSnapshot struct {
	Records      int64 `json:"records"`
	Errors       int64 `json:"errors"`
	Nulls        int64 `json:"nulls"`
	EmptyHeaders int64 `json:"empty_headers"`
	Emitted      int64 `json:"emitted"`
}

// Snapshot copies the current values
func (c *Counters) Snapshot() CounterSnapshot {
	return CounterSnapshot{
		Records:      c.Records.Load(),
		Errors:       c.Errors.Load(),
		Nulls:        c.Nulls.Load(),
		EmptyHeaders: c.EmptyHeaders.Load(),
		Emitted:      c.Emitted.Load(),
	}
}

// Sub returns s minus o, used for per file deltas
func (s CounterSnapshot) Sub(o CounterSnapshot) CounterSnapshot {
	return CounterSnapshot{
		Records:      s.Records - o.Records,
		Errors:       s.Errors - o.Errors,
		Nulls:        s.Nulls - o.Nulls,
		EmptyHeaders: s.EmptyHeaders - o.EmptyHeaders,
		Emitted:      s.Emitted - o.Emitted,
	}
}

// Add returns s plus o, used for job totals
func (s CounterSnapshot) Add(o CounterSnapshot) CounterSnapshot {
	return CounterSnapshot{
		Records:      s.Records + o.Records,
		Errors:       s.Errors + o.Errors,
		Nulls:        s.Nulls + o.Nulls,
		EmptyHeaders: s.EmptyHeaders + o.EmptyHeaders,
		Emitted:      s.Emitted + o.Emitted,
	}
}

// Result is the index document derived from one record
type Result struct {
	Key       string    `json:"key"` // container name
	URL       string    `json:"url"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	RecordID  string    `json:"record_id,omitempty"`
	Status    int       `json:"status,omitempty"`

	DeclaredType string `json:"content_type_served,omitempty"`
	SniffedType  string `json:"content_type,omitempty"`
	Encoding     string `json:"content_encoding,omitempty"`

	Digest    string `json:"hash,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`
	Size      int64  `json:"content_length"`
	FFB       string `json:"content_ffb,omitempty"`

	Length    int64  `json:"record_length"`
	Offset    int64  `json:"source_file_offset"`
	Container string `json:"source_file"`

	Analyser string            `json:"analyser,omitempty"`
	Title    string            `json:"title,omitempty"`
	Links    []string          `json:"links,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`

	Redirect    string   `json:"redirect,omitempty"`
	ParseErrors []string `json:"parse_errors,omitempty"`
}

// NewResult seeds a Result from the record header
// It is also the best effort partial result when analysis fails.
func NewResult(key string, h *warc.Header) *Result {
	return &Result{
		Key:       key,
		URL:       h.TargetURI,
		Timestamp: h.Date,
		Type:      string(h.Type),
		RecordID:  h.RecordID,
		Length:    -1,
		Offset:    h.Offset,
		Container: h.Container,
	}
}

// AddParseError annotates the result with a failure
func (r *Result) AddParseError(err error) {
	if r == nil || err == nil {
		return
	}
	r.ParseErrors = append(r.ParseErrors, err.Error())
}

// Failed reports whether any parse error was recorded
func (r *Result) Failed() bool { return len(r.ParseErrors) > 0 }

// FileStatus is the outcome of reading one container
type FileStatus string

// File outcomes recorded in the ledger
const (
	FileRunning FileStatus = "running"
	FileDone    FileStatus = "done"
	FileCorrupt FileStatus = "corrupt" // stopped early on a malformed record
	FileFailed  FileStatus = "failed"  // could not be opened
	FileSkipped FileStatus = "skipped" // leased by another process
)

// FileFinish is the ledger row written when a container is done
type FileFinish struct {
	Status    FileStatus
	Counts    CounterSnapshot
	Bytes     int64
	ElapsedMS int
	ErrText   string
}

// Progress is the live view of one worker for the status endpoint
type Progress struct {
	Worker   int             `json:"worker"`
	File     string          `json:"file,omitempty"`
	FileNo   int             `json:"file_no"`
	Files    int             `json:"files"`
	Fraction float64         `json:"fraction"`
	Counts   CounterSnapshot `json:"counts"`
	Done     bool            `json:"done"`
}

// Report summarises a whole run
type Report struct {
	RunID   string          `json:"run_id"`
	Splits  int             `json:"splits"`
	Files   int             `json:"files"`
	Failed  int             `json:"failed_files"`
	Totals  CounterSnapshot `json:"totals"`
	Elapsed time.Duration   `json:"elapsed"`
}
