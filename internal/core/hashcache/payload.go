package hashcache

import (
	"bytes"
	"io"
	"os"
	"sync"

	perr "warcdex/internal/platform/errors"
)

// Payload is a replayable copy of a record payload with its digest
// Exactly one of mem or path backs a loaded payload; a failed payload has neither.
type Payload struct {
	owner *Cache

	mem  []byte
	path string

	computed  string
	digest    string
	truncated bool
	size      int64
	read      int64
	err       error

	once     sync.Once
	released bool
	mu       sync.Mutex
}

// Digest is the payload digest: the declared one for revisits, else the computed one
// Empty for failed payloads.
func (p *Payload) Digest() string { return p.digest }

// Computed is the digest over the bytes actually read, regardless of record type
func (p *Payload) Computed() string { return p.computed }

// Truncated reports whether bytes past the disk budget were dropped
func (p *Payload) Truncated() bool { return p.truncated }

// Size is the number of bytes held by the backing store
func (p *Payload) Size() int64 { return p.size }

// Consumed is the number of bytes read from the source and hashed
func (p *Payload) Consumed() int64 { return p.read }

// OnDisk reports whether a spool file backs the payload
func (p *Payload) OnDisk() bool { return p.path != "" }

// Failed reports whether hashing failed, leaving no content and no digest
func (p *Payload) Failed() bool { return p.err != nil && !perr.IsCode(p.err, perr.ErrorCodeIntegrity) }

// Err returns the hashing or integrity fault recorded for this payload
func (p *Payload) Err() error { return p.err }

// Open returns a fresh reader positioned at the first cached byte
func (p *Payload) Open() (io.ReadCloser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return nil, perr.New(perr.ErrorCodeInvalidArgument, "payload already released")
	}
	if p.path != "" {
		f, err := os.Open(p.path)
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeIO, "open spool file")
		}
		return f, nil
	}
	return io.NopCloser(bytes.NewReader(p.mem)), nil
}

// Bytes returns the cached content of an in-memory payload, or nil
func (p *Payload) Bytes() []byte { return p.mem }

// Release drops the buffer or deletes the spool file; safe to call more than once
func (p *Payload) Release() error {
	var err error
	p.once.Do(func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.released = true
		p.mem = nil
		if p.path == "" {
			return
		}
		if rerr := os.Remove(p.path); rerr != nil && !os.IsNotExist(rerr) {
			err = perr.Wrap(rerr, perr.ErrorCodeIO, "remove spool file")
		}
		if p.owner != nil {
			p.owner.untrack(p.path)
		}
	})
	return err
}

func (p *Payload) fail(err error) {
	p.err = err
	p.digest = ""
	p.computed = ""
	p.mem = nil
	p.size = 0
	if p.path != "" {
		_ = os.Remove(p.path)
		if p.owner != nil {
			p.owner.untrack(p.path)
		}
		p.path = ""
	}
}
