// Package service provides the batch relay implementation
//
// Lines are collected into a batch and posted as newline terminated text. A failed
// post is retried with the identical body after a constant delay; once more than
// FatalThreshold attempts of the same batch have failed the relay gives up with an
// ErrorCodeFatal error and keeps the batch, nothing is ever dropped silently.
package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	perr "warcdex/internal/platform/errors"
	"warcdex/internal/platform/logger"
	"warcdex/internal/services/relay/domain"

	"github.com/cenkalti/backoff/v4"
)

// Defaults used when Config leaves a field zero
const (
	DefaultBatchSize      = 10000
	DefaultRetryDelay     = 30 * time.Second
	DefaultFatalThreshold = 10
	DefaultContentType    = "application/x-www-form-urlencoded"

	maxReplyLog = 4 << 10
)

// Config holds the relay settings
type Config struct {
	Endpoint       string
	BatchSize      int
	RetryDelay     time.Duration
	FatalThreshold int // failures tolerated per batch; one more is fatal
	ContentType    string
	Timeout        time.Duration // per request, 0 means the client default
}

// Service implements domain.RelayPort
type Service struct {
	Cfg    Config
	Client *http.Client

	// Timer drives the retry delay; nil uses a real timer
	Timer backoff.Timer

	mu     sync.Mutex
	batch  []string
	stats  domain.Stats
	closed bool
}

var _ domain.RelayPort = (*Service)(nil)

// New constructs the relay
func New(cfg Config, client *http.Client) *Service {
	if cfg.Endpoint == "" {
		panic("relay.Service requires an endpoint")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.FatalThreshold <= 0 {
		cfg.FatalThreshold = DefaultFatalThreshold
	}
	if cfg.ContentType == "" {
		cfg.ContentType = DefaultContentType
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Service{Cfg: cfg, Client: client, batch: make([]string, 0, min(cfg.BatchSize, 1<<16))}
}

// Add implements domain.RelayPort
func (s *Service) Add(ctx context.Context, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return perr.New(perr.ErrorCodeFatal, "relay: add after close")
	}
	s.batch = append(s.batch, line)
	if len(s.batch) < s.Cfg.BatchSize {
		return nil
	}
	return s.flushLocked(ctx)
}

// Flush implements domain.RelayPort
func (s *Service) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked(ctx)
}

// Close implements domain.RelayPort
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	err := s.flushLocked(ctx)
	s.closed = true
	return err
}

// Stats implements domain.RelayPort
func (s *Service) Stats() domain.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.Pending = len(s.batch)
	return st
}

func (s *Service) flushLocked(ctx context.Context) error {
	if len(s.batch) == 0 {
		return nil
	}
	log := logger.C(ctx).With().Str("component", "relay").Str("endpoint", s.Cfg.Endpoint).Logger()

	var body strings.Builder
	for _, l := range s.batch {
		body.WriteString(l)
		body.WriteByte('\n')
	}
	payload := body.String()

	failures := 0
	op := func() error {
		err := s.post(ctx, payload, log)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		failures++
		s.stats.Failures++
		log.Warn().Err(err).Int("failures", failures).Int("lines", len(s.batch)).Msg("relay: post failed")
		return err
	}
	notify := func(_ error, d time.Duration) {
		log.Info().Dur("retry_in", d).Msg("relay: waiting before resending batch")
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.Cfg.RetryDelay), uint64(s.Cfg.FatalThreshold)),
		ctx,
	)
	err := backoff.RetryNotifyWithTimer(op, policy, notify, s.Timer)
	if err != nil {
		if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return ctx.Err()
		}
		log.Error().Err(err).Int("failures", failures).Msg("relay: giving up, endpoint presumed down")
		return perr.Wrapf(err, perr.ErrorCodeFatal, "relay: %d failed attempts posting to %s", failures, s.Cfg.Endpoint)
	}

	s.stats.Sent += int64(len(s.batch))
	s.stats.Batches++
	log.Info().Int("lines", len(s.batch)).Int64("sent", s.stats.Sent).Msg("relay: batch accepted")
	s.batch = s.batch[:0]
	return nil
}

func (s *Service) post(ctx context.Context, body string, log logger.Logger) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Cfg.Endpoint, strings.NewReader(body))
	if err != nil {
		return backoff.Permanent(perr.Wrap(err, perr.ErrorCodeInvalidArgument, "relay: build request"))
	}
	req.Header.Set("Content-Type", s.Cfg.ContentType)

	resp, err := s.Client.Do(req)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "relay: post")
	}
	defer func() { _ = resp.Body.Close() }()
	reply, _ := io.ReadAll(io.LimitReader(resp.Body, maxReplyLog))
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		code, _ := perr.FromHTTPStatus(resp.StatusCode)
		if code == perr.ErrorCodeUnknown {
			code = perr.ErrorCodeUnavailable
		}
		return perr.Newf(code, "relay: endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(reply)))
	}
	log.Debug().Str("reply", strings.TrimSpace(string(reply))).Msg("relay: endpoint reply")
	return nil
}
