// Package middleware is the chain in front of the status routes
package middleware

import (
	"compress/flate"
	"net/http"
	"runtime/debug"
	"time"

	perr "warcdex/internal/platform/errors"
	"warcdex/internal/platform/logger"
	pnet "warcdex/internal/platform/net"
	phttp "warcdex/internal/platform/net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// SlowRequest is when the access log switches from info to warn
const SlowRequest = 500 * time.Millisecond

// Defaults is the status server chain
// runID reports the ingest run being served and may be nil.
func Defaults(runID func() string) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		chimw.RealIP,
		chimw.RequestID,
		Scope(runID),
		Recover,
		AccessLog(SlowRequest),
		chimw.Throttle(32),
		chimw.Timeout(10 * time.Second),
		chimw.Compress(flate.DefaultCompression),
		chimw.NoCache,
	}
}

// Scope tags the request context with the current run id so logger.C picks it up
func Scope(runID func() string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if runID == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(logger.WithRun(r.Context(), runID(), -1)))
		})
	}
}

// Recover answers a handler panic with a panic coded 500 envelope and logs the stack
// http.ErrAbortHandler is passed on to net/http.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}
			logger.C(r.Context()).Error().
				Str("component", "status").
				Str("request_id", pnet.RequestID(r.Context())).
				Interface("panic", v).
				Bytes("stack", debug.Stack()).
				Msg("status handler panicked")
			phttp.RespondError(w, r, perr.PanicErrf("panic recovered"))
		}()
		next.ServeHTTP(w, r)
	})
}

// AccessLog logs one line per request, at warn once it takes slow or longer
// slow <= 0 keeps every line at info.
func AccessLog(slow time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			elapsed := time.Since(start)
			log := logger.C(r.Context())
			ev := log.Info()
			if slow > 0 && elapsed >= slow {
				ev = log.Warn()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			ev.Str("component", "status").
				Str("request_id", pnet.RequestID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("elapsed", elapsed).
				Msg("request done")
		})
	}
}
