// Package net holds request helpers shared by the status server packages
package net

import (
	"context"
	"net/http"

	perr "warcdex/internal/platform/errors"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// RequestID returns the id chi's RequestID middleware stored on ctx
func RequestID(ctx context.Context) string { return chimw.GetReqID(ctx) }

// WithRequestID stores id where RequestID finds it
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, chimw.RequestIDKey, id)
}

// Status maps err to an HTTP status and the code name reported to clients
// A nil err is 200 with no code.
func Status(err error) (int, string) {
	if err == nil {
		return http.StatusOK, ""
	}
	c := perr.CodeOf(err)
	return perr.HTTPStatusCode(c), c.String()
}
