package http_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	perr "warcdex/internal/platform/errors"
	pnet "warcdex/internal/platform/net"
	phttp "warcdex/internal/platform/net/http"

	"github.com/go-chi/chi/v5"
)

func decode(t *testing.T, rr *httptest.ResponseRecorder) phttp.Envelope {
	t.Helper()
	if ct := rr.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Fatalf("content type %q", ct)
	}
	var env phttp.Envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return env
}

func TestGetJSON(t *testing.T) {
	t.Parallel()

	r := phttp.AdaptChi(chi.NewRouter())
	phttp.GetJSON(r, "/status", func(*http.Request) (any, error) {
		return map[string]int{"records": 3}, nil
	})
	phttp.GetJSON(r, "/status/workers/9", func(*http.Request) (any, error) {
		return nil, perr.NotFoundf("no worker 9 in the current run")
	})

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req = req.WithContext(pnet.WithRequestID(req.Context(), "req-1"))
	rr := httptest.NewRecorder()
	r.Mux().ServeHTTP(rr, req)
	env := decode(t, rr)
	if rr.Code != 200 || env.StatusCode != 200 || env.RequestID != "req-1" || env.Code != "" {
		t.Fatalf("ok envelope = %+v", env)
	}
	if data, _ := env.Data.(map[string]any); data["records"] != float64(3) {
		t.Fatalf("data = %v", env.Data)
	}

	rr = httptest.NewRecorder()
	r.Mux().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status/workers/9", nil))
	env = decode(t, rr)
	if rr.Code != http.StatusNotFound || env.Code != "not_found" || env.Error != "no worker 9 in the current run" {
		t.Fatalf("error envelope = %d %+v", rr.Code, env)
	}
	if env.Data != nil {
		t.Fatalf("error envelope carries data %v", env.Data)
	}
}

func TestRespondError_Unavailable(t *testing.T) {
	t.Parallel()
	rr := httptest.NewRecorder()
	phttp.RespondError(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil),
		perr.Wrap(perr.Unavailablef("pg ping"), perr.ErrorCodeUnavailable, "backends not ready"))
	env := decode(t, rr)
	if rr.Code != http.StatusServiceUnavailable || env.Status != "Service Unavailable" {
		t.Fatalf("envelope = %d %+v", rr.Code, env)
	}
	if env.Error != "backends not ready: pg ping" {
		t.Fatalf("error = %q", env.Error)
	}
}
