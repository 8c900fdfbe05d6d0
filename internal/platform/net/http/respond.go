// Package http is the status server: a chi router, JSON envelopes and pprof
package http

import (
	"encoding/json"
	"net/http"

	pnet "warcdex/internal/platform/net"
)

// Envelope wraps every status response
type Envelope struct {
	StatusCode int    `json:"status_code"`
	Status     string `json:"status"`
	Code       string `json:"code,omitempty"`
	Error      string `json:"error,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	Data       any    `json:"data,omitempty"`
}

// JSON writes v with status
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// RespondOK writes data in a 200 envelope
func RespondOK(w http.ResponseWriter, r *http.Request, data any) {
	JSON(w, http.StatusOK, Envelope{
		StatusCode: http.StatusOK,
		Status:     http.StatusText(http.StatusOK),
		RequestID:  pnet.RequestID(r.Context()),
		Data:       data,
	})
}

// RespondError writes err in an envelope whose status follows its perr code
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := pnet.Status(err)
	JSON(w, status, Envelope{
		StatusCode: status,
		Status:     http.StatusText(status),
		Code:       code,
		Error:      err.Error(),
		RequestID:  pnet.RequestID(r.Context()),
	})
}

// GetJSON mounts fn at path, enveloping whatever it returns
func GetJSON(r Router, path string, fn func(*http.Request) (any, error)) {
	r.Get(path, func(w http.ResponseWriter, req *http.Request) {
		out, err := fn(req)
		if err != nil {
			RespondError(w, req, err)
			return
		}
		RespondOK(w, req, out)
	})
}
