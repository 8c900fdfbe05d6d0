package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode classifies failures across the index and relay pipeline
// Names are written to ledger rows and status payloads; append only.
type ErrorCode uint16

// Codes
const (
	ErrorCodeUnknown         ErrorCode = iota
	ErrorCodePanic                     // recovered at a record boundary
	ErrorCodeUnavailable               // transient, a retry may succeed
	ErrorCodeTimeout                   // fetch, read or db deadline
	ErrorCodeInvalidArgument           // bad input parameter
	ErrorCodeValidation                // options or config rejected
	ErrorCodeNotFound                  // missing file or row
	ErrorCodeCorrupt                   // malformed container or record
	ErrorCodeIntegrity                 // payload digest mismatch
	ErrorCodeIO                        // local read, write or spool failure
	ErrorCodeFatal                     // stops a worker: relay down, split unusable
	ErrorCodeDuplicateKey              // unique constraint
	ErrorCodeDB                        // any other database failure
)

var codeInfo = [...]struct {
	name   string
	status int
}{
	ErrorCodeUnknown:         {"unknown", http.StatusInternalServerError},
	ErrorCodePanic:           {"panic", http.StatusInternalServerError},
	ErrorCodeUnavailable:     {"unavailable", http.StatusServiceUnavailable},
	ErrorCodeTimeout:         {"timeout", http.StatusGatewayTimeout},
	ErrorCodeInvalidArgument: {"invalid_argument", http.StatusBadRequest},
	ErrorCodeValidation:      {"validation", http.StatusBadRequest},
	ErrorCodeNotFound:        {"not_found", http.StatusNotFound},
	ErrorCodeCorrupt:         {"corrupt", http.StatusInternalServerError},
	ErrorCodeIntegrity:       {"integrity", http.StatusInternalServerError},
	ErrorCodeIO:              {"io", http.StatusInternalServerError},
	ErrorCodeFatal:           {"fatal", http.StatusServiceUnavailable},
	ErrorCodeDuplicateKey:    {"duplicate_key", http.StatusInternalServerError},
	ErrorCodeDB:              {"db", http.StatusInternalServerError},
}

func (c ErrorCode) String() string {
	if int(c) < len(codeInfo) {
		return codeInfo[c].name
	}
	return fmt.Sprintf("code(%d)", uint16(c))
}

// HTTPStatusCode is the status the status server answers with for c
func HTTPStatusCode(c ErrorCode) int {
	if int(c) < len(codeInfo) {
		return codeInfo[c].status
	}
	return http.StatusInternalServerError
}

// FromHTTPStatus classifies a remote response status
// ok is false for 2xx, which is not a failure.
func FromHTTPStatus(status int) (code ErrorCode, ok bool) {
	switch {
	case status >= 200 && status < 300:
		return ErrorCodeUnknown, false
	case status == http.StatusNotFound:
		return ErrorCodeNotFound, true
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return ErrorCodeTimeout, true
	case status == http.StatusTooManyRequests, status >= 500:
		return ErrorCodeUnavailable, true
	case status >= 400:
		return ErrorCodeInvalidArgument, true
	}
	return ErrorCodeUnknown, true
}
