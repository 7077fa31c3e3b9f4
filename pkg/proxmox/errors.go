package proxmox

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/openhyve/openhyve/pkg/engine"
)

// APIError is a non-2xx response from the control plane.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Status is the HTTP status line.
	Status string

	// Message is the error detail the API returned, if any.
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error: %s", e.Status)
}

// absentMessages are substrings the API uses for missing objects even
// when it answers with a 500 instead of a 404 (e.g. reading the config
// of a guest whose configuration file is gone).
var absentMessages = []string{
	"does not exist",
	"no such",
	"not found",
}

// classify maps an API error into the engine taxonomy:
// 404 and absent-target messages become not_found, rate limiting,
// request timeouts and server-side errors become transient, and every
// other client error is a rejection the engine must surface verbatim.
func classify(e *APIError) *engine.ReconcileError {
	if e.StatusCode == http.StatusNotFound || isAbsentMessage(e.Message) {
		return engine.NewNotFoundError("target absent", e)
	}
	switch {
	case e.StatusCode == http.StatusRequestTimeout,
		e.StatusCode == http.StatusTooManyRequests,
		e.StatusCode >= http.StatusInternalServerError:
		return engine.NewTransientError("control plane unavailable", e)
	default:
		return engine.NewRejectedError("request rejected", e)
	}
}

func isAbsentMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range absentMessages {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
