package webembed

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jonesrussell/north-cloud/embedder/internal/circuitbreaker"
	"github.com/jonesrussell/north-cloud/embedder/internal/retry"
	"github.com/jonesrussell/north-cloud/embedder/internal/telemetry"
)

var (
	// ErrInvalidURL means the link cannot be sent to the embed API.
	ErrInvalidURL = errors.New("invalid embed url")
	// ErrProviderError means the API answered 200 but reported a failure.
	ErrProviderError = errors.New("embed provider error")
	// ErrMalformedPayload means the API answered 200 with unusable content.
	ErrMalformedPayload = errors.New("malformed embed payload")
)

// maxErrorBody bounds how much of a failed response is kept for diagnostics.
const maxErrorBody = 4 << 10

// StatusError is returned when the embed API answers with anything but 200.
type StatusError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("embed api returned %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
	}
	return fmt.Sprintf("embed api returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Temporary reports whether the status suggests retrying may help.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// newStatusError reads a bounded part of the body and extracts a message from
// the common {"error": "..."} / {"message": "..."} shapes.
func newStatusError(resp *http.Response) *StatusError {
	se := &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(body) == 0 {
		return se
	}

	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		switch {
		case payload.Error != "":
			se.Message = payload.Error
			return se
		case payload.Message != "":
			se.Message = payload.Message
			return se
		}
	}

	se.Message = strings.TrimSpace(string(body))
	return se
}

// IsRetryable reports whether another attempt at the same request may succeed.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}

	if errors.Is(err, ErrInvalidURL) || errors.Is(err, ErrProviderError) || errors.Is(err, ErrMalformedPayload) {
		return false
	}

	return retry.IsTransientNetworkError(err)
}

// Outcome maps an error from Resolve to a metrics outcome label.
func Outcome(err error) string {
	var se *StatusError
	switch {
	case err == nil:
		return telemetry.OutcomeSuccess
	case errors.Is(err, ErrInvalidURL):
		return telemetry.OutcomeInvalidURL
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		return telemetry.OutcomeCircuitOpen
	case errors.As(err, &se):
		return telemetry.OutcomeStatus
	case errors.Is(err, ErrProviderError):
		return telemetry.OutcomeProviderError
	case errors.Is(err, ErrMalformedPayload):
		return telemetry.OutcomeMalformed
	default:
		return telemetry.OutcomeTransport
	}
}
