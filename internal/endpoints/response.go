// Package endpoints provides the HTTP harness that drives the adapter
package endpoints

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/thenexusengine/tne_mediation/internal/adapter"
	"github.com/thenexusengine/tne_mediation/pkg/logger"
)

// maxRequestBodySize limits request body reads (1MB); the size limiter may be stricter
const maxRequestBodySize = 1024 * 1024

// defaultCompletionTimeout bounds how long a request waits for an adapter callback
const defaultCompletionTimeout = 10 * time.Second

// ErrorResponse is a standard error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// sendJSON sends a JSON response
func sendJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// sendError sends a JSON error response
func sendError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	sendJSON(w, statusCode, ErrorResponse{Error: errorCode, Message: message})
}

// sendAdapterError maps an adapter error onto an HTTP status and error code
func sendAdapterError(w http.ResponseWriter, err error) {
	status, code := classifyError(err)
	sendError(w, status, code, err.Error())
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, adapter.ErrUnsupportedFormat):
		return http.StatusBadRequest, "unsupported_format"
	case errors.Is(err, adapter.ErrInvalidBannerSize):
		return http.StatusBadRequest, "invalid_banner_size"
	case errors.Is(err, adapter.ErrAdTypeMismatch):
		return http.StatusBadRequest, "ad_type_mismatch"
	case errors.Is(err, adapter.ErrLoadInProgress):
		return http.StatusConflict, "load_in_progress"
	case errors.Is(err, adapter.ErrNoAdReady):
		return http.StatusConflict, "no_ad_ready"
	case errors.Is(err, adapter.ErrNoAdToInvalidate):
		return http.StatusConflict, "no_ad_to_invalidate"
	case errors.Is(err, adapter.ErrLoadFailure):
		return http.StatusBadGateway, "load_failure"
	case errors.Is(err, adapter.ErrShowFailure):
		return http.StatusBadGateway, "show_failure"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// decodeBody decodes a JSON request body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodySize)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// await waits for the first value on ch, the request context or the timeout
func await[T any](ctx context.Context, ch <-chan T, timeout time.Duration) (T, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case v := <-ch:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-timer.C:
		var zero T
		return zero, context.DeadlineExceeded
	}
}
