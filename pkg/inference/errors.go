package inference

import (
	"errors"
	"fmt"
)

var (
	// ErrNoBaseURL is returned when no server URL is configured.
	ErrNoBaseURL = errors.New("inference: base URL required")

	// ErrNoModel is returned when no model is configured.
	ErrNoModel = errors.New("inference: model required")

	// ErrNoChoices is returned when the server answers without a completion.
	ErrNoChoices = errors.New("inference: no choices returned")

	// ErrNoImage is returned by Vision when the request has no image.
	ErrNoImage = errors.New("inference: image required")

	// ErrProviderUnavailable is returned by an unconfigured mock.
	ErrProviderUnavailable = errors.New("inference: provider unavailable")
)

// APIError is an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
	Code       string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("inference: API error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("inference: API error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable reports whether the request may succeed if repeated.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == 429 || (e.StatusCode >= 500 && e.StatusCode < 600)
}

// IsNotFound reports a missing model or route, typical when the model has
// not been pulled yet.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == 404
}

// ProviderError adds provider context to an error.
type ProviderError struct {
	Provider string
	Err      error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("inference [%s]: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapError wraps err with provider context. It returns nil for nil.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}
