package airtable

import (
	"errors"
	"fmt"
)

// Common errors returned by the Airtable client.
var (
	// ErrNotFound indicates the record was not found.
	ErrNotFound = errors.New("record not found in Airtable")

	// ErrAuthError indicates an authentication error (missing/invalid API key).
	ErrAuthError = errors.New("Airtable authentication error")

	// ErrRateLimited indicates the rate limit has been exceeded.
	ErrRateLimited = errors.New("Airtable rate limit exceeded")

	// ErrNetworkError indicates a network connectivity issue.
	ErrNetworkError = errors.New("network error communicating with Airtable")

	// ErrInvalidResponse indicates an unexpected API response.
	ErrInvalidResponse = errors.New("invalid response from Airtable")
)

// APIError represents an error response from the Airtable API.
type APIError struct {
	StatusCode int
	Type       string // Error type from API (e.g., "NOT_FOUND", "INVALID_REQUEST_UNKNOWN")
	Message    string
	RecordID   string // For context in record-related errors
}

func (e *APIError) Error() string {
	if e.RecordID != "" {
		return fmt.Sprintf("Airtable API error (status %d, type %s): %s (record: %s)", e.StatusCode, e.Type, e.Message, e.RecordID)
	}
	return fmt.Sprintf("Airtable API error (status %d, type %s): %s", e.StatusCode, e.Type, e.Message)
}

// IsNotFound returns true if the error indicates a record was not found.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 404 || apiErr.Type == "NOT_FOUND"
	}
	return false
}

// IsAuthError returns true if the error indicates an authentication problem.
func IsAuthError(err error) bool {
	if errors.Is(err, ErrAuthError) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 401 || apiErr.StatusCode == 403 || apiErr.Type == "AUTHENTICATION_REQUIRED"
	}
	return false
}

// IsRateLimited returns true if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.Type == "RATE_LIMIT_REACHED"
	}
	return false
}
