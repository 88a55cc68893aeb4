package recipe

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrQuotaExceeded matches any UpstreamError caused by rate or plan limits.
	ErrQuotaExceeded = errors.New("recipe provider quota exceeded")

	// ErrProviderUnavailable is returned while the provider circuit is open.
	ErrProviderUnavailable = errors.New("recipe provider temporarily unavailable")

	// ErrStorageCorruption marks persisted data that could not be decoded.
	ErrStorageCorruption = errors.New("stored data is corrupt")
)

// UpstreamError is a non-2xx answer from the provider or the proxy.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error %d: %s", e.Status, e.Message)
}

func (e *UpstreamError) Quota() bool {
	return e.Status == http.StatusPaymentRequired || e.Status == http.StatusTooManyRequests
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrQuotaExceeded && e.Quota()
}

// ValidationError reports a missing or malformed request parameter.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NetworkError means the request never produced an HTTP response.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// DetailError is a failed detail lookup during a two-phase search.
type DetailError struct {
	ID  int
	Err error
}

func (e *DetailError) Error() string {
	return fmt.Sprintf("failed to fetch details for recipe %d: %v", e.ID, e.Err)
}

func (e *DetailError) Unwrap() error {
	return e.Err
}

// UserMessage turns a retrieval error into the line shown to a user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, ErrQuotaExceeded) {
		return "Daily recipe quota reached. Please try again later."
	}
	if errors.Is(err, ErrProviderUnavailable) {
		return "Recipe service is temporarily unavailable."
	}

	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return "Could not reach the recipe service. Check your connection."
	}

	var upErr *UpstreamError
	if errors.As(err, &upErr) && upErr.Message != "" {
		return upErr.Message
	}

	return "Something went wrong while loading recipes."
}
