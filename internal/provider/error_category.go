package provider

import (
	"net/http"
	"strings"
)

// ErrorCategory classifies errors for retry decisions
type ErrorCategory int

const (
	// CategoryUnknown is the default category for unclassified errors
	CategoryUnknown ErrorCategory = iota

	// CategoryUserError indicates client-side errors (bad request, invalid params).
	// Never retried.
	CategoryUserError

	// CategoryAuthError indicates a missing, invalid or rejected credential
	CategoryAuthError

	// CategoryQuotaError indicates rate limiting or quota exhaustion
	CategoryQuotaError

	// CategoryTransient indicates temporary server-side errors, timeouts included
	CategoryTransient

	// CategoryNotFound indicates an unknown model or resource
	CategoryNotFound
)

// String returns human-readable category name
func (c ErrorCategory) String() string {
	switch c {
	case CategoryUserError:
		return "user_error"
	case CategoryAuthError:
		return "auth_error"
	case CategoryQuotaError:
		return "quota_error"
	case CategoryTransient:
		return "transient"
	case CategoryNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// MarshalText renders the category by name in JSON and logs.
func (c ErrorCategory) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// ShouldRetry returns true if another attempt against the same provider may succeed
func (c ErrorCategory) ShouldRetry() bool {
	return c == CategoryTransient || c == CategoryQuotaError
}

// IsUserFault returns true if error is caused by user's request
func (c ErrorCategory) IsUserFault() bool {
	return c == CategoryUserError || c == CategoryNotFound
}

// CategorizeHTTPStatus determines category from HTTP status code
func CategorizeHTTPStatus(statusCode int) ErrorCategory {
	switch statusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return CategoryUserError
	case http.StatusUnauthorized, http.StatusForbidden:
		return CategoryAuthError
	case http.StatusPaymentRequired, http.StatusTooManyRequests:
		return CategoryQuotaError
	case http.StatusNotFound:
		return CategoryNotFound
	case http.StatusRequestTimeout,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return CategoryTransient
	default:
		if statusCode >= 400 && statusCode < 500 {
			return CategoryUserError
		}
		if statusCode >= 500 {
			return CategoryTransient
		}
		return CategoryUnknown
	}
}

// CategorizeError determines category from error message and status code
func CategorizeError(statusCode int, message string) ErrorCategory {
	if isQuotaError(message) {
		return CategoryQuotaError
	}
	if isUserError(message) {
		return CategoryUserError
	}
	return CategorizeHTTPStatus(statusCode)
}

// isUserError checks if message indicates user/request error
func isUserError(msg string) bool {
	if msg == "" {
		return false
	}
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "invalid_request") ||
		strings.Contains(lower, "invalid request") ||
		strings.Contains(lower, "content_policy") ||
		strings.Contains(lower, "safety system") ||
		strings.Contains(lower, "malformed") ||
		strings.Contains(lower, "missing required") ||
		strings.Contains(lower, "not supported")
}

// isQuotaError checks if message indicates quota/rate limit error
func isQuotaError(msg string) bool {
	if msg == "" {
		return false
	}
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "resource_exhausted") ||
		strings.Contains(lower, "quota") ||
		strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "rate_limit") ||
		strings.Contains(lower, "too many requests")
}
