package provider

import (
	"fmt"
	"net/http"

	"github.com/nghyane/creative-mux/internal/creative"
)

// Error codes produced by the gateway itself. Provider handlers may surface their own codes.
const (
	CodeValidation          = "validation_error"
	CodeProviderUnsupported = "provider_unsupported"
	CodeMissingCredential   = "missing_credential"
	CodeUnsupportedProvider = "unsupported_provider"
	CodeAPIError            = "api_error"
	CodeUnknown             = "unknown_error"
	CodeTimeout             = "timeout"
	CodeCanceled            = "canceled"
)

// Error describes a generation failure in a provider agnostic format.
type Error struct {
	Code       string        `json:"code,omitempty"`
	Message    string        `json:"message"`
	Provider   string        `json:"provider,omitempty"`
	HTTPStatus int           `json:"statusCode,omitempty"`
	Category   ErrorCategory `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// StatusCode implements the optional status accessor read by the HTTP layer.
func (e *Error) StatusCode() int {
	if e == nil {
		return 0
	}
	return e.HTTPStatus
}

// ErrorCode exposes the code to Normalize when the error is wrapped.
func (e *Error) ErrorCode() string {
	if e == nil {
		return ""
	}
	return e.Code
}

// ValidationError reports a malformed request. It is raised before any provider is involved.
func ValidationError(msg string) *Error {
	return &Error{
		Code:       CodeValidation,
		Message:    msg,
		HTTPStatus: http.StatusBadRequest,
		Category:   CategoryUserError,
	}
}

// ProviderUnsupported reports a provider that lacks the capability for m.
func ProviderUnsupported(name string, m creative.Modality) *Error {
	return &Error{
		Code:       CodeProviderUnsupported,
		Message:    fmt.Sprintf("Provider %s does not support %s", name, m.Noun()),
		Provider:   name,
		HTTPStatus: http.StatusBadRequest,
		Category:   CategoryUserError,
	}
}

// MissingCredential reports that no key could be resolved for the provider.
func MissingCredential(name string) *Error {
	return &Error{
		Code:       CodeMissingCredential,
		Message:    "No API key available for provider: " + name,
		Provider:   name,
		HTTPStatus: http.StatusUnauthorized,
		Category:   CategoryAuthError,
	}
}

// UnsupportedProvider reports a provider that passed the capability check but has no handler
// registered for the modality.
func UnsupportedProvider(name string, m creative.Modality) *Error {
	return &Error{
		Code:       CodeUnsupportedProvider,
		Message:    fmt.Sprintf("Unsupported provider for %s: %s", m.Noun(), name),
		Provider:   name,
		HTTPStatus: http.StatusBadRequest,
		Category:   CategoryUserError,
	}
}
