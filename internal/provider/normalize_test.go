package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/nghyane/creative-mux/internal/creative"
)

func TestNormalize_ProviderShapes(t *testing.T) {
	tests := []struct {
		name        string
		provider    string
		err         error
		wantMessage string
		wantCode    string
		wantStatus  int
	}{
		{
			name:        "openai body",
			provider:    "openai",
			err:         NewStatusError(http.StatusBadRequest, "", []byte(`{"error":{"message":"Invalid size","code":"invalid_size","type":"invalid_request_error"}}`), nil),
			wantMessage: "openai: Invalid size",
			wantCode:    "invalid_size",
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "provider name is matched case-insensitively",
			provider:    "OpenAI",
			err:         NewStatusError(http.StatusBadRequest, "", []byte(`{"error":{"message":"Rejected by safety system","code":"content_policy_violation"}}`), nil),
			wantMessage: "OpenAI: Rejected by safety system",
			wantCode:    "content_policy_violation",
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "anthropic uses type as code",
			provider:    "anthropic",
			err:         NewStatusError(http.StatusTooManyRequests, "", []byte(`{"error":{"message":"Slow down","type":"rate_limit_error"}}`), nil),
			wantMessage: "anthropic: Slow down",
			wantCode:    "rate_limit_error",
			wantStatus:  http.StatusTooManyRequests,
		},
		{
			name:        "openai without body falls back to error text",
			provider:    "openai",
			err:         errors.New("connection reset"),
			wantMessage: "openai: connection reset",
			wantCode:    CodeAPIError,
		},
		{
			name:        "other provider ignores body",
			provider:    "stability",
			err:         NewStatusError(http.StatusBadGateway, "upstream failed", []byte(`{"error":{"message":"hidden"}}`), nil),
			wantMessage: "stability: upstream failed",
			wantCode:    CodeAPIError,
			wantStatus:  http.StatusBadGateway,
		},
		{
			name:        "empty message",
			provider:    "google",
			err:         errors.New(""),
			wantMessage: "google: Unknown error occurred",
			wantCode:    CodeAPIError,
		},
		{
			name:        "nil error",
			provider:    "meta",
			err:         nil,
			wantMessage: "meta: Unknown error occurred",
			wantCode:    CodeUnknown,
		},
		{
			name:        "gateway error keeps code and status",
			provider:    "anthropic",
			err:         ProviderUnsupported("anthropic", creative.ModalityVideo),
			wantMessage: "anthropic: Provider anthropic does not support video generation",
			wantCode:    CodeProviderUnsupported,
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "wrapped gateway error",
			provider:    "openai",
			err:         fmt.Errorf("dispatch: %w", MissingCredential("openai")),
			wantMessage: "openai: No API key available for provider: openai",
			wantCode:    CodeMissingCredential,
			wantStatus:  http.StatusUnauthorized,
		},
		{
			name:        "deadline",
			provider:    "local",
			err:         context.DeadlineExceeded,
			wantMessage: "local: request timed out",
			wantCode:    CodeTimeout,
			wantStatus:  http.StatusGatewayTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.err, tt.provider)
			if got.Message != tt.wantMessage {
				t.Errorf("Expected message %q, got %q", tt.wantMessage, got.Message)
			}
			if got.Code != tt.wantCode {
				t.Errorf("Expected code %q, got %q", tt.wantCode, got.Code)
			}
			if got.HTTPStatus != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, got.HTTPStatus)
			}
			if got.Provider != tt.provider {
				t.Errorf("Expected provider %q, got %q", tt.provider, got.Provider)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []error{
		errors.New("boom"),
		NewStatusError(http.StatusServiceUnavailable, "", []byte(`{"error":{"message":"overloaded","code":"server_busy"}}`), nil),
		MissingCredential("openai"),
		nil,
	}
	for _, in := range inputs {
		first := Normalize(in, "openai")
		again := Normalize(in, "openai")
		if *first != *again {
			t.Errorf("Expected equal results for %v, got %+v and %+v", in, first, again)
		}
		twice := Normalize(first, "openai")
		if *first != *twice {
			t.Errorf("Expected normalizing twice to be stable, got %+v then %+v", first, twice)
		}
	}
}

func TestNormalize_Categories(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorCategory
	}{
		{NewStatusError(http.StatusServiceUnavailable, "overloaded", nil, nil), CategoryTransient},
		{NewStatusError(http.StatusTooManyRequests, "", nil, nil), CategoryQuotaError},
		{NewStatusError(http.StatusBadRequest, "quota exceeded for project", nil, nil), CategoryQuotaError},
		{NewStatusError(http.StatusUnauthorized, "bad key", nil, nil), CategoryAuthError},
		{ValidationError("missing"), CategoryUserError},
		{context.DeadlineExceeded, CategoryTransient},
	}
	for _, tt := range tests {
		if got := Normalize(tt.err, "openai").Category; got != tt.want {
			t.Errorf("Normalize(%v).Category = %s, want %s", tt.err, got, tt.want)
		}
	}
	if !CategoryTransient.ShouldRetry() || !CategoryQuotaError.ShouldRetry() {
		t.Error("Expected transient and quota errors to be retryable")
	}
	if CategoryUserError.ShouldRetry() || CategoryAuthError.ShouldRetry() {
		t.Error("Expected user and auth errors to be final")
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Duration
	}{
		{"30", 30 * time.Second},
		{"2.5", 2500 * time.Millisecond},
		{"1m30s", 90 * time.Second},
		{"", 0},
		{"-3", 0},
		{"soon", 0},
		{"NaN", 0},
		{"1e20", time.Duration(maxRetryAfterSeconds) * time.Second},
		{"+Inf", time.Duration(maxRetryAfterSeconds) * time.Second},
	}
	for _, tt := range tests {
		if got := ParseRetryAfter(tt.raw); got != tt.want {
			t.Errorf("ParseRetryAfter(%q): expected %v, got %v", tt.raw, tt.want, got)
		}
	}
}
