package provider

import (
	"fmt"
	"strings"
	"time"
)

// StatusError is what a provider handler returns when the upstream API answered with a
// non-success status. Body keeps the raw payload so Normalize can read provider specific fields.
type StatusError struct {
	code       int
	msg        string
	body       []byte
	retryAfter *time.Duration
	category   ErrorCategory
}

func (e StatusError) Error() string {
	if e.msg != "" {
		return e.msg
	}
	if b := strings.TrimSpace(string(e.body)); b != "" {
		return b
	}
	return fmt.Sprintf("status %d", e.code)
}

func (e StatusError) StatusCode() int { return e.code }

func (e StatusError) Body() []byte { return e.body }

func (e StatusError) RetryAfter() *time.Duration { return e.retryAfter }

func (e StatusError) Category() ErrorCategory { return e.category }

// NewStatusError builds a StatusError and classifies it from the status and message.
func NewStatusError(code int, msg string, body []byte, retryAfter *time.Duration) StatusError {
	return StatusError{
		code:       code,
		msg:        msg,
		body:       body,
		retryAfter: retryAfter,
		category:   CategorizeError(code, msg+" "+string(body)),
	}
}
