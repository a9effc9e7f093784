package provider

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

const unknownMessage = "Unknown error occurred"

type statusCoder interface{ StatusCode() int }

type errorCoder interface{ ErrorCode() string }

type bodyCarrier interface{ Body() []byte }

type categorized interface{ Category() ErrorCategory }

// Normalize reshapes any failure raised while serving a request for the named provider into
// an *Error. It never panics. The message carries a "<provider>: " prefix exactly once, so
// normalizing an already normalized error yields an equal value.
func Normalize(err error, providerName string) *Error {
	if err == nil {
		return &Error{
			Code:     CodeUnknown,
			Message:  withPrefix(providerName, unknownMessage),
			Provider: providerName,
			Category: CategoryUnknown,
		}
	}

	var pe *Error
	if errors.As(err, &pe) && pe != nil {
		out := *pe
		if out.Provider == "" {
			out.Provider = providerName
		}
		if out.Code == "" {
			out.Code = CodeAPIError
		}
		if out.Message == "" {
			out.Message = unknownMessage
		}
		if out.Category == CategoryUnknown && out.HTTPStatus != 0 {
			out.Category = CategorizeHTTPStatus(out.HTTPStatus)
		}
		out.Message = withPrefix(out.Provider, out.Message)
		return &out
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{
			Code:       CodeTimeout,
			Message:    withPrefix(providerName, "request timed out"),
			Provider:   providerName,
			HTTPStatus: http.StatusGatewayTimeout,
			Category:   CategoryTransient,
		}
	case errors.Is(err, context.Canceled):
		return &Error{
			Code:       CodeCanceled,
			Message:    withPrefix(providerName, "request canceled"),
			Provider:   providerName,
			HTTPStatus: http.StatusRequestTimeout,
			Category:   CategoryUserError,
		}
	}

	message, code := extract(err, providerName)
	out := &Error{
		Code:     code,
		Message:  withPrefix(providerName, message),
		Provider: providerName,
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		out.HTTPStatus = sc.StatusCode()
	}
	var cat categorized
	if errors.As(err, &cat) {
		out.Category = cat.Category()
	} else {
		out.Category = CategorizeError(out.HTTPStatus, message)
	}
	return out
}

// extract pulls message and code out of the provider specific payload, falling back to
// the error's own text and code.
func extract(err error, providerName string) (string, string) {
	message := err.Error()
	var code string
	var ec errorCoder
	if errors.As(err, &ec) {
		code = ec.ErrorCode()
	}

	var body []byte
	var bc bodyCarrier
	if errors.As(err, &bc) {
		body = bc.Body()
	}

	var codePath string
	switch strings.ToLower(providerName) {
	case "openai":
		codePath = "error.code"
	case "anthropic":
		codePath = "error.type"
	}
	if codePath != "" && gjson.ValidBytes(body) {
		if m := gjson.GetBytes(body, "error.message").String(); m != "" {
			message = m
		}
		if c := gjson.GetBytes(body, codePath).String(); c != "" {
			code = c
		}
	}

	if strings.TrimSpace(message) == "" {
		message = unknownMessage
	}
	if code == "" {
		code = CodeAPIError
	}
	return message, code
}

func withPrefix(providerName, message string) string {
	if providerName == "" {
		return message
	}
	prefix := providerName + ": "
	if strings.HasPrefix(message, prefix) {
		return message
	}
	return prefix + message
}
