// Package handlers implements the HTTP endpoints: request parsing, default filling and
// response/error shaping around the dispatch services.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nghyane/creative-mux/internal/access"
	"github.com/nghyane/creative-mux/internal/json"
	log "github.com/nghyane/creative-mux/internal/logging"
	"github.com/nghyane/creative-mux/internal/provider"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error    string `json:"error"`
	Code     string `json:"code,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// BaseHandler carries what every endpoint needs.
type BaseHandler struct {
	Sessions access.SessionProvider
}

// optionalUser returns the caller's user id, or "" for anonymous requests.
func (h *BaseHandler) optionalUser(c *gin.Context) string {
	if h.Sessions == nil {
		return ""
	}
	s, err := h.Sessions.Session(c.Request.Context(), c.Request)
	if err != nil {
		log.WithField("request_id", log.RequestID(c)).Debugf("No active session, continuing as anonymous: %v", err)
		return ""
	}
	return s.UserID
}

// requireUser aborts with 401 when the request has no valid session.
func (h *BaseHandler) requireUser(c *gin.Context) (string, bool) {
	if h.Sessions != nil {
		s, err := h.Sessions.Session(c.Request.Context(), c.Request)
		if err == nil && s.UserID != "" {
			return s.UserID, true
		}
		if err != nil && !errors.Is(err, access.ErrNoCredentials) && !errors.Is(err, access.ErrInvalidCredential) {
			log.Errorf("session lookup failed: %v", err)
		}
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Authentication required", Code: "unauthorized"})
	return "", false
}

// decodeBody reads the JSON body into dst; a malformed body yields a validation error.
func decodeBody(c *gin.Context, dst any) error {
	data, err := c.GetRawData()
	if err != nil {
		return provider.ValidationError("Failed to read request body")
	}
	if len(data) == 0 || !json.Valid(data) {
		return provider.ValidationError("Invalid JSON body")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return provider.ValidationError("Invalid request body: " + err.Error())
	}
	return nil
}

// writeError renders err as ErrorResponse at its status, or 500 when it has none.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	body := ErrorResponse{Error: "Unknown error occurred", Code: provider.CodeUnknown, Provider: "unknown"}

	var pe *provider.Error
	if errors.As(err, &pe) {
		if pe.Message != "" {
			body.Error = pe.Message
		}
		if pe.Code != "" {
			body.Code = pe.Code
		}
		if pe.Provider != "" {
			body.Provider = pe.Provider
		}
		if pe.HTTPStatus > 0 {
			status = pe.HTTPStatus
		}
	} else if err != nil && err.Error() != "" {
		body.Error = err.Error()
	}

	if status >= http.StatusInternalServerError {
		log.WithField("request_id", log.RequestID(c)).Errorf("request failed: %s", body.Error)
	}
	writeJSON(c, status, body)
}

// writeJSON encodes v with the gateway's JSON codec and writes it with status.
func writeJSON(c *gin.Context, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.WithField("request_id", log.RequestID(c)).Errorf("failed to encode response: %v", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(status, "application/json; charset=utf-8", data)
}

// writeValidation renders a validation failure; these carry no code or provider.
func writeValidation(c *gin.Context, msg string) {
	writeJSON(c, http.StatusBadRequest, ErrorResponse{Error: msg})
}
