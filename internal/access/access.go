// Package access resolves the optional user session attached to a request.
package access

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/nghyane/creative-mux/internal/config"
)

var (
	// ErrNoCredentials means the request carries no session token at all.
	ErrNoCredentials = errors.New("access: no credentials provided")
	// ErrInvalidCredential means a token was presented but is not recognized.
	ErrInvalidCredential = errors.New("access: invalid credential")
)

// SessionCookie is the cookie consulted when no Authorization header is present.
const SessionCookie = "session_token"

// Session identifies the caller.
type Session struct {
	UserID string `json:"userId"`
	Source string `json:"-"`
}

// SessionProvider extracts the session of a request.
type SessionProvider interface {
	Session(ctx context.Context, r *http.Request) (*Session, error)
}

// StaticTokens maps bearer tokens from configuration to users.
type StaticTokens struct {
	tokens map[string]string
}

// NewStaticTokens builds the provider from configured sessions; entries missing a token or
// a user id are skipped.
func NewStaticTokens(sessions []config.Session) *StaticTokens {
	tokens := make(map[string]string, len(sessions))
	for _, s := range sessions {
		token, user := strings.TrimSpace(s.Token), strings.TrimSpace(s.UserID)
		if token == "" || user == "" {
			continue
		}
		tokens[token] = user
	}
	return &StaticTokens{tokens: tokens}
}

func (p *StaticTokens) Session(_ context.Context, r *http.Request) (*Session, error) {
	candidates := []struct {
		value  string
		source string
	}{
		{extractBearerToken(r.Header.Get("Authorization")), "authorization"},
		{cookieValue(r, SessionCookie), "cookie"},
	}

	seen := false
	for _, candidate := range candidates {
		if candidate.value == "" {
			continue
		}
		seen = true
		if user, ok := p.tokens[candidate.value]; ok {
			return &Session{UserID: user, Source: candidate.source}, nil
		}
	}
	if !seen {
		return nil, ErrNoCredentials
	}
	return nil, ErrInvalidCredential
}

// Manager lets the session provider be swapped on config reload.
type Manager struct {
	current atomic.Pointer[SessionProvider]
}

func NewManager(p SessionProvider) *Manager {
	m := &Manager{}
	m.SetProvider(p)
	return m
}

func (m *Manager) SetProvider(p SessionProvider) {
	m.current.Store(&p)
}

// Session delegates to the current provider. A nil provider yields ErrNoCredentials.
func (m *Manager) Session(ctx context.Context, r *http.Request) (*Session, error) {
	if m == nil {
		return nil, ErrNoCredentials
	}
	p := m.current.Load()
	if p == nil || *p == nil {
		return nil, ErrNoCredentials
	}
	return (*p).Session(ctx, r)
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(header)
	}
	return strings.TrimSpace(token)
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}
