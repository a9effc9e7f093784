// Package credentials resolves which API key serves a request: the user's stored key first,
// then the process-wide key for the provider's credential category.
package credentials

import (
	"context"
	"os"
	"strings"

	"github.com/nghyane/creative-mux/internal/config"
	log "github.com/nghyane/creative-mux/internal/logging"
)

// DevelopmentKey is handed out in non-strict mode when nothing else resolves, so the
// simulated handlers still run on a fresh checkout.
const DevelopmentKey = "sk-dummy-api-key-for-testing-purposes-only"

// Resolver is built once per configuration and is safe for concurrent use.
type Resolver struct {
	store     UserKeyStore
	strict    bool
	lookupEnv func(string) (string, bool)
	providers map[string]config.Provider
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithEnv replaces os.LookupEnv, mainly for tests.
func WithEnv(lookup func(string) (string, bool)) Option {
	return func(r *Resolver) { r.lookupEnv = lookup }
}

// NewResolver builds a resolver over the configured providers. store may be nil when per-user
// keys are disabled.
func NewResolver(providers []config.Provider, store UserKeyStore, strict bool, opts ...Option) *Resolver {
	r := &Resolver{
		store:     store,
		strict:    strict,
		lookupEnv: os.LookupEnv,
		providers: make(map[string]config.Provider, len(providers)),
	}
	for _, p := range providers {
		r.providers[strings.ToLower(p.Name)] = p
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Category maps a provider to its credential category. Providers missing from the table own
// a category named after themselves.
func (r *Resolver) Category(provider string) string {
	name := strings.ToLower(strings.TrimSpace(provider))
	if p, ok := r.providers[name]; ok {
		return p.Category()
	}
	return name
}

// Resolve returns the key to use for provider on behalf of userID (which may be empty).
// It never fails: lookup errors are logged and treated as "no key".
func (r *Resolver) Resolve(ctx context.Context, provider, userID string) (string, bool) {
	category := r.Category(provider)

	if r.store != nil && userID != "" {
		key, err := r.store.EffectiveAPIKey(ctx, userID, category)
		switch {
		case err != nil:
			log.WithFields(log.Fields{"provider": provider, "category": category}).
				WithError(err).Error("failed to fetch stored API key")
		case key != "":
			log.Debugf("using stored %s key %s for user %s", category, log.HideAPIKey(key), userID)
			return key, true
		}
	}

	if key := r.fallbackKey(provider, category); key != "" {
		return key, true
	}

	if !r.strict {
		log.Warnf("Using a dummy API key for provider %s in development", provider)
		return DevelopmentKey, true
	}
	return "", false
}

func (r *Resolver) fallbackKey(provider, category string) string {
	p, ok := r.providers[strings.ToLower(strings.TrimSpace(provider))]
	if !ok {
		p = config.Provider{Name: category}
	}
	if key := strings.TrimSpace(p.APIKey); key != "" {
		return key
	}
	// An aliased provider also accepts the key configured on the provider that owns the category.
	if owner, ok := r.providers[category]; ok && owner.Name != p.Name {
		if key := strings.TrimSpace(owner.APIKey); key != "" {
			return key
		}
	}
	if v, ok := r.lookupEnv(p.EnvVar()); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
