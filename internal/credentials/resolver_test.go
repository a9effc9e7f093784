package credentials

import (
	"context"
	"errors"
	"testing"

	"github.com/nghyane/creative-mux/internal/config"
)

type fakeStore struct {
	keys  map[string]string
	err   error
	calls int
}

func (f *fakeStore) EffectiveAPIKey(_ context.Context, userID, category string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.keys[userID+"/"+category], nil
}

func envOf(vars map[string]string) Option {
	return WithEnv(func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	})
}

func TestResolve_Order(t *testing.T) {
	providers := config.SanitizeProviders([]config.Provider{
		{Name: "openai", APIKey: "sk-config-openai"},
		{Name: "anthropic"},
		{Name: "stability", CredentialCategory: "openai"},
		{Name: "google", APIKeyEnv: "GEMINI_KEY"},
	})
	store := &fakeStore{keys: map[string]string{"u1/openai": "sk-user-openai"}}
	env := map[string]string{"ANTHROPIC_API_KEY": "sk-env-anthropic", "GEMINI_KEY": "g-env"}
	r := NewResolver(providers, store, true, envOf(env))

	tests := []struct {
		name     string
		provider string
		user     string
		want     string
		wantOK   bool
	}{
		{"stored key wins", "openai", "u1", "sk-user-openai", true},
		{"config key for anonymous", "openai", "", "sk-config-openai", true},
		{"config key when user has none", "openai", "u2", "sk-config-openai", true},
		{"env fallback", "anthropic", "u1", "sk-env-anthropic", true},
		{"custom env var", "google", "", "g-env", true},
		{"alias shares stored key", "stability", "u1", "sk-user-openai", true},
		{"alias shares config key", "stability", "", "sk-config-openai", true},
		{"strict and nothing found", "midjourney", "u1", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.Resolve(context.Background(), tt.provider, tt.user)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Resolve(%s, %q) = (%q, %v), want (%q, %v)", tt.provider, tt.user, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestResolve_EachProviderOwnsItsCategory(t *testing.T) {
	r := NewResolver(config.DefaultProviders(), nil, true, envOf(map[string]string{"OPENAI_API_KEY": "sk-openai"}))
	for _, p := range []string{"stability", "meta", "local", "midjourney"} {
		if got := r.Category(p); got != p {
			t.Errorf("Expected %s to own its category, got %s", p, got)
		}
		if _, ok := r.Resolve(context.Background(), p, ""); ok {
			t.Errorf("Expected %s not to borrow the openai key", p)
		}
	}
}

func TestResolve_DevelopmentKey(t *testing.T) {
	r := NewResolver(nil, nil, false, envOf(nil))
	got, ok := r.Resolve(context.Background(), "acme", "")
	if !ok || got != DevelopmentKey {
		t.Errorf("Expected development key, got (%q, %v)", got, ok)
	}
}

func TestResolve_StoreErrorDegrades(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}

	strict := NewResolver(nil, store, true, envOf(nil))
	if _, ok := strict.Resolve(context.Background(), "openai", "u1"); ok {
		t.Error("Expected no key in strict mode when the store fails")
	}

	dev := NewResolver(nil, store, false, envOf(nil))
	if got, ok := dev.Resolve(context.Background(), "openai", "u1"); !ok || got != DevelopmentKey {
		t.Errorf("Expected development key after store failure, got (%q, %v)", got, ok)
	}

	withEnv := NewResolver(nil, store, true, envOf(map[string]string{"OPENAI_API_KEY": "sk-env"}))
	if got, _ := withEnv.Resolve(context.Background(), "openai", "u1"); got != "sk-env" {
		t.Errorf("Expected env key after store failure, got %q", got)
	}
}

func TestResolve_AnonymousSkipsStore(t *testing.T) {
	store := &fakeStore{}
	r := NewResolver(nil, store, false, envOf(nil))
	r.Resolve(context.Background(), "openai", "")
	if store.calls != 0 {
		t.Errorf("Expected no store lookup for anonymous requests, got %d", store.calls)
	}
}
