package service

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nghyane/creative-mux/internal/config"
	"github.com/nghyane/creative-mux/internal/json"
	"github.com/nghyane/creative-mux/internal/provider/simulated"
)

func fastConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	for i := range cfg.Providers {
		cfg.Providers[i].LatencyMS = 0
	}
	cfg.CredentialStore = config.CredentialStore{}
	cfg.History.Enabled = false
	return cfg
}

func buildService(t *testing.T, b *Builder) *Service {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s, err := b.WithLookupEnv(func(string) (string, bool) { return "", false }).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func post(t *testing.T, h http.Handler, path, body, token string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON %q: %v", w.Body.String(), err)
	}
	return w.Code, out
}

func TestService_Scenarios(t *testing.T) {
	s := buildService(t, NewBuilder().WithConfig(fastConfig()))
	h := s.Handler()

	code, body := post(t, h, "/api/creative/image",
		`{"provider":"openai","modelId":"dall-e-3","prompt":"a red fox in snow","size":"1024x1024","quality":90}`, "")
	if code != http.StatusOK {
		t.Fatalf("image: expected 200, got %d %v", code, body)
	}
	if body["provider"] != "openai" || body["modelId"] != "dall-e-3" || body["width"] != float64(1024) || body["height"] != float64(1024) || body["url"] == "" {
		t.Errorf("image: unexpected body %v", body)
	}

	code, body = post(t, h, "/api/creative/video", `{"provider":"stability","modelId":"gen-2","prompt":"drone shot"}`, "")
	if code != http.StatusOK {
		t.Fatalf("video: expected 200, got %d %v", code, body)
	}
	if body["fps"] != float64(24) || body["width"] != float64(1280) || body["height"] != float64(720) {
		t.Errorf("video: unexpected body %v", body)
	}

	code, body = post(t, h, "/api/creative/video", `{"provider":"anthropic","modelId":"x","prompt":"y"}`, "")
	if code != http.StatusBadRequest {
		t.Errorf("anthropic video: expected 400, got %d", code)
	}
	if msg, _ := body["error"].(string); !strings.Contains(msg, "anthropic does not support video generation") {
		t.Errorf("anthropic video: unexpected message %q", msg)
	}

	code, body = post(t, h, "/api/creative/image", `{"provider":"openai","prompt":"a cat"}`, "")
	if code != http.StatusBadRequest {
		t.Errorf("missing field: expected 400, got %d", code)
	}
	if msg, _ := body["error"].(string); !strings.Contains(msg, "provider, modelId, and prompt are required") {
		t.Errorf("missing field: unexpected message %q", msg)
	}

	code, body = post(t, h, "/api/creative/image", `{"provider":"meta","modelId":"m","prompt":"p"}`, "")
	if code != http.StatusBadRequest || body["code"] != "unsupported_provider" {
		t.Errorf("meta image: expected 400 unsupported_provider, got %d %v", code, body)
	}
}

func TestService_StrictBootsWithDefaultTable(t *testing.T) {
	cfg := fastConfig()
	cfg.Strict = true
	s := buildService(t, NewBuilder().WithConfig(cfg))
	h := s.Handler()

	code, body := post(t, h, "/api/creative/image", `{"provider":"meta","modelId":"m","prompt":"p"}`, "")
	if code != http.StatusBadRequest || body["code"] != "provider_unsupported" {
		t.Errorf("meta image: expected 400 provider_unsupported, got %d %v", code, body)
	}

	code, body = post(t, h, "/api/creative/image/edit", `{"provider":"local","modelId":"m","prompt":"p","image":"data:image/png;base64,AA=="}`, "")
	if code != http.StatusBadRequest || body["code"] != "provider_unsupported" {
		t.Errorf("local edit: expected 400 provider_unsupported, got %d %v", code, body)
	}

	code, body = post(t, h, "/api/creative/image", `{"provider":"openai","modelId":"m","prompt":"p","apiKey":"sk-test"}`, "")
	if code != http.StatusOK {
		t.Errorf("openai image: expected 200, got %d %v", code, body)
	}
}

func TestService_StoredKeyReachesUpstream(t *testing.T) {
	cfg := fastConfig()
	cfg.Strict = true
	cfg.Providers = []config.Provider{{
		Name:         "openai",
		Features:     []string{config.FeatureImage},
		Placeholders: config.Placeholders{ImageURL: "https://img.test/a.png"},
	}}
	cfg.Sessions = []config.Session{{Token: "tok", UserID: "alice"}}
	cfg.CredentialStore = config.CredentialStore{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "keys.db")}
	cfg.History = config.History{Enabled: true, DBPath: filepath.Join(t.TempDir(), "history.db"), FlushIntervalSecs: 1}

	var mu sync.Mutex
	var seenKey string
	upstream := simulated.UpstreamFunc(func(_ context.Context, _ simulated.Operation, key string, _ []byte) (int, []byte, error) {
		mu.Lock()
		seenKey = key
		mu.Unlock()
		return http.StatusOK, []byte(`{"data":[{"url":"https://img.test/a.png","mime_type":"image/png"}]}`), nil
	})
	s := buildService(t, NewBuilder().WithConfig(cfg).WithUpstream(upstream))
	h := s.Handler()

	code, body := post(t, h, "/api/creative/image", `{"provider":"openai","modelId":"m","prompt":"p"}`, "tok")
	if code != http.StatusUnauthorized || body["code"] != "missing_credential" {
		t.Fatalf("Expected 401 missing_credential before storing a key, got %d %v", code, body)
	}

	req := httptest.NewRequest(http.MethodPut, "/api/keys/openai", bytes.NewBufferString(`{"key":"sk-alice-0001"}`))
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 storing key, got %d %s", w.Code, w.Body.String())
	}

	code, body = post(t, h, "/api/creative/image", `{"provider":"openai","modelId":"m","prompt":"p"}`, "tok")
	if code != http.StatusOK {
		t.Fatalf("Expected 200 with stored key, got %d %v", code, body)
	}
	mu.Lock()
	defer mu.Unlock()
	if seenKey != "sk-alice-0001" {
		t.Errorf("Expected stored key at upstream, got %q", seenKey)
	}
}

func TestService_ApplyConfig(t *testing.T) {
	s := buildService(t, NewBuilder().WithConfig(fastConfig()))
	h := s.Handler()

	next := fastConfig()
	next.Providers = []config.Provider{{
		Name:         "runway",
		Features:     []string{config.FeatureVideo},
		Placeholders: config.Placeholders{VideoURL: "https://vid.test/r.mp4"},
	}}
	var reloaded *config.Config
	s.hooks.OnReload = func(cfg *config.Config) { reloaded = cfg }
	s.ApplyConfig(next)

	if reloaded != next || s.Config() != next {
		t.Fatal("Expected the new config to be applied")
	}
	code, body := post(t, h, "/api/creative/video", `{"provider":"runway","modelId":"gen-3","prompt":"p"}`, "")
	if code != http.StatusOK || body["url"] != "https://vid.test/r.mp4" {
		t.Errorf("Expected runway video after reload, got %d %v", code, body)
	}
	if _, ok := s.handlers.Get("openai"); ok {
		t.Error("Expected openai handler to be dropped after reload")
	}

	strict := fastConfig()
	strict.Strict = true
	s.ApplyConfig(strict)
	if s.Config() != strict {
		t.Fatal("Expected a strict config with unserved capabilities to be applied")
	}
	code, body = post(t, h, "/api/creative/image", `{"provider":"meta","modelId":"m","prompt":"p","apiKey":"k"}`, "")
	if code != http.StatusBadRequest || body["code"] != "provider_unsupported" {
		t.Errorf("Expected meta image to be dropped after strict reload, got %d %v", code, body)
	}
}
