package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nghyane/creative-mux/internal/config"
)

const baseYAML = `port: 3001
providers:
  - name: openai
    features: [image]
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestReloadIfChanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, baseYAML)

	var got []*config.Config
	w, err := NewWatcher(path, func(cfg *config.Config) { got = append(got, cfg) })
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()
	w.SetConfig(config.NewDefaultConfig())

	if w.reloadIfChanged() {
		t.Error("Expected no reload for unchanged content")
	}

	writeFile(t, path, baseYAML+"strict: true\n")
	if !w.reloadIfChanged() {
		t.Fatal("Expected reload after change")
	}
	if len(got) != 1 || !got[0].Strict {
		t.Fatalf("Expected one strict config, got %d callbacks", len(got))
	}

	writeFile(t, path, "port: [not a number\n")
	if w.reloadIfChanged() {
		t.Error("Expected invalid content to be rejected")
	}
	if len(got) != 1 {
		t.Errorf("Expected callback count to stay 1, got %d", len(got))
	}
}

func TestWatcherPicksUpWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, baseYAML)

	reloaded := make(chan *config.Config, 4)
	w, err := NewWatcher(path, func(cfg *config.Config) { reloaded <- cfg })
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()
	w.SetConfig(config.NewDefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	writeFile(t, path, baseYAML+"debug: true\n")
	select {
	case cfg := <-reloaded:
		if !cfg.Debug {
			t.Error("Expected debug=true after reload")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestChangeDetails(t *testing.T) {
	oldCfg := config.NewDefaultConfig()
	newCfg := config.NewDefaultConfig()
	newCfg.Strict = true
	newCfg.Providers = newCfg.Providers[1:]
	newCfg.Providers = append(newCfg.Providers, config.Provider{Name: "runway", Features: []string{"video"}})

	details := strings.Join(changeDetails(oldCfg, newCfg), "\n")
	for _, want := range []string{"strict: false -> true", "provider runway: added", "provider " + oldCfg.Providers[0].Name + ": removed"} {
		if !strings.Contains(details, want) {
			t.Errorf("Expected %q in details:\n%s", want, details)
		}
	}
	if changeDetails(nil, newCfg) != nil {
		t.Error("Expected nil details without a previous config")
	}
}
