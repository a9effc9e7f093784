// Package watcher hot-reloads the configuration file. Editors that save by rename are
// handled by watching the parent directory and filtering on the file name.
package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/nghyane/creative-mux/internal/config"
	log "github.com/nghyane/creative-mux/internal/logging"
)

const configReloadDebounce = 150 * time.Millisecond

// Watcher reloads the configuration when its file changes.
type Watcher struct {
	configPath     string
	reloadCallback func(*config.Config)
	watcher        *fsnotify.Watcher

	mu                sync.Mutex
	configReloadTimer *time.Timer
	lastConfigHash    string
	config            *config.Config
}

// NewWatcher creates a watcher for configPath.
func NewWatcher(configPath string, reloadCallback func(*config.Config)) (*Watcher, error) {
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{configPath: abs, reloadCallback: reloadCallback, watcher: fw}, nil
}

// SetConfig records the configuration currently in effect.
func (w *Watcher) SetConfig(cfg *config.Config) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.config = cfg
	if data, err := os.ReadFile(w.configPath); err == nil {
		w.lastConfigHash = hashOf(data)
	}
}

// Start begins processing file events until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.configPath)
	if _, err := os.Stat(dir); err != nil {
		log.Infof("config directory %s not found, hot reload disabled", dir)
		return nil
	}
	if err := w.watcher.Add(dir); err != nil {
		log.Errorf("failed to watch config directory %s: %v", dir, err)
		return err
	}
	log.Debugf("watching config file: %s", w.configPath)

	go w.processEvents(ctx)
	return nil
}

// Stop stops the file watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.configReloadTimer != nil {
		w.configReloadTimer.Stop()
		w.configReloadTimer = nil
	}
	w.mu.Unlock()
	return w.watcher.Close()
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case errWatch, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Errorf("file watcher error: %v", errWatch)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.configPath {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	log.Debugf("config file event: %s %s", event.Op.String(), event.Name)
	w.scheduleConfigReload()
}

func (w *Watcher) scheduleConfigReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.configReloadTimer != nil {
		w.configReloadTimer.Stop()
	}
	w.configReloadTimer = time.AfterFunc(configReloadDebounce, func() {
		w.mu.Lock()
		w.configReloadTimer = nil
		w.mu.Unlock()
		w.reloadIfChanged()
	})
}

// reloadIfChanged parses the file and invokes the callback unless the content is unchanged
// or invalid. An invalid file keeps the previous configuration in effect.
func (w *Watcher) reloadIfChanged() bool {
	data, err := os.ReadFile(w.configPath)
	if err != nil {
		log.Errorf("failed to read config file: %v", err)
		return false
	}
	if len(data) == 0 {
		log.Debug("ignoring empty config file write event")
		return false
	}
	newHash := hashOf(data)

	w.mu.Lock()
	if w.lastConfigHash == newHash {
		w.mu.Unlock()
		log.Debug("config file content unchanged (hash match), skipping reload")
		return false
	}
	oldCfg := w.config
	w.mu.Unlock()

	newCfg, err := config.Parse(data, filepath.Ext(w.configPath))
	if err != nil {
		log.Errorf("failed to reload config, keeping previous: %v", err)
		return false
	}
	for _, d := range changeDetails(oldCfg, newCfg) {
		log.Debugf("config change: %s", d)
	}

	w.mu.Lock()
	w.lastConfigHash = newHash
	w.config = newCfg
	w.mu.Unlock()

	log.Infof("config reloaded from %s", w.configPath)
	if w.reloadCallback != nil {
		w.reloadCallback(newCfg)
	}
	return true
}

func hashOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
