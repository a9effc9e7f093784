// Package service wires the creative gateway together: the dispatch pipeline shared by every
// modality, the stores behind it, the HTTP server and configuration hot reload.
package service

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nghyane/creative-mux/internal/api"
	"github.com/nghyane/creative-mux/internal/api/handlers"
	"github.com/nghyane/creative-mux/internal/capability"
	"github.com/nghyane/creative-mux/internal/config"
	"github.com/nghyane/creative-mux/internal/credentials"
	"github.com/nghyane/creative-mux/internal/history"
	log "github.com/nghyane/creative-mux/internal/logging"
	"github.com/nghyane/creative-mux/internal/provider"
	"github.com/nghyane/creative-mux/internal/provider/simulated"
	"golang.org/x/sync/errgroup"
)

// Service owns the server lifecycle.
type Service struct {
	cfg        atomic.Pointer[config.Config]
	configPath string
	hooks      Hooks
	lookupEnv  func(string) (string, bool)
	override   func(*config.Config)

	handlers    *provider.Registry
	handlerOpts []simulated.Option
	dispatcher  *Dispatcher

	keyStore   credentials.UserKeyStore
	closeStore func() error
	history    *history.Persister

	server         *api.Server
	watcherFactory WatcherFactory
	watcher        ConfigWatcher

	reloadMu     sync.Mutex
	shutdownOnce sync.Once
}

// Config returns the configuration currently in effect.
func (s *Service) Config() *config.Config { return s.cfg.Load() }

// Handler exposes the HTTP handler without listening, mainly for tests.
func (s *Service) Handler() http.Handler { return s.server.Handler() }

// Dispatcher returns the dispatch pipeline.
func (s *Service) Dispatcher() *Dispatcher { return s.dispatcher }

// depsFor wires the dispatch dependencies of cfg around caps, the checked capability table.
func (s *Service) depsFor(cfg *config.Config, caps *capability.Registry) Deps {
	var rec Recorder
	if s.history != nil {
		rec = s.history
	}
	deps := DepsFromConfig(cfg, s.keyStore, s.handlers, rec, credentials.WithEnv(s.lookupEnv))
	deps.Capabilities = caps
	return deps
}

func (s *Service) apiServices() api.Services {
	services := api.Services{
		Images:   s.dispatcher.Image(),
		Videos:   s.dispatcher.Video(),
		Audio:    s.dispatcher.Audio(),
		Edits:    s.dispatcher.Edit(),
		Handlers: s.handlers,
	}
	if ks, ok := s.keyStore.(handlers.KeyStore); ok {
		services.Keys = ks
	}
	if s.history != nil {
		services.History = s.history
	}
	return services
}

// Run serves until ctx is cancelled or the server fails, then shuts everything down.
func (s *Service) Run(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("service: service is nil")
	}
	cfg := s.Config()

	if s.hooks.OnBeforeStart != nil {
		s.hooks.OnBeforeStart(cfg)
	}

	g, gctx := errgroup.WithContext(ctx)

	if s.configPath != "" {
		w, err := s.watcherFactory(s.configPath, s.ApplyConfig)
		if err != nil {
			return fmt.Errorf("service: failed to create watcher: %w", err)
		}
		w.SetConfig(cfg)
		if err = w.Start(gctx); err != nil {
			_ = w.Stop()
			return fmt.Errorf("service: failed to start watcher: %w", err)
		}
		s.watcher = w
		log.Info("file watcher started for config changes")
	}

	g.Go(s.server.Start)

	log.Infof("API server started on %s (%d providers, strict=%t)", cfg.Addr(), len(cfg.Providers), cfg.Strict)
	if s.hooks.OnAfterStart != nil {
		s.hooks.OnAfterStart(s)
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// ApplyConfig swaps in a reloaded configuration. The capability table is checked against the
// new handlers the same way it is at startup.
func (s *Service) ApplyConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()
	if s.override != nil {
		s.override(cfg)
	}

	next := provider.NewRegistry()
	handlers := simulated.FromConfig(cfg.Providers, s.handlerOpts...)
	next.Replace(handlers...)
	caps, _ := CheckConsistency(capability.New(cfg.Providers, cfg.Strict), next, cfg.Strict)

	s.handlers.Replace(handlers...)
	s.dispatcher.Swap(s.depsFor(cfg, caps))
	s.server.UpdateConfig(cfg)
	s.cfg.Store(cfg)

	if s.hooks.OnReload != nil {
		s.hooks.OnReload(cfg)
	}
}

// Shutdown stops the watcher, the HTTP server and the stores. It is idempotent.
func (s *Service) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.watcher != nil {
			if err := s.watcher.Stop(); err != nil {
				log.Errorf("failed to stop file watcher: %v", err)
				shutdownErr = err
			}
		}
		if s.server != nil {
			if err := s.server.Stop(ctx); err != nil {
				log.Errorf("error stopping API server: %v", err)
				if shutdownErr == nil {
					shutdownErr = err
				}
			}
		}
		s.closeStores()
	})
	return shutdownErr
}

func (s *Service) closeStores() {
	if s.history != nil {
		if err := s.history.Stop(); err != nil {
			log.Warnf("failed to stop history persistence: %v", err)
		}
	}
	if s.closeStore != nil {
		if err := s.closeStore(); err != nil {
			log.Warnf("failed to close credential store: %v", err)
		}
	}
}
