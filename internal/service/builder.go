package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/nghyane/creative-mux/internal/api"
	"github.com/nghyane/creative-mux/internal/capability"
	"github.com/nghyane/creative-mux/internal/config"
	"github.com/nghyane/creative-mux/internal/credentials"
	"github.com/nghyane/creative-mux/internal/history"
	log "github.com/nghyane/creative-mux/internal/logging"
	"github.com/nghyane/creative-mux/internal/provider"
	"github.com/nghyane/creative-mux/internal/provider/simulated"
	"github.com/nghyane/creative-mux/internal/watcher"
)

// ConfigWatcher delivers reloaded configurations.
type ConfigWatcher interface {
	Start(ctx context.Context) error
	Stop() error
	SetConfig(cfg *config.Config)
}

// WatcherFactory creates the watcher for configPath.
type WatcherFactory func(configPath string, reload func(*config.Config)) (ConfigWatcher, error)

func defaultWatcherFactory(configPath string, reload func(*config.Config)) (ConfigWatcher, error) {
	w, err := watcher.NewWatcher(configPath, reload)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// Builder constructs a Service instance with customizable collaborators.
type Builder struct {
	cfg            *config.Config
	configPath     string
	watcherFactory WatcherFactory
	hooks          Hooks
	keyStore       credentials.UserKeyStore
	upstream       simulated.Upstream
	lookupEnv      func(string) (string, bool)
	override       func(*config.Config)
	serverOptions  []api.ServerOption
}

// Hooks allows callers to plug into service lifecycle stages.
type Hooks struct {
	// OnBeforeStart is called before the HTTP server starts listening.
	OnBeforeStart func(*config.Config)

	// OnAfterStart is called once the server goroutine is running.
	OnAfterStart func(*Service)

	// OnReload is called after a reloaded configuration has been applied.
	OnReload func(*config.Config)
}

// NewBuilder creates a Builder with default dependencies left unset.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithConfig sets the configuration instance used by the service.
func (b *Builder) WithConfig(cfg *config.Config) *Builder {
	b.cfg = cfg
	return b
}

// WithConfigPath sets the file watched for hot reload. Empty disables the watcher.
func (b *Builder) WithConfigPath(path string) *Builder {
	b.configPath = path
	return b
}

// WithWatcherFactory replaces the fsnotify-based watcher.
func (b *Builder) WithWatcherFactory(factory WatcherFactory) *Builder {
	b.watcherFactory = factory
	return b
}

// WithHooks registers lifecycle callbacks.
func (b *Builder) WithHooks(h Hooks) *Builder {
	b.hooks = h
	return b
}

// WithKeyStore supplies the per-user key store instead of opening the configured one.
func (b *Builder) WithKeyStore(store credentials.UserKeyStore) *Builder {
	b.keyStore = store
	return b
}

// WithUpstream routes every simulated handler through u.
func (b *Builder) WithUpstream(u simulated.Upstream) *Builder {
	b.upstream = u
	return b
}

// WithLookupEnv replaces os.LookupEnv for fallback keys.
func (b *Builder) WithLookupEnv(lookup func(string) (string, bool)) *Builder {
	b.lookupEnv = lookup
	return b
}

// WithConfigOverride applies fn to every reloaded configuration, so command-line overrides
// survive hot reload.
func (b *Builder) WithConfigOverride(fn func(*config.Config)) *Builder {
	b.override = fn
	return b
}

// WithServerOptions forwards options to the HTTP server.
func (b *Builder) WithServerOptions(opts ...api.ServerOption) *Builder {
	b.serverOptions = append(b.serverOptions, opts...)
	return b
}

// Build opens the stores, registers the handlers, checks the capability table against them
// and wires the HTTP server.
func (b *Builder) Build() (*Service, error) {
	if b.cfg == nil {
		return nil, fmt.Errorf("service: configuration is required")
	}
	cfg := b.cfg

	lookupEnv := b.lookupEnv
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}
	watcherFactory := b.watcherFactory
	if watcherFactory == nil {
		watcherFactory = defaultWatcherFactory
	}

	s := &Service{
		configPath:     b.configPath,
		watcherFactory: watcherFactory,
		hooks:          b.hooks,
		lookupEnv:      lookupEnv,
		override:       b.override,
		handlers:       provider.NewRegistry(),
	}
	if b.upstream != nil {
		s.handlerOpts = append(s.handlerOpts, simulated.WithUpstream(b.upstream))
	}

	s.handlers.Replace(simulated.FromConfig(cfg.Providers, s.handlerOpts...)...)
	caps, _ := CheckConsistency(capability.New(cfg.Providers, cfg.Strict), s.handlers, cfg.Strict)

	if b.keyStore != nil {
		s.keyStore = b.keyStore
	} else if cfg.CredentialStore.Driver != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		store, err := credentials.OpenSQLStore(ctx, cfg.CredentialStore.Driver, cfg.CredentialStore.DSN)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("service: open credential store: %w", err)
		}
		s.keyStore = store
		s.closeStore = store.Close
		log.Infof("per-user keys stored in %s", cfg.CredentialStore.Driver)
	}

	if cfg.History.Enabled {
		persister, err := history.NewPersister(cfg.History.DBPath, cfg.History.BatchSize, cfg.History.FlushIntervalSecs, cfg.History.RetentionDays)
		if err != nil {
			s.closeStores()
			return nil, fmt.Errorf("service: open history: %w", err)
		}
		s.history = persister
		log.Infof("generation history persisted to %s", persister.DBPath())
	}

	s.dispatcher = NewDispatcher(s.depsFor(cfg, caps))
	s.server = api.NewServer(cfg, s.apiServices(), append([]api.ServerOption{api.WithLookupEnv(lookupEnv)}, b.serverOptions...)...)
	s.cfg.Store(cfg)
	return s, nil
}
