// Package api provides the HTTP server of the creative gateway: the Gin engine, its
// middleware stack and the hot-reloadable configuration the endpoints read.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nghyane/creative-mux/internal/access"
	"github.com/nghyane/creative-mux/internal/api/handlers"
	"github.com/nghyane/creative-mux/internal/config"
	log "github.com/nghyane/creative-mux/internal/logging"
)

// Services are the collaborators behind the endpoints.
type Services struct {
	Images handlers.ImageService
	Videos handlers.VideoService
	Audio  handlers.AudioService
	Edits  handlers.EditService

	Handlers handlers.HandlerLookup

	// Keys and History are optional; their routes answer 404 when unset.
	Keys    handlers.KeyStore
	History handlers.HistoryReader
}

type serverOptionConfig struct {
	extraMiddleware    []gin.HandlerFunc
	routerConfigurator func(*gin.Engine)
	lookupEnv          func(string) (string, bool)
}

// ServerOption customises HTTP server construction.
type ServerOption func(*serverOptionConfig)

// WithMiddleware appends additional Gin middleware during server construction.
func WithMiddleware(mw ...gin.HandlerFunc) ServerOption {
	return func(cfg *serverOptionConfig) {
		cfg.extraMiddleware = append(cfg.extraMiddleware, mw...)
	}
}

// WithRouterConfigurator runs fn after the default routes are registered.
func WithRouterConfigurator(fn func(*gin.Engine)) ServerOption {
	return func(cfg *serverOptionConfig) {
		cfg.routerConfigurator = fn
	}
}

// WithLookupEnv replaces os.LookupEnv for the provider catalog.
func WithLookupEnv(lookup func(string) (string, bool)) ServerOption {
	return func(cfg *serverOptionConfig) {
		cfg.lookupEnv = lookup
	}
}

// Server wraps the Gin engine and the underlying HTTP server.
type Server struct {
	engine *gin.Engine
	server *http.Server

	// cfg is swapped as a whole on reload; handlers read it through currentConfig.
	cfg atomic.Pointer[config.Config]

	sessions *access.Manager
	services Services
	opts     *serverOptionConfig
}

// NewServer creates the server and registers every route.
func NewServer(cfg *config.Config, services Services, opts ...ServerOption) *Server {
	optionState := &serverOptionConfig{lookupEnv: os.LookupEnv}
	for i := range opts {
		opts[i](optionState)
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(log.GinLogger())
	engine.Use(log.GinRecovery())
	for _, mw := range optionState.extraMiddleware {
		engine.Use(mw)
	}
	engine.Use(corsMiddleware())

	s := &Server{
		engine:   engine,
		sessions: access.NewManager(access.NewStaticTokens(cfg.Sessions)),
		services: services,
		opts:     optionState,
	}
	s.cfg.Store(cfg)
	s.setupRoutes()
	if optionState.routerConfigurator != nil {
		optionState.routerConfigurator(engine)
	}

	s.server = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the engine, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Sessions returns the request session manager.
func (s *Server) Sessions() *access.Manager { return s.sessions }

func (s *Server) currentConfig() *config.Config { return s.cfg.Load() }

// Start listens and serves until Stop is called.
func (s *Server) Start() error {
	if s == nil || s.server == nil {
		return fmt.Errorf("failed to start HTTP server: server not initialized")
	}
	log.Infof("Starting API server on %s", s.server.Addr)
	if errServe := s.server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %v", errServe)
	}
	return nil
}

// Stop gracefully shuts down the API server without interrupting active connections.
func (s *Server) Stop(ctx context.Context) error {
	log.Debug("Stopping API server...")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %v", err)
	}
	log.Debug("API server stopped")
	return nil
}

// UpdateConfig applies a reloaded configuration. The listen address is fixed at startup.
func (s *Server) UpdateConfig(cfg *config.Config) {
	oldCfg := s.cfg.Swap(cfg)

	if oldCfg == nil || oldCfg.Debug != cfg.Debug {
		log.SetDebug(cfg.Debug)
		if oldCfg != nil {
			log.Debugf("debug mode updated from %t to %t", oldCfg.Debug, cfg.Debug)
		}
	}
	if oldCfg != nil && oldCfg.LoggingToFile != cfg.LoggingToFile {
		if err := log.ConfigureLogOutput(cfg.LoggingToFile); err != nil {
			log.Errorf("failed to reconfigure log output: %v", err)
		} else {
			log.Debugf("logging-to-file updated from %t to %t", oldCfg.LoggingToFile, cfg.LoggingToFile)
		}
	}
	if oldCfg != nil && oldCfg.Addr() != cfg.Addr() {
		log.Warnf("listen address changed from %s to %s; restart to apply", oldCfg.Addr(), cfg.Addr())
	}

	s.sessions.SetProvider(access.NewStaticTokens(cfg.Sessions))
	log.Infof("server configuration updated: %d providers, %d sessions, strict=%t", len(cfg.Providers), len(cfg.Sessions), cfg.Strict)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "*")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
