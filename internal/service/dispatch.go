package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nghyane/creative-mux/internal/capability"
	"github.com/nghyane/creative-mux/internal/config"
	"github.com/nghyane/creative-mux/internal/creative"
	"github.com/nghyane/creative-mux/internal/credentials"
	"github.com/nghyane/creative-mux/internal/history"
	log "github.com/nghyane/creative-mux/internal/logging"
	"github.com/nghyane/creative-mux/internal/provider"
	"github.com/nghyane/creative-mux/internal/util"
)

// CapabilityChecker answers whether a provider may serve a modality.
type CapabilityChecker interface {
	Supports(provider string, feature creative.Modality) bool
}

// KeyResolver finds the credential for a provider and optional user.
type KeyResolver interface {
	Resolve(ctx context.Context, provider, userID string) (string, bool)
}

// HandlerLookup finds the registered handler of a provider.
type HandlerLookup interface {
	Get(name string) (provider.Handler, bool)
}

// Recorder receives one record per dispatched request.
type Recorder interface {
	Record(history.Record)
}

// Deps is everything a dispatch needs. A Dispatcher swaps the whole set atomically.
type Deps struct {
	Capabilities CapabilityChecker
	Credentials  KeyResolver
	Handlers     HandlerLookup
	Recorder     Recorder

	// Timeout bounds each handler attempt; zero means no bound beyond the request context.
	Timeout time.Duration
	Retry   util.RetryPolicy
}

// DepsFromConfig wires the capability table and key resolver described by cfg.
func DepsFromConfig(cfg *config.Config, store credentials.UserKeyStore, handlers HandlerLookup, rec Recorder, opts ...credentials.Option) Deps {
	return Deps{
		Capabilities: capability.New(cfg.Providers, cfg.Strict),
		Credentials:  credentials.NewResolver(cfg.Providers, store, cfg.Strict, opts...),
		Handlers:     handlers,
		Recorder:     rec,
		Timeout:      time.Duration(cfg.ProviderTimeout) * time.Second,
		Retry: util.RetryPolicy{
			Attempts:    cfg.RequestRetry + 1,
			MaxInterval: time.Duration(cfg.MaxRetryInterval) * time.Second,
			Retryable:   retryable,
			Delay:       retryDelay,
		},
	}
}

// retryable limits retries to failures another attempt could fix.
func retryable(err error) bool {
	return provider.Normalize(err, "").Category.ShouldRetry()
}

// retryDelay honours a provider's retry-after hint.
func retryDelay(err error) time.Duration {
	var se provider.StatusError
	if errors.As(err, &se) {
		if d := se.RetryAfter(); d != nil {
			return *d
		}
	}
	return 0
}

// Dispatcher runs the capability → credential → handler pipeline shared by every modality.
type Dispatcher struct {
	deps atomic.Pointer[Deps]
}

func NewDispatcher(deps Deps) *Dispatcher {
	d := &Dispatcher{}
	d.Swap(deps)
	return d
}

// Swap replaces the dependencies. In-flight requests finish with the set they started with.
func (d *Dispatcher) Swap(deps Deps) {
	d.deps.Store(&deps)
}

// Image returns the image generation service.
func (d *Dispatcher) Image() *Image { return &Image{d: d} }

// Video returns the video generation service.
func (d *Dispatcher) Video() *Video { return &Video{d: d} }

// Audio returns the audio generation service.
func (d *Dispatcher) Audio() *Audio { return &Audio{d: d} }

// Edit returns the image editing service.
func (d *Dispatcher) Edit() *Edit { return &Edit{d: d} }

type asset interface{ Asset() string }

// canonicalProvider is the form every table, store and handler is keyed by.
func canonicalProvider(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// run executes the pipeline for one request. invoke is only called once the handler is known
// to serve m, so it may type-assert the matching generator interface.
func run[R asset](ctx context.Context, d *Dispatcher, m creative.Modality, base creative.BaseOptions, userID string,
	invoke func(ctx context.Context, h provider.Handler, key string) (R, error)) (R, error) {
	deps := d.deps.Load()
	name := canonicalProvider(base.Provider)
	start := time.Now()

	res, err := dispatch(ctx, deps, m, name, base.APIKey, userID, invoke)

	rec := history.Record{
		UserID:      userID,
		Provider:    name,
		ModelID:     base.ModelID,
		Modality:    string(m),
		Prompt:      base.Prompt,
		Success:     err == nil,
		LatencyMS:   time.Since(start).Milliseconds(),
		RequestedAt: start,
	}
	if err != nil {
		normalized := provider.Normalize(err, name)
		rec.ErrorCode = normalized.Code
		log.WithFields(log.Fields{
			"provider": name,
			"model":    base.ModelID,
			"modality": string(m),
			"code":     normalized.Code,
			"category": normalized.Category.String(),
		}).Warn(normalized.Message)
		err = normalized
	} else {
		rec.URL = res.Asset()
	}
	if deps.Recorder != nil {
		deps.Recorder.Record(rec)
	}
	return res, err
}

func dispatch[R any](ctx context.Context, deps *Deps, m creative.Modality, name, explicitKey, userID string,
	invoke func(ctx context.Context, h provider.Handler, key string) (R, error)) (R, error) {
	var zero R

	if !deps.Capabilities.Supports(name, m) {
		return zero, provider.ProviderUnsupported(name, m)
	}

	key := strings.TrimSpace(explicitKey)
	if key == "" {
		resolved, ok := deps.Credentials.Resolve(ctx, name, userID)
		if !ok {
			return zero, provider.MissingCredential(name)
		}
		key = resolved
	}

	h, ok := deps.Handlers.Get(name)
	if !ok || !provider.Serves(h, m) {
		return zero, provider.UnsupportedProvider(name, m)
	}

	return util.WithRetry(ctx, deps.Retry, fmt.Sprintf("%s %s", name, m.Noun()), func(ctx context.Context) (R, error) {
		if deps.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, deps.Timeout)
			defer cancel()
		}
		return invoke(ctx, h, key)
	})
}
