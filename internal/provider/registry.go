package provider

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/nghyane/creative-mux/internal/creative"
)

// Registry maps provider names to handlers. It is safe for concurrent use; handlers may be
// swapped at runtime when the configuration is reloaded.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds h, replacing any handler with the same name.
func (r *Registry) Register(h Handler) {
	if h == nil {
		return
	}
	name := strings.ToLower(strings.TrimSpace(h.Name()))
	if name == "" {
		return
	}
	r.mu.Lock()
	r.handlers[name] = h
	r.mu.Unlock()
}

// Replace swaps the whole handler set at once.
func (r *Registry) Replace(hs ...Handler) {
	next := make(map[string]Handler, len(hs))
	for _, h := range hs {
		if h == nil {
			continue
		}
		if name := strings.ToLower(strings.TrimSpace(h.Name())); name != "" {
			next[name] = h
		}
	}
	r.mu.Lock()
	r.handlers = next
	r.mu.Unlock()
}

func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[strings.ToLower(strings.TrimSpace(name))]
	return h, ok
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// CapabilitySource is the read side of a capability table.
type CapabilitySource interface {
	Providers() []string
	Features(name string) []creative.Modality
}

// Mismatch is a capability advertised without a handler able to serve it.
type Mismatch struct {
	Provider string
	Feature  creative.Modality
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s advertises %s but no handler serves it", m.Provider, m.Feature)
}

// Check returns every (provider, feature) pair of caps that the registry cannot dispatch.
func (r *Registry) Check(caps CapabilitySource) []Mismatch {
	var out []Mismatch
	for _, name := range caps.Providers() {
		h, ok := r.Get(name)
		for _, f := range caps.Features(name) {
			if !ok || !Serves(h, f) {
				out = append(out, Mismatch{Provider: name, Feature: f})
			}
		}
	}
	return out
}
