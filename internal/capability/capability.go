// Package capability answers which provider may serve which modality.
package capability

import (
	"slices"
	"sort"
	"strings"

	"github.com/nghyane/creative-mux/internal/config"
	"github.com/nghyane/creative-mux/internal/creative"
	log "github.com/nghyane/creative-mux/internal/logging"
)

// Registry is an immutable provider → feature table. Build a new one to change it.
type Registry struct {
	strict bool
	table  map[string][]creative.Modality
}

// New builds a registry from the configured provider list. In non-strict mode unknown
// providers are allowed every feature.
func New(providers []config.Provider, strict bool) *Registry {
	table := make(map[string][]creative.Modality, len(providers))
	for _, p := range providers {
		name := normalize(p.Name)
		if name == "" {
			continue
		}
		features := make([]creative.Modality, 0, len(p.Features))
		for _, f := range p.Features {
			m := creative.Modality(strings.ToLower(strings.TrimSpace(f)))
			if !slices.Contains(features, m) {
				features = append(features, m)
			}
		}
		table[name] = features
	}
	return &Registry{strict: strict, table: table}
}

// Supports reports whether provider may serve feature.
func (r *Registry) Supports(provider string, feature creative.Modality) bool {
	features, ok := r.table[normalize(provider)]
	if !ok {
		if r.strict {
			return false
		}
		log.Warnf("Provider %s not found in capability map. Allowing all features in development mode.", provider)
		return true
	}
	return slices.Contains(features, feature)
}

// Features returns a copy of the provider's feature list, nil when unknown.
func (r *Registry) Features(provider string) []creative.Modality {
	return slices.Clone(r.table[normalize(provider)])
}

// Providers returns the known provider names, sorted.
func (r *Registry) Providers() []string {
	out := make([]string, 0, len(r.table))
	for name := range r.table {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Restrict returns a copy of the table keeping only the pairs keep accepts. Providers left
// with no feature stay known, so strict mode still rejects them as unsupported rather than
// unknown.
func (r *Registry) Restrict(keep func(provider string, feature creative.Modality) bool) *Registry {
	table := make(map[string][]creative.Modality, len(r.table))
	for name, features := range r.table {
		kept := make([]creative.Modality, 0, len(features))
		for _, f := range features {
			if keep(name, f) {
				kept = append(kept, f)
			}
		}
		table[name] = kept
	}
	return &Registry{strict: r.strict, table: table}
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
