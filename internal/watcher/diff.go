package watcher

import (
	"fmt"
	"slices"

	"github.com/nghyane/creative-mux/internal/config"
)

// changeDetails lists the material differences between two configurations.
func changeDetails(oldCfg, newCfg *config.Config) []string {
	if oldCfg == nil || newCfg == nil {
		return nil
	}
	var details []string
	if oldCfg.Debug != newCfg.Debug {
		details = append(details, fmt.Sprintf("debug: %t -> %t", oldCfg.Debug, newCfg.Debug))
	}
	if oldCfg.Strict != newCfg.Strict {
		details = append(details, fmt.Sprintf("strict: %t -> %t", oldCfg.Strict, newCfg.Strict))
	}
	if oldCfg.ProviderTimeout != newCfg.ProviderTimeout {
		details = append(details, fmt.Sprintf("provider-timeout: %d -> %d", oldCfg.ProviderTimeout, newCfg.ProviderTimeout))
	}
	if oldCfg.RequestRetry != newCfg.RequestRetry {
		details = append(details, fmt.Sprintf("request-retry: %d -> %d", oldCfg.RequestRetry, newCfg.RequestRetry))
	}
	if len(oldCfg.Sessions) != len(newCfg.Sessions) {
		details = append(details, fmt.Sprintf("sessions: %d -> %d", len(oldCfg.Sessions), len(newCfg.Sessions)))
	}

	oldByName := make(map[string]config.Provider, len(oldCfg.Providers))
	for _, p := range oldCfg.Providers {
		oldByName[p.Name] = p
	}
	for _, p := range newCfg.Providers {
		prev, ok := oldByName[p.Name]
		if !ok {
			details = append(details, fmt.Sprintf("provider %s: added %v", p.Name, p.Features))
			continue
		}
		delete(oldByName, p.Name)
		if !slices.Equal(prev.Features, p.Features) {
			details = append(details, fmt.Sprintf("provider %s: features %v -> %v", p.Name, prev.Features, p.Features))
		}
		if prev.Category() != p.Category() {
			details = append(details, fmt.Sprintf("provider %s: credential category %s -> %s", p.Name, prev.Category(), p.Category()))
		}
		if prev.APIKey != p.APIKey {
			details = append(details, fmt.Sprintf("provider %s: fallback key changed", p.Name))
		}
	}
	removed := make([]string, 0, len(oldByName))
	for name := range oldByName {
		removed = append(removed, name)
	}
	slices.Sort(removed)
	for _, name := range removed {
		details = append(details, fmt.Sprintf("provider %s: removed", name))
	}
	return details
}
