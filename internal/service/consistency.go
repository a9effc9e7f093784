package service

import (
	"github.com/nghyane/creative-mux/internal/capability"
	"github.com/nghyane/creative-mux/internal/creative"
	log "github.com/nghyane/creative-mux/internal/logging"
	"github.com/nghyane/creative-mux/internal/provider"
)

// CheckConsistency compares the capability table with the registered handlers and returns the
// table dispatch should use together with every advertised (provider, feature) pair no handler
// serves. In strict mode those pairs are dropped from the returned table, so requests for them
// fail as provider_unsupported; otherwise they are only logged.
func CheckConsistency(caps *capability.Registry, handlers *provider.Registry, strict bool) (*capability.Registry, []provider.Mismatch) {
	mismatches := handlers.Check(caps)
	if len(mismatches) == 0 {
		return caps, nil
	}
	for _, m := range mismatches {
		if strict {
			log.Warnf("capability table: %s, dropping it", m)
		} else {
			log.Warnf("capability table: %s", m)
		}
	}
	if !strict {
		return caps, mismatches
	}
	unserved := make(map[provider.Mismatch]struct{}, len(mismatches))
	for _, m := range mismatches {
		unserved[m] = struct{}{}
	}
	return caps.Restrict(func(name string, feature creative.Modality) bool {
		_, drop := unserved[provider.Mismatch{Provider: name, Feature: feature}]
		return !drop
	}), mismatches
}
