package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nghyane/creative-mux/internal/config"
	"github.com/nghyane/creative-mux/internal/creative"
	"github.com/nghyane/creative-mux/internal/history"
	"github.com/nghyane/creative-mux/internal/provider"
)

// HandlerLookup finds the registered handler of a provider.
type HandlerLookup interface {
	Get(name string) (provider.Handler, bool)
}

// ProviderInfo describes one configured provider.
type ProviderInfo struct {
	Name               string              `json:"name"`
	Features           []string            `json:"features"`
	Handlers           []creative.Modality `json:"handlers"`
	CredentialCategory string              `json:"credentialCategory"`
	FallbackKey        bool                `json:"fallbackKey"`
}

// CatalogHandler lists providers and the caller's generation history.
type CatalogHandler struct {
	*BaseHandler
	Config    func() *config.Config
	Handlers  HandlerLookup
	History   HistoryReader
	LookupEnv func(string) (string, bool)
}

// HistoryReader reads persisted generation records.
type HistoryReader interface {
	Recent(ctx context.Context, userID string, limit int) ([]history.Record, error)
}

// Providers handles GET /api/creative/providers.
func (h *CatalogHandler) Providers(c *gin.Context) {
	cfg := h.Config()
	out := make([]ProviderInfo, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		info := ProviderInfo{
			Name:               p.Name,
			Features:           p.Features,
			Handlers:           []creative.Modality{},
			CredentialCategory: p.Category(),
			FallbackKey:        strings.TrimSpace(p.APIKey) != "",
		}
		if !info.FallbackKey && h.LookupEnv != nil {
			v, ok := h.LookupEnv(p.EnvVar())
			info.FallbackKey = ok && strings.TrimSpace(v) != ""
		}
		if handler, ok := h.Handlers.Get(p.Name); ok {
			for _, m := range []creative.Modality{creative.ModalityImage, creative.ModalityVideo, creative.ModalityAudio, creative.ModalityEditing} {
				if provider.Serves(handler, m) {
					info.Handlers = append(info.Handlers, m)
				}
			}
		}
		out = append(out, info)
	}
	writeJSON(c, http.StatusOK, gin.H{"providers": out, "strict": cfg.Strict})
}

// History handles GET /api/creative/history.
func (h *CatalogHandler) History(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	if h.History == nil {
		writeJSON(c, http.StatusNotFound, ErrorResponse{Error: "History is disabled", Code: "not_found"})
		return
	}
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeValidation(c, "limit must be a positive integer")
			return
		}
		limit = n
	}
	records, err := h.History.Recent(c.Request.Context(), userID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"records": records})
}
