package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nghyane/creative-mux/internal/credentials"
	log "github.com/nghyane/creative-mux/internal/logging"
)

// KeyStore is the per-user credential store behind /api/keys.
type KeyStore interface {
	Set(ctx context.Context, userID, category, key string) error
	Delete(ctx context.Context, userID, category string) error
	List(ctx context.Context, userID string) ([]credentials.StoredKey, error)
}

// KeysHandler manages the caller's stored API keys.
type KeysHandler struct {
	*BaseHandler
	Store KeyStore
}

type maskedKey struct {
	Category  string    `json:"category"`
	Key       string    `json:"key"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// List handles GET /api/keys.
func (h *KeysHandler) List(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	keys, err := h.Store.List(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]maskedKey, 0, len(keys))
	for _, k := range keys {
		out = append(out, maskedKey{Category: k.Category, Key: log.HideAPIKey(k.Key), UpdatedAt: k.UpdatedAt})
	}
	writeJSON(c, http.StatusOK, gin.H{"keys": out})
}

// Put handles PUT /api/keys/:category.
func (h *KeysHandler) Put(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	var body struct {
		Key string `json:"key"`
	}
	if err := decodeBody(c, &body); err != nil {
		writeError(c, err)
		return
	}
	category := strings.ToLower(strings.TrimSpace(c.Param("category")))
	if category == "" || strings.TrimSpace(body.Key) == "" {
		writeValidation(c, "Missing required fields: category and key are required")
		return
	}
	if err := h.Store.Set(c.Request.Context(), userID, category, body.Key); err != nil {
		writeError(c, err)
		return
	}
	log.Infof("stored %s key %s for user %s", category, log.HideAPIKey(body.Key), userID)
	writeJSON(c, http.StatusOK, gin.H{"category": category, "key": log.HideAPIKey(strings.TrimSpace(body.Key))})
}

// Delete handles DELETE /api/keys/:category.
func (h *KeysHandler) Delete(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	category := strings.ToLower(strings.TrimSpace(c.Param("category")))
	err := h.Store.Delete(c.Request.Context(), userID, category)
	if errors.Is(err, credentials.ErrNotFound) {
		writeJSON(c, http.StatusNotFound, ErrorResponse{Error: "No key stored for " + category, Code: "not_found"})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
