package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nghyane/creative-mux/internal/api/handlers"
)

// setupRoutes registers the generation, catalog and key-management endpoints.
func (s *Server) setupRoutes() {
	base := &handlers.BaseHandler{Sessions: s.sessions}
	creativeHandlers := &handlers.CreativeHandler{
		BaseHandler: base,
		Images:      s.services.Images,
		Videos:      s.services.Videos,
		Audio:       s.services.Audio,
		Edits:       s.services.Edits,
	}
	catalogHandlers := &handlers.CatalogHandler{
		BaseHandler: base,
		Config:      s.currentConfig,
		Handlers:    s.services.Handlers,
		History:     s.services.History,
		LookupEnv:   s.opts.lookupEnv,
	}

	s.engine.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Creative generation gateway",
			"endpoints": []string{
				"POST /api/creative/image",
				"POST /api/creative/image/edit",
				"POST /api/creative/video",
				"POST /api/creative/audio",
				"GET /api/creative/providers",
			},
		})
	})
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	creative := s.engine.Group("/api/creative")
	{
		creative.POST("/image", creativeHandlers.GenerateImage)
		creative.POST("/image/edit", creativeHandlers.EditImage)
		creative.POST("/video", creativeHandlers.GenerateVideo)
		creative.POST("/audio", creativeHandlers.GenerateAudio)
		creative.GET("/providers", catalogHandlers.Providers)
		creative.GET("/history", catalogHandlers.History)
	}

	if s.services.Keys != nil {
		keyHandlers := &handlers.KeysHandler{BaseHandler: base, Store: s.services.Keys}
		keys := s.engine.Group("/api/keys")
		{
			keys.GET("", keyHandlers.List)
			keys.PUT("/:category", keyHandlers.Put)
			keys.DELETE("/:category", keyHandlers.Delete)
		}
	}
}
