package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nghyane/creative-mux/internal/creative"
	"github.com/nghyane/creative-mux/internal/provider"
)

const (
	missingFieldsMessage     = "Missing required fields: provider, modelId, and prompt are required"
	missingEditFieldsMessage = "Missing required fields: provider, modelId, prompt, and image are required"

	defaultImageSize       = "1024x1024"
	defaultImageQuality    = 75
	defaultVideoDuration   = 5
	defaultVideoFPS        = 24
	defaultVideoResolution = "1280x720"
	defaultAudioDuration   = 30
)

type ImageService interface {
	Generate(ctx context.Context, opts creative.ImageOptions, userID string) (creative.ImageResult, error)
}

type VideoService interface {
	Generate(ctx context.Context, opts creative.VideoOptions, userID string) (creative.VideoResult, error)
}

type AudioService interface {
	Generate(ctx context.Context, opts creative.AudioOptions, userID string) (creative.AudioResult, error)
}

type EditService interface {
	Generate(ctx context.Context, opts creative.EditOptions, userID string) (creative.ImageResult, error)
}

// CreativeHandler serves the generation endpoints.
type CreativeHandler struct {
	*BaseHandler
	Images ImageService
	Videos VideoService
	Audio  AudioService
	Edits  EditService
}

func hasRequired(b creative.BaseOptions) bool {
	return strings.TrimSpace(b.Provider) != "" && strings.TrimSpace(b.ModelID) != "" && strings.TrimSpace(b.Prompt) != ""
}

// GenerateImage handles POST /api/creative/image.
func (h *CreativeHandler) GenerateImage(c *gin.Context) {
	userID := h.optionalUser(c)

	var opts creative.ImageOptions
	if err := decodeBody(c, &opts); err != nil {
		writeError(c, err)
		return
	}
	if !hasRequired(opts.BaseOptions) {
		writeValidation(c, missingFieldsMessage)
		return
	}
	if opts.Size == "" {
		opts.Size = defaultImageSize
	}
	if opts.Quality == 0 {
		opts.Quality = defaultImageQuality
	}
	if opts.Quality < 0 || opts.Quality > 100 {
		writeError(c, provider.ValidationError("quality must be between 0 and 100"))
		return
	}

	res, err := h.Images.Generate(c.Request.Context(), opts, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

// GenerateVideo handles POST /api/creative/video.
func (h *CreativeHandler) GenerateVideo(c *gin.Context) {
	userID := h.optionalUser(c)

	var opts creative.VideoOptions
	if err := decodeBody(c, &opts); err != nil {
		writeError(c, err)
		return
	}
	if !hasRequired(opts.BaseOptions) {
		writeValidation(c, missingFieldsMessage)
		return
	}
	if opts.Duration == 0 {
		opts.Duration = defaultVideoDuration
	}
	if opts.FPS == 0 {
		opts.FPS = defaultVideoFPS
	}
	if opts.Resolution == "" {
		opts.Resolution = defaultVideoResolution
	}
	if opts.Duration < 0 || opts.FPS < 0 {
		writeError(c, provider.ValidationError("duration and fps must be positive"))
		return
	}

	res, err := h.Videos.Generate(c.Request.Context(), opts, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

// GenerateAudio handles POST /api/creative/audio.
func (h *CreativeHandler) GenerateAudio(c *gin.Context) {
	userID := h.optionalUser(c)

	var opts creative.AudioOptions
	if err := decodeBody(c, &opts); err != nil {
		writeError(c, err)
		return
	}
	if !hasRequired(opts.BaseOptions) {
		writeValidation(c, missingFieldsMessage)
		return
	}
	if opts.Duration == 0 {
		opts.Duration = defaultAudioDuration
	}
	if opts.Duration < 0 || opts.SampleRate < 0 {
		writeError(c, provider.ValidationError("duration and sampleRate must be positive"))
		return
	}
	opts.Format = creative.AudioFormat(strings.ToLower(string(opts.Format)))
	if !opts.Format.IsValid() {
		writeError(c, provider.ValidationError(fmt.Sprintf("Unsupported audio format: %s", opts.Format)))
		return
	}

	res, err := h.Audio.Generate(c.Request.Context(), opts, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

// EditImage handles POST /api/creative/image/edit.
func (h *CreativeHandler) EditImage(c *gin.Context) {
	userID := h.optionalUser(c)

	var opts creative.EditOptions
	if err := decodeBody(c, &opts); err != nil {
		writeError(c, err)
		return
	}
	if !hasRequired(opts.BaseOptions) || strings.TrimSpace(opts.Image) == "" {
		writeValidation(c, missingEditFieldsMessage)
		return
	}

	res, err := h.Edits.Generate(c.Request.Context(), opts, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}
