// Package simulated provides the stand-in provider handlers. Each handler builds the payload a
// real integration would send, hands it to an Upstream and decodes the answer; the default
// Upstream returns the configured placeholder assets after an artificial delay.
package simulated

import (
	"context"
	"net/http"
	"time"

	"github.com/nghyane/creative-mux/internal/config"
	"github.com/nghyane/creative-mux/internal/creative"
	"github.com/nghyane/creative-mux/internal/provider"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Handler serves every modality its placeholder catalog covers.
type Handler struct {
	cfg      config.Provider
	upstream Upstream
	now      func() time.Time
}

// Option customizes a Handler.
type Option func(*Handler)

// WithUpstream replaces the placeholder upstream.
func WithUpstream(u Upstream) Option {
	return func(h *Handler) { h.upstream = u }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// New returns a handler for the configured provider.
func New(p config.Provider, opts ...Option) *Handler {
	h := &Handler{cfg: p, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	if h.upstream == nil {
		h.upstream = placeholder{provider: p, now: h.now}
	}
	return h
}

// FromConfig builds one handler per provider that has at least one placeholder asset.
func FromConfig(providers []config.Provider, opts ...Option) []provider.Handler {
	out := make([]provider.Handler, 0, len(providers))
	for _, p := range providers {
		h := New(p, opts...)
		if len(h.Modalities()) == 0 {
			continue
		}
		out = append(out, h)
	}
	return out
}

func (h *Handler) Name() string { return h.cfg.Name }

// Modalities lists what the placeholder catalog can answer.
func (h *Handler) Modalities() []creative.Modality {
	ph := h.cfg.Placeholders
	var out []creative.Modality
	if ph.ImageURL != "" {
		out = append(out, creative.ModalityImage, creative.ModalityEditing)
	}
	if ph.VideoURL != "" {
		out = append(out, creative.ModalityVideo)
	}
	if ph.AudioURL != "" || len(ph.AudioStyles) > 0 {
		out = append(out, creative.ModalityAudio)
	}
	return out
}

func (h *Handler) GenerateImage(ctx context.Context, key string, opts creative.ImageOptions) (creative.ImageResult, error) {
	payload := []byte(`{"n":1}`)
	payload, _ = sjson.SetBytes(payload, "model", opts.ModelID)
	payload, _ = sjson.SetBytes(payload, "prompt", opts.Prompt)
	payload, _ = sjson.SetBytes(payload, "size", opts.Size)
	quality := "standard"
	if opts.Quality >= 100 {
		quality = "hd"
	}
	payload, _ = sjson.SetBytes(payload, "quality", quality)
	if opts.Style != "" {
		payload, _ = sjson.SetBytes(payload, "style", opts.Style)
	}
	if opts.NegativePrompt != "" {
		payload, _ = sjson.SetBytes(payload, "negative_prompt", opts.NegativePrompt)
	}
	if opts.PreserveFacialFeatures {
		payload, _ = sjson.SetBytes(payload, "preserve_faces", true)
	}
	if len(opts.ReferenceImages) > 0 {
		payload, _ = sjson.SetBytes(payload, "reference_images", opts.ReferenceImages)
	}

	body, err := h.call(ctx, OpImage, key, payload)
	if err != nil {
		return creative.ImageResult{}, err
	}
	return h.imageResult(body, opts.BaseOptions, opts.Size)
}

func (h *Handler) EditImage(ctx context.Context, key string, opts creative.EditOptions) (creative.ImageResult, error) {
	payload := []byte(`{"n":1}`)
	payload, _ = sjson.SetBytes(payload, "model", opts.ModelID)
	payload, _ = sjson.SetBytes(payload, "prompt", opts.Prompt)
	payload, _ = sjson.SetBytes(payload, "image", opts.Image)
	if opts.Mask != "" {
		payload, _ = sjson.SetBytes(payload, "mask", opts.Mask)
	}
	if opts.Size != "" {
		payload, _ = sjson.SetBytes(payload, "size", opts.Size)
	}

	body, err := h.call(ctx, OpEdit, key, payload)
	if err != nil {
		return creative.ImageResult{}, err
	}
	return h.imageResult(body, opts.BaseOptions, opts.Size)
}

func (h *Handler) GenerateVideo(ctx context.Context, key string, opts creative.VideoOptions) (creative.VideoResult, error) {
	payload := []byte(`{}`)
	payload, _ = sjson.SetBytes(payload, "model", opts.ModelID)
	payload, _ = sjson.SetBytes(payload, "prompt", opts.Prompt)
	payload, _ = sjson.SetBytes(payload, "duration", opts.Duration)
	payload, _ = sjson.SetBytes(payload, "fps", opts.FPS)
	payload, _ = sjson.SetBytes(payload, "resolution", opts.Resolution)
	if opts.Style != "" {
		payload, _ = sjson.SetBytes(payload, "style", opts.Style)
	}
	if opts.AudioPrompt != "" {
		payload, _ = sjson.SetBytes(payload, "audio.prompt", opts.AudioPrompt)
	}

	body, err := h.call(ctx, OpVideo, key, payload)
	if err != nil {
		return creative.VideoResult{}, err
	}
	url := gjson.GetBytes(body, "output.url").String()
	if url == "" {
		return creative.VideoResult{}, malformed(body)
	}
	width, height := creative.ParseDimensions(opts.Resolution, 1280, 720)
	return creative.VideoResult{
		URL:         url,
		MimeType:    stringOr(gjson.GetBytes(body, "output.mime_type"), "video/mp4"),
		Width:       width,
		Height:      height,
		Duration:    opts.Duration,
		FPS:         opts.FPS,
		Prompt:      opts.Prompt,
		ModelID:     opts.ModelID,
		Provider:    opts.Provider,
		GeneratedAt: h.now(),
	}, nil
}

func (h *Handler) GenerateAudio(ctx context.Context, key string, opts creative.AudioOptions) (creative.AudioResult, error) {
	payload := []byte(`{}`)
	payload, _ = sjson.SetBytes(payload, "model", opts.ModelID)
	payload, _ = sjson.SetBytes(payload, "prompt", opts.Prompt)
	payload, _ = sjson.SetBytes(payload, "duration", opts.Duration)
	if opts.SampleRate > 0 {
		payload, _ = sjson.SetBytes(payload, "sample_rate", opts.SampleRate)
	}
	if opts.Format != "" {
		payload, _ = sjson.SetBytes(payload, "format", string(opts.Format))
	}
	if opts.Style != "" {
		payload, _ = sjson.SetBytes(payload, "style", opts.Style)
	}

	body, err := h.call(ctx, OpAudio, key, payload)
	if err != nil {
		return creative.AudioResult{}, err
	}
	url := gjson.GetBytes(body, "audio.url").String()
	if url == "" {
		return creative.AudioResult{}, malformed(body)
	}
	return creative.AudioResult{
		URL:         url,
		MimeType:    stringOr(gjson.GetBytes(body, "audio.mime_type"), opts.Format.MimeType()),
		Duration:    opts.Duration,
		Prompt:      opts.Prompt,
		ModelID:     opts.ModelID,
		Provider:    opts.Provider,
		GeneratedAt: h.now(),
	}, nil
}

// call sends payload upstream and turns non-success answers into provider.StatusError.
func (h *Handler) call(ctx context.Context, op Operation, key string, payload []byte) ([]byte, error) {
	status, body, err := h.upstream.Do(ctx, op, key, payload)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, provider.NewStatusError(status, gjson.GetBytes(body, "error.message").String(), body, retryAfter(body))
	}
	return body, nil
}

func (h *Handler) imageResult(body []byte, base creative.BaseOptions, size string) (creative.ImageResult, error) {
	first := gjson.GetBytes(body, "data.0")
	url := first.Get("url").String()
	b64 := first.Get("b64_json").String()
	if url == "" && b64 == "" {
		return creative.ImageResult{}, malformed(body)
	}
	width, height := creative.ParseDimensions(size, 1024, 1024)
	res := creative.ImageResult{
		URL:         url,
		Base64:      b64,
		MimeType:    stringOr(first.Get("mime_type"), "image/png"),
		Width:       width,
		Height:      height,
		Prompt:      base.Prompt,
		ModelID:     base.ModelID,
		Provider:    base.Provider,
		GeneratedAt: h.now(),
	}
	if seed := first.Get("seed"); seed.Exists() {
		v := seed.Int()
		res.Seed = &v
	}
	return res, nil
}

func malformed(body []byte) error {
	return provider.NewStatusError(http.StatusBadGateway, "malformed provider response", body, nil)
}

func retryAfter(body []byte) *time.Duration {
	d := provider.ParseRetryAfter(gjson.GetBytes(body, "error.retry_after").String())
	if d <= 0 {
		return nil
	}
	return &d
}

func stringOr(r gjson.Result, fallback string) string {
	if s := r.String(); s != "" {
		return s
	}
	return fallback
}
