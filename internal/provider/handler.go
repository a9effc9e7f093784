package provider

import (
	"context"
	"slices"

	"github.com/nghyane/creative-mux/internal/creative"
)

// Handler is a provider integration. A handler serves a modality when it lists it in
// Modalities and implements the matching generator interface below; the key argument is
// the resolved credential.
type Handler interface {
	Name() string
	Modalities() []creative.Modality
}

type ImageGenerator interface {
	GenerateImage(ctx context.Context, key string, opts creative.ImageOptions) (creative.ImageResult, error)
}

type VideoGenerator interface {
	GenerateVideo(ctx context.Context, key string, opts creative.VideoOptions) (creative.VideoResult, error)
}

type AudioGenerator interface {
	GenerateAudio(ctx context.Context, key string, opts creative.AudioOptions) (creative.AudioResult, error)
}

type ImageEditor interface {
	EditImage(ctx context.Context, key string, opts creative.EditOptions) (creative.ImageResult, error)
}

// Serves reports whether h both advertises m and implements its generator.
func Serves(h Handler, m creative.Modality) bool {
	if h == nil || !slices.Contains(h.Modalities(), m) {
		return false
	}
	switch m {
	case creative.ModalityImage:
		_, ok := h.(ImageGenerator)
		return ok
	case creative.ModalityVideo:
		_, ok := h.(VideoGenerator)
		return ok
	case creative.ModalityAudio:
		_, ok := h.(AudioGenerator)
		return ok
	case creative.ModalityEditing:
		_, ok := h.(ImageEditor)
		return ok
	}
	return false
}
