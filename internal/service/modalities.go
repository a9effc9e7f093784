package service

import (
	"context"

	"github.com/nghyane/creative-mux/internal/creative"
	"github.com/nghyane/creative-mux/internal/provider"
)

// Image dispatches image generation requests.
type Image struct{ d *Dispatcher }

func (s *Image) Generate(ctx context.Context, opts creative.ImageOptions, userID string) (creative.ImageResult, error) {
	opts.Provider = canonicalProvider(opts.Provider)
	return run(ctx, s.d, creative.ModalityImage, opts.BaseOptions, userID,
		func(ctx context.Context, h provider.Handler, key string) (creative.ImageResult, error) {
			return h.(provider.ImageGenerator).GenerateImage(ctx, key, opts)
		})
}

// Video dispatches video generation requests.
type Video struct{ d *Dispatcher }

func (s *Video) Generate(ctx context.Context, opts creative.VideoOptions, userID string) (creative.VideoResult, error) {
	opts.Provider = canonicalProvider(opts.Provider)
	return run(ctx, s.d, creative.ModalityVideo, opts.BaseOptions, userID,
		func(ctx context.Context, h provider.Handler, key string) (creative.VideoResult, error) {
			return h.(provider.VideoGenerator).GenerateVideo(ctx, key, opts)
		})
}

// Audio dispatches audio generation requests.
type Audio struct{ d *Dispatcher }

func (s *Audio) Generate(ctx context.Context, opts creative.AudioOptions, userID string) (creative.AudioResult, error) {
	opts.Provider = canonicalProvider(opts.Provider)
	return run(ctx, s.d, creative.ModalityAudio, opts.BaseOptions, userID,
		func(ctx context.Context, h provider.Handler, key string) (creative.AudioResult, error) {
			return h.(provider.AudioGenerator).GenerateAudio(ctx, key, opts)
		})
}

// Edit dispatches image editing requests.
type Edit struct{ d *Dispatcher }

func (s *Edit) Generate(ctx context.Context, opts creative.EditOptions, userID string) (creative.ImageResult, error) {
	opts.Provider = canonicalProvider(opts.Provider)
	return run(ctx, s.d, creative.ModalityEditing, opts.BaseOptions, userID,
		func(ctx context.Context, h provider.Handler, key string) (creative.ImageResult, error) {
			return h.(provider.ImageEditor).EditImage(ctx, key, opts)
		})
}
