package simulated

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/nghyane/creative-mux/internal/config"
	"github.com/nghyane/creative-mux/internal/creative"
	"github.com/nghyane/creative-mux/internal/provider"
	"github.com/tidwall/gjson"
)

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func defaultProvider(t *testing.T, name string) config.Provider {
	t.Helper()
	for _, p := range config.DefaultProviders() {
		if p.Name == name {
			p.LatencyMS = 0
			return p
		}
	}
	t.Fatalf("no default provider %s", name)
	return config.Provider{}
}

func TestGenerateImage_Placeholder(t *testing.T) {
	h := New(defaultProvider(t, "openai"), WithClock(func() time.Time { return fixedNow }))
	res, err := h.GenerateImage(context.Background(), "sk-test", creative.ImageOptions{
		BaseOptions: creative.BaseOptions{Provider: "openai", ModelID: "dall-e-3", Prompt: "a red fox in snow"},
		Size:        "1024x1024",
		Quality:     90,
	})
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if res.Provider != "openai" || res.ModelID != "dall-e-3" {
		t.Errorf("Expected request identity to round-trip, got %s/%s", res.Provider, res.ModelID)
	}
	if res.Width != 1024 || res.Height != 1024 {
		t.Errorf("Expected 1024x1024, got %dx%d", res.Width, res.Height)
	}
	if res.URL == "" || res.MimeType != "image/jpeg" {
		t.Errorf("Unexpected asset %q (%s)", res.URL, res.MimeType)
	}
	if res.Seed == nil {
		t.Error("Expected a seed")
	}
	if !res.GeneratedAt.Equal(fixedNow) {
		t.Errorf("Expected generatedAt %v, got %v", fixedNow, res.GeneratedAt)
	}
}

func TestGenerateImage_PayloadShape(t *testing.T) {
	var seen []byte
	var seenKey string
	up := UpstreamFunc(func(_ context.Context, op Operation, key string, payload []byte) (int, []byte, error) {
		if op != OpImage {
			t.Errorf("Expected %s, got %s", OpImage, op)
		}
		seen, seenKey = payload, key
		return http.StatusOK, []byte(`{"data":[{"b64_json":"aGk="}]}`), nil
	})
	h := New(defaultProvider(t, "stability"), WithUpstream(up))
	res, err := h.GenerateImage(context.Background(), "sk-x", creative.ImageOptions{
		BaseOptions:     creative.BaseOptions{Provider: "stability", ModelID: "sdxl", Prompt: "p"},
		Size:            "bad",
		Quality:         100,
		NegativePrompt:  "blur",
		ReferenceImages: []string{"a", "b"},
	})
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if seenKey != "sk-x" {
		t.Errorf("Expected key to reach upstream, got %q", seenKey)
	}
	checks := map[string]string{
		"model":              "sdxl",
		"quality":            "hd",
		"negative_prompt":    "blur",
		"reference_images.1": "b",
		"n":                  "1",
	}
	for path, want := range checks {
		if got := gjson.GetBytes(seen, path).String(); got != want {
			t.Errorf("payload %s = %q, want %q", path, got, want)
		}
	}
	if res.Base64 != "aGk=" || res.MimeType != "image/png" {
		t.Errorf("Unexpected result %+v", res)
	}
	if res.Width != 1024 || res.Height != 1024 {
		t.Errorf("Expected fallback dimensions, got %dx%d", res.Width, res.Height)
	}
}

func TestGenerateVideo_Dimensions(t *testing.T) {
	h := New(defaultProvider(t, "stability"))
	res, err := h.GenerateVideo(context.Background(), "k", creative.VideoOptions{
		BaseOptions: creative.BaseOptions{Provider: "stability", ModelID: "gen-2", Prompt: "drone shot"},
		Duration:    5,
		FPS:         24,
		Resolution:  "1280x720",
	})
	if err != nil {
		t.Fatalf("GenerateVideo: %v", err)
	}
	if res.Width != 1280 || res.Height != 720 || res.FPS != 24 || res.Duration != 5 {
		t.Errorf("Unexpected video %+v", res)
	}
	if res.MimeType != "video/mp4" {
		t.Errorf("Expected video/mp4, got %s", res.MimeType)
	}
}

func TestGenerateAudio_StyleSelectsAsset(t *testing.T) {
	p := defaultProvider(t, "openai")
	h := New(p)
	tests := []struct {
		style string
		want  string
	}{
		{"", p.Placeholders.AudioURL},
		{"music", p.Placeholders.AudioURL},
		{"voice", p.Placeholders.AudioStyles["voice"]},
		{"sound-effects", p.Placeholders.AudioStyles["sound-effects"]},
	}
	for _, tt := range tests {
		res, err := h.GenerateAudio(context.Background(), "k", creative.AudioOptions{
			BaseOptions: creative.BaseOptions{Provider: "openai", ModelID: "audio-gen", Prompt: "p"},
			Duration:    30,
			Style:       tt.style,
			Format:      creative.AudioWAV,
		})
		if err != nil {
			t.Fatalf("GenerateAudio(%q): %v", tt.style, err)
		}
		if res.URL != tt.want {
			t.Errorf("style %q: expected %s, got %s", tt.style, tt.want, res.URL)
		}
		if res.MimeType != "audio/wav" || res.Duration != 30 {
			t.Errorf("Unexpected audio %+v", res)
		}
	}
}

func TestCall_ErrorBodyBecomesStatusError(t *testing.T) {
	up := UpstreamFunc(func(context.Context, Operation, string, []byte) (int, []byte, error) {
		return http.StatusTooManyRequests, []byte(`{"error":{"message":"Rate limit reached","code":"rate_limit_exceeded","retry_after":2}}`), nil
	})
	h := New(defaultProvider(t, "openai"), WithUpstream(up))
	_, err := h.GenerateImage(context.Background(), "k", creative.ImageOptions{BaseOptions: creative.BaseOptions{Provider: "openai"}})
	var se provider.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("Expected StatusError, got %T", err)
	}
	if se.StatusCode() != http.StatusTooManyRequests || se.Category() != provider.CategoryQuotaError {
		t.Errorf("Unexpected status error %d/%s", se.StatusCode(), se.Category())
	}
	if ra := se.RetryAfter(); ra == nil || *ra != 2*time.Second {
		t.Errorf("Expected retry-after 2s, got %v", ra)
	}
	n := provider.Normalize(err, "openai")
	if n.Code != "rate_limit_exceeded" || n.Message != "openai: Rate limit reached" {
		t.Errorf("Unexpected normalized error %+v", n)
	}
}

func TestCall_MalformedResponse(t *testing.T) {
	up := UpstreamFunc(func(context.Context, Operation, string, []byte) (int, []byte, error) {
		return http.StatusOK, []byte(`{"status":"succeeded"}`), nil
	})
	h := New(defaultProvider(t, "google"), WithUpstream(up))
	_, err := h.GenerateVideo(context.Background(), "k", creative.VideoOptions{})
	var se provider.StatusError
	if !errors.As(err, &se) || se.StatusCode() != http.StatusBadGateway {
		t.Errorf("Expected 502 StatusError, got %v", err)
	}
}

func TestPlaceholder_HonorsCancellation(t *testing.T) {
	p := defaultProvider(t, "local")
	p.LatencyMS = 60_000
	h := New(p)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := h.GenerateAudio(ctx, "", creative.AudioOptions{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Expected the simulated delay to stop at the deadline")
	}
}

func TestModalitiesFollowCatalog(t *testing.T) {
	handlers := FromConfig(config.DefaultProviders())
	got := map[string][]creative.Modality{}
	for _, h := range handlers {
		got[h.Name()] = h.Modalities()
	}
	if _, ok := got["meta"]; ok {
		t.Error("Expected meta to have no handler")
	}
	if !provider.Serves(New(defaultProvider(t, "stability")), creative.ModalityEditing) {
		t.Error("Expected stability to serve editing")
	}
	local := New(defaultProvider(t, "local"))
	if provider.Serves(local, creative.ModalityImage) {
		t.Error("Expected local to lack an image placeholder")
	}
	if !provider.Serves(local, creative.ModalityVideo) || !provider.Serves(local, creative.ModalityAudio) {
		t.Error("Expected local to serve video and audio")
	}
}
