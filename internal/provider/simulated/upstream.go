package simulated

import (
	"context"
	"hash/fnv"
	"net/http"
	"time"

	"github.com/nghyane/creative-mux/internal/config"
	"github.com/nghyane/creative-mux/internal/creative"
	log "github.com/nghyane/creative-mux/internal/logging"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Operation names the upstream endpoint a payload is sent to.
type Operation string

const (
	OpImage Operation = "images/generations"
	OpEdit  Operation = "images/edits"
	OpVideo Operation = "videos/generations"
	OpAudio Operation = "audio/generations"
)

// Upstream carries a provider payload to the generation API and returns the raw answer.
// A real HTTP integration implements this interface; the handler stays unchanged.
type Upstream interface {
	Do(ctx context.Context, op Operation, key string, payload []byte) (status int, body []byte, err error)
}

// UpstreamFunc adapts a function to Upstream.
type UpstreamFunc func(ctx context.Context, op Operation, key string, payload []byte) (int, []byte, error)

func (f UpstreamFunc) Do(ctx context.Context, op Operation, key string, payload []byte) (int, []byte, error) {
	return f(ctx, op, key, payload)
}

// placeholder answers every call with the configured canned asset after the configured delay.
type placeholder struct {
	provider config.Provider
	now      func() time.Time
}

func (p placeholder) Do(ctx context.Context, op Operation, key string, payload []byte) (int, []byte, error) {
	log.Debugf("simulating %s %s (key %s)", p.provider.Name, op, log.HideAPIKey(key))

	if d := time.Duration(p.provider.LatencyMS) * time.Millisecond; d > 0 {
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return 0, nil, ctx.Err()
		case <-timer.C:
		}
	}

	ph := p.provider.Placeholders
	body := []byte(`{}`)
	body, _ = sjson.SetBytes(body, "created", p.now().Unix())

	switch op {
	case OpImage, OpEdit:
		if ph.ImageURL == "" {
			return notFound(op)
		}
		mime := ph.ImageMime
		if mime == "" {
			mime = "image/png"
		}
		body, _ = sjson.SetBytes(body, "data.0.url", ph.ImageURL)
		body, _ = sjson.SetBytes(body, "data.0.mime_type", mime)
		body, _ = sjson.SetBytes(body, "data.0.seed", seedFor(gjson.GetBytes(payload, "prompt").String()))
	case OpVideo:
		if ph.VideoURL == "" {
			return notFound(op)
		}
		body, _ = sjson.SetBytes(body, "status", "succeeded")
		body, _ = sjson.SetBytes(body, "output.url", ph.VideoURL)
		body, _ = sjson.SetBytes(body, "output.mime_type", "video/mp4")
	case OpAudio:
		url := ph.AudioURL
		if styled, ok := ph.AudioStyles[gjson.GetBytes(payload, "style").String()]; ok {
			url = styled
		}
		if url == "" {
			return notFound(op)
		}
		format := creative.AudioFormat(gjson.GetBytes(payload, "format").String())
		body, _ = sjson.SetBytes(body, "audio.url", url)
		body, _ = sjson.SetBytes(body, "audio.mime_type", format.MimeType())
	default:
		return notFound(op)
	}
	return http.StatusOK, body, nil
}

func notFound(op Operation) (int, []byte, error) {
	body, _ := sjson.SetBytes([]byte(`{}`), "error.message", "no placeholder asset for "+string(op))
	body, _ = sjson.SetBytes(body, "error.code", "not_found")
	return http.StatusNotFound, body, nil
}

// seedFor derives a stable seed from the prompt so repeated prompts echo the same seed.
func seedFor(prompt string) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(prompt))
	return int64(h.Sum32())
}
