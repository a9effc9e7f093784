// Package creative holds the request and result contracts shared by every generation modality.
// Values are built per request and never shared between requests.
package creative

import (
	"strconv"
	"strings"
	"time"
)

// Modality is the kind of media a request produces. Its values double as capability features.
type Modality string

const (
	ModalityImage   Modality = "image"
	ModalityVideo   Modality = "video"
	ModalityAudio   Modality = "audio"
	ModalityEditing Modality = "editing"
)

// Noun is the human wording used in error messages ("image generation", "image editing").
func (m Modality) Noun() string {
	if m == ModalityEditing {
		return "image editing"
	}
	return string(m) + " generation"
}

// AudioFormat is the container requested for generated audio.
type AudioFormat string

const (
	AudioMP3 AudioFormat = "mp3"
	AudioWAV AudioFormat = "wav"
	AudioOGG AudioFormat = "ogg"
)

// IsValid reports whether f is one of the supported formats. The empty format is valid
// and means "provider default".
func (f AudioFormat) IsValid() bool {
	switch f {
	case "", AudioMP3, AudioWAV, AudioOGG:
		return true
	}
	return false
}

// MimeType returns the media type for f, defaulting to mp3.
func (f AudioFormat) MimeType() string {
	switch f {
	case AudioWAV:
		return "audio/wav"
	case AudioOGG:
		return "audio/ogg"
	}
	return "audio/mp3"
}

// BaseOptions are the fields common to every modality.
type BaseOptions struct {
	Provider string `json:"provider"`
	ModelID  string `json:"modelId"`
	Prompt   string `json:"prompt"`
	APIKey   string `json:"apiKey,omitempty"`
}

// ImageOptions requests a still image. Quality ranges over 0..100.
type ImageOptions struct {
	BaseOptions
	Size                   string   `json:"size"`
	Quality                int      `json:"quality"`
	Style                  string   `json:"style,omitempty"`
	NegativePrompt         string   `json:"negativePrompt,omitempty"`
	PreserveFacialFeatures bool     `json:"preserveFacialFeatures,omitempty"`
	ReferenceImages        []string `json:"referenceImages,omitempty"`
}

// VideoOptions requests a clip. Duration is in seconds.
type VideoOptions struct {
	BaseOptions
	Duration    int    `json:"duration"`
	FPS         int    `json:"fps"`
	Resolution  string `json:"resolution"`
	Style       string `json:"style,omitempty"`
	AudioPrompt string `json:"audioPrompt,omitempty"`
}

// AudioOptions requests a sound clip. Duration is in seconds.
type AudioOptions struct {
	BaseOptions
	Duration   int         `json:"duration"`
	SampleRate int         `json:"sampleRate,omitempty"`
	Format     AudioFormat `json:"format,omitempty"`
	Style      string      `json:"style,omitempty"`
}

// EditOptions requests a modification of an existing image. Image and Mask are base64.
type EditOptions struct {
	BaseOptions
	Image string `json:"image"`
	Mask  string `json:"mask,omitempty"`
	Size  string `json:"size,omitempty"`
}

// ImageResult is returned for both generation and editing.
type ImageResult struct {
	URL         string    `json:"url"`
	Base64      string    `json:"base64,omitempty"`
	MimeType    string    `json:"mimeType"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Prompt      string    `json:"prompt"`
	Seed        *int64    `json:"seed,omitempty"`
	ModelID     string    `json:"modelId"`
	Provider    string    `json:"provider"`
	GeneratedAt time.Time `json:"generatedAt"`
}

type VideoResult struct {
	URL         string    `json:"url"`
	MimeType    string    `json:"mimeType"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Duration    int       `json:"duration"`
	FPS         int       `json:"fps"`
	Prompt      string    `json:"prompt"`
	ModelID     string    `json:"modelId"`
	Provider    string    `json:"provider"`
	GeneratedAt time.Time `json:"generatedAt"`
}

type AudioResult struct {
	URL         string    `json:"url"`
	MimeType    string    `json:"mimeType"`
	Duration    int       `json:"duration"`
	Prompt      string    `json:"prompt"`
	ModelID     string    `json:"modelId"`
	Provider    string    `json:"provider"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// ParseDimensions splits "WxH". Each side that is missing, non-numeric or not positive is
// replaced by its fallback.
func ParseDimensions(s string, fallbackW, fallbackH int) (int, int) {
	ws, hs, _ := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	return positiveOr(ws, fallbackW), positiveOr(hs, fallbackH)
}

func positiveOr(s string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// Asset returns the location of the generated media, used by history records.
func (r ImageResult) Asset() string {
	if r.URL != "" {
		return r.URL
	}
	if r.Base64 != "" {
		return "data:" + r.MimeType + ";base64"
	}
	return ""
}

func (r VideoResult) Asset() string { return r.URL }

func (r AudioResult) Asset() string { return r.URL }
