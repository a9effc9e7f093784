// Package config loads the gateway configuration: listener settings, the provider table
// (capabilities, credential categories, fallback keys, placeholder assets) and the optional
// persistence backends.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/nghyane/creative-mux/internal/json"
	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"
)

// Feature names accepted in a provider's feature list.
const (
	FeatureImage   = "image"
	FeatureVideo   = "video"
	FeatureAudio   = "audio"
	FeatureEditing = "editing"
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	Host          string `yaml:"host" json:"host"`
	Port          int    `yaml:"port" json:"port"`
	Debug         bool   `yaml:"debug" json:"debug"`
	LoggingToFile bool   `yaml:"logging-to-file" json:"logging-to-file"`

	// Strict disables the development conveniences: unknown providers are rejected and no
	// placeholder API key is ever handed out.
	Strict bool `yaml:"strict" json:"strict"`

	// ProviderTimeout bounds a single provider call, in seconds.
	ProviderTimeout int `yaml:"provider-timeout" json:"provider-timeout"`

	// RequestRetry is the number of extra attempts for transient provider failures.
	RequestRetry int `yaml:"request-retry" json:"request-retry"`

	// MaxRetryInterval caps the wait between attempts, in seconds.
	MaxRetryInterval int `yaml:"max-retry-interval" json:"max-retry-interval"`

	Providers []Provider `yaml:"providers" json:"providers"`

	// Sessions maps static bearer tokens to user ids.
	Sessions []Session `yaml:"sessions,omitempty" json:"sessions,omitempty"`

	CredentialStore CredentialStore `yaml:"credential-store" json:"credential-store"`
	History         History         `yaml:"history" json:"history"`
}

// Provider is one entry of the provider table.
type Provider struct {
	Name     string   `yaml:"name" json:"name"`
	Features []string `yaml:"features" json:"features"`

	// CredentialCategory selects which stored/fallback key this provider uses.
	// Empty means the provider's own name.
	CredentialCategory string `yaml:"credential-category,omitempty" json:"credential-category,omitempty"`

	// APIKey is the process-wide fallback key.
	APIKey string `yaml:"api-key,omitempty" json:"api-key,omitempty"`

	// APIKeyEnv names the environment variable holding the fallback key.
	// Empty means <CATEGORY>_API_KEY.
	APIKeyEnv string `yaml:"api-key-env,omitempty" json:"api-key-env,omitempty"`

	// LatencyMS is the artificial delay of the simulated handler.
	LatencyMS int `yaml:"latency-ms,omitempty" json:"latency-ms,omitempty"`

	Placeholders Placeholders `yaml:"placeholders,omitempty" json:"placeholders,omitempty"`
}

// Placeholders lists the canned assets returned by the simulated handler.
type Placeholders struct {
	ImageURL  string `yaml:"image-url,omitempty" json:"image-url,omitempty"`
	ImageMime string `yaml:"image-mime,omitempty" json:"image-mime,omitempty"`
	VideoURL  string `yaml:"video-url,omitempty" json:"video-url,omitempty"`
	AudioURL  string `yaml:"audio-url,omitempty" json:"audio-url,omitempty"`

	// AudioStyles overrides AudioURL per requested style (voice, ambience, ...).
	AudioStyles map[string]string `yaml:"audio-styles,omitempty" json:"audio-styles,omitempty"`
}

// Session binds a static bearer token to a user.
type Session struct {
	Token  string `yaml:"token" json:"token"`
	UserID string `yaml:"user-id" json:"user-id"`
}

// CredentialStore selects the per-user key backend.
type CredentialStore struct {
	// Driver is "sqlite" or "postgres"; empty disables per-user keys.
	Driver string `yaml:"driver" json:"driver"`
	DSN    string `yaml:"dsn" json:"dsn"`
}

// History defines SQLite persistence settings for generation records.
type History struct {
	Enabled           bool   `yaml:"enabled" json:"enabled"`
	DBPath            string `yaml:"db-path" json:"db-path"`
	BatchSize         int    `yaml:"batch-size" json:"batch-size"`
	FlushIntervalSecs int    `yaml:"flush-interval" json:"flush-interval"`
	RetentionDays     int    `yaml:"retention-days" json:"retention-days"`
}

// NewDefaultConfig returns a configuration that serves every built-in provider in
// development mode without any file on disk.
func NewDefaultConfig() *Config {
	return &Config{
		Port:             3001,
		ProviderTimeout:  60,
		RequestRetry:     2,
		MaxRetryInterval: 10,
		Providers:        SanitizeProviders(DefaultProviders()),
		CredentialStore: CredentialStore{
			Driver: "sqlite",
			DSN:    "creative-mux.db",
		},
		History: History{
			Enabled:           true,
			DBPath:            "creative-mux-history.db",
			BatchSize:         50,
			FlushIntervalSecs: 5,
			RetentionDays:     30,
		},
	}
}

// DefaultProviders is the built-in provider table.
func DefaultProviders() []Provider {
	return []Provider{
		{
			Name:      "openai",
			Features:  []string{FeatureImage, FeatureAudio, FeatureEditing},
			LatencyMS: 1000,
			Placeholders: Placeholders{
				ImageURL:  "https://placehold.co/600x400?text=OpenAI+Generated+Image",
				ImageMime: "image/jpeg",
				AudioURL:  "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-1.mp3",
				AudioStyles: map[string]string{
					"voice":         "https://samplelib.com/lib/preview/mp3/sample-3s.mp3",
					"ambience":      "https://samplelib.com/lib/preview/mp3/sample-12s.mp3",
					"sound-effects": "https://samplelib.com/lib/preview/mp3/sample-9s.mp3",
				},
			},
		},
		{
			Name:      "anthropic",
			Features:  []string{FeatureImage},
			LatencyMS: 1000,
			Placeholders: Placeholders{
				ImageURL:  "https://placehold.co/600x400?text=Anthropic+Generated+Image",
				ImageMime: "image/jpeg",
			},
		},
		{
			Name:      "stability",
			Features:  []string{FeatureImage, FeatureVideo, FeatureEditing},
			LatencyMS: 1000,
			Placeholders: Placeholders{
				ImageURL: "https://placehold.co/600x400?text=Stability+Generated+Image",
				VideoURL: "https://placehold.co/600x400.mp4?text=Stability+Generated+Video",
			},
		},
		{
			Name:      "midjourney",
			Features:  []string{FeatureImage},
			LatencyMS: 1000,
			Placeholders: Placeholders{
				ImageURL: "https://placehold.co/600x400?text=Midjourney+Generated+Image",
			},
		},
		{
			Name:      "google",
			Features:  []string{FeatureImage, FeatureVideo, FeatureAudio},
			LatencyMS: 2000,
			Placeholders: Placeholders{
				ImageURL: "https://placehold.co/600x400?text=Google+Generated+Image",
				VideoURL: "https://placehold.co/600x400.mp4?text=Google+Generated+Video",
				AudioURL: "https://samplelib.com/lib/preview/mp3/sample-15s.mp3",
				AudioStyles: map[string]string{
					"voice":         "https://samplelib.com/lib/preview/mp3/sample-6s.mp3",
					"ambience":      "https://samplelib.com/lib/preview/mp3/sample-9s.mp3",
					"sound-effects": "https://samplelib.com/lib/preview/mp3/sample-3s.mp3",
				},
			},
		},
		{
			Name:     "meta",
			Features: []string{FeatureImage},
			// No handler ships for meta; the startup check reports it.
		},
		{
			Name:      "local",
			Features:  []string{FeatureImage, FeatureVideo, FeatureAudio, FeatureEditing},
			LatencyMS: 3000,
			Placeholders: Placeholders{
				VideoURL: "https://placehold.co/600x400.mp4?text=Locally+Generated+Video",
				AudioURL: "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-2.mp3",
			},
		},
	}
}

// LoadConfig reads a configuration file and fails when it is missing.
func LoadConfig(configFile string) (*Config, error) {
	return LoadConfigOptional(configFile, false)
}

// LoadConfigOptional reads configFile. When optional is true a missing or empty file yields
// the default configuration instead of an error.
func LoadConfigOptional(configFile string, optional bool) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		if optional && (os.IsNotExist(err) || errors.Is(err, syscall.EISDIR)) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if optional && len(strings.TrimSpace(string(data))) == 0 {
		return NewDefaultConfig(), nil
	}
	return Parse(data, filepath.Ext(configFile))
}

// Parse decodes YAML, or JSON with comments when ext is .json/.jsonc, on top of the defaults.
// A document that sets providers replaces the default provider table entirely.
func Parse(data []byte, ext string) (*Config, error) {
	cfg := NewDefaultConfig()
	cfg.Providers = nil

	switch strings.ToLower(ext) {
	case ".json", ".jsonc":
		std, err := hujson.Standardize(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		if err = json.Unmarshal(std, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if len(cfg.Providers) == 0 {
		cfg.Providers = DefaultProviders()
	}
	cfg.Providers = SanitizeProviders(cfg.Providers)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SanitizeProviders lower-cases names and features, drops unnamed entries and unknown
// features, and merges duplicate names (the later entry wins).
func SanitizeProviders(providers []Provider) []Provider {
	out := make([]Provider, 0, len(providers))
	index := make(map[string]int, len(providers))
	for _, p := range providers {
		p.Name = strings.ToLower(strings.TrimSpace(p.Name))
		if p.Name == "" {
			continue
		}
		p.CredentialCategory = strings.ToLower(strings.TrimSpace(p.CredentialCategory))
		p.Features = normalizeFeatures(p.Features)
		if i, ok := index[p.Name]; ok {
			out[i] = p
			continue
		}
		index[p.Name] = len(out)
		out = append(out, p)
	}
	return out
}

func normalizeFeatures(features []string) []string {
	seen := make(map[string]struct{}, len(features))
	out := make([]string, 0, len(features))
	for _, f := range features {
		f = strings.ToLower(strings.TrimSpace(f))
		switch f {
		case FeatureImage, FeatureVideo, FeatureAudio, FeatureEditing:
		default:
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// Validate reports settings that cannot be served.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	switch c.CredentialStore.Driver {
	case "", "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported credential-store driver %q", c.CredentialStore.Driver)
	}
	if c.CredentialStore.Driver != "" && strings.TrimSpace(c.CredentialStore.DSN) == "" {
		return fmt.Errorf("credential-store dsn is required for driver %q", c.CredentialStore.Driver)
	}
	for _, s := range c.Sessions {
		if s.Token == "" || s.UserID == "" {
			return errors.New("sessions entries need both token and user-id")
		}
	}
	return nil
}

// Category returns the credential category used by provider p.
func (p Provider) Category() string {
	if p.CredentialCategory != "" {
		return p.CredentialCategory
	}
	return p.Name
}

// EnvVar returns the environment variable consulted for the fallback key.
func (p Provider) EnvVar() string {
	if p.APIKeyEnv != "" {
		return p.APIKeyEnv
	}
	return strings.ToUpper(strings.ReplaceAll(p.Category(), "-", "_")) + "_API_KEY"
}

// Provider looks up a provider entry by name.
func (c *Config) Provider(name string) (Provider, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, p := range c.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return Provider{}, false
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GenerateDefaultConfigYAML renders NewDefaultConfig as YAML, used for first-run bootstrap.
func GenerateDefaultConfigYAML() []byte {
	data, err := yaml.Marshal(NewDefaultConfig())
	if err != nil {
		return []byte("port: 3001\n")
	}
	return data
}
