package logging

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

func writablePath() string {
	for _, key := range []string{"WRITABLE_PATH", "writable_path"} {
		if value, ok := os.LookupEnv(key); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return filepath.Clean(trimmed)
			}
		}
	}
	return ""
}

// HideAPIKey keeps a short prefix and suffix of a secret so log lines stay correlatable.
func HideAPIKey(apiKey string) string {
	switch {
	case len(apiKey) > 8:
		return apiKey[:4] + "..." + apiKey[len(apiKey)-4:]
	case len(apiKey) > 4:
		return apiKey[:2] + "..." + apiKey[len(apiKey)-2:]
	case len(apiKey) > 2:
		return apiKey[:1] + "..." + apiKey[len(apiKey)-1:]
	}
	return apiKey
}

func maskSensitiveQuery(raw string) string {
	if raw == "" {
		return ""
	}
	parts := strings.Split(raw, "&")
	changed := false
	for i, part := range parts {
		if part == "" {
			continue
		}
		keyPart, valuePart, _ := strings.Cut(part, "=")
		decodedKey, err := url.QueryUnescape(keyPart)
		if err != nil {
			decodedKey = keyPart
		}
		if !isSecretParam(decodedKey) {
			continue
		}
		decodedValue, err := url.QueryUnescape(valuePart)
		if err != nil {
			decodedValue = valuePart
		}
		parts[i] = keyPart + "=" + url.QueryEscape(HideAPIKey(strings.TrimSpace(decodedValue)))
		changed = true
	}
	if !changed {
		return raw
	}
	return strings.Join(parts, "&")
}

func isSecretParam(key string) bool {
	key = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(key)), "[]")
	if key == "" {
		return false
	}
	if key == "key" || strings.Contains(key, "api-key") || strings.Contains(key, "apikey") || strings.Contains(key, "api_key") {
		return true
	}
	return strings.Contains(key, "token") || strings.Contains(key, "secret")
}
