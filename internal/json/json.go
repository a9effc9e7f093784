// Package json wraps bytedance/sonic behind the subset of the encoding/json API used by the
// gateway, so callers never import sonic directly.
package json

import "github.com/bytedance/sonic"

// Marshal returns the JSON encoding of v.
func Marshal(v any) ([]byte, error) {
	return sonic.Marshal(v)
}

// Unmarshal parses the JSON-encoded data and stores the result in v.
func Unmarshal(data []byte, v any) error {
	return sonic.Unmarshal(data, v)
}

// Valid reports whether data is a valid JSON encoding.
func Valid(data []byte) bool {
	return sonic.Valid(data)
}
