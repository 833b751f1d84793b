package masking

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/codeready-toolchain/buildscout/pkg/config"
)

// Masker is the interface for code-based maskers that need structural
// awareness beyond regex pattern matching.
type Masker interface {
	// Name returns the unique identifier for this masker.
	// Must match an entry of config.BuiltinCodeMaskers.
	Name() string

	// AppliesTo performs a lightweight check on whether this masker
	// should process the data.
	AppliesTo(data string) bool

	// Mask applies masking logic and returns the masked result. Returns
	// the original data when it cannot be parsed.
	Mask(data string) string
}

// maskedValue replaces the value of a secret field.
const maskedValue = "__MASKED__"

// secretKeys are normalized key names whose string values are always masked.
var secretKeys = map[string]bool{
	"pat":              true,
	"passwd":           true,
	"accountkey":       true,
	"connectionstring": true,
	"credential":       true,
	"credentials":      true,
}

// secretKeySuffixes catch compound names such as clientSecret or
// refresh_token.
var secretKeySuffixes = []string{"password", "secret", "token", "apikey", "privatekey", "accesskey"}

// JSONSecretFieldsMasker masks the string values of secret-looking keys in
// a JSON document, at any depth. Build-tracking responses carry service
// connection and variable group payloads in this shape.
type JSONSecretFieldsMasker struct{}

// Name implements Masker.
func (JSONSecretFieldsMasker) Name() string { return config.JSONSecretFieldsMasker }

// AppliesTo implements Masker.
func (JSONSecretFieldsMasker) AppliesTo(data string) bool {
	trimmed := strings.TrimSpace(data)
	return strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")
}

// Mask implements Masker. The document is re-encoded only when a value was
// masked; indentation is kept when the input was multi-line.
func (m JSONSecretFieldsMasker) Mask(data string) string {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil || dec.More() {
		return data
	}
	if !maskValue(doc) {
		return data
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if strings.Contains(strings.TrimSpace(data), "\n") {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(doc); err != nil {
		return data
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// maskValue walks v in place and reports whether anything was masked.
func maskValue(v any) bool {
	changed := false
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if s, ok := child.(string); ok && s != "" && isSecretKey(k) {
				t[k] = maskedValue
				changed = true
				continue
			}
			if maskValue(child) {
				changed = true
			}
		}
	case []any:
		for _, child := range t {
			if maskValue(child) {
				changed = true
			}
		}
	}
	return changed
}

func isSecretKey(key string) bool {
	k := strings.ToLower(strings.NewReplacer("_", "", "-", "", ".", "").Replace(key))
	if secretKeys[k] {
		return true
	}
	for _, suffix := range secretKeySuffixes {
		if strings.HasSuffix(k, suffix) {
			return true
		}
	}
	return false
}
