package config

import (
	"bytes"
	"os"
	"strings"
	"text/template"
)

// ExpandEnv substitutes {{.VAR}} references in raw YAML with environment
// values. The template syntax leaves literal $ alone, so regexes and shell
// snippets inside the YAML survive untouched. Unknown variables expand to the
// empty string. Content that is not a valid template is returned unchanged and
// left for the YAML parser to reject.
func ExpandEnv(data []byte) []byte {
	tmpl, err := template.New("config").Option("missingkey=zero").Parse(string(data))
	if err != nil {
		return data
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, environMap()); err != nil {
		return data
	}
	return buf.Bytes()
}

// expandString is ExpandEnv for a single value, used for built-in defaults
// that reference the environment.
func expandString(s string) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	return string(ExpandEnv([]byte(s)))
}

func environMap() map[string]string {
	env := os.Environ()
	m := make(map[string]string, len(env))
	for _, kv := range env {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			m[k] = v
		}
	}
	return m
}
