package masking

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/codeready-toolchain/buildscout/pkg/config"
)

// CompiledPattern holds a pre-compiled regex pattern with its replacement.
type CompiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
	Description string
}

// codeMaskers holds every code-based masker by name.
var codeMaskers = map[string]Masker{
	config.JSONSecretFieldsMasker: JSONSecretFieldsMasker{},
}

// selectedNames returns the configured pattern names, or every built-in
// name when none are configured. Regex names come back sorted so the
// application order is stable.
func selectedNames(cfg *config.MaskingConfig) []string {
	if len(cfg.Patterns) > 0 {
		return cfg.Patterns
	}
	names := config.BuiltinCodeMaskers()
	builtin := config.BuiltinMaskingPatterns()
	regexNames := make([]string, 0, len(builtin))
	for name := range builtin {
		regexNames = append(regexNames, name)
	}
	slices.Sort(regexNames)
	return append(names, regexNames...)
}

// compile resolves pattern names into code maskers and compiled regexes,
// then appends the custom patterns. Custom patterns are named
// "custom:{index}".
func compile(cfg *config.MaskingConfig) ([]Masker, []*CompiledPattern, error) {
	var (
		maskers  []Masker
		patterns []*CompiledPattern
		seen     = make(map[string]bool)
	)
	builtin := config.BuiltinMaskingPatterns()

	for _, name := range selectedNames(cfg) {
		if seen[name] {
			continue
		}
		seen[name] = true

		if m, ok := codeMaskers[name]; ok {
			maskers = append(maskers, m)
			continue
		}
		p, ok := builtin[name]
		if !ok {
			return nil, nil, fmt.Errorf("unknown masking pattern %q", name)
		}
		cp, err := compilePattern(name, p)
		if err != nil {
			return nil, nil, err
		}
		patterns = append(patterns, cp)
	}

	for i, p := range cfg.CustomPatterns {
		cp, err := compilePattern(fmt.Sprintf("custom:%d", i), p)
		if err != nil {
			return nil, nil, err
		}
		patterns = append(patterns, cp)
	}
	return maskers, patterns, nil
}

func compilePattern(name string, p config.MaskingPattern) (*CompiledPattern, error) {
	re, err := regexp.Compile(p.Pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to compile masking pattern %s: %w", name, err)
	}
	return &CompiledPattern{
		Name:        name,
		Regex:       re,
		Replacement: p.Replacement,
		Description: p.Description,
	}, nil
}
