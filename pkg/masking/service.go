// Package masking redacts secrets from tool results before they are
// appended to an investigation transcript.
package masking

import (
	"fmt"
	"log/slog"

	"github.com/codeready-toolchain/buildscout/pkg/config"
)

// redactedNotice replaces content that could not be masked safely.
const redactedNotice = "[REDACTED: tool result could not be safely masked]"

// Service applies data masking to tool results. Created once at startup and
// shared by every session; stateless aside from compiled patterns.
type Service struct {
	maskers  []Masker
	patterns []*CompiledPattern
}

// NewService compiles the configured patterns. A disabled or nil config
// yields a service that returns content unchanged.
func NewService(cfg *config.MaskingConfig) (*Service, error) {
	s := &Service{}
	if !cfg.IsEnabled() {
		return s, nil
	}

	maskers, patterns, err := compile(cfg)
	if err != nil {
		return nil, err
	}
	s.maskers = maskers
	s.patterns = patterns

	slog.Info("Masking service initialized",
		"code_maskers", len(maskers),
		"compiled_patterns", len(patterns))
	return s, nil
}

// Enabled reports whether any masker or pattern is active.
func (s *Service) Enabled() bool {
	return len(s.maskers) > 0 || len(s.patterns) > 0
}

// Mask applies code-based maskers, then regex patterns. A failing masker
// redacts the whole content (fail-closed).
func (s *Service) Mask(content string) string {
	if content == "" || !s.Enabled() {
		return content
	}

	masked, err := s.apply(content)
	if err != nil {
		slog.Error("Masking failed, redacting tool result", "error", err)
		return redactedNotice
	}
	return masked
}

func (s *Service) apply(content string) (masked string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("masker panicked: %v", p)
		}
	}()

	masked = content
	// Phase 1: code-based maskers (structural awareness)
	for _, m := range s.maskers {
		if m.AppliesTo(masked) {
			masked = m.Mask(masked)
		}
	}
	// Phase 2: regex patterns (general sweep)
	for _, p := range s.patterns {
		masked = p.Regex.ReplaceAllString(masked, p.Replacement)
	}
	return masked, nil
}
