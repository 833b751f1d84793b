package config

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigNotFound indicates configuration file was not found
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrInvalidYAML indicates YAML parsing failed
	ErrInvalidYAML = errors.New("invalid YAML syntax")

	// ErrProfileNotFound indicates a reasoning profile was not found in the registry
	ErrProfileNotFound = errors.New("reasoning profile not found")

	// ErrMissingRequiredField indicates a required field is missing
	ErrMissingRequiredField = errors.New("missing required field")

	// ErrInvalidValue indicates a field has an invalid value
	ErrInvalidValue = errors.New("invalid field value")
)

// ValidationError wraps configuration validation errors with context
type ValidationError struct {
	Component string // profile, budgets, agent, tools.remote, tools.local, server
	ID        string // Name of the component instance (optional)
	Field     string // Field name (optional)
	Err       error
}

func (e *ValidationError) Error() string {
	subject := e.Component
	if e.ID != "" {
		subject = fmt.Sprintf("%s '%s'", e.Component, e.ID)
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: field '%s': %v", subject, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %v", subject, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new validation error
func NewValidationError(component, id, field string, err error) *ValidationError {
	return &ValidationError{
		Component: component,
		ID:        id,
		Field:     field,
		Err:       err,
	}
}

// LoadError wraps configuration loading errors with file context
type LoadError struct {
	File string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.File, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// NewLoadError creates a new load error
func NewLoadError(file string, err error) *LoadError {
	return &LoadError{File: file, Err: err}
}
