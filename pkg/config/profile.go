package config

import (
	"fmt"
	"os"
	"sort"
	"sync"
)

// ProviderType selects the wire flavour of the model endpoint.
type ProviderType string

const (
	// ProviderAzure is an Azure OpenAI deployment (endpoint + deployment + api-version).
	ProviderAzure ProviderType = "azure"
	// ProviderOpenAI is any OpenAI-compatible endpoint.
	ProviderOpenAI ProviderType = "openai"
)

// IsValid checks if the provider type is known
func (p ProviderType) IsValid() bool {
	switch p {
	case ProviderAzure, ProviderOpenAI:
		return true
	default:
		return false
	}
}

// ReasoningProfile selects which deployed model endpoint a session talks to.
// It is chosen once per session and never mutated afterwards.
type ReasoningProfile struct {
	Name       string       `yaml:"-"`
	Provider   ProviderType `yaml:"provider"`
	Endpoint   string       `yaml:"endpoint,omitempty"`
	Model      string       `yaml:"model"`
	APIVersion string       `yaml:"api_version,omitempty"`
	APIKeyEnv  string       `yaml:"api_key_env,omitempty"`
}

// APIKey resolves the profile's API key from the environment.
func (p *ReasoningProfile) APIKey() string {
	if p.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(p.APIKeyEnv)
}

// ProfileRegistry stores reasoning profiles in memory with thread-safe access
type ProfileRegistry struct {
	profiles map[string]*ReasoningProfile
	mu       sync.RWMutex
}

// NewProfileRegistry creates a new profile registry
func NewProfileRegistry(profiles map[string]*ReasoningProfile) *ProfileRegistry {
	copied := make(map[string]*ReasoningProfile, len(profiles))
	for name, p := range profiles {
		cp := *p
		cp.Name = name
		copied[name] = &cp
	}
	return &ProfileRegistry{profiles: copied}
}

// Get retrieves a profile by name. The returned value is a copy.
func (r *ProfileRegistry) Get(name string) (*ReasoningProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	cp := *p
	return &cp, nil
}

// Has checks if a profile exists
func (r *ProfileRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.profiles[name]
	return ok
}

// Names returns the sorted profile names
func (r *ProfileRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetAll returns a copy of all profiles
func (r *ProfileRegistry) GetAll() map[string]*ReasoningProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*ReasoningProfile, len(r.profiles))
	for k, v := range r.profiles {
		cp := *v
		result[k] = &cp
	}
	return result
}

// Len returns the number of profiles
func (r *ProfileRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}
