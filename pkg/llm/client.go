// Package llm implements agent.LLMClient on top of the OpenAI chat completions
// API, for both Azure OpenAI deployments and OpenAI-compatible endpoints.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"github.com/codeready-toolchain/buildscout/pkg/agent"
	"github.com/codeready-toolchain/buildscout/pkg/config"
	"github.com/codeready-toolchain/buildscout/pkg/version"
)

// streamBufferSize is the capacity of the chunk channel returned by Generate.
const streamBufferSize = 32

// Client implements agent.LLMClient. One underlying OpenAI client is created
// per reasoning profile and reused across calls.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger

	mu      sync.Mutex
	clients map[string]*openai.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for all requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a new LLM client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		logger:     slog.Default(),
		clients:    make(map[string]*openai.Client),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.httpClient = withUserAgent(c.httpClient)
	return c
}

// Generate starts a streaming chat completion and returns a channel of chunks.
// A context-length rejection of the request is returned as an error wrapping
// agent.ErrContextLengthExceeded; failures after the stream started arrive
// as ErrorChunk values.
func (c *Client) Generate(ctx context.Context, input *agent.GenerateInput) (<-chan agent.Chunk, error) {
	if input.Profile == nil {
		return nil, errors.New("no reasoning profile selected")
	}
	oc, err := c.clientFor(input.Profile)
	if err != nil {
		return nil, err
	}

	req := toChatRequest(input)
	stream, err := oc.CreateChatCompletionStream(ctx, req)
	if err != nil {
		if IsContextLengthError(err) {
			return nil, fmt.Errorf("%w: %v", agent.ErrContextLengthExceeded, err)
		}
		return nil, fmt.Errorf("chat completion request to profile %s failed: %w", input.Profile.Name, err)
	}

	logger := c.logger.With("session_id", input.SessionID, "profile", input.Profile.Name)
	logger.Debug("Chat completion stream opened", "messages", len(req.Messages), "tools", len(req.Tools))

	ch := make(chan agent.Chunk, streamBufferSize)
	go func() {
		defer close(ch)
		defer stream.Close()

		send := func(chunk agent.Chunk) bool {
			select {
			case ch <- chunk:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn("Chat completion stream failed", "error", err)
				send(errorChunk(err))
				return
			}
			for _, chunk := range fromStreamResponse(resp) {
				if !send(chunk) {
					return
				}
			}
		}
	}()

	return ch, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// clientFor returns the cached client for a profile, creating it on first use.
func (c *Client) clientFor(p *config.ReasoningProfile) (*openai.Client, error) {
	key := string(p.Provider) + "|" + p.Endpoint + "|" + p.Model + "|" + p.APIVersion
	c.mu.Lock()
	defer c.mu.Unlock()
	if oc, ok := c.clients[key]; ok {
		return oc, nil
	}

	cfg, err := clientConfig(p)
	if err != nil {
		return nil, err
	}
	cfg.HTTPClient = c.httpClient
	oc := openai.NewClientWithConfig(cfg)
	c.clients[key] = oc
	return oc, nil
}

func clientConfig(p *config.ReasoningProfile) (openai.ClientConfig, error) {
	apiKey := p.APIKey()
	switch p.Provider {
	case config.ProviderAzure:
		if p.Endpoint == "" {
			return openai.ClientConfig{}, fmt.Errorf("profile %s: azure endpoint is empty", p.Name)
		}
		if apiKey == "" {
			return openai.ClientConfig{}, fmt.Errorf("profile %s: API key environment variable %q is not set", p.Name, p.APIKeyEnv)
		}
		cfg := openai.DefaultAzureConfig(apiKey, p.Endpoint)
		cfg.APIVersion = p.APIVersion
		deployment := p.Model
		cfg.AzureModelMapperFunc = func(string) string { return deployment }
		return cfg, nil
	case config.ProviderOpenAI:
		cfg := openai.DefaultConfig(apiKey)
		if p.Endpoint != "" {
			cfg.BaseURL = p.Endpoint
		}
		return cfg, nil
	default:
		return openai.ClientConfig{}, fmt.Errorf("profile %s: unsupported provider %q", p.Name, p.Provider)
	}
}

// userAgentTransport stamps every request with the application User-Agent.
type userAgentTransport struct {
	base http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", version.UserAgent())
	return t.base.RoundTrip(req)
}

func withUserAgent(hc *http.Client) *http.Client {
	clone := *hc
	base := clone.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	clone.Transport = &userAgentTransport{base: base}
	return &clone
}
