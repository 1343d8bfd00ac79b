package providers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"
)

// Config selects and configures a generator.
type Config struct {
	Type        string  // "gemini", "openai", "mock"
	Model       string  // Model name
	APIKey      string  // Resolved API key
	BaseURL     string  // Optional endpoint override (tests, proxies)
	Temperature float64 // 0 leaves the service default

	Timeout    time.Duration // Optional HTTP timeout; 0 means none
	HTTPClient *http.Client  // Optional (tests)
	Logger     *slog.Logger
}

// Factory builds a generator from configuration.
type Factory func(ctx context.Context, cfg Config) (Generator, error)

var factories = map[string]Factory{
	GeminiName: func(ctx context.Context, cfg Config) (Generator, error) {
		return NewGeminiGenerator(ctx, cfg)
	},
	OpenAIName: func(_ context.Context, cfg Config) (Generator, error) {
		return NewOpenAIGenerator(cfg)
	},
	MockName: func(_ context.Context, cfg Config) (Generator, error) {
		m := NewMockGenerator()
		if cfg.Model != "" {
			m.ModelName = cfg.Model
		}
		return m, nil
	},
}

// Types returns the supported provider types, sorted.
func Types() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewGenerator builds the generator named by cfg.Type.
// Errors wrap ErrUnknownProvider, ErrClientInit or ErrModelInit.
func NewGenerator(ctx context.Context, cfg Config) (Generator, error) {
	typ := strings.ToLower(strings.TrimSpace(cfg.Type))
	factory, ok := factories[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnknownProvider, cfg.Type, strings.Join(Types(), ", "))
	}

	g, err := factory(ctx, cfg)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("generator ready", "provider", g.Name(), "model", g.Model())
	return g, nil
}

func httpClientFor(cfg Config) *http.Client {
	if cfg.HTTPClient != nil {
		return cfg.HTTPClient
	}
	return &http.Client{Timeout: cfg.Timeout}
}
