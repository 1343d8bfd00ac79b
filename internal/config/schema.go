package config

import "time"

// Config holds critique configuration.
// Stored at: ~/.critique/config.yaml or ./config.yaml
type Config struct {
	Provider ProviderCfg `mapstructure:"provider" yaml:"provider"`
	Paths    PathsCfg    `mapstructure:"paths" yaml:"paths"`
	Pacing   PacingCfg   `mapstructure:"pacing" yaml:"pacing"`
	LogLevel string      `mapstructure:"log_level" yaml:"log_level"`
}

// ProviderCfg configures the generation service.
type ProviderCfg struct {
	Type        string  `mapstructure:"type" yaml:"type"`               // "gemini", "openai", "mock"
	Model       string  `mapstructure:"model" yaml:"model"`             // Model name
	APIKey      string  `mapstructure:"api_key" yaml:"api_key"`         // API key (supports ${ENV_VAR} syntax)
	BaseURL     string  `mapstructure:"base_url" yaml:"base_url"`       // Optional endpoint override
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"` // 0 leaves the service default
}

// PathsCfg locates the input corpus, output folder and assignment file.
type PathsCfg struct {
	Papers     string `mapstructure:"papers" yaml:"papers"`
	Feedback   string `mapstructure:"feedback" yaml:"feedback"`
	Assignment string `mapstructure:"assignment" yaml:"assignment"` // Empty uses the built-in assignment
}

// PacingCfg controls spacing between generation requests.
type PacingCfg struct {
	Delay             time.Duration `mapstructure:"delay" yaml:"delay"`                             // Pause after each successful file
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"` // 0 disables the limiter
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderCfg{
			Type:   "gemini",
			Model:  "gemini-2.0-flash",
			APIKey: "",
		},
		Paths: PathsCfg{
			Papers:   "papers",
			Feedback: "feedback",
		},
		Pacing: PacingCfg{
			Delay: 4 * time.Second,
		},
		LogLevel: "info",
	}
}

// defaultAPIKeyRefs maps provider types to the environment reference used
// when no api_key is configured.
var defaultAPIKeyRefs = map[string]string{
	"gemini": "${GOOGLE_API_KEY}",
	"openai": "${OPENAI_API_KEY}",
}

// MarshalYAML writes the delay as a duration string ("4s") instead of nanoseconds.
func (p PacingCfg) MarshalYAML() (any, error) {
	return struct {
		Delay             string `yaml:"delay"`
		RequestsPerMinute int    `yaml:"requests_per_minute"`
	}{
		Delay:             p.Delay.String(),
		RequestsPerMinute: p.RequestsPerMinute,
	}, nil
}
