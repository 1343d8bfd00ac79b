package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingCredential is returned when the generation service API key resolves to empty.
	ErrMissingCredential = errors.New("missing API credential")

	// ErrInvalidConfig is returned for values that can never produce a working run.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// flagKeys maps command flags onto config keys.
var flagKeys = map[string]string{
	"provider":   "provider.type",
	"model":      "provider.model",
	"papers":     "paths.papers",
	"feedback":   "paths.feedback",
	"assignment": "paths.assignment",
	"delay":      "pacing.delay",
	"log-level":  "log_level",
}

// Manager loads configuration from defaults, an optional file, the
// environment and command flags, in increasing priority.
type Manager struct {
	v      *viper.Viper
	config *Config
}

// NewManager creates a config manager and loads the configuration.
// flags may be nil; flags present in the set and changed by the user override file values.
func NewManager(cfgFile, homePath string, flags *pflag.FlagSet) (*Manager, error) {
	cm := &Manager{v: viper.New()}

	if err := cm.initViper(cfgFile, homePath, flags); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults, config file, env and flags.
func (cm *Manager) initViper(cfgFile, homePath string, flags *pflag.FlagSet) error {
	v := cm.v
	defaults := DefaultConfig()
	v.SetDefault("provider.type", defaults.Provider.Type)
	v.SetDefault("provider.model", defaults.Provider.Model)
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.base_url", defaults.Provider.BaseURL)
	v.SetDefault("provider.temperature", defaults.Provider.Temperature)
	v.SetDefault("paths.papers", defaults.Paths.Papers)
	v.SetDefault("paths.feedback", defaults.Paths.Feedback)
	v.SetDefault("paths.assignment", defaults.Paths.Assignment)
	v.SetDefault("pacing.delay", defaults.Pacing.Delay)
	v.SetDefault("pacing.requests_per_minute", defaults.Pacing.RequestsPerMinute)
	v.SetDefault("log_level", defaults.LogLevel)

	// Environment variables with CRITIQUE_ prefix, e.g. CRITIQUE_PROVIDER_MODEL
	v.SetEnvPrefix("CRITIQUE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if homePath != "" {
			v.AddConfigPath(homePath)
		}
	}

	// Config file is optional unless named explicitly
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("failed to bind flag --%s: %w", name, err)
			}
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Provider.Type = strings.ToLower(strings.TrimSpace(cfg.Provider.Type))
	return &cfg, nil
}

// Get returns the loaded configuration.
func (cm *Manager) Get() *Config {
	return cm.config
}

// ConfigFileUsed returns the config file path, or empty when running on defaults.
func (cm *Manager) ConfigFileUsed() string {
	return cm.v.ConfigFileUsed()
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	pattern := regexp.MustCompile(`\$\{([^}]+)\}`)
	return pattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// APIKeyRef returns the configured key reference, falling back to the
// provider's conventional environment variable.
func (c *Config) APIKeyRef() string {
	if c.Provider.APIKey != "" {
		return c.Provider.APIKey
	}
	return defaultAPIKeyRefs[c.Provider.Type]
}

// ResolveAPIKey returns the generation service credential with ${ENV_VAR} references expanded.
func (c *Config) ResolveAPIKey() string {
	return strings.TrimSpace(ResolveEnvVars(c.APIKeyRef()))
}

// GeneratorModel returns the model to request. The default model belongs to
// the gemini backend, so it is dropped when another backend is selected and
// that backend's own default applies.
func (c *Config) GeneratorModel() string {
	if c.Provider.Type != "gemini" && c.Provider.Model == DefaultConfig().Provider.Model {
		return ""
	}
	return c.Provider.Model
}

// Validate checks the settings a batch run cannot start without.
func (c *Config) Validate() error {
	if c.Provider.Type == "" {
		return fmt.Errorf("%w: provider.type is empty", ErrInvalidConfig)
	}
	if c.Paths.Papers == "" {
		return fmt.Errorf("%w: paths.papers is empty", ErrInvalidConfig)
	}
	if c.Paths.Feedback == "" {
		return fmt.Errorf("%w: paths.feedback is empty", ErrInvalidConfig)
	}
	if c.Pacing.Delay < 0 {
		return fmt.Errorf("%w: pacing.delay must not be negative", ErrInvalidConfig)
	}
	if c.Pacing.RequestsPerMinute < 0 {
		return fmt.Errorf("%w: pacing.requests_per_minute must not be negative", ErrInvalidConfig)
	}
	// The mock backend never leaves the process.
	if c.Provider.Type != "mock" && c.ResolveAPIKey() == "" {
		return fmt.Errorf("%w: %s resolved to an empty value; export it before running", ErrMissingCredential, c.APIKeyRef())
	}
	return nil
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# critique configuration
# An empty api_key reads GOOGLE_API_KEY for gemini and OPENAI_API_KEY for openai.
# To override, use ${ENV_VAR} syntax, e.g. api_key: ${MY_KEY}

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
