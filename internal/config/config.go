// Package config loads taxomap configuration from file and environment.
//
// Precedence (highest to lowest):
//  1. Command flags that were explicitly set (applied by cmd)
//  2. Environment variables (TAXOMAP_*)
//  3. Config file
//  4. Built-in defaults
//
// Config file search order:
//  1. --config path, when given
//  2. .taxomap.yaml in current directory
//  3. ~/.config/taxomap/config.yaml
//
// A .env file in the current directory is loaded into the process
// environment first; variables that are already set are left alone.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/timvw/taxomap/internal/usage"
)

// Supported providers.
const (
	ProviderGroq      = "groq"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// ErrNoAPIKey is returned by RequireAPIKey when no credential is configured
// for the selected provider.
var ErrNoAPIKey = errors.New("no API key configured")

// Config holds all taxomap configuration.
type Config struct {
	// LLM settings
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	MaxTokens   int64   `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	Timeout     string  `yaml:"timeout"` // Go duration string, e.g. "30s"

	// Batch settings
	Parallel int    `yaml:"parallel"`
	Taxonomy string `yaml:"taxonomy"`
	Cases    string `yaml:"cases"`
	Output   string `yaml:"output"`

	LogLevel string `yaml:"log_level"`

	Pricing usage.Pricing `yaml:"pricing"`

	// OTEL
	OTELEndpoint string `yaml:"otel_endpoint"`
	OTELHeaders  string `yaml:"otel_headers"` // Comma-separated key=value pairs, e.g. "Authorization=Basic abc123"

	// Parsed timeout (not from YAML, set by Finalize)
	TimeoutDuration time.Duration `yaml:"-"`

	// ConfigFile is the path to the config file that was loaded (empty if none).
	ConfigFile string `yaml:"-"`
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		Provider:    ProviderGroq,
		MaxTokens:   220,
		Temperature: 0.1,
		Timeout:     "30s",
		Parallel:    1,
		Taxonomy:    "taxonomy.json",
		Cases:       "test_cases.json",
		Output:      filepath.Join("outputs", "results.json"),
		LogLevel:    "info",
		Pricing:     usage.DefaultPricing(),
	}
}

// Load reads configuration from .env, the config file and environment
// variables. explicitPath, when non-empty, must exist.
func Load(explicitPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := Defaults()

	path, data, err := findConfigFile(explicitPath)
	if err != nil {
		return nil, err
	}
	if path != "" {
		// Decoding onto the defaults keeps every key the file leaves out.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
		cfg.ConfigFile = path
	}

	if err := mergeEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// findConfigFile returns the first config file found. An empty path with a
// nil error means none was found.
func findConfigFile(explicitPath string) (string, []byte, error) {
	if explicitPath != "" {
		data, err := os.ReadFile(explicitPath)
		if err != nil {
			return "", nil, fmt.Errorf("reading config file: %w", err)
		}
		return explicitPath, data, nil
	}

	// 1. Current directory
	if data, err := os.ReadFile(".taxomap.yaml"); err == nil {
		return ".taxomap.yaml", data, nil
	}

	// 2. ~/.config
	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, ".config", "taxomap", "config.yaml")
		if data, err := os.ReadFile(path); err == nil {
			return path, data, nil
		}
	}

	return "", nil, nil
}

// mergeEnv applies environment variables onto cfg. Env always wins over the file.
func mergeEnv(cfg *Config) error {
	if v := os.Getenv("TAXOMAP_PROVIDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("TAXOMAP_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("TAXOMAP_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("TAXOMAP_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("TAXOMAP_TIMEOUT"); v != "" {
		cfg.Timeout = v
	}
	if v := os.Getenv("TAXOMAP_TAXONOMY"); v != "" {
		cfg.Taxonomy = v
	}
	if v := os.Getenv("TAXOMAP_CASES"); v != "" {
		cfg.Cases = v
	}
	if v := os.Getenv("TAXOMAP_OUTPUT"); v != "" {
		cfg.Output = v
	}
	if v := os.Getenv("TAXOMAP_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.OTELEndpoint = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"); v != "" {
		cfg.OTELHeaders = v
	}

	if v := os.Getenv("TAXOMAP_MAX_TOKENS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid TAXOMAP_MAX_TOKENS %q: %w", v, err)
		}
		cfg.MaxTokens = n
	}
	if v := os.Getenv("TAXOMAP_TEMPERATURE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid TAXOMAP_TEMPERATURE %q: %w", v, err)
		}
		cfg.Temperature = f
	}
	if v := os.Getenv("TAXOMAP_PARALLEL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid TAXOMAP_PARALLEL %q: %w", v, err)
		}
		cfg.Parallel = n
	}
	return nil
}

// Finalize validates the provider, fills provider-dependent defaults (model,
// base URL, API key fallbacks) and parses the timeout. It is called once all
// layers, including flags, have been applied.
func (c *Config) Finalize() error {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	switch c.Provider {
	case ProviderGroq, ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("unknown provider %q (supported: groq, openai, anthropic)", c.Provider)
	}

	if c.Model == "" {
		c.Model = DefaultModel(c.Provider)
	}

	if c.BaseURL == "" {
		if rn := os.Getenv("AZURE_RESOURCE_NAME"); rn != "" {
			switch c.Provider {
			case ProviderAnthropic:
				// The Anthropic SDK appends v1/messages to the base URL.
				c.BaseURL = fmt.Sprintf("https://%s.services.ai.azure.com/anthropic/", rn)
			case ProviderOpenAI:
				c.BaseURL = fmt.Sprintf("https://%s.openai.azure.com/openai/v1", rn)
			}
		}
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL(c.Provider)
	}

	if c.APIKey == "" {
		for _, name := range apiKeyEnv(c.Provider) {
			if v := os.Getenv(name); v != "" {
				c.APIKey = v
				break
			}
		}
	}

	if c.Parallel < 1 {
		c.Parallel = 1
	}

	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
	}
	if d <= 0 {
		return fmt.Errorf("timeout must be positive, got %q", c.Timeout)
	}
	c.TimeoutDuration = d
	return nil
}

// RequireAPIKey returns the configured key, or an error wrapping ErrNoAPIKey
// that names the variables that were consulted.
func (c *Config) RequireAPIKey() (string, error) {
	if c.APIKey != "" {
		return c.APIKey, nil
	}
	names := append([]string{"TAXOMAP_API_KEY"}, apiKeyEnv(c.Provider)...)
	return "", fmt.Errorf("%w for provider %q: set %s", ErrNoAPIKey, c.Provider, strings.Join(names, " or "))
}

// UsesAzure reports whether requests go to an Azure endpoint, which needs the
// extra "api-key" header.
func (c *Config) UsesAzure() bool {
	return os.Getenv("AZURE_RESOURCE_NAME") != "" || IsAzureEndpoint(c.BaseURL)
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(provider string) string {
	switch provider {
	case ProviderGroq:
		return "llama-3.1-8b-instant"
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderAnthropic:
		return "claude-haiku-4-5"
	}
	return ""
}

// DefaultBaseURL returns the provider endpoint. Empty means the SDK default.
func DefaultBaseURL(provider string) string {
	if provider == ProviderGroq {
		return "https://api.groq.com/openai/v1"
	}
	return ""
}

func apiKeyEnv(provider string) []string {
	switch provider {
	case ProviderGroq:
		return []string{"GROQ_API_KEY"}
	case ProviderOpenAI:
		return []string{"AZURE_OPENAI_API_KEY", "OPENAI_API_KEY"}
	case ProviderAnthropic:
		return []string{"AZURE_OPENAI_API_KEY", "ANTHROPIC_API_KEY"}
	}
	return nil
}

// IsAzureEndpoint returns true if the URL is an Azure endpoint.
func IsAzureEndpoint(url string) bool {
	return strings.Contains(url, ".azure.com") || strings.Contains(url, ".azure.us")
}
