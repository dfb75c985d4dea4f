package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/timvw/taxomap/internal/config"
	"github.com/timvw/taxomap/internal/llm"
	"github.com/timvw/taxomap/internal/logging"
	telem "github.com/timvw/taxomap/internal/otel"
)

// Version is injected at build time via -ldflags "-X github.com/timvw/taxomap/cmd.Version=...".
var Version = "dev"

var (
	// Global flags.
	flagConfig      string
	flagProvider    string
	flagModel       string
	flagBaseURL     string
	flagAPIKey      string
	flagMaxTokens   int64
	flagTemperature float64
	flagTimeout     string
	flagLogLevel    string
	flagTheme       string
	flagVerbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "taxomap",
	Short: "Map story blurbs onto a fixed genre taxonomy",
	Long: `taxomap classifies free-text story blurbs, with optional user tags,
into exactly one leaf label of a genre taxonomy, or [UNMAPPED] when no
label honestly fits.

The blurb outweighs the tags. An LLM makes the call; Go code builds the
prompt, enforces the taxonomy on the answer and records why.

Run without a subcommand to process the default batch (same as "run").`,
	SilenceUsage: true,
	RunE:         runBatch,
}

// Execute runs the root command. An interrupt cancels in-flight remote calls.
func Execute() {
	rootCmd.Version = Version
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "config file (default: .taxomap.yaml, then ~/.config/taxomap/config.yaml)")
	pf.StringVar(&flagProvider, "provider", "", "LLM provider: groq, openai, anthropic (default: groq)")
	pf.StringVar(&flagModel, "model", "", "LLM model name (default: llama-3.1-8b-instant for groq, gpt-4o-mini for openai, claude-haiku-4-5 for anthropic)")
	pf.StringVar(&flagBaseURL, "base-url", "", "override LLM API base URL")
	pf.StringVar(&flagAPIKey, "api-key", "", "override LLM API key")
	pf.Int64Var(&flagMaxTokens, "max-tokens", 0, "max completion tokens (default: 220)")
	pf.Float64Var(&flagTemperature, "temperature", 0, "sampling temperature (default: 0.1)")
	pf.StringVar(&flagTimeout, "timeout", "", "per-request timeout (default: 30s)")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error (default: info)")
	pf.StringVar(&flagTheme, "theme", "dark", "color theme: dark, light")
	pf.BoolVar(&flagVerbose, "verbose", false, "human-readable debug logging")

	addRunFlags(rootCmd)
}

// loadConfig resolves configuration: defaults -> config file -> env vars ->
// flags that were set on the command line.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("provider") {
		cfg.Provider = flagProvider
	}
	if flags.Changed("model") {
		cfg.Model = flagModel
	}
	if flags.Changed("base-url") {
		cfg.BaseURL = flagBaseURL
	}
	if flags.Changed("api-key") {
		cfg.APIKey = flagAPIKey
	}
	if flags.Changed("max-tokens") {
		cfg.MaxTokens = flagMaxTokens
	}
	if flags.Changed("temperature") {
		cfg.Temperature = flagTemperature
	}
	if flags.Changed("timeout") {
		cfg.Timeout = flagTimeout
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	applyRunFlags(cmd, cfg)

	if err := cfg.Finalize(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.LogLevel, flagVerbose)
	if err != nil {
		return nil, err
	}
	if cfg.ConfigFile != "" {
		logger.Debug("config loaded", zap.String("path", cfg.ConfigFile))
	}
	return logger, nil
}

// getClient returns the configured remote classifier. A missing API key is
// an error so no case is processed without credentials.
func getClient(cfg *config.Config) (llm.Client, error) {
	apiKey, err := cfg.RequireAPIKey()
	if err != nil {
		return nil, err
	}

	lc := llm.Config{
		BaseURL:     cfg.BaseURL,
		APIKey:      apiKey,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Timeout:     cfg.TimeoutDuration,
	}
	// Azure needs both "api-key" (Azure) and the SDK's default auth header.
	if cfg.UsesAzure() {
		lc.ExtraHeaders = map[string]string{"api-key": apiKey}
	}

	switch cfg.Provider {
	case config.ProviderAnthropic:
		return llm.NewAnthropicClient(lc), nil
	case config.ProviderGroq, config.ProviderOpenAI:
		return llm.NewOpenAIClient(cfg.Provider, lc), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (supported: groq, openai, anthropic)", cfg.Provider)
	}
}

// initTelemetry starts OTEL. Failure only costs telemetry, so it is logged
// and a no-op Telemetry is returned.
func initTelemetry(ctx context.Context, cfg *config.Config, logger *zap.Logger) *telem.Telemetry {
	tel, err := telem.Init(ctx, telem.Config{
		Endpoint: cfg.OTELEndpoint,
		Headers:  cfg.OTELHeaders,
		Version:  Version,
	})
	if err != nil {
		logger.Warn("otel init failed", zap.Error(err))
		tel, _ = telem.Init(ctx, telem.Config{})
	}
	return tel
}

func shutdownTelemetry(tel *telem.Telemetry, logger *zap.Logger) {
	if !tel.Enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tel.Shutdown(ctx); err != nil {
		logger.Warn("otel shutdown", zap.Error(err))
	}
}
