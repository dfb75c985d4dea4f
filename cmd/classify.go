package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/timvw/taxomap/internal/engine"
	"github.com/timvw/taxomap/internal/model"
	"github.com/timvw/taxomap/internal/taxonomy"
)

var flagOneTags []string

var classifyCmd = &cobra.Command{
	Use:   "classify <blurb>",
	Short: "Classify a single blurb and print the result as JSON",
	Long: `Classify one story blurb against the taxonomy.

The result is printed as a JSON object with category, reasoning and status,
exactly as it would appear in a batch result log.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		client, err := getClient(cfg)
		if err != nil {
			return err
		}

		tax, err := taxonomy.Load(cfg.Taxonomy)
		if err != nil {
			return err
		}

		tel := initTelemetry(cmd.Context(), cfg, logger)
		defer shutdownTelemetry(tel, logger)

		eng := engine.New(client, tax.Labels(),
			engine.WithLogger(logger),
			engine.WithMetrics(tel.Metrics),
			engine.WithPricing(cfg.Pricing),
		)
		out := eng.Classify(cmd.Context(), model.StoryCase{UserTags: flagOneTags, Blurb: args[0]})
		if out.Usage != nil {
			logger.Debug(out.Usage.Line())
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(out.Classification); err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}
		return nil
	},
}

var promptCmd = &cobra.Command{
	Use:   "prompt <blurb>",
	Short: "Print the exact prompt a blurb would be classified with",
	Long: `Render the classification prompt for one blurb without calling the
remote classifier. No credentials are needed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		tax, err := taxonomy.Load(cfg.Taxonomy)
		if err != nil {
			return err
		}
		eng := engine.New(nil, tax.Labels())
		_, err = fmt.Fprintln(cmd.OutOrStdout(), eng.Prompt(model.StoryCase{UserTags: flagOneTags, Blurb: args[0]}))
		return err
	},
}

func init() {
	for _, c := range []*cobra.Command{classifyCmd, promptCmd} {
		c.Flags().StringSliceVar(&flagOneTags, "tags", nil, "comma-separated user tags")
		c.Flags().String("taxonomy", "taxonomy.json", "taxonomy file (JSON or YAML)")
		rootCmd.AddCommand(c)
	}
}
