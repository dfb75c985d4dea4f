package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/timvw/taxomap/internal/browser"
	"github.com/timvw/taxomap/internal/config"
	"github.com/timvw/taxomap/internal/results"
)

var browseCmd = &cobra.Command{
	Use:   "browse [results.json]",
	Short: "Explore a result log interactively",
	Long: `Open a terminal UI over a result log written by "run".

Keys: up/down to move, u to show only UNMAPPED records, / to search
category, tags, blurb and reasoning, esc to clear, q to quit.

Without an argument the configured output path is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var path string
		if len(args) == 1 {
			path = args[0]
		} else {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			path = cfg.Output
		}

		records, err := results.Read(path)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return fmt.Errorf("%s contains no records", path)
		}

		b := &browser.Browser{
			Records: records,
			Source:  path,
			Theme:   browser.ThemeByName(flagTheme),
		}
		return b.Run()
	},
}

func init() {
	rootCmd.AddCommand(browseCmd)
}
