package cmd

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/timvw/taxomap/internal/taxonomy"
)

var flagLabelsTree bool

var labelsCmd = &cobra.Command{
	Use:   "labels",
	Short: "List the labels a story can be mapped to",
	Long: `List every leaf label of the taxonomy, one per line, in file order.
With --tree, show the genre / sub-category / label hierarchy as a table.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		tax, err := taxonomy.Load(cfg.Taxonomy)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if flagLabelsTree {
			_, err = fmt.Fprintln(out, renderTree(tax))
			return err
		}
		for _, l := range tax.Labels() {
			if _, err := fmt.Fprintln(out, l); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	labelsCmd.Flags().BoolVar(&flagLabelsTree, "tree", false, "show the taxonomy hierarchy")
	labelsCmd.Flags().String("taxonomy", "taxonomy.json", "taxonomy file (JSON or YAML)")
	rootCmd.AddCommand(labelsCmd)
}

// renderTree draws one row per sub-category with its labels, merging the
// genre column.
func renderTree(tax *taxonomy.Taxonomy) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle("Taxonomy")
	tw.AppendHeader(table.Row{"Genre", "Sub-category", "Labels"})

	for _, g := range tax.Genres() {
		for _, c := range g.Categories {
			tw.AppendRow(table.Row{g.Name, c.Name, strings.Join(c.Labels, "\n")}, table.RowConfig{AutoMerge: true})
		}
		tw.AppendSeparator()
	}
	tw.AppendFooter(table.Row{"", "Total labels", len(tax.Labels())})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, VAlign: text.VAlignMiddle},
		{Number: 3, AlignFooter: text.AlignLeft},
	})
	return tw.Render()
}
