package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/timvw/taxomap/internal/browser"
	"github.com/timvw/taxomap/internal/config"
	"github.com/timvw/taxomap/internal/dataset"
	"github.com/timvw/taxomap/internal/engine"
	"github.com/timvw/taxomap/internal/model"
	"github.com/timvw/taxomap/internal/results"
	"github.com/timvw/taxomap/internal/taxonomy"
	"github.com/timvw/taxomap/internal/usage"
)

var (
	flagTaxonomy string
	flagCases    string
	flagOutput   string
	flagParallel int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Classify every case in a batch file and write the result log",
	Long: `Load the taxonomy and the case batch, classify each case and write
one result record per case, in input order, to the output file.

A case never aborts the batch: remote failures and malformed answers are
recorded as [UNMAPPED] with the reason. Missing credentials or unreadable
input files stop the run before any case is processed.`,
	Args: cobra.NoArgs,
	RunE: runBatch,
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagTaxonomy, "taxonomy", "taxonomy.json", "taxonomy file (JSON or YAML)")
	cmd.Flags().StringVar(&flagCases, "cases", "test_cases.json", "case batch file (JSON, or YAML by extension)")
	cmd.Flags().StringVar(&flagOutput, "output", filepath.Join("outputs", "results.json"), "result log path")
	cmd.Flags().IntVar(&flagParallel, "parallel", 1, "number of cases classified concurrently")
}

// applyRunFlags copies batch flags that were set on the command line. Not
// every command defines all of them.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("taxonomy") {
		cfg.Taxonomy, _ = flags.GetString("taxonomy")
	}
	if flags.Changed("cases") {
		cfg.Cases, _ = flags.GetString("cases")
	}
	if flags.Changed("output") {
		cfg.Output, _ = flags.GetString("output")
	}
	if flags.Changed("parallel") {
		cfg.Parallel, _ = flags.GetInt("parallel")
	}
}

func runBatch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

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

	out := cmd.OutOrStdout()
	tr := newTrace(out, browser.NewStyles(browser.ThemeByName(flagTheme)))
	tr.banner()

	fmt.Fprintf(out, "Initializing engine with %s ...\n", cfg.Taxonomy)
	tax, err := taxonomy.Load(cfg.Taxonomy)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Engine ready: %d labels, %s/%s.\n\n", len(tax.Labels()), client.Provider(), client.Model())

	cases, err := dataset.LoadCases(cfg.Cases)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Loaded %d test cases from %s.\n\n", len(cases), cfg.Cases)

	tel := initTelemetry(ctx, cfg, logger)
	defer shutdownTelemetry(tel, logger)

	acc := usage.NewAccumulator()
	eng := engine.New(client, tax.Labels(),
		engine.WithLogger(logger),
		engine.WithMetrics(tel.Metrics),
		engine.WithUsage(acc),
		engine.WithPricing(cfg.Pricing),
		engine.WithParallel(cfg.Parallel),
	)

	report, err := eng.Run(ctx, cases, tr.outcome)
	if err != nil {
		return err
	}

	records := report.Records()
	if err := results.Write(cfg.Output, records); err != nil {
		return err
	}
	logger.Debug("results written", zap.String("path", cfg.Output), zap.String("run_id", report.RunID))

	mapped, unmapped := results.Counts(records)
	path := cfg.Output
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	tr.summary(mapped, unmapped, path)

	fmt.Fprintln(out)
	fmt.Fprintln(out, acc.Summary().Render())
	return nil
}

// trace prints the human-readable per-case progress of a batch run.
type trace struct {
	w  io.Writer
	st browser.Styles
}

func newTrace(w io.Writer, st browser.Styles) *trace {
	return &trace{w: w, st: st}
}

const rule = "=========================="

func (t *trace) banner() {
	fmt.Fprintln(t.w, t.st.Title.Render("Adaptive Taxonomy Mapper"))
	fmt.Fprintln(t.w, t.st.Rule.Render(rule))
	fmt.Fprintln(t.w)
}

func (t *trace) outcome(o engine.Outcome) {
	c, cl := o.Case, o.Classification
	fmt.Fprintln(t.w, t.st.Label.Render(fmt.Sprintf("--- Case %d ---", c.ID)))
	fmt.Fprintf(t.w, "User tags: %s\n", model.TagsText(c.UserTags))
	fmt.Fprintf(t.w, "Blurb: %s\n\n", strings.TrimSpace(c.Blurb))
	if o.Usage != nil {
		fmt.Fprintln(t.w, t.st.Dim.Render(o.Usage.Line()))
	}
	fmt.Fprintf(t.w, "Mapped category: %s\n", cl.Category)
	fmt.Fprintf(t.w, "Reasoning: %s\n", t.st.Dim.Render(cl.Reasoning))
	fmt.Fprintf(t.w, "Status: %s\n\n", t.st.Status(cl.Status))
}

func (t *trace) summary(mapped, unmapped int, path string) {
	fmt.Fprintln(t.w, t.st.Rule.Render(rule))
	fmt.Fprintf(t.w, "Summary: MAPPED=%d, UNMAPPED=%d\n", mapped, unmapped)
	fmt.Fprintf(t.w, "Detailed results saved to: %s\n", path)
}
