// Package usage accounts for remote classifier token consumption and cost.
//
// An Accumulator is owned by whoever runs a batch and is passed to the
// engine explicitly. Records are append-only and aggregation does not depend
// on their order, so the accumulator is safe to share between concurrent
// case workers.
package usage

import (
	"fmt"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/timvw/taxomap/internal/model"
)

// Default per-token prices in USD.
const (
	DefaultInputPerToken  = 0.00005
	DefaultOutputPerToken = 0.00008
)

// Pricing converts token counts into a cost estimate.
type Pricing struct {
	InputPerToken  float64 `yaml:"input_per_token"`
	OutputPerToken float64 `yaml:"output_per_token"`
}

// DefaultPricing returns the built-in price list.
func DefaultPricing() Pricing {
	return Pricing{InputPerToken: DefaultInputPerToken, OutputPerToken: DefaultOutputPerToken}
}

// Cost returns the estimated cost of a call.
func (p Pricing) Cost(input, output int64) float64 {
	return float64(input)*p.InputPerToken + float64(output)*p.OutputPerToken
}

// Record is the accounting entry for one successful remote call.
type Record struct {
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	TotalTokens  int64   `json:"total_tokens"`
	Cost         float64 `json:"cost"`
}

// NewRecord prices a token usage report. A missing total is derived from
// input + output.
func NewRecord(u model.TokenUsage, p Pricing) Record {
	total := u.TotalTokens
	if total == 0 {
		total = u.InputTokens + u.OutputTokens
	}
	return Record{
		InputTokens:  u.InputTokens,
		OutputTokens: u.OutputTokens,
		TotalTokens:  total,
		Cost:         p.Cost(u.InputTokens, u.OutputTokens),
	}
}

// Accumulator collects usage records.
type Accumulator struct {
	mu      sync.Mutex
	records []Record
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Add appends a record. Nil-safe.
func (a *Accumulator) Add(r Record) {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, r)
}

// Records returns a copy of all records.
func (a *Accumulator) Records() []Record {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Record, len(a.records))
	copy(out, a.records)
	return out
}

// Summary aggregates everything recorded so far.
func (a *Accumulator) Summary() Summary {
	var s Summary
	for _, r := range a.Records() {
		s.Calls++
		s.InputTokens += r.InputTokens
		s.OutputTokens += r.OutputTokens
		s.TotalTokens += r.TotalTokens
		s.Cost += r.Cost
	}
	return s
}

// Summary is the aggregate over all usage records.
type Summary struct {
	Calls        int
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
	Cost         float64
}

// Average returns per-call input, output and total tokens.
func (s Summary) Average() (input, output, total float64) {
	if s.Calls == 0 {
		return 0, 0, 0
	}
	n := float64(s.Calls)
	return float64(s.InputTokens) / n, float64(s.OutputTokens) / n, float64(s.TotalTokens) / n
}

// ProjectedCost extrapolates the average per-call cost to n calls.
func (s Summary) ProjectedCost(n int) float64 {
	if s.Calls == 0 {
		return 0
	}
	return s.Cost / float64(s.Calls) * float64(n)
}

// Render formats the summary as a table for the console.
func (s Summary) Render() string {
	if s.Calls == 0 {
		return "No usage data yet."
	}
	avgIn, avgOut, avgTotal := s.Average()

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle("Token usage")
	tw.AppendHeader(table.Row{"Metric", "Input", "Output", "Total"})
	tw.AppendRow(table.Row{"Tokens", s.InputTokens, s.OutputTokens, s.TotalTokens})
	tw.AppendRow(table.Row{"Avg per story",
		fmt.Sprintf("%.0f", avgIn), fmt.Sprintf("%.0f", avgOut), fmt.Sprintf("%.0f", avgTotal)})
	tw.AppendSeparator()
	tw.AppendRow(table.Row{"Stories processed", "", "", s.Calls})
	tw.AppendRow(table.Row{"Total cost", "", "", fmt.Sprintf("$%.4f", s.Cost)})
	tw.AppendRow(table.Row{"Projected cost / 1M stories", "", "", fmt.Sprintf("$%.0f", s.ProjectedCost(1_000_000))})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	return tw.Render()
}

// Line formats a single record the way the per-call trace shows it.
func (r Record) Line() string {
	return fmt.Sprintf("Tokens: %d in + %d out = %d total | $%.6f", r.InputTokens, r.OutputTokens, r.TotalTokens, r.Cost)
}
