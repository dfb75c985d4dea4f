package usage

import (
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/timvw/taxomap/internal/model"
)

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestPricing_Cost(t *testing.T) {
	p := DefaultPricing()
	got := p.Cost(100, 50)
	want := 100*0.00005 + 50*0.00008
	if !approxEqual(got, want) {
		t.Errorf("Cost(100, 50) = %v, want %v", got, want)
	}
}

func TestNewRecord_DerivesMissingTotal(t *testing.T) {
	r := NewRecord(model.TokenUsage{InputTokens: 10, OutputTokens: 5}, DefaultPricing())
	if r.TotalTokens != 15 {
		t.Errorf("TotalTokens: got %d, want 15", r.TotalTokens)
	}

	r = NewRecord(model.TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 20}, DefaultPricing())
	if r.TotalTokens != 20 {
		t.Errorf("TotalTokens: got %d, want reported 20", r.TotalTokens)
	}
}

func TestAccumulator_Summary(t *testing.T) {
	acc := NewAccumulator()
	acc.Add(Record{InputTokens: 100, OutputTokens: 20, TotalTokens: 120, Cost: 0.01})
	acc.Add(Record{InputTokens: 300, OutputTokens: 40, TotalTokens: 340, Cost: 0.03})

	s := acc.Summary()
	if s.Calls != 2 || s.InputTokens != 400 || s.OutputTokens != 60 || s.TotalTokens != 460 {
		t.Fatalf("Summary = %+v, want calls=2 input=400 output=60 total=460", s)
	}
	if !approxEqual(s.Cost, 0.04) {
		t.Errorf("Cost: got %v, want 0.04", s.Cost)
	}

	avgIn, avgOut, avgTotal := s.Average()
	if avgIn != 200 || avgOut != 30 || avgTotal != 230 {
		t.Errorf("Average() = %v, %v, %v; want 200, 30, 230", avgIn, avgOut, avgTotal)
	}
	if !approxEqual(s.ProjectedCost(1000), 20) {
		t.Errorf("ProjectedCost(1000) = %v, want 20", s.ProjectedCost(1000))
	}
}

func TestAccumulator_Empty(t *testing.T) {
	s := NewAccumulator().Summary()
	if s.Calls != 0 {
		t.Errorf("Calls: got %d, want 0", s.Calls)
	}
	if s.ProjectedCost(10) != 0 {
		t.Errorf("ProjectedCost on empty summary should be 0")
	}
	if got := s.Render(); got != "No usage data yet." {
		t.Errorf("Render() = %q", got)
	}
}

func TestAccumulator_NilSafe(t *testing.T) {
	var acc *Accumulator
	acc.Add(Record{InputTokens: 1})
	if got := acc.Records(); got != nil {
		t.Errorf("nil accumulator Records() = %v, want nil", got)
	}
	if acc.Summary().Calls != 0 {
		t.Error("nil accumulator should summarize to zero")
	}
}

func TestAccumulator_ConcurrentAdd(t *testing.T) {
	acc := NewAccumulator()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acc.Add(Record{InputTokens: 2, OutputTokens: 1, TotalTokens: 3})
		}()
	}
	wg.Wait()

	if s := acc.Summary(); s.Calls != 50 || s.TotalTokens != 150 {
		t.Errorf("Summary = %+v, want calls=50 total=150", s)
	}
}

func TestSummary_Render(t *testing.T) {
	acc := NewAccumulator()
	acc.Add(NewRecord(model.TokenUsage{InputTokens: 250, OutputTokens: 40, TotalTokens: 290}, DefaultPricing()))

	out := acc.Summary().Render()
	for _, want := range []string{"Token usage", "Stories processed", "Total cost", "290"} {
		if !strings.Contains(out, want) {
			t.Errorf("Render() missing %q in:\n%s", want, out)
		}
	}
}

func TestRecord_Line(t *testing.T) {
	r := Record{InputTokens: 10, OutputTokens: 5, TotalTokens: 15, Cost: 0.0009}
	want := "Tokens: 10 in + 5 out = 15 total | $0.000900"
	if got := r.Line(); got != want {
		t.Errorf("Line() = %q, want %q", got, want)
	}
}
