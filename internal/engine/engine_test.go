package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/timvw/taxomap/internal/guard"
	"github.com/timvw/taxomap/internal/llm"
	"github.com/timvw/taxomap/internal/model"
	"github.com/timvw/taxomap/internal/usage"
)

// fakeClient answers every prompt with reply (or err) and counts calls.
type fakeClient struct {
	reply string
	usage *model.TokenUsage
	err   error
	delay time.Duration

	calls   atomic.Int32
	mu      sync.Mutex
	prompts []string
}

func (f *fakeClient) Complete(ctx context.Context, prompt string) (*llm.Completion, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Completion{Text: f.reply, Usage: f.usage}, nil
}

func (f *fakeClient) Provider() string { return "fake" }
func (f *fakeClient) Model() string    { return "fake-model" }

var testLabels = []string{"Slow-burn", "Enemies-to-Lovers", "Slasher", "Slow-burn"}

func newTestEngine(t *testing.T, c llm.Client, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	return New(c, testLabels, opts...)
}

func TestNew_SortsAndDedupesLabels(t *testing.T) {
	e := newTestEngine(t, &fakeClient{})
	assert.Equal(t, []string{"Enemies-to-Lovers", "Slasher", "Slow-burn"}, e.Labels())
}

func TestMapStory_AllowListedAnswer(t *testing.T) {
	client := &fakeClient{reply: `Explanation: fits romance. {"category": "Slow-burn", "reasoning": "Quotes emotional tension."}`}
	e := newTestEngine(t, client)

	got := e.MapStory(context.Background(), model.StoryCase{
		ID:       1,
		UserTags: []string{"romance"},
		Blurb:    "Two rivals slowly fall for each other over a long summer.",
	})

	assert.Equal(t, "Slow-burn", got.Category)
	assert.Equal(t, "Quotes emotional tension.", got.Reasoning)
	assert.Equal(t, model.StatusMapped, got.Status)
	assert.Equal(t, model.SourceLLM, got.Source)
	assert.EqualValues(t, 1, client.calls.Load())
}

func TestMapStory_PrefilterShortCircuits(t *testing.T) {
	client := &fakeClient{reply: `{"category": "Slow-burn", "reasoning": "x"}`}
	e := newTestEngine(t, client)

	got := e.MapStory(context.Background(), model.StoryCase{
		ID:    2,
		Blurb: "How to bake sourdough: mix flour and water, then bake at 450 degrees.",
	})

	assert.Equal(t, model.Unmapped, got.Category)
	assert.Equal(t, PrefilterReasoning, got.Reasoning)
	assert.Equal(t, model.StatusUnmapped, got.Status)
	assert.Equal(t, model.SourcePrefilter, got.Source)
	assert.Zero(t, client.calls.Load(), "pre-filtered case must not reach the remote classifier")
}

func TestMapStory_OffTaxonomyCoerced(t *testing.T) {
	client := &fakeClient{reply: `{"category": "Thriller-Noir", "reasoning": "dark tone"}`}
	e := newTestEngine(t, client)

	got := e.MapStory(context.Background(), model.StoryCase{ID: 3, Blurb: "A detective walks the rain-soaked city."})

	assert.Equal(t, model.Unmapped, got.Category)
	assert.Equal(t, model.StatusUnmapped, got.Status)
	assert.True(t, strings.HasPrefix(got.Reasoning, "dark tone"))
	assert.True(t, strings.HasSuffix(got.Reasoning, guard.CoercionNotice))
}

func TestMapStory_CoercionIsLoggedOnlyWhenLabelRejected(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  int
	}{
		{"off taxonomy", `{"category": "Thriller-Noir", "reasoning": "dark tone"}`, 1},
		{"mapped reasoning ending like the notice", `{"category": "Slow-burn", "reasoning": "tension. ` + guard.CoercionNotice + `"}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.InfoLevel)
			e := New(&fakeClient{reply: tt.reply}, testLabels, WithLogger(zap.New(core)))

			e.MapStory(context.Background(), model.StoryCase{ID: 1, Blurb: "Two rivals share a desk."})

			assert.Equal(t, tt.want, logs.FilterMessage("coerced label outside taxonomy").Len())
		})
	}
}

func TestMapStory_MalformedOutput(t *testing.T) {
	client := &fakeClient{reply: "I think it's a romance."}
	e := newTestEngine(t, client)

	got := e.MapStory(context.Background(), model.StoryCase{ID: 4, Blurb: "Two hearts collide."})

	assert.Equal(t, model.Unmapped, got.Category)
	assert.Equal(t, guard.ParseFailureReasoning, got.Reasoning)
	assert.Equal(t, model.StatusUnmapped, got.Status)
}

func TestMapStory_TransportFailure(t *testing.T) {
	client := &fakeClient{err: errors.New("connection refused")}
	e := newTestEngine(t, client)

	got := e.MapStory(context.Background(), model.StoryCase{ID: 5, Blurb: "A ship drifts between stars."})

	assert.Equal(t, model.Unmapped, got.Category)
	assert.Equal(t, "Remote classifier call failed: connection refused", got.Reasoning)
	assert.Equal(t, model.StatusUnmapped, got.Status)
	assert.Equal(t, model.SourceError, got.Source)
	assert.EqualValues(t, 1, client.calls.Load(), "failed call must not be retried")
}

func TestMapStory_EmptyTaxonomy(t *testing.T) {
	client := &fakeClient{reply: `{"category": "Slow-burn", "reasoning": "romance"}`}
	e := New(client, nil, WithLogger(zaptest.NewLogger(t)))

	got := e.MapStory(context.Background(), model.StoryCase{ID: 6, Blurb: "Two rivals fall in love."})

	assert.Equal(t, model.Unmapped, got.Category)
	assert.Equal(t, model.StatusUnmapped, got.Status)
}

func TestMapStory_PromptIsDeterministic(t *testing.T) {
	client := &fakeClient{reply: `{"category": "Slasher", "reasoning": "masked killer"}`}
	e := newTestEngine(t, client)
	c := model.StoryCase{ID: 7, UserTags: []string{"horror"}, Blurb: "A masked figure stalks campers."}

	e.MapStory(context.Background(), c)
	e.MapStory(context.Background(), c)

	require.Len(t, client.prompts, 2)
	assert.Equal(t, client.prompts[0], client.prompts[1])
	assert.Equal(t, e.Prompt(c), client.prompts[0])
	assert.Contains(t, client.prompts[0], "Enemies-to-Lovers, Slasher, Slow-burn")
	assert.Contains(t, client.prompts[0], "A masked figure stalks campers.")
}

func TestClassify_RecordsUsage(t *testing.T) {
	client := &fakeClient{
		reply: `{"category": "Slasher", "reasoning": "masked killer"}`,
		usage: &model.TokenUsage{InputTokens: 100, OutputTokens: 20},
	}
	acc := usage.NewAccumulator()
	e := newTestEngine(t, client, WithUsage(acc), WithPricing(usage.Pricing{InputPerToken: 0.01, OutputPerToken: 0.1}))

	out := e.Classify(context.Background(), model.StoryCase{ID: 8, Blurb: "A masked figure stalks campers."})

	require.NotNil(t, out.Usage)
	assert.EqualValues(t, 120, out.Usage.TotalTokens)
	assert.InDelta(t, 3.0, out.Usage.Cost, 1e-9)

	s := acc.Summary()
	assert.Equal(t, 1, s.Calls)
	assert.EqualValues(t, 100, s.InputTokens)
	assert.EqualValues(t, 20, s.OutputTokens)
}

func TestClassify_NoUsageWhenNotReported(t *testing.T) {
	acc := usage.NewAccumulator()
	e := newTestEngine(t, &fakeClient{reply: `{"category": "Slasher", "reasoning": "r"}`}, WithUsage(acc))

	out := e.Classify(context.Background(), model.StoryCase{ID: 9, Blurb: "A masked figure stalks campers."})

	assert.Nil(t, out.Usage)
	assert.Zero(t, acc.Summary().Calls)
}

func TestClassify_NoUsageForPrefilterOrFailure(t *testing.T) {
	acc := usage.NewAccumulator()
	client := &fakeClient{err: errors.New("timeout"), usage: &model.TokenUsage{InputTokens: 1}}
	e := newTestEngine(t, client, WithUsage(acc))

	e.Classify(context.Background(), model.StoryCase{ID: 10, Blurb: "Recipe: add two eggs."})
	e.Classify(context.Background(), model.StoryCase{ID: 11, Blurb: "A quiet village hides a secret."})

	assert.Zero(t, acc.Summary().Calls)
}

func batch() []model.StoryCase {
	return []model.StoryCase{
		{ID: 1, UserTags: []string{"romance"}, Blurb: "Two rivals slowly fall for each other."},
		{ID: 2, Blurb: "Step-by-step guide to growing tomatoes."},
		{ID: 3, UserTags: []string{"horror"}, Blurb: "A masked figure stalks campers."},
		{ID: 4, Blurb: "A lighthouse keeper finds a message in a bottle."},
		{ID: 5, Blurb: "Preheat the oven; bake at 350 degrees."},
	}
}

func TestRun_SequentialOrderAndCallback(t *testing.T) {
	client := &fakeClient{reply: `{"category": "Slow-burn", "reasoning": "r"}`}
	e := newTestEngine(t, client)

	var seen []int
	report, err := e.Run(context.Background(), batch(), func(o Outcome) {
		seen = append(seen, o.Case.ID)
	})
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, seen)

	records := report.Records()
	require.Len(t, records, 5)
	for i, r := range records {
		assert.Equal(t, i+1, r.ID)
		assert.NotEmpty(t, r.Reasoning)
		assert.Equal(t, model.StatusFor(r.Category), r.Status)
	}
	assert.Equal(t, model.Unmapped, records[1].Category)
	assert.Equal(t, model.Unmapped, records[4].Category)
	assert.EqualValues(t, 3, client.calls.Load(), "one remote call per non-pre-filtered case")
}

func TestRun_ParallelKeepsInputOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	client := &fakeClient{
		reply: `{"category": "Slasher", "reasoning": "r"}`,
		usage: &model.TokenUsage{InputTokens: 10, OutputTokens: 2},
		delay: 5 * time.Millisecond,
	}
	acc := usage.NewAccumulator()
	e := newTestEngine(t, client, WithParallel(3), WithUsage(acc))

	var cases []model.StoryCase
	for i := 1; i <= 20; i++ {
		cases = append(cases, model.StoryCase{ID: i, Blurb: "A masked figure stalks campers."})
	}

	var seen []int
	report, err := e.Run(context.Background(), cases, func(o Outcome) {
		seen = append(seen, o.Case.ID)
	})
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 20)
	for i, o := range report.Outcomes {
		assert.Equal(t, i+1, o.Case.ID)
		assert.Equal(t, "Slasher", o.Classification.Category)
		assert.Equal(t, i+1, seen[i])
	}
	assert.EqualValues(t, 20, client.calls.Load())
	assert.Equal(t, 20, acc.Summary().Calls)
	assert.EqualValues(t, 240, acc.Summary().TotalTokens)
}

func TestRun_EmptyBatch(t *testing.T) {
	e := newTestEngine(t, &fakeClient{})
	report, err := e.Run(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, report.Records())
}

func TestRun_Cancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &fakeClient{reply: `{"category": "Slasher", "reasoning": "r"}`}
	e := newTestEngine(t, client)

	_, err := e.Run(ctx, batch(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, client.calls.Load())
}
