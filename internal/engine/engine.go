// Package engine maps story cases onto the taxonomy.
//
// For each case the engine runs the pre-filter, builds the prompt, makes
// exactly one remote call and passes the raw answer through the guard. Every
// case yields a classification; failures are recorded in the reasoning text
// instead of aborting the batch.
package engine

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/timvw/taxomap/internal/guard"
	"github.com/timvw/taxomap/internal/llm"
	"github.com/timvw/taxomap/internal/model"
	txotel "github.com/timvw/taxomap/internal/otel"
	"github.com/timvw/taxomap/internal/prefilter"
	"github.com/timvw/taxomap/internal/prompt"
	"github.com/timvw/taxomap/internal/usage"
)

// PrefilterReasoning explains a pre-filter short-circuit.
const PrefilterReasoning = "Blurb appears to be instructional/non-fiction, so no honest match in the fiction taxonomy."

var tracer = otel.Tracer("taxomap")

// Engine classifies story cases against a fixed set of labels.
type Engine struct {
	client  llm.Client
	labels  []string
	allowed guard.AllowList

	logger   *zap.Logger
	metrics  *txotel.Metrics
	usage    *usage.Accumulator
	pricing  usage.Pricing
	parallel int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics sets the OTEL metric counters. nil disables metrics.
func WithMetrics(m *txotel.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithUsage sets the accumulator that receives one record per remote call
// that reported token counts.
func WithUsage(a *usage.Accumulator) Option {
	return func(e *Engine) { e.usage = a }
}

// WithPricing sets the per-token prices used for usage records.
func WithPricing(p usage.Pricing) Option {
	return func(e *Engine) { e.pricing = p }
}

// WithParallel bounds how many cases Run processes at once. Values below 1
// mean sequential.
func WithParallel(n int) Option {
	return func(e *Engine) { e.parallel = n }
}

// New returns an Engine for labels. Labels are sorted and deduplicated so the
// prompt is identical across runs regardless of taxonomy file order.
func New(client llm.Client, labels []string, opts ...Option) *Engine {
	sorted := slices.Clone(labels)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	e := &Engine{
		client:   client,
		labels:   sorted,
		allowed:  guard.NewAllowList(sorted),
		logger:   zap.NewNop(),
		pricing:  usage.DefaultPricing(),
		parallel: 1,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.parallel < 1 {
		e.parallel = 1
	}
	return e
}

// Labels returns the labels offered to the model, in prompt order.
func (e *Engine) Labels() []string {
	return slices.Clone(e.labels)
}

// Prompt returns the exact prompt MapStory would send for c.
func (e *Engine) Prompt(c model.StoryCase) string {
	return prompt.Build(prompt.BuildContext(c), e.labels)
}

// Outcome is the full result of processing one case.
type Outcome struct {
	Case           model.StoryCase
	Classification model.Classification
	// Usage is set when a remote call reported token counts.
	Usage *usage.Record
	// Duration is the wall time spent on the case.
	Duration time.Duration
}

// Record returns the result log entry for the outcome.
func (o Outcome) Record() model.Record {
	return model.NewRecord(o.Case, o.Classification)
}

// MapStory classifies a single case. It never fails: transport errors and
// malformed answers become UNMAPPED classifications.
func (e *Engine) MapStory(ctx context.Context, c model.StoryCase) model.Classification {
	return e.Classify(ctx, c).Classification
}

// Classify is MapStory plus the per-case accounting details.
func (e *Engine) Classify(ctx context.Context, c model.StoryCase) Outcome {
	ctx, span := tracer.Start(ctx, "map_story",
		trace.WithAttributes(
			attribute.Int("story.id", c.ID),
			attribute.StringSlice("story.user_tags", c.UserTags),

			// Langfuse observation input
			attribute.String("langfuse.observation.input", c.Blurb),
		))
	defer span.End()

	start := time.Now()
	out := Outcome{Case: c}
	out.Classification, out.Usage = e.classify(ctx, c)
	out.Duration = time.Since(start)

	cl := out.Classification
	span.SetAttributes(
		attribute.String("classification.category", cl.Category),
		attribute.String("classification.status", string(cl.Status)),
		attribute.String("classification.source", string(cl.Source)),
		attribute.String("langfuse.observation.output", cl.Category),
	)
	e.metrics.RecordClassification(ctx, string(cl.Status), string(cl.Source))
	return out
}

func (e *Engine) classify(ctx context.Context, c model.StoryCase) (model.Classification, *usage.Record) {
	log := e.logger.With(zap.Int("story_id", c.ID))

	if prefilter.IsNonNarrative(c.Blurb) {
		log.Debug("pre-filter short-circuit")
		return model.NewClassification(model.Unmapped, PrefilterReasoning, model.SourcePrefilter), nil
	}

	completion, err := e.client.Complete(ctx, e.Prompt(c))
	if err != nil {
		log.Warn("remote classifier call failed",
			zap.String("provider", e.client.Provider()),
			zap.Error(err))
		e.metrics.RecordRemoteFailure(ctx, e.client.Provider())
		return model.NewClassification(model.Unmapped, fmt.Sprintf("Remote classifier call failed: %v", err), model.SourceError), nil
	}

	var rec *usage.Record
	if completion.Usage != nil {
		r := usage.NewRecord(*completion.Usage, e.pricing)
		rec = &r
		e.usage.Add(r)
		e.metrics.RecordTokens(ctx, e.client.Provider(), e.client.Model(), r.InputTokens, r.OutputTokens)
		log.Debug("usage",
			zap.Int64("input_tokens", r.InputTokens),
			zap.Int64("output_tokens", r.OutputTokens),
			zap.Float64("cost", r.Cost))
	}

	cl, coerced := guard.Check(completion.Text, e.allowed)
	if coerced {
		log.Info("coerced label outside taxonomy", zap.String("raw", completion.Text))
		e.metrics.RecordCoercion(ctx)
	}
	return cl, rec
}

// Report is the result of a batch run.
type Report struct {
	// RunID identifies the run in logs and traces.
	RunID    string
	Outcomes []Outcome
}

// Records returns the result log entries in input order.
func (r *Report) Records() []model.Record {
	records := make([]model.Record, len(r.Outcomes))
	for i, o := range r.Outcomes {
		records[i] = o.Record()
	}
	return records
}

// Run classifies cases and returns their outcomes in input order. onResult,
// if non-nil, is called once per case in input order, never concurrently.
// Run only fails when ctx is cancelled.
func (e *Engine) Run(ctx context.Context, cases []model.StoryCase, onResult func(Outcome)) (*Report, error) {
	runID := uuid.NewString()
	ctx, span := tracer.Start(ctx, "run",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.Int("run.cases", len(cases)),
			attribute.Int("run.parallel", e.parallel),

			// Langfuse trace-level attributes
			attribute.String("langfuse.trace.name", "taxomap-run"),
			attribute.String("langfuse.session.id", runID),
			attribute.StringSlice("langfuse.trace.tags", []string{"taxomap", "run"}),
		))
	defer span.End()

	log := e.logger.With(zap.String("run_id", runID))
	log.Info("run started",
		zap.Int("cases", len(cases)),
		zap.Int("parallel", e.parallel),
		zap.String("provider", e.client.Provider()),
		zap.String("model", e.client.Model()))

	outcomes := make([]Outcome, len(cases))
	done := make([]bool, len(cases))
	next := 0
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallel)
	for i, c := range cases {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			o := e.Classify(gctx, c)

			mu.Lock()
			defer mu.Unlock()
			outcomes[i] = o
			done[i] = true
			for next < len(cases) && done[next] {
				if onResult != nil {
					onResult(outcomes[next])
				}
				next++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("run %s interrupted: %w", runID, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run %s interrupted: %w", runID, err)
	}

	report := &Report{RunID: runID, Outcomes: outcomes}
	mapped := 0
	for _, o := range outcomes {
		if o.Classification.Status == model.StatusMapped {
			mapped++
		}
	}
	span.SetAttributes(
		attribute.Int("run.mapped", mapped),
		attribute.Int("run.unmapped", len(outcomes)-mapped),
	)
	log.Info("run finished", zap.Int("mapped", mapped), zap.Int("unmapped", len(outcomes)-mapped))
	return report, nil
}
