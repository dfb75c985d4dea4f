package model

import "strings"

// Unmapped is the reserved category meaning "no honest match".
// It is never a real taxonomy label.
const Unmapped = "[UNMAPPED]"

// Status is the per-case mapping outcome.
type Status string

const (
	StatusMapped   Status = "MAPPED"
	StatusUnmapped Status = "UNMAPPED"
)

// Source records which stage produced a classification.
type Source string

const (
	// SourcePrefilter means the pre-filter short-circuited the case.
	SourcePrefilter Source = "prefilter"
	// SourceLLM means the remote model answered and the guard validated it.
	SourceLLM Source = "llm"
	// SourceError means the remote call failed.
	SourceError Source = "error"
)

// StoryCase is one input blurb to classify.
type StoryCase struct {
	ID       int      `json:"id" yaml:"id"`
	UserTags []string `json:"user_tags" yaml:"user_tags"`
	Blurb    string   `json:"blurb" yaml:"blurb"`
}

// Classification is the audit-ready result for a single case.
type Classification struct {
	// Category is a taxonomy label or Unmapped.
	Category string `json:"category"`
	// Reasoning explains the decision. Never empty.
	Reasoning string `json:"reasoning"`
	// Status is MAPPED iff Category is not Unmapped.
	Status Status `json:"status"`

	// Source is the stage that produced this result. Not part of the result log.
	Source Source `json:"-"`
}

// NewClassification builds a Classification and derives its status from
// the category.
func NewClassification(category, reasoning string, source Source) Classification {
	return Classification{
		Category:  category,
		Reasoning: reasoning,
		Status:    StatusFor(category),
		Source:    source,
	}
}

// StatusFor returns MAPPED for any category other than Unmapped.
func StatusFor(category string) Status {
	if category == Unmapped {
		return StatusUnmapped
	}
	return StatusMapped
}

// Record is one line of the result log.
type Record struct {
	ID        int      `json:"id"`
	UserTags  []string `json:"user_tags"`
	Blurb     string   `json:"blurb"`
	Category  string   `json:"category"`
	Reasoning string   `json:"reasoning"`
	Status    Status   `json:"status"`
}

// NewRecord joins a case with its classification.
func NewRecord(c StoryCase, cl Classification) Record {
	return Record{
		ID:        c.ID,
		UserTags:  c.UserTags,
		Blurb:     c.Blurb,
		Category:  cl.Category,
		Reasoning: cl.Reasoning,
		Status:    cl.Status,
	}
}

// TokenUsage tracks LLM token consumption for a single remote call.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
}

// Reported reports whether the provider returned any token counts.
func (u TokenUsage) Reported() bool {
	return u.InputTokens > 0 || u.OutputTokens > 0 || u.TotalTokens > 0
}

// TagsText renders user tags the way prompts and traces show them.
func TagsText(tags []string) string {
	if len(tags) == 0 {
		return "None"
	}
	return strings.Join(tags, ", ")
}
