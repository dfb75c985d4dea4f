// Package guard turns untrusted LLM output into a taxonomy-safe
// classification.
//
// The model may wrap its answer in prose, code fences or extra objects, may
// invent labels, and may omit fields. Validate absorbs all of that: it always
// returns a well-formed model.Classification and never panics.
package guard

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/timvw/taxomap/internal/model"
)

const (
	// ParseFailureReasoning is used when no JSON object can be extracted.
	ParseFailureReasoning = "Failed to parse JSON from model output; marking as " + model.Unmapped + " per Honesty rule."
	// CoercionNotice is appended when the model proposes an unknown label.
	CoercionNotice = "Model proposed a label outside the taxonomy; coerced to " + model.Unmapped + " to respect the Hierarchy rule."
	// DefaultReasoning replaces an empty reasoning string.
	DefaultReasoning = "Model did not provide a reasoning string; defaulted to a generic explanation."
)

// AllowList is the set of taxonomy labels a classification may carry.
type AllowList map[string]struct{}

// NewAllowList builds an AllowList from labels.
func NewAllowList(labels []string) AllowList {
	a := make(AllowList, len(labels))
	for _, l := range labels {
		a[l] = struct{}{}
	}
	return a
}

// Contains reports whether label is allow-listed. The sentinel never is.
func (a AllowList) Contains(label string) bool {
	if label == model.Unmapped {
		return false
	}
	_, ok := a[label]
	return ok
}

// Validate parses raw model output and enforces the allow-list.
func Validate(raw string, allowed AllowList) model.Classification {
	cl, _ := Check(raw, allowed)
	return cl
}

// Check is Validate that also reports whether a proposed label was coerced
// to the sentinel for falling outside the allow-list.
func Check(raw string, allowed AllowList) (cl model.Classification, coerced bool) {
	obj, ok := ExtractObject(raw)
	if !ok {
		return model.NewClassification(model.Unmapped, ParseFailureReasoning, model.SourceLLM), false
	}

	parsed := gjson.Parse(obj)

	category := model.Unmapped
	if c := field(parsed, "category"); c.Exists() && c.Type != gjson.Null {
		if c.Type == gjson.String {
			category = c.Str
		} else {
			// Keep the raw JSON so the hierarchy check rejects it with a notice.
			category = c.Raw
		}
	}

	var reasoning string
	if r := field(parsed, "reasoning"); r.Exists() && r.Type != gjson.Null {
		reasoning = r.String()
	}
	reasoning = strings.TrimSpace(reasoning)

	if category != model.Unmapped && !allowed.Contains(category) {
		category = model.Unmapped
		coerced = true
		if reasoning == "" {
			reasoning = CoercionNotice
		} else {
			reasoning = reasoning + " " + CoercionNotice
		}
	}

	if reasoning == "" {
		reasoning = DefaultReasoning
	}

	return model.NewClassification(category, reasoning, model.SourceLLM), coerced
}

// field returns the value of key in obj. When the key repeats, the last
// occurrence wins, as with encoding/json.
func field(obj gjson.Result, key string) gjson.Result {
	var v gjson.Result
	obj.ForEach(func(k, val gjson.Result) bool {
		if k.String() == key {
			v = val
		}
		return true
	})
	return v
}
