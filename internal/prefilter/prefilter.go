// Package prefilter flags blurbs that are obviously not narrative fiction
// before any remote call is spent on them.
//
// This is a heuristic, not a classifier. False negatives are expected; the
// LLM still applies the Honesty rule to anything that slips through.
package prefilter

import (
	"regexp"
	"strings"
)

// nonNarrativePatterns match instructional or recipe phrasing.
var nonNarrativePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bhow to\b`),
	regexp.MustCompile(`(?i)\bstep[- ]by[- ]step\b`),
	regexp.MustCompile(`(?i)\bingredients?\b`),
	regexp.MustCompile(`(?i)\brecipe\b`),
	regexp.MustCompile(`(?i)\bprep time\b`),
	regexp.MustCompile(`(?i)\bbake at\b`),
	regexp.MustCompile(`(?i)\bmix\b`),
	regexp.MustCompile(`(?i)\badd\b`),
	regexp.MustCompile(`(?i)\bdegrees\b`),
}

// IsNonNarrative reports whether blurb looks like instructional or recipe
// text rather than a story.
func IsNonNarrative(blurb string) bool {
	text := strings.TrimSpace(blurb)
	for _, p := range nonNarrativePatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
