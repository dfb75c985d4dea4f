// Package prompt builds the deterministic instruction text sent to the
// remote classifier.
//
// Go code only assembles the prompt. Every classification decision is made
// by the LLM and then checked by the guard package.
package prompt

import (
	_ "embed"
	"strings"
	"text/template"

	"github.com/timvw/taxomap/internal/model"
)

// contextTemplate frames a single story case.
// Loaded from templates/context.tmpl at compile time.
//
//go:embed templates/context.tmpl
var contextTemplate string

// classifyTemplate is the full instruction wrapped around a story context.
// Loaded from templates/classify.tmpl at compile time.
//
//go:embed templates/classify.tmpl
var classifyTemplate string

var (
	contextTmpl  = template.Must(template.New("context").Parse(contextTemplate))
	classifyTmpl = template.Must(template.New("classify").Parse(classifyTemplate))
)

// BuildContext renders the story context: the blurb verbatim as the primary
// signal and the user tags as secondary hints.
func BuildContext(c model.StoryCase) string {
	var b strings.Builder
	// Rendering into a strings.Builder with fixed fields cannot fail.
	_ = contextTmpl.Execute(&b, struct {
		Blurb string
		Tags  string
	}{
		Blurb: strings.TrimSpace(c.Blurb),
		Tags:  model.TagsText(c.UserTags),
	})
	return b.String()
}

// Build renders the classification prompt for context. Labels are listed in
// the order given, so identical inputs produce byte-identical prompts.
func Build(context string, labels []string) string {
	var b strings.Builder
	_ = classifyTmpl.Execute(&b, struct {
		Sentinel string
		Labels   string
		Context  string
	}{
		Sentinel: model.Unmapped,
		Labels:   strings.Join(labels, ", "),
		Context:  context,
	})
	return b.String()
}
