// Package render assembles step outputs into a Markdown document.
package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tjfontaine/polyglot-flow/internal/core/domain"
)

// NotRun is the reason given for a declared step with no output.
const NotRun = "step did not run"

// Section renders the output of one step under a level-two heading.
type Section struct {
	StepID  string
	Heading string
	// Body renders a payload that carries no error marker. Nil uses Default.
	Body func(domain.Payload) string
}

// Document is an ordered list of sections under a title.
type Document struct {
	Title    string
	Sections []Section
}

// Generic returns a document with one section per step id, headed by the id.
func Generic(title string, order []string) Document {
	doc := Document{Title: title}
	for _, id := range order {
		doc.Sections = append(doc.Sections, Section{StepID: id, Heading: id})
	}
	return doc
}

// Render emits the title and exactly one section per declared step, in
// declared order. A degraded or missing output is rendered as an
// unavailable note so no section is ever dropped.
func (d Document) Render(outputs map[string]domain.Payload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", d.Title)

	for _, s := range d.Sections {
		fmt.Fprintf(&b, "\n## %s\n\n", s.Heading)
		out, ok := outputs[s.StepID]
		switch {
		case !ok:
			b.WriteString(Unavailable(NotRun))
		default:
			if m, degraded := domain.MarkerFrom(out); degraded {
				b.WriteString(Unavailable(m.Message))
				break
			}
			body := s.Body
			if body == nil {
				body = Default
			}
			b.WriteString(strings.TrimRight(body(out), "\n"))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Unavailable formats the note shown in place of missing content.
func Unavailable(reason string) string {
	if reason == "" {
		reason = "unknown error"
	}
	return fmt.Sprintf("_Section unavailable: %s_", reason)
}

// Default renders a "text" field as is and anything else as indented JSON.
func Default(p domain.Payload) string {
	if text, ok := p["text"].(string); ok && len(p) == 1 {
		return text
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return Unavailable(err.Error())
	}
	return "```json\n" + string(data) + "\n```"
}
