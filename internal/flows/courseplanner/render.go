package courseplanner

import (
	"fmt"
	"strings"

	"github.com/tjfontaine/polyglot-flow/internal/core/domain"
	"github.com/tjfontaine/polyglot-flow/internal/pipeline"
	"github.com/tjfontaine/polyglot-flow/internal/render"
)

// Document returns the course plan layout for topic.
func Document(topic string) render.Document {
	return render.Document{
		Title: "Course Plan: " + topic,
		Sections: []render.Section{
			{StepID: StepOutline, Heading: "Course Outline", Body: outlineBody},
			{StepID: StepExpand, Heading: "Expanded Lessons", Body: expandBody},
			{StepID: StepProjects, Heading: "Capstone Project Suggestions", Body: projectsBody},
		},
	}
}

// Render renders a finished run as Markdown.
func Render(run *pipeline.Run) string {
	return Document(run.Params.String("topic")).Render(run.Outputs())
}

func outlineBody(p domain.Payload) string {
	lessons, err := ParseOutline(p.String("outline"))
	if err != nil {
		return render.Unavailable(domain.MarkerFor(StepOutline, err).Message)
	}
	if len(lessons) == 0 {
		return "_No lessons were outlined._"
	}

	var b strings.Builder
	for i, l := range lessons {
		if i > 0 {
			b.WriteString("\n")
		}
		title := l.Title
		if title == "" {
			title = "Untitled Lesson"
		}
		fmt.Fprintf(&b, "### %s\n\n%s\n", title, l.Description)
	}
	return b.String()
}

func expandBody(p domain.Payload) string {
	items := p.Slice("items")
	if len(items) == 0 {
		return "_No lessons were expanded._"
	}

	var b strings.Builder
	for i, it := range items {
		item, _ := it.(map[string]any)
		if i > 0 {
			b.WriteString("\n")
		}
		title, _ := item["title"].(string)
		fmt.Fprintf(&b, "### %s\n\n", title)

		if m, ok := domain.MarkerFrom(item); ok {
			fmt.Fprintf(&b, "_Lesson unavailable: %s_\n", m.Message)
			continue
		}
		content, _ := item["content"].(string)
		b.WriteString(strings.TrimSpace(content) + "\n")
	}
	return b.String()
}

func projectsBody(p domain.Payload) string {
	return p.String("projects_md")
}
