package courseplanner

import (
	"fmt"
	"strings"

	"github.com/tjfontaine/polyglot-flow/internal/core/domain"
	"github.com/tjfontaine/polyglot-flow/internal/schema"
)

const outlinePrompt = `You are an expert curriculum designer. Create a structured course outline with 5-8 lessons for the course: '%s'. Each lesson should have a title and a short description.`

const lessonPrompt = `
You are an educational expert. Expand the lesson **%s** from the course **%s**.

Include:
1. **Learning Objectives**
2. **Key Concepts**
3. **Lesson Outline**
4. **Suggested Examples or Tools**

Respond in Markdown format.
`

const projectsPrompt = `
You are a capstone mentor. Suggest 2-3 final projects for the course **%s**.

For each project include:
- Title
- Description
- Required skills/tools
- Expected outcome

Respond in Markdown.
`

const missingNote = `
Note: the following parts of the course plan could not be generated: %s. Base the projects on the course topic alone.
`

// Lesson is one outline item.
type Lesson struct {
	Title       string
	Description string
}

// ParseOutline decodes outline text into lessons. Text that is not a JSON
// object is a malformed payload; an object of the wrong shape is upstream
// data. An empty item list is valid.
func ParseOutline(text string) ([]Lesson, error) {
	p, err := schema.DecodeInto([]byte(text), OutlineSchema)
	if err != nil {
		return nil, err
	}

	raw := p.Slice("items")
	lessons := make([]Lesson, 0, len(raw))
	for _, it := range raw {
		m, _ := it.(map[string]any)
		title, _ := m["title"].(string)
		desc, _ := m["description"].(string)
		lessons = append(lessons, Lesson{Title: title, Description: desc})
	}
	return lessons, nil
}

// LessonRequest identifies the lesson to expand.
type LessonRequest struct {
	Lesson string
	Course string
}

// Validate rejects a request missing either part.
func (r LessonRequest) Validate() error {
	var missing []string
	if strings.TrimSpace(r.Lesson) == "" {
		missing = append(missing, "lesson")
	}
	if strings.TrimSpace(r.Course) == "" {
		missing = append(missing, "course")
	}
	if len(missing) > 0 {
		return domain.ErrInvalidInputFormat(fmt.Sprintf("lesson request needs %s", strings.Join(missing, " and "))).
			WithField(missing[0])
	}
	return nil
}
