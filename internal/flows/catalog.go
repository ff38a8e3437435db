// Package flows registers the pipelines a deployment serves: the built-in
// course planner and manim flows plus any declared in configuration.
package flows

import (
	"fmt"

	"github.com/tjfontaine/polyglot-flow/internal/config"
	"github.com/tjfontaine/polyglot-flow/internal/core/ports"
	"github.com/tjfontaine/polyglot-flow/internal/flows/courseplanner"
	"github.com/tjfontaine/polyglot-flow/internal/flows/manim"
	"github.com/tjfontaine/polyglot-flow/internal/pipeline"
	"github.com/tjfontaine/polyglot-flow/internal/render"
)

// DefaultFlow is run when no flow is named.
const DefaultFlow = courseplanner.PipelineID

// Entry is a registered pipeline with what the CLI and server need to run it.
type Entry struct {
	Pipeline *pipeline.Pipeline
	// Input is the parameter asked for interactively, e.g. "topic".
	Input string
	// Prompt is the question shown when asking for Input.
	Prompt string
	// Artifact is the file name the rendered output is written to.
	Artifact string
	Render   func(*pipeline.Run) string
}

// ID returns the pipeline id.
func (e Entry) ID() string { return e.Pipeline.ID() }

// Catalog is an immutable set of entries.
type Catalog struct {
	registry *pipeline.Registry
	entries  map[string]Entry
}

// Build creates the catalog for cfg. opts apply to every pipeline.
func Build(cfg *config.Config, gen ports.Generator, opts ...pipeline.Option) (*Catalog, error) {
	c := &Catalog{
		registry: pipeline.NewRegistry(),
		entries:  make(map[string]Entry),
	}

	course, err := courseplanner.New(courseplanner.Config{
		Generator:   gen,
		Concurrency: cfg.Generation.Concurrency,
		Model:       cfg.Generation.Model,
		Temperature: cfg.Generation.Temperature,
		MaxTokens:   cfg.Generation.MaxTokens,
	}, opts...)
	if err != nil {
		return nil, err
	}
	if err := c.add(Entry{
		Pipeline: course,
		Input:    "topic",
		Prompt:   "Enter a course topic (e.g., 'Data Structures for Beginners')",
		Artifact: courseplanner.Artifact,
		Render:   courseplanner.Render,
	}); err != nil {
		return nil, err
	}

	anim, err := manim.New(manim.Config{
		Generator:   gen,
		Model:       cfg.Generation.Model,
		Temperature: cfg.Generation.Temperature,
		MaxTokens:   cfg.Generation.MaxTokens,
	}, opts...)
	if err != nil {
		return nil, err
	}
	if err := c.add(Entry{
		Pipeline: anim,
		Input:    "prompt",
		Prompt:   "Enter a prompt (e.g., 'A manim animation of a cat')",
		Artifact: manim.Artifact,
		Render:   manim.Render,
	}); err != nil {
		return nil, err
	}

	for _, pc := range cfg.Pipelines {
		p, err := pipeline.NewFromConfig(pc, gen, opts...)
		if err != nil {
			return nil, err
		}
		entry := Entry{
			Pipeline: p,
			Artifact: pc.ID + ".md",
			Render:   genericRender(p),
		}
		if len(pc.Params) > 0 {
			entry.Input = pc.Params[0].Name
			entry.Prompt = fmt.Sprintf("Enter %s", entry.Input)
			if pc.Params[0].Description != "" {
				entry.Prompt = pc.Params[0].Description
			}
		}
		if err := c.add(entry); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func (c *Catalog) add(e Entry) error {
	if err := c.registry.Register(e.Pipeline); err != nil {
		return err
	}
	c.entries[e.ID()] = e
	return nil
}

// Get returns the entry for id, or a not_found error.
func (c *Catalog) Get(id string) (Entry, error) {
	p, err := c.registry.Get(id)
	if err != nil {
		return Entry{}, err
	}
	return c.entries[p.ID()], nil
}

// List returns entries in registration order.
func (c *Catalog) List() []Entry {
	pipelines := c.registry.List()
	out := make([]Entry, len(pipelines))
	for i, p := range pipelines {
		out[i] = c.entries[p.ID()]
	}
	return out
}

func genericRender(p *pipeline.Pipeline) func(*pipeline.Run) string {
	doc := render.Generic(p.Description(), p.StepIDs())
	if doc.Title == "" {
		doc.Title = p.ID()
	}
	return func(run *pipeline.Run) string {
		return doc.Render(run.Outputs())
	}
}
