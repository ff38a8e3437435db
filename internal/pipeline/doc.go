// Package pipeline runs content-generation steps in a fixed order and
// collects their outputs.
//
// # Architecture
//
// A Pipeline is an immutable, ordered list of steps. Each Run gets a fresh
// ContextStore, an append-only map from step id to that step's output, so
// concurrent runs of one Pipeline never share state.
//
// For every step the executor:
//   - resolves the outputs the step Requires from the store
//   - validates run parameters against the step's input schema
//   - calls the step under its own trace span
//   - validates the output against the step's output schema
//   - records the output, or a degraded output carrying an error marker
//
// # Degradation
//
// A failing step does not stop the run unless it is Required. Its output is
// the zero value of its output schema plus an "error" key:
//
//	{
//	  "items": [],
//	  "error": {"kind": "upstream_data", "step": "expand", "message": "..."}
//	}
//
// Later steps and the renderer treat a payload with a marker as unavailable.
//
// # Configured pipelines
//
// NewFromConfig builds pipelines from prompt steps, which render a
// text/template over .params and .deps and call a Generator, and webhook
// steps, which POST a WebhookRequest and record the JSON object returned.
package pipeline
