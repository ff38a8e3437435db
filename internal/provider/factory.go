// Package provider builds the generators flows call from provider
// configuration.
//
// # Adding a New Provider
//
// To add a new provider (e.g., Google Gemini), implement ports.Generator in
// a package under internal/provider and expose an explicit registration
// function that calls registry.Register. Call it from RegisterBuiltins so we
// avoid init() side effects.
package provider

import (
	"github.com/tjfontaine/polyglot-flow/internal/provider/anthropic"
	"github.com/tjfontaine/polyglot-flow/internal/provider/openai"
)

// RegisterBuiltins registers the openai, openai-compatible and anthropic
// factories. Safe to call more than once.
func RegisterBuiltins() {
	openai.RegisterProviderFactory()
	anthropic.RegisterProviderFactory()
}
