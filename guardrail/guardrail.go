// Package guardrail implements the input guardrail subsystem: model-backed
// classifiers that screen the raw user message before an agent turn runs, a
// TTL result cache that avoids re-classifying identical inputs, and a
// pipeline that evaluates an agent's configured guardrails in order with
// short-circuit semantics.
package guardrail

import "context"

// Verdict is the outcome of a single guardrail evaluation.
type Verdict struct {
	// Reasoning is the classifier's brief justification.
	Reasoning string

	// Tripped reports whether the guardrail blocked the input.
	Tripped bool
}

// Guardrail screens a raw user message before agent execution. Implementations
// must be safe for concurrent use.
type Guardrail interface {
	// Name returns the display name used in guardrail reports, e.g.
	// "Relevance Guardrail".
	Name() string

	// Check classifies the input. A returned error signals classifier
	// infrastructure failure, not a tripped guardrail.
	Check(ctx context.Context, input string) (Verdict, error)
}
