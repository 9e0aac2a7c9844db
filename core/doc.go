// Package core defines the shared domain types of the building-agents
// orchestration service: the conversation state and its tool-mutable
// ProjectContext, immutable agent descriptors, the closed set of run items
// produced by an agent turn, the public event and guardrail-check records,
// and the Runner capability interface that executes a single agent turn.
package core
