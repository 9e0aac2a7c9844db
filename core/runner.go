package core

import "context"

// Runner executes a single agent turn. Given the transcript so far and the
// shared project context it returns the ordered run items the turn produced.
// Tools invoked during the run mutate the context in place; the orchestrator
// snapshots the context beforehand to derive the context_update event.
//
// Implementations must respect ctx cancellation: turns issue outbound model
// calls that can block for seconds and must be bounded by the caller's
// deadline.
type Runner interface {
	Run(ctx context.Context, agent *AgentDescriptor, items []InputItem, pc *ProjectContext) (*RunResult, error)
}
