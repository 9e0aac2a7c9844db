// Package orchestrate contains the turn orchestrator: the state machine that
// takes an inbound user message, drives guardrail screening and agent
// execution for the conversation's current agent, and assembles the complete
// turn response with its replayable event trace.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erni-gruppe/building-agents/core"
	"github.com/erni-gruppe/building-agents/guardrail"
	"github.com/erni-gruppe/building-agents/logging"
	"github.com/erni-gruppe/building-agents/metrics"
	"github.com/erni-gruppe/building-agents/registry"
	"github.com/erni-gruppe/building-agents/store"
)

// RefusalMessage is the fixed reply returned when an input guardrail blocks
// a turn.
const RefusalMessage = "Sorry, I can only answer questions related to building and construction."

// TurnRequest is the inbound payload for one chat turn. An empty
// ConversationID starts a new conversation; an empty Message on a new
// conversation is a warm-up ping that creates state without running a turn.
type TurnRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

// TurnResponse is the complete outbound payload for one chat turn.
type TurnResponse struct {
	ConversationID string                `json:"conversation_id"`
	CurrentAgent   string                `json:"current_agent"`
	Messages       []Message             `json:"messages"`
	Events         []core.AgentEvent     `json:"events"`
	Context        map[string]any        `json:"context"`
	Agents         []registry.AgentInfo  `json:"agents"`
	Guardrails     []core.GuardrailCheck `json:"guardrails"`
}

// Options configures an Orchestrator.
type Options struct {
	// Guardrails holds every guardrail instance available to agents, keyed
	// by display name through Guardrail.Name(). Descriptors reference them
	// by those names.
	Guardrails []guardrail.Guardrail

	// Pipeline evaluates the guardrails. A default pipeline is created
	// when unset.
	Pipeline *guardrail.Pipeline

	Logger  logging.Logger
	Metrics *metrics.Recorder
}

// Orchestrator coordinates one turn end to end. Turns for the same
// conversation are serialized through the store's per-id lock; turns for
// different conversations run concurrently.
type Orchestrator struct {
	registry   *registry.Registry
	store      store.Store
	runner     core.Runner
	guardrails map[string]guardrail.Guardrail
	pipeline   *guardrail.Pipeline
	logger     logging.Logger
	metrics    *metrics.Recorder
}

// New builds an orchestrator over the given registry, conversation store and
// agent runner.
func New(reg *registry.Registry, st store.Store, runner core.Runner, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Pipeline == nil {
		opts.Pipeline = guardrail.NewPipeline(func(o *guardrail.PipelineOptions) {
			o.Logger = opts.Logger
			if opts.Metrics != nil {
				o.OnTrip = opts.Metrics.GuardrailTripped
			}
		})
	}

	byName := make(map[string]guardrail.Guardrail, len(opts.Guardrails))
	for _, g := range opts.Guardrails {
		byName[g.Name()] = g
	}
	return &Orchestrator{
		registry:   reg,
		store:      st,
		runner:     runner,
		guardrails: byName,
		pipeline:   opts.Pipeline,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
	}
}

// HandleTurn processes one inbound message and returns the complete turn
// response. A returned error means agent execution failed and nothing from
// this turn was persisted.
func (o *Orchestrator) HandleTurn(ctx context.Context, req TurnRequest) (*TurnResponse, error) {
	start := time.Now()

	id, isNew, err := o.resolveConversationID(req.ConversationID)
	if err != nil {
		return nil, err
	}

	release := o.store.Lock(id)
	defer release()

	state, isNew, err := o.loadState(id, isNew)
	if err != nil {
		return nil, err
	}

	// A warm-up ping creates the conversation without producing a turn:
	// no guardrail evaluation, no agent execution.
	if isNew && strings.TrimSpace(req.Message) == "" {
		if err := o.store.Save(state); err != nil {
			return nil, fmt.Errorf("orchestrate: save conversation %s: %w", id, err)
		}
		o.logger.Info("turn.warmup", "conversation_id", id)
		o.metrics.ObserveTurn(state.CurrentAgent, metrics.OutcomeWarmup, time.Since(start))
		return o.respond(state, state.CurrentAgent, nil, nil, []core.GuardrailCheck{}), nil
	}
	if isNew {
		if err := o.store.Save(state); err != nil {
			return nil, fmt.Errorf("orchestrate: save conversation %s: %w", id, err)
		}
	}

	agent := o.registry.Resolve(state.CurrentAgent)
	state.CurrentAgent = agent.Name
	state.AppendUser(req.Message)
	snapshot := state.Context.AsMap()

	outcome, err := o.pipeline.Evaluate(ctx, o.guardrailsFor(agent), req.Message)
	if err != nil {
		return nil, fmt.Errorf("orchestrate: guardrail evaluation: %w", err)
	}
	if outcome.Tripped {
		return o.handleBlocked(state, agent, outcome, start)
	}

	result, err := o.runner.Run(ctx, agent, state.Items, &state.Context)
	if err != nil {
		o.logger.Error("turn.agent_failure", "conversation_id", id, "agent", agent.Name, "error", err.Error())
		o.metrics.ObserveTurn(agent.Name, metrics.OutcomeFailed, time.Since(start))
		return nil, fmt.Errorf("orchestrate: agent execution: %w", err)
	}

	messages, events, currentAgent := translate(result.Items, agent.Name)

	if changes := state.Context.Diff(snapshot); len(changes) > 0 {
		events = append(events, core.NewContextUpdateEvent(currentAgent, changes))
	}

	for _, msg := range messages {
		state.AppendAssistant(msg.Content)
	}
	state.CurrentAgent = currentAgent
	if err := o.store.Save(state); err != nil {
		return nil, fmt.Errorf("orchestrate: save conversation %s: %w", id, err)
	}

	final := o.registry.Resolve(currentAgent)
	report := o.finalReport(final, outcome.Report, req.Message)

	o.logger.Info("turn.completed",
		"conversation_id", id,
		"agent", currentAgent,
		"messages", len(messages),
		"events", len(events),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	o.metrics.ObserveTurn(currentAgent, metrics.OutcomeCompleted, time.Since(start))

	return o.respond(state, currentAgent, messages, events, report), nil
}

// resolveConversationID maps the requested id onto the id the turn will run
// under. Unknown ids are not resurrected: they allocate a brand-new
// conversation, so an evicted conversation restarts cleanly at the entry
// agent.
func (o *Orchestrator) resolveConversationID(requested string) (id string, isNew bool, err error) {
	if requested == "" {
		return core.NewID(), true, nil
	}
	_, err = o.store.Get(requested)
	switch {
	case errors.Is(err, store.ErrNotFound):
		o.logger.Info("turn.unknown_conversation", "requested_id", requested)
		return core.NewID(), true, nil
	case err != nil:
		return "", false, fmt.Errorf("orchestrate: load conversation %s: %w", requested, err)
	}
	return requested, false, nil
}

// loadState fetches the state under the held lock. The conversation can
// expire between the id resolution and the lock acquisition; that narrow
// race degrades to a fresh state rather than an error.
func (o *Orchestrator) loadState(id string, isNew bool) (*core.State, bool, error) {
	if isNew {
		return core.NewState(id, o.registry.EntryAgent()), true, nil
	}
	state, err := o.store.Get(id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return core.NewState(id, o.registry.EntryAgent()), true, nil
	case err != nil:
		return nil, false, fmt.Errorf("orchestrate: load conversation %s: %w", id, err)
	}
	return state, false, nil
}

// handleBlocked runs the refusal path: the transcript records the user
// message and the fixed refusal, the context stays untouched and the
// conversation's current agent does not change.
func (o *Orchestrator) handleBlocked(state *core.State, agent *core.AgentDescriptor, outcome guardrail.Outcome, start time.Time) (*TurnResponse, error) {
	state.AppendAssistant(RefusalMessage)
	if err := o.store.Save(state); err != nil {
		return nil, fmt.Errorf("orchestrate: save conversation %s: %w", state.ID, err)
	}

	o.logger.Info("turn.blocked",
		"conversation_id", state.ID,
		"agent", agent.Name,
		"guardrail", outcome.FailingCheck.Name,
	)
	o.metrics.ObserveTurn(agent.Name, metrics.OutcomeBlocked, time.Since(start))

	messages := []Message{{Content: RefusalMessage, Agent: agent.Name}}
	return o.respond(state, agent.Name, messages, nil, outcome.Report), nil
}

// guardrailsFor resolves an agent's configured guardrail names to instances,
// preserving configuration order. Unknown names are skipped with a warning.
func (o *Orchestrator) guardrailsFor(agent *core.AgentDescriptor) []guardrail.Guardrail {
	out := make([]guardrail.Guardrail, 0, len(agent.InputGuardrails))
	for _, name := range agent.InputGuardrails {
		g, ok := o.guardrails[name]
		if !ok {
			o.logger.Warn("turn.guardrail_unregistered", "agent", agent.Name, "guardrail", name)
			continue
		}
		out = append(out, g)
	}
	return out
}

// finalReport builds the guardrail list returned to the caller: exactly one
// entry per guardrail configured on the responding agent. Records from the
// pipeline run are reused by name; guardrails the final agent carries that
// never ran this turn (possible after a handoff) are reported as passed with
// empty reasoning.
func (o *Orchestrator) finalReport(final *core.AgentDescriptor, pipelineReport []core.GuardrailCheck, input string) []core.GuardrailCheck {
	report := make([]core.GuardrailCheck, 0, len(final.InputGuardrails))
	for _, name := range final.InputGuardrails {
		if match := findCheck(pipelineReport, name); match != nil {
			report = append(report, *match)
			continue
		}
		report = append(report, core.GuardrailCheck{
			ID:        core.NewID(),
			Name:      name,
			Input:     input,
			Passed:    true,
			Timestamp: core.NowMillis(),
		})
	}
	return report
}

func findCheck(checks []core.GuardrailCheck, name string) *core.GuardrailCheck {
	for i := range checks {
		if checks[i].Name == name {
			return &checks[i]
		}
	}
	return nil
}

func (o *Orchestrator) respond(state *core.State, currentAgent string, messages []Message, events []core.AgentEvent, guardrails []core.GuardrailCheck) *TurnResponse {
	if messages == nil {
		messages = []Message{}
	}
	if events == nil {
		events = []core.AgentEvent{}
	}
	return &TurnResponse{
		ConversationID: state.ID,
		CurrentAgent:   currentAgent,
		Messages:       messages,
		Events:         events,
		Context:        state.Context.AsMap(),
		Agents:         o.registry.List(),
		Guardrails:     guardrails,
	}
}
