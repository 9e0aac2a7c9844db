package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType classifies entries of the per-turn event trace.
type EventType string

// The complete set of event types exposed to clients.
const (
	EventMessage       EventType = "message"
	EventHandoff       EventType = "handoff"
	EventToolCall      EventType = "tool_call"
	EventToolOutput    EventType = "tool_output"
	EventContextUpdate EventType = "context_update"
)

// AgentEvent is one entry of the replayable event trace emitted for a single
// turn. Events are append-only within a turn's response and are never
// persisted in the conversation store; only the raw transcript is.
type AgentEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Agent     string         `json:"agent"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp float64        `json:"timestamp,omitempty"`
}

// GuardrailCheck reports the outcome of one input guardrail for one turn.
// Checks are produced fresh each turn and never persisted.
type GuardrailCheck struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Input     string  `json:"input"`
	Reasoning string  `json:"reasoning"`
	Passed    bool    `json:"passed"`
	Timestamp float64 `json:"timestamp"`
}

// NewID generates a unique identifier for events, checks and conversations.
func NewID() string { return uuid.NewString() }

// NowMillis returns the current time as fractional milliseconds since the
// Unix epoch, the timestamp convention of the public schema.
func NowMillis() float64 { return float64(time.Now().UnixNano()) / 1e6 }

// NewMessageEvent records a visible agent message.
func NewMessageEvent(agent, content string) AgentEvent {
	return newEvent(EventMessage, agent, content, nil)
}

// NewHandoffEvent records a transfer of control between two agents.
func NewHandoffEvent(source, target string) AgentEvent {
	return newEvent(EventHandoff, source, fmt.Sprintf("%s -> %s", source, target), map[string]any{
		"source_agent": source,
		"target_agent": target,
	})
}

// NewToolCallEvent records a tool invocation. Args may be nil when the call
// carries no payload, for example synthetic transition callbacks.
func NewToolCallEvent(agent, tool string, args any) AgentEvent {
	var md map[string]any
	if args != nil {
		md = map[string]any{"tool_args": args}
	}
	return newEvent(EventToolCall, agent, tool, md)
}

// NewToolOutputEvent records the raw result of a tool invocation.
func NewToolOutputEvent(agent, output string) AgentEvent {
	return newEvent(EventToolOutput, agent, output, map[string]any{"tool_result": output})
}

// NewContextUpdateEvent records the set of context fields changed by the
// turn, mapped to their new values.
func NewContextUpdateEvent(agent string, changes map[string]any) AgentEvent {
	return newEvent(EventContextUpdate, agent, "", map[string]any{"changes": changes})
}

func newEvent(typ EventType, agent, content string, metadata map[string]any) AgentEvent {
	return AgentEvent{
		ID:        NewID(),
		Type:      typ,
		Agent:     agent,
		Content:   content,
		Metadata:  metadata,
		Timestamp: NowMillis(),
	}
}
