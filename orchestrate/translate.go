package orchestrate

import (
	"encoding/json"

	"github.com/erni-gruppe/building-agents/core"
)

// Message is one visible assistant message of a turn response.
type Message struct {
	Content string `json:"content"`
	Agent   string `json:"agent"`
}

// translate converts the ordered run items of one agent execution into the
// client-facing messages and event trace, and tracks which agent ends the
// turn as current. It is stateless: identical item lists produce equivalent
// output regardless of conversation history.
//
// When a turn contains several handoffs the last one wins: the final target
// becomes the current agent.
func translate(items []core.RunItem, startAgent string) (messages []Message, events []core.AgentEvent, currentAgent string) {
	messages = []Message{}
	events = []core.AgentEvent{}
	currentAgent = startAgent

	for _, item := range items {
		switch it := item.(type) {
		case core.MessageItem:
			messages = append(messages, Message{Content: it.Content, Agent: it.Agent})
			events = append(events, core.NewMessageEvent(it.Agent, it.Content))
		case core.HandoffItem:
			events = append(events, core.NewHandoffEvent(it.Source, it.Target))
			currentAgent = it.Target
		case core.ToolCallItem:
			events = append(events, core.NewToolCallEvent(it.Agent, it.Name, parseToolArgs(it.Arguments)))
		case core.ToolOutputItem:
			events = append(events, core.NewToolOutputEvent(it.Agent, it.Output))
		}
	}
	return messages, events, currentAgent
}

// parseToolArgs decodes a serialized argument payload for event metadata.
// Unparseable payloads are retained verbatim rather than dropped, and empty
// payloads produce no metadata at all.
func parseToolArgs(raw string) any {
	if raw == "" {
		return nil
	}
	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return raw
	}
	return decoded
}
