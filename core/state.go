package core

import "time"

// InputItem is one entry of the append-only conversation transcript that is
// fed back into the next agent run.
type InputItem struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// State is the per-conversation record owned by the conversation store. It is
// mutated in place by the orchestrator after a successful turn and evicted by
// TTL expiry or capacity pressure.
type State struct {
	ID           string         `json:"id"`
	Items        []InputItem    `json:"items"`
	CurrentAgent string         `json:"current_agent"`
	Context      ProjectContext `json:"context"`
	Created      time.Time      `json:"created"`
	Updated      time.Time      `json:"updated"`
}

// NewState creates conversation state for a previously unseen id with a fresh
// context and the given entry agent as current.
func NewState(id, entryAgent string) *State {
	now := time.Now().UTC()
	return &State{
		ID:           id,
		Items:        []InputItem{},
		CurrentAgent: entryAgent,
		Context:      *NewProjectContext(),
		Created:      now,
		Updated:      now,
	}
}

// AppendUser appends a user turn to the transcript.
func (s *State) AppendUser(content string) {
	s.Items = append(s.Items, InputItem{Role: "user", Content: content})
}

// AppendAssistant appends an assistant turn to the transcript.
func (s *State) AppendAssistant(content string) {
	s.Items = append(s.Items, InputItem{Role: "assistant", Content: content})
}

// Clone returns a deep copy safe for independent mutation. The store hands
// out clones so an in-flight turn never aliases stored state.
func (s *State) Clone() *State {
	clone := &State{
		ID:           s.ID,
		Items:        make([]InputItem, len(s.Items)),
		CurrentAgent: s.CurrentAgent,
		Context:      *s.Context.Clone(),
		Created:      s.Created,
		Updated:      s.Updated,
	}
	copy(clone.Items, s.Items)
	return clone
}
