package core

// RunItem is a polymorphic element of the ordered output produced by one
// agent turn. Concrete item types implement the unexported isRunItem marker
// enabling a closed set, mirroring how content parts are modelled elsewhere
// in the codebase.
type RunItem interface{ isRunItem() }

// MessageItem is a visible assistant message authored by an agent.
type MessageItem struct {
	Agent   string
	Content string
}

func (MessageItem) isRunItem() {}

// HandoffItem records a transfer of control from one agent to another within
// a turn.
type HandoffItem struct {
	Source string
	Target string
}

func (HandoffItem) isRunItem() {}

// ToolCallItem records an agent requesting execution of a named tool.
// Arguments holds the serialized payload exactly as the model produced it.
type ToolCallItem struct {
	Agent     string
	Name      string
	Arguments string
}

func (ToolCallItem) isRunItem() {}

// ToolOutputItem records the raw result of a previously requested tool call.
type ToolOutputItem struct {
	Agent  string
	Name   string
	Output string
}

func (ToolOutputItem) isRunItem() {}

// RunResult is the ordered output of a single agent turn together with any
// context mutation applied by tools during the run.
type RunResult struct {
	Items []RunItem
}
