package core

// Handoff describes one permitted transfer target of an agent. OnTransition
// optionally names a callback that runs when the handoff occurs; it is
// surfaced to clients as a synthetic tool_call event attributed to the target
// agent.
type Handoff struct {
	Target       string
	OnTransition string
	Transition   func(*ProjectContext)
}

// AgentDescriptor is the immutable metadata describing one routable
// capability bundle. Descriptors are built once at process start and never
// mutated at runtime.
type AgentDescriptor struct {
	Name            string
	Description     string
	Instructions    string
	Handoffs        []Handoff
	Tools           []string
	InputGuardrails []string
}

// HandoffTargets returns the names of all permitted handoff targets in
// declaration order.
func (d *AgentDescriptor) HandoffTargets() []string {
	targets := make([]string, len(d.Handoffs))
	for i, h := range d.Handoffs {
		targets[i] = h.Target
	}
	return targets
}

// FindHandoff returns the handoff descriptor for the given target name.
func (d *AgentDescriptor) FindHandoff(target string) (Handoff, bool) {
	for _, h := range d.Handoffs {
		if h.Target == target {
			return h, true
		}
	}
	return Handoff{}, false
}
