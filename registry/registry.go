// Package registry provides the static, read-only lookup from agent name to
// descriptor. It is built once at startup; lookups of unknown names fall back
// to the designated entry agent so a conversation whose stored agent name has
// drifted (for example after a configuration change) is rerouted to the entry
// point instead of failing.
package registry

import (
	"fmt"

	"github.com/erni-gruppe/building-agents/core"
	"github.com/erni-gruppe/building-agents/logging"
)

// AgentInfo is the public descriptor shape returned with every chat response.
type AgentInfo struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Handoffs        []string `json:"handoffs"`
	Tools           []string `json:"tools"`
	InputGuardrails []string `json:"input_guardrails"`
}

// Registry resolves agent names to immutable descriptors.
type Registry struct {
	agents     map[string]*core.AgentDescriptor
	order      []string
	entryAgent string
	logger     logging.Logger
}

// New builds a registry from the configured descriptors. The entry agent must
// be among them.
func New(entryAgent string, descriptors []*core.AgentDescriptor, logger logging.Logger) (*Registry, error) {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	r := &Registry{
		agents:     make(map[string]*core.AgentDescriptor, len(descriptors)),
		entryAgent: entryAgent,
		logger:     logger,
	}
	for _, d := range descriptors {
		if d.Name == "" {
			return nil, fmt.Errorf("registry: descriptor with empty name")
		}
		if _, dup := r.agents[d.Name]; dup {
			return nil, fmt.Errorf("registry: duplicate agent %q", d.Name)
		}
		r.agents[d.Name] = d
		r.order = append(r.order, d.Name)
	}
	if _, ok := r.agents[entryAgent]; !ok {
		return nil, fmt.Errorf("registry: entry agent %q not registered", entryAgent)
	}
	return r, nil
}

// EntryAgent returns the name of the designated entry agent.
func (r *Registry) EntryAgent() string { return r.entryAgent }

// Resolve returns the descriptor for name, falling back to the entry agent
// when the name is unknown. The fallback is logged as an anomaly since it
// silently reroutes the conversation.
func (r *Registry) Resolve(name string) *core.AgentDescriptor {
	if d, ok := r.agents[name]; ok {
		return d
	}
	r.logger.Warn("registry.resolve.miss", "agent", name, "fallback", r.entryAgent)
	return r.agents[r.entryAgent]
}

// Lookup returns the descriptor for name without fallback.
func (r *Registry) Lookup(name string) (*core.AgentDescriptor, bool) {
	d, ok := r.agents[name]
	return d, ok
}

// List returns the public descriptor list in registration order. The result
// is identical regardless of conversation state.
func (r *Registry) List() []AgentInfo {
	infos := make([]AgentInfo, 0, len(r.order))
	for _, name := range r.order {
		d := r.agents[name]
		infos = append(infos, AgentInfo{
			Name:            d.Name,
			Description:     d.Description,
			Handoffs:        d.HandoffTargets(),
			Tools:           append([]string{}, d.Tools...),
			InputGuardrails: append([]string{}, d.InputGuardrails...),
		})
	}
	return infos
}
