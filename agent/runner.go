// Package agent implements model-backed execution of a single agent turn:
// the bounded generate/tool loop that drives one conversation turn, including
// schema-validated tool invocation and agent-to-agent handoffs expressed as
// transfer function calls.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/erni-gruppe/building-agents/core"
	"github.com/erni-gruppe/building-agents/internal/util"
	"github.com/erni-gruppe/building-agents/logging"
	"github.com/erni-gruppe/building-agents/model"
	"github.com/erni-gruppe/building-agents/tool"
)

// DefaultMaxIterations bounds the generate/tool loop of a single turn.
const DefaultMaxIterations = 10

// DescriptorResolver looks up agent descriptors by name. Satisfied by
// *registry.Registry.
type DescriptorResolver interface {
	Lookup(name string) (*core.AgentDescriptor, bool)
}

// Options configures a ModelRunner.
type Options struct {
	// MaxIterations bounds how many model round-trips one turn may take.
	MaxIterations int

	Logger logging.Logger
}

// ModelRunner executes agent turns against a model endpoint. Each iteration
// sends the transcript plus any intermediate tool traffic to the model; the
// loop ends when the model answers without requesting tools, and transfers
// control between agents when the model calls a transfer function.
type ModelRunner struct {
	model    model.Model
	tools    map[string]tool.Tool
	resolver DescriptorResolver
	opts     Options
}

// NewModelRunner builds a runner over the given model, tool set and agent
// resolver.
func NewModelRunner(m model.Model, tools []tool.Tool, resolver DescriptorResolver, optFns ...func(o *Options)) *ModelRunner {
	opts := Options{
		MaxIterations: DefaultMaxIterations,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	byName := make(map[string]tool.Tool, len(tools))
	for _, t := range tools {
		byName[t.Name()] = t
	}
	return &ModelRunner{model: m, tools: byName, resolver: resolver, opts: opts}
}

// Run implements core.Runner.
func (r *ModelRunner) Run(ctx context.Context, agent *core.AgentDescriptor, items []core.InputItem, pc *core.ProjectContext) (*core.RunResult, error) {
	current := agent
	messages := toModelMessages(items)
	result := &core.RunResult{}

	for iteration := 0; iteration < r.opts.MaxIterations; iteration++ {
		req := model.Request{
			Instructions: r.renderInstructions(current, pc),
			Messages:     messages,
			Tools:        r.toolDefinitions(current),
		}

		resp, err := r.model.Generate(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("agent %s: generate: %w", current.Name, err)
		}

		if resp.Content != "" {
			result.Items = append(result.Items, core.MessageItem{Agent: current.Name, Content: resp.Content})
		}
		if len(resp.ToolCalls) == 0 {
			return result, nil
		}

		messages = append(messages, model.Message{
			Role:      model.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, call := range resp.ToolCalls {
			if target, ok := handoffTarget(current, call.Name); ok {
				next, err := r.performHandoff(current, target, pc, result)
				if err != nil {
					return nil, err
				}
				messages = append(messages, model.Message{
					Role:       model.RoleTool,
					Content:    fmt.Sprintf("Transferred to %s.", next.Name),
					ToolCallID: call.ID,
					ToolName:   call.Name,
				})
				current = next
				continue
			}

			output := r.invokeTool(current, call, pc)
			result.Items = append(result.Items,
				core.ToolCallItem{Agent: current.Name, Name: call.Name, Arguments: call.Arguments},
				core.ToolOutputItem{Agent: current.Name, Name: call.Name, Output: output},
			)
			messages = append(messages, model.Message{
				Role:       model.RoleTool,
				Content:    output,
				ToolCallID: call.ID,
				ToolName:   call.Name,
			})
		}
	}

	return nil, fmt.Errorf("agent %s: turn exceeded %d iterations", current.Name, r.opts.MaxIterations)
}

// renderInstructions expands context placeholders in the agent's
// instructions, so prompts can reference live values like the inquiry id.
// Render failures fall back to the raw instruction text.
func (r *ModelRunner) renderInstructions(agent *core.AgentDescriptor, pc *core.ProjectContext) string {
	rendered, err := util.RenderTemplate(agent.Instructions, pc.AsMap())
	if err != nil {
		r.opts.Logger.Warn("agent.instructions.render_failed", "agent", agent.Name, "error", err.Error())
		return agent.Instructions
	}
	return rendered
}

// performHandoff records the transfer, runs the target's transition hook and
// resolves the next descriptor.
func (r *ModelRunner) performHandoff(current *core.AgentDescriptor, target string, pc *core.ProjectContext, result *core.RunResult) (*core.AgentDescriptor, error) {
	next, ok := r.resolver.Lookup(target)
	if !ok {
		return nil, fmt.Errorf("agent %s: handoff to unknown agent %q", current.Name, target)
	}

	r.opts.Logger.Info("agent.handoff", "from", current.Name, "to", target)
	result.Items = append(result.Items, core.HandoffItem{Source: current.Name, Target: target})

	if h, ok := current.FindHandoff(target); ok {
		if h.Transition != nil {
			h.Transition(pc)
		}
		if h.OnTransition != "" {
			result.Items = append(result.Items, core.ToolCallItem{Agent: target, Name: h.OnTransition})
		}
	}
	return next, nil
}

// invokeTool executes one requested tool call. Failures never abort the
// turn: unknown tools, malformed argument payloads and tool errors all
// surface as descriptive result strings handed back to the model.
func (r *ModelRunner) invokeTool(current *core.AgentDescriptor, call model.ToolCall, pc *core.ProjectContext) string {
	t, ok := r.tools[call.Name]
	if !ok || !contains(current.Tools, call.Name) {
		r.opts.Logger.Warn("agent.tool.unknown", "agent", current.Name, "tool", call.Name)
		return fmt.Sprintf("Error: tool %q is not available.", call.Name)
	}

	args := map[string]any{}
	if strings.TrimSpace(call.Arguments) != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			r.opts.Logger.Warn("agent.tool.malformed_args", "tool", call.Name, "error", err.Error())
			return fmt.Sprintf("Error: tool %q received malformed arguments.", call.Name)
		}
	}

	tc := tool.NewContext(pc, call.ID, r.opts.Logger)
	output, err := t.Call(tc, args)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return output
}

// toolDefinitions exposes the agent's configured tools plus one transfer
// function per permitted handoff target.
func (r *ModelRunner) toolDefinitions(agent *core.AgentDescriptor) []model.ToolDefinition {
	defs := make([]model.ToolDefinition, 0, len(agent.Tools)+len(agent.Handoffs))
	for _, name := range agent.Tools {
		t, ok := r.tools[name]
		if !ok {
			r.opts.Logger.Warn("agent.tool.unregistered", "agent", agent.Name, "tool", name)
			continue
		}
		defs = append(defs, model.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	for _, h := range agent.Handoffs {
		defs = append(defs, model.ToolDefinition{
			Name:        TransferToolName(h.Target),
			Description: fmt.Sprintf("Handoff to the %s to handle the request.", h.Target),
			Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
		})
	}
	return defs
}

// TransferToolName derives the transfer function name for a handoff target,
// e.g. "Cost Estimation Agent" becomes "transfer_to_cost_estimation_agent".
func TransferToolName(target string) string {
	s := strings.ToLower(strings.TrimSpace(target))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	return "transfer_to_" + s
}

// handoffTarget maps a called function name back to the permitted handoff
// target it refers to, if any.
func handoffTarget(agent *core.AgentDescriptor, toolName string) (string, bool) {
	for _, h := range agent.Handoffs {
		if TransferToolName(h.Target) == toolName {
			return h.Target, true
		}
	}
	return "", false
}

func toModelMessages(items []core.InputItem) []model.Message {
	messages := make([]model.Message, len(items))
	for i, item := range items {
		messages[i] = model.Message{Role: item.Role, Content: item.Content}
	}
	return messages
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
