package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erni-gruppe/building-agents/core"
	"github.com/erni-gruppe/building-agents/model"
	"github.com/erni-gruppe/building-agents/tool"
)

type mapResolver map[string]*core.AgentDescriptor

func (m mapResolver) Lookup(name string) (*core.AgentDescriptor, bool) {
	d, ok := m[name]
	return d, ok
}

func testAgents() (mapResolver, *core.AgentDescriptor, *core.AgentDescriptor) {
	cost := &core.AgentDescriptor{
		Name:         "Cost Estimation Agent",
		Instructions: "You provide cost estimates.",
		Tools:        []string{"estimate_project_cost"},
	}
	triage := &core.AgentDescriptor{
		Name:         "Triage Agent",
		Instructions: "You route customers to specialists.",
		Handoffs: []core.Handoff{
			{
				Target:       "Cost Estimation Agent",
				OnTransition: "on_cost_estimation_handoff",
				Transition:   func(pc *core.ProjectContext) { pc.EnsureInquiryID() },
			},
		},
	}
	return mapResolver{triage.Name: triage, cost.Name: cost}, triage, cost
}

func userItems(content string) []core.InputItem {
	return []core.InputItem{{Role: model.RoleUser, Content: content}}
}

func TestModelRunner_PlainMessage(t *testing.T) {
	resolver, triage, _ := testAgents()
	m := model.NewMockModel()
	m.Enqueue(&model.Response{Content: "Welcome to ERNI! How can I help?", FinishReason: "stop"})

	r := NewModelRunner(m, nil, resolver)
	pc := core.NewProjectContext()

	result, err := r.Run(context.Background(), triage, userItems("Hi"), pc)
	require.NoError(t, err)
	require.Len(t, result.Items, 1)

	msg, ok := result.Items[0].(core.MessageItem)
	require.True(t, ok)
	assert.Equal(t, "Triage Agent", msg.Agent)
	assert.Equal(t, "Welcome to ERNI! How can I help?", msg.Content)
}

func TestModelRunner_ToolLoop(t *testing.T) {
	resolver, _, cost := testAgents()
	m := model.NewMockModel()
	m.Enqueue(
		&model.Response{ToolCalls: []model.ToolCall{{
			ID:        "call_1",
			Name:      "estimate_project_cost",
			Arguments: `{"project_type": "Einfamilienhaus", "area_sqm": 150, "construction_type": "Holzbau"}`,
		}}},
		&model.Response{Content: "Your estimate is CHF 450000 - 562500.", FinishReason: "stop"},
	)

	tools := []tool.Tool{tool.NewEstimateProjectCostTool(tool.DefaultBusinessData())}
	r := NewModelRunner(m, tools, resolver)
	pc := core.NewProjectContext()

	result, err := r.Run(context.Background(), cost, userItems("Estimate 150 m2 Einfamilienhaus in Holzbau"), pc)
	require.NoError(t, err)
	require.Len(t, result.Items, 3)

	call, ok := result.Items[0].(core.ToolCallItem)
	require.True(t, ok)
	assert.Equal(t, "estimate_project_cost", call.Name)
	assert.Contains(t, call.Arguments, "Einfamilienhaus")

	output, ok := result.Items[1].(core.ToolOutputItem)
	require.True(t, ok)
	assert.Contains(t, output.Output, "450000")

	msg, ok := result.Items[2].(core.MessageItem)
	require.True(t, ok)
	assert.Equal(t, "Cost Estimation Agent", msg.Agent)

	// Tool execution mutates the shared context.
	require.NotNil(t, pc.BudgetCHF)
	assert.Equal(t, 450000.0, *pc.BudgetCHF)

	// Second round-trip must include the tool result for the model.
	reqs := m.Requests()
	require.Len(t, reqs, 2)
	last := reqs[1].Messages[len(reqs[1].Messages)-1]
	assert.Equal(t, model.RoleTool, last.Role)
	assert.Contains(t, last.Content, "450000")
}

func TestModelRunner_Handoff(t *testing.T) {
	resolver, triage, _ := testAgents()
	m := model.NewMockModel()
	m.Enqueue(
		&model.Response{ToolCalls: []model.ToolCall{{
			ID:   "call_1",
			Name: "transfer_to_cost_estimation_agent",
		}}},
		&model.Response{Content: "I can help with your cost estimate.", FinishReason: "stop"},
	)

	r := NewModelRunner(m, nil, resolver)
	pc := core.NewProjectContext()
	pc.InquiryID = nil

	result, err := r.Run(context.Background(), triage, userItems("I want a cost estimate for my house"), pc)
	require.NoError(t, err)
	require.Len(t, result.Items, 3)

	handoff, ok := result.Items[0].(core.HandoffItem)
	require.True(t, ok)
	assert.Equal(t, "Triage Agent", handoff.Source)
	assert.Equal(t, "Cost Estimation Agent", handoff.Target)

	hook, ok := result.Items[1].(core.ToolCallItem)
	require.True(t, ok)
	assert.Equal(t, "Cost Estimation Agent", hook.Agent)
	assert.Equal(t, "on_cost_estimation_handoff", hook.Name)

	msg, ok := result.Items[2].(core.MessageItem)
	require.True(t, ok)
	assert.Equal(t, "Cost Estimation Agent", msg.Agent, "post-handoff output is attributed to the target agent")

	// Transition hook seeded the inquiry id.
	assert.NotNil(t, pc.InquiryID)

	// The second request runs with the target agent's instructions.
	reqs := m.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "You provide cost estimates.", reqs[1].Instructions)
}

func TestModelRunner_HandoffToUnknownAgent(t *testing.T) {
	resolver, triage, _ := testAgents()
	delete(resolver, "Cost Estimation Agent")

	m := model.NewMockModel()
	m.Enqueue(&model.Response{ToolCalls: []model.ToolCall{{ID: "call_1", Name: "transfer_to_cost_estimation_agent"}}})

	r := NewModelRunner(m, nil, resolver)
	pc := core.NewProjectContext()

	_, err := r.Run(context.Background(), triage, userItems("estimate please"), pc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown agent")
}

func TestModelRunner_UnknownToolDoesNotFailTurn(t *testing.T) {
	resolver, _, cost := testAgents()
	m := model.NewMockModel()
	m.Enqueue(
		&model.Response{ToolCalls: []model.ToolCall{{ID: "call_1", Name: "launch_rocket", Arguments: "{}"}}},
		&model.Response{Content: "Sorry, I cannot do that.", FinishReason: "stop"},
	)

	r := NewModelRunner(m, nil, resolver)
	pc := core.NewProjectContext()

	result, err := r.Run(context.Background(), cost, userItems("launch"), pc)
	require.NoError(t, err)

	output, ok := result.Items[1].(core.ToolOutputItem)
	require.True(t, ok)
	assert.Contains(t, output.Output, "not available")
}

func TestModelRunner_MalformedArgumentsDoNotFailTurn(t *testing.T) {
	resolver, _, cost := testAgents()
	m := model.NewMockModel()
	m.Enqueue(
		&model.Response{ToolCalls: []model.ToolCall{{
			ID:        "call_1",
			Name:      "estimate_project_cost",
			Arguments: `{"project_type": `,
		}}},
		&model.Response{Content: "Could you repeat the project details?", FinishReason: "stop"},
	)

	tools := []tool.Tool{tool.NewEstimateProjectCostTool(tool.DefaultBusinessData())}
	r := NewModelRunner(m, tools, resolver)
	pc := core.NewProjectContext()

	result, err := r.Run(context.Background(), cost, userItems("estimate"), pc)
	require.NoError(t, err)

	call, ok := result.Items[0].(core.ToolCallItem)
	require.True(t, ok)
	assert.Equal(t, `{"project_type": `, call.Arguments, "raw argument payload is retained")

	output, ok := result.Items[1].(core.ToolOutputItem)
	require.True(t, ok)
	assert.Contains(t, output.Output, "malformed arguments")
}

func TestModelRunner_IterationBound(t *testing.T) {
	resolver, _, cost := testAgents()
	m := model.NewMockModel()
	looping := &model.Response{ToolCalls: []model.ToolCall{{ID: "call_x", Name: "launch_rocket"}}}
	m.Enqueue(looping, looping, looping)

	r := NewModelRunner(m, nil, resolver, func(o *Options) { o.MaxIterations = 2 })
	pc := core.NewProjectContext()

	_, err := r.Run(context.Background(), cost, userItems("loop"), pc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeded 2 iterations")
}

func TestModelRunner_ModelFailure(t *testing.T) {
	resolver, triage, _ := testAgents()
	m := model.NewMockModel()
	m.FailWith(errors.New("upstream timeout"))

	r := NewModelRunner(m, nil, resolver)
	pc := core.NewProjectContext()

	result, err := r.Run(context.Background(), triage, userItems("Hi"), pc)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "upstream timeout")
}

func TestModelRunner_RendersInstructionPlaceholders(t *testing.T) {
	resolver, _, cost := testAgents()
	cost.Instructions = `You are the cost estimation agent. Current inquiry: {{default "[unknown]" .inquiry_id}}.`

	m := model.NewMockModel()
	m.Enqueue(&model.Response{Content: "ok", FinishReason: "stop"})

	r := NewModelRunner(m, nil, resolver)
	pc := core.NewProjectContext()
	inquiry := "INQ-12345"
	pc.InquiryID = &inquiry

	_, err := r.Run(context.Background(), cost, userItems("hi"), pc)
	require.NoError(t, err)

	reqs := m.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Instructions, "INQ-12345")
}

func TestTransferToolName(t *testing.T) {
	assert.Equal(t, "transfer_to_cost_estimation_agent", TransferToolName("Cost Estimation Agent"))
	assert.Equal(t, "transfer_to_faq_agent", TransferToolName("FAQ Agent"))
}
