package orchestrate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erni-gruppe/building-agents/core"
	"github.com/erni-gruppe/building-agents/guardrail"
	"github.com/erni-gruppe/building-agents/registry"
	"github.com/erni-gruppe/building-agents/store"
)

type stubRunner struct {
	result *core.RunResult
	err    error
	mutate func(pc *core.ProjectContext)

	gotAgent string
	gotItems []core.InputItem
	calls    int
}

func (s *stubRunner) Run(ctx context.Context, agent *core.AgentDescriptor, items []core.InputItem, pc *core.ProjectContext) (*core.RunResult, error) {
	s.calls++
	s.gotAgent = agent.Name
	s.gotItems = append([]core.InputItem{}, items...)
	if s.err != nil {
		return nil, s.err
	}
	if s.mutate != nil {
		s.mutate(pc)
	}
	if s.result != nil {
		return s.result, nil
	}
	return &core.RunResult{Items: []core.RunItem{
		core.MessageItem{Agent: agent.Name, Content: "How can I help with your building project?"},
	}}, nil
}

type stubGuardrail struct {
	name    string
	tripped bool
	reason  string
	calls   int
}

func (s *stubGuardrail) Name() string { return s.name }

func (s *stubGuardrail) Check(ctx context.Context, input string) (guardrail.Verdict, error) {
	s.calls++
	return guardrail.Verdict{Reasoning: s.reason, Tripped: s.tripped}, nil
}

type fixture struct {
	orchestrator *Orchestrator
	store        *store.InMemoryStore
	runner       *stubRunner
	relevance    *stubGuardrail
	jailbreak    *stubGuardrail
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	triage := &core.AgentDescriptor{
		Name:            "Triage Agent",
		Description:     "Routes customers to the right specialist.",
		Handoffs:        []core.Handoff{{Target: "Cost Estimation Agent"}},
		InputGuardrails: []string{guardrail.RelevanceGuardrailName, guardrail.JailbreakGuardrailName},
	}
	cost := &core.AgentDescriptor{
		Name:            "Cost Estimation Agent",
		Description:     "Provides preliminary cost estimates.",
		Tools:           []string{"estimate_project_cost"},
		InputGuardrails: []string{guardrail.RelevanceGuardrailName, guardrail.JailbreakGuardrailName},
	}
	reg, err := registry.New("Triage Agent", []*core.AgentDescriptor{triage, cost}, nil)
	require.NoError(t, err)

	st := store.NewInMemoryStore()
	t.Cleanup(st.Close)

	f := &fixture{
		store:     st,
		runner:    &stubRunner{},
		relevance: &stubGuardrail{name: guardrail.RelevanceGuardrailName},
		jailbreak: &stubGuardrail{name: guardrail.JailbreakGuardrailName},
	}
	f.orchestrator = New(reg, st, f.runner, func(o *Options) {
		o.Guardrails = []guardrail.Guardrail{f.relevance, f.jailbreak}
	})
	return f
}

func TestHandleTurn_WarmupCreatesConversation(t *testing.T) {
	f := newFixture(t)

	resp, err := f.orchestrator.HandleTurn(context.Background(), TurnRequest{Message: ""})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.ConversationID)
	assert.Equal(t, "Triage Agent", resp.CurrentAgent)
	assert.Empty(t, resp.Messages)
	assert.Empty(t, resp.Events)
	assert.Empty(t, resp.Guardrails, "warm-up runs no guardrails")
	assert.Len(t, resp.Agents, 2)
	assert.Contains(t, resp.Context, "inquiry_id")

	assert.Equal(t, 0, f.runner.calls)
	assert.Equal(t, 0, f.relevance.calls)

	state, err := f.store.Get(resp.ConversationID)
	require.NoError(t, err)
	assert.Empty(t, state.Items)
}

func TestHandleTurn_SimpleTurn(t *testing.T) {
	f := newFixture(t)

	resp, err := f.orchestrator.HandleTurn(context.Background(), TurnRequest{Message: "Hello"})
	require.NoError(t, err)

	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "Triage Agent", resp.Messages[0].Agent)
	assert.Equal(t, "Triage Agent", resp.CurrentAgent)

	require.Len(t, resp.Events, 1)
	assert.Equal(t, core.EventMessage, resp.Events[0].Type)

	// Both guardrails ran and are reported passed.
	require.Len(t, resp.Guardrails, 2)
	for _, check := range resp.Guardrails {
		assert.True(t, check.Passed)
		assert.Equal(t, "Hello", check.Input)
	}

	// Transcript persisted: user message plus assistant reply.
	state, err := f.store.Get(resp.ConversationID)
	require.NoError(t, err)
	require.Len(t, state.Items, 2)
	assert.Equal(t, "user", state.Items[0].Role)
	assert.Equal(t, "Hello", state.Items[0].Content)
	assert.Equal(t, "assistant", state.Items[1].Role)
}

func TestHandleTurn_SecondTurnSeesTranscript(t *testing.T) {
	f := newFixture(t)

	first, err := f.orchestrator.HandleTurn(context.Background(), TurnRequest{Message: "Hello"})
	require.NoError(t, err)

	_, err = f.orchestrator.HandleTurn(context.Background(), TurnRequest{
		ConversationID: first.ConversationID,
		Message:        "Tell me about timber",
	})
	require.NoError(t, err)

	// The runner received the full transcript including the prior turn.
	require.Len(t, f.runner.gotItems, 3)
	assert.Equal(t, "Hello", f.runner.gotItems[0].Content)
	assert.Equal(t, "Tell me about timber", f.runner.gotItems[2].Content)
}

func TestHandleTurn_Handoff(t *testing.T) {
	f := newFixture(t)
	f.runner.result = &core.RunResult{Items: []core.RunItem{
		core.HandoffItem{Source: "Triage Agent", Target: "Cost Estimation Agent"},
		core.MessageItem{Agent: "Cost Estimation Agent", Content: "Happy to estimate your project."},
	}}

	resp, err := f.orchestrator.HandleTurn(context.Background(), TurnRequest{
		Message: "I want a cost estimate for my house",
	})
	require.NoError(t, err)

	assert.Equal(t, "Cost Estimation Agent", resp.CurrentAgent)
	require.Len(t, resp.Events, 2)
	assert.Equal(t, core.EventHandoff, resp.Events[0].Type)
	assert.Equal(t, "Triage Agent -> Cost Estimation Agent", resp.Events[0].Content)
	assert.Equal(t, "Cost Estimation Agent", resp.Events[0].Metadata["target_agent"])

	// Guardrail report covers the final agent's configured guardrails.
	require.Len(t, resp.Guardrails, 2)

	// The handoff target is persisted as current agent.
	state, err := f.store.Get(resp.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "Cost Estimation Agent", state.CurrentAgent)
}

func TestHandleTurn_GuardrailBlocked(t *testing.T) {
	f := newFixture(t)
	f.relevance.tripped = true
	f.relevance.reason = "Message is about cooking, not construction"

	resp, err := f.orchestrator.HandleTurn(context.Background(), TurnRequest{Message: "Best pasta recipe?"})
	require.NoError(t, err)

	require.Len(t, resp.Messages, 1)
	assert.Equal(t, RefusalMessage, resp.Messages[0].Content)
	assert.Equal(t, "Triage Agent", resp.CurrentAgent)
	assert.Empty(t, resp.Events)

	require.Len(t, resp.Guardrails, 2)
	failing := resp.Guardrails[0]
	assert.Equal(t, guardrail.RelevanceGuardrailName, failing.Name)
	assert.False(t, failing.Passed)
	assert.Equal(t, "Message is about cooking, not construction", failing.Reasoning)
	assert.True(t, resp.Guardrails[1].Passed)
	assert.Empty(t, resp.Guardrails[1].Reasoning)

	// The agent never ran and the second guardrail was short-circuited.
	assert.Equal(t, 0, f.runner.calls)
	assert.Equal(t, 0, f.jailbreak.calls)

	// Transcript records the exchange; refusal included.
	state, err := f.store.Get(resp.ConversationID)
	require.NoError(t, err)
	require.Len(t, state.Items, 2)
	assert.Equal(t, RefusalMessage, state.Items[1].Content)
}

func TestHandleTurn_ContextUpdateEvent(t *testing.T) {
	f := newFixture(t)
	f.runner.mutate = func(pc *core.ProjectContext) {
		projectType := "Einfamilienhaus"
		area := 150.0
		pc.ProjectType = &projectType
		pc.AreaSqm = &area
	}
	f.runner.result = &core.RunResult{Items: []core.RunItem{
		core.ToolCallItem{Agent: "Triage Agent", Name: "estimate_project_cost", Arguments: `{"area_sqm": 150}`},
		core.ToolOutputItem{Agent: "Triage Agent", Name: "estimate_project_cost", Output: "estimate ready"},
		core.MessageItem{Agent: "Triage Agent", Content: "Here is your estimate."},
	}}

	resp, err := f.orchestrator.HandleTurn(context.Background(), TurnRequest{Message: "Estimate please"})
	require.NoError(t, err)

	// Exactly one context_update event, ordered last.
	var updates []core.AgentEvent
	for _, ev := range resp.Events {
		if ev.Type == core.EventContextUpdate {
			updates = append(updates, ev)
		}
	}
	require.Len(t, updates, 1)
	assert.Equal(t, resp.Events[len(resp.Events)-1].ID, updates[0].ID)

	changes, ok := updates[0].Metadata["changes"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, changes, 2)
	assert.Equal(t, "Einfamilienhaus", changes["project_type"])
	assert.Equal(t, 150.0, changes["area_sqm"])

	// Tool call metadata carries the decoded arguments.
	assert.Equal(t, core.EventToolCall, resp.Events[0].Type)
	args, ok := resp.Events[0].Metadata["tool_args"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 150.0, args["area_sqm"])

	assert.Equal(t, "Einfamilienhaus", resp.Context["project_type"])
}

func TestHandleTurn_NoContextChangeNoUpdateEvent(t *testing.T) {
	f := newFixture(t)

	resp, err := f.orchestrator.HandleTurn(context.Background(), TurnRequest{Message: "Hello"})
	require.NoError(t, err)

	for _, ev := range resp.Events {
		assert.NotEqual(t, core.EventContextUpdate, ev.Type)
	}
}

func TestHandleTurn_MalformedToolArgsRetained(t *testing.T) {
	f := newFixture(t)
	f.runner.result = &core.RunResult{Items: []core.RunItem{
		core.ToolCallItem{Agent: "Triage Agent", Name: "estimate_project_cost", Arguments: `{"broken`},
		core.MessageItem{Agent: "Triage Agent", Content: "Done."},
	}}

	resp, err := f.orchestrator.HandleTurn(context.Background(), TurnRequest{Message: "go"})
	require.NoError(t, err)

	assert.Equal(t, `{"broken`, resp.Events[0].Metadata["tool_args"], "unparseable payloads are kept verbatim")
}

func TestHandleTurn_RunnerFailurePersistsNothing(t *testing.T) {
	f := newFixture(t)

	first, err := f.orchestrator.HandleTurn(context.Background(), TurnRequest{Message: "Hello"})
	require.NoError(t, err)

	f.runner.err = errors.New("model endpoint down")
	_, err = f.orchestrator.HandleTurn(context.Background(), TurnRequest{
		ConversationID: first.ConversationID,
		Message:        "second message",
	})
	require.Error(t, err)

	// The failed turn's transcript append was not committed.
	state, err := f.store.Get(first.ConversationID)
	require.NoError(t, err)
	require.Len(t, state.Items, 2)
	assert.NotEqual(t, "second message", state.Items[len(state.Items)-1].Content)
}

func TestHandleTurn_UnknownConversationGetsNewID(t *testing.T) {
	f := newFixture(t)

	resp, err := f.orchestrator.HandleTurn(context.Background(), TurnRequest{
		ConversationID: "evicted-or-bogus",
		Message:        "Hello",
	})
	require.NoError(t, err)

	assert.NotEqual(t, "evicted-or-bogus", resp.ConversationID)
	assert.Equal(t, "Triage Agent", resp.CurrentAgent)
}

func TestHandleTurn_DriftedAgentFallsBackToEntry(t *testing.T) {
	f := newFixture(t)

	first, err := f.orchestrator.HandleTurn(context.Background(), TurnRequest{Message: "Hello"})
	require.NoError(t, err)

	// Simulate a stored agent name that no longer exists.
	state, err := f.store.Get(first.ConversationID)
	require.NoError(t, err)
	state.CurrentAgent = "Retired Agent"
	require.NoError(t, f.store.Save(state))

	resp, err := f.orchestrator.HandleTurn(context.Background(), TurnRequest{
		ConversationID: first.ConversationID,
		Message:        "Still there?",
	})
	require.NoError(t, err)

	assert.Equal(t, "Triage Agent", resp.CurrentAgent)
	assert.Equal(t, "Triage Agent", f.runner.gotAgent)
}

func TestHandleTurn_EmptyMessageOnExistingConversationRunsTurn(t *testing.T) {
	f := newFixture(t)

	first, err := f.orchestrator.HandleTurn(context.Background(), TurnRequest{Message: "Hello"})
	require.NoError(t, err)

	resp, err := f.orchestrator.HandleTurn(context.Background(), TurnRequest{
		ConversationID: first.ConversationID,
		Message:        "",
	})
	require.NoError(t, err)

	// Only a brand-new conversation treats an empty message as warm-up.
	assert.Equal(t, 2, f.runner.calls)
	assert.NotEmpty(t, resp.Messages)
}

func TestTranslate_LastHandoffWins(t *testing.T) {
	items := []core.RunItem{
		core.HandoffItem{Source: "Triage Agent", Target: "FAQ Agent"},
		core.HandoffItem{Source: "FAQ Agent", Target: "Cost Estimation Agent"},
	}
	_, events, current := translate(items, "Triage Agent")
	assert.Equal(t, "Cost Estimation Agent", current)
	assert.Len(t, events, 2)
}
