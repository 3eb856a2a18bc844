package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/model"
	"github.com/hupe1980/agentswarm/tool"
)

// ---------------------------------------------------------------------------
// BaseAgent / FuncAgent
// ---------------------------------------------------------------------------

func TestBaseAgent(t *testing.T) {
	b := NewBaseAgent("researcher")

	assert.Equal(t, "researcher", b.Name())
	assert.Equal(t, "Agent researcher", b.Description())

	b.SetDescription("Finds and verifies sources")
	assert.Equal(t, "Finds and verifies sources", b.Description())
}

func TestFuncAgent(t *testing.T) {
	t.Run("Execute", func(t *testing.T) {
		a := NewFuncAgent("echo", func(_ context.Context, msg core.Message) (*core.Decision, error) {
			return &core.Decision{Content: "echo: " + msg.Text(), Finished: true}, nil
		})

		d, err := a.Execute(context.Background(), core.NewObservationMessage("hi", "", "echo"))
		require.NoError(t, err)
		assert.Equal(t, "echo: hi", d.Content)
		assert.True(t, d.Finished)
	})

	t.Run("Error", func(t *testing.T) {
		wantErr := errors.New("no decision")
		a := NewFuncAgent("broken", func(context.Context, core.Message) (*core.Decision, error) {
			return nil, wantErr
		})

		_, err := a.Execute(context.Background(), core.NewObservationMessage("hi", "", "broken"))
		assert.ErrorIs(t, err, wantErr)
	})

	t.Run("Clone", func(t *testing.T) {
		a := NewFuncAgent("echo", func(_ context.Context, msg core.Message) (*core.Decision, error) {
			return &core.Decision{Content: msg.Text()}, nil
		})

		clone := a.Clone()
		assert.Equal(t, "echo", clone.Name())
		assert.NotSame(t, core.Agent(a), clone)

		d, err := clone.Execute(context.Background(), core.NewObservationMessage("x", "", "echo"))
		require.NoError(t, err)
		assert.Equal(t, "x", d.Content)
	})
}

// ---------------------------------------------------------------------------
// Instructions
// ---------------------------------------------------------------------------

func TestInstruction(t *testing.T) {
	msg := core.NewObservationMessage("find flights", "planner", "searcher")

	t.Run("Static", func(t *testing.T) {
		i := NewInstructionFromText("You are a search agent.")
		assert.True(t, i.IsStatic())

		text, err := i.Resolve(context.Background(), msg)
		require.NoError(t, err)
		assert.Equal(t, "You are a search agent.", text)
	})

	t.Run("StaticTemplate", func(t *testing.T) {
		i := NewInstructionFromText("Handle {{.input}} from {{.sender}}.")

		text, err := i.Resolve(context.Background(), msg)
		require.NoError(t, err)
		assert.Equal(t, "Handle find flights from planner.", text)
	})

	t.Run("Provider", func(t *testing.T) {
		i := NewInstructionFromFunc(func(_ context.Context, msg core.Message) (string, error) {
			return "dynamic for " + msg.Sender, nil
		})
		assert.False(t, i.IsStatic())

		text, err := i.Resolve(context.Background(), msg)
		require.NoError(t, err)
		assert.Equal(t, "dynamic for planner", text)
	})

	t.Run("ProviderError", func(t *testing.T) {
		i := NewInstructionFromFunc(func(context.Context, core.Message) (string, error) {
			return "", errors.New("lookup failed")
		})

		_, err := i.Resolve(context.Background(), msg)
		assert.Error(t, err)
	})
}

// ---------------------------------------------------------------------------
// ModelAgent decision mapping
// ---------------------------------------------------------------------------

func TestModelAgent_TextDecision(t *testing.T) {
	mock := model.NewMockModel("test-model")
	mock.AddResponse("what is 2+2?", "4")

	a := NewModelAgent("math", mock)

	d, err := a.Execute(context.Background(), core.NewObservationMessage("what is 2+2?", "", "math"))
	require.NoError(t, err)
	assert.Equal(t, "4", d.Content)
	assert.Empty(t, d.Actions)
	assert.Empty(t, d.Handoffs)
	assert.False(t, d.Finished)
	assert.Equal(t, 1, mock.Calls())
}

func TestModelAgent_FinishOnText(t *testing.T) {
	mock := model.NewMockModel("test-model")
	mock.AddResponse("done?", "all done")

	a := NewModelAgent("math", mock, func(o *ModelAgentOptions) { o.FinishOnText = true })

	d, err := a.Execute(context.Background(), core.NewObservationMessage("done?", "", "math"))
	require.NoError(t, err)
	assert.True(t, d.Finished)
	assert.Equal(t, "all done", d.Content)
}

func TestModelAgent_FunctionToolCalls(t *testing.T) {
	mock := model.NewMockModel("test-model")
	mock.AddToolCallResponse("add numbers", &model.Response{
		ToolCalls: []model.ToolCall{
			{ID: "call-1", Name: "sum", Arguments: `{"a": 1, "b": 2}`},
			{ID: "call-2", Name: "sum", Arguments: `{"a": 3, "b": 4}`},
		},
		FinishReason: "tool_calls",
	})

	a := NewModelAgent("math", mock, func(o *ModelAgentOptions) { o.FinishOnText = true })

	d, err := a.Execute(context.Background(), core.NewObservationMessage("add numbers", "", "math"))
	require.NoError(t, err)
	require.Len(t, d.Actions, 2)
	assert.False(t, d.Finished)

	first, ok := d.Actions[0].(core.FunctionToolCall)
	require.True(t, ok)
	assert.Equal(t, "call-1", first.ID)
	assert.Equal(t, "sum", first.Name)
	assert.JSONEq(t, `{"a": 1, "b": 2}`, first.Arguments)
}

func TestModelAgent_AgentToolCall(t *testing.T) {
	mock := model.NewMockModel("test-model")
	mock.AddToolCallResponse("delegate", &model.Response{
		ToolCalls: []model.ToolCall{
			{ID: "call-1", Name: "summarizer", Arguments: `{"input": "condense the report"}`},
		},
	})

	a := NewModelAgent("writer", mock, func(o *ModelAgentOptions) {
		o.AgentTools = map[string]string{"summarizer": "Summarizes long text"}
	})

	d, err := a.Execute(context.Background(), core.NewObservationMessage("delegate", "", "writer"))
	require.NoError(t, err)
	require.Len(t, d.Actions, 1)

	call, ok := d.Actions[0].(core.AgentToolCall)
	require.True(t, ok)
	assert.Equal(t, "call-1", call.ID)
	assert.Equal(t, "summarizer", call.Agent)
	assert.Equal(t, "condense the report", call.Input)
}

func TestModelAgent_Transfer(t *testing.T) {
	mock := model.NewMockModel("test-model")
	mock.AddToolCallResponse("route me", &model.Response{
		ToolCalls: []model.ToolCall{
			{ID: "call-1", Name: tool.TransferToAgentName, Arguments: `{"agent": "tech"}`},
		},
	})

	a := NewModelAgent("triage", mock, func(o *ModelAgentOptions) { o.AllowTransfer = true })

	d, err := a.Execute(context.Background(), core.NewObservationMessage("route me", "", "triage"))
	require.NoError(t, err)
	assert.Empty(t, d.Actions)
	assert.Equal(t, []string{"tech"}, d.Handoffs)
}

func TestModelAgent_TransferMissingTarget(t *testing.T) {
	mock := model.NewMockModel("test-model")
	mock.AddToolCallResponse("route me", &model.Response{
		ToolCalls: []model.ToolCall{
			{ID: "call-1", Name: tool.TransferToAgentName, Arguments: `{}`},
		},
	})

	a := NewModelAgent("triage", mock, func(o *ModelAgentOptions) { o.AllowTransfer = true })

	_, err := a.Execute(context.Background(), core.NewObservationMessage("route me", "", "triage"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent")
}

func TestModelAgent_ToolResultPrefix(t *testing.T) {
	mock := model.NewMockModel("test-model")
	mock.AddResponse("Tool results:\nsum: 3", "the sum is 3")

	a := NewModelAgent("math", mock)

	msg := core.NewMessage(core.ToolResult{CallID: "c1", Name: "sum", Result: "sum: 3"}, "math", "math")
	d, err := a.Execute(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, "the sum is 3", d.Content)
}

// ---------------------------------------------------------------------------
// ModelAgent history and cloning
// ---------------------------------------------------------------------------

func TestModelAgent_HistoryAccumulates(t *testing.T) {
	mock := model.NewMockModel("test-model")
	a := NewModelAgent("chat", mock)

	// Each turn stores its input and the assistant reply.
	_, err := a.Execute(context.Background(), core.NewObservationMessage("one", "", "chat"))
	require.NoError(t, err)
	_, err = a.Execute(context.Background(), core.NewObservationMessage("two", "", "chat"))
	require.NoError(t, err)

	a.mu.Lock()
	defer a.mu.Unlock()
	assert.Len(t, a.history, 4)
}

func TestModelAgent_HistoryTrimmed(t *testing.T) {
	mock := model.NewMockModel("test-model")
	a := NewModelAgent("chat", mock, func(o *ModelAgentOptions) { o.MaxHistoryMessages = 4 })

	for i := 0; i < 5; i++ {
		_, err := a.Execute(context.Background(), core.NewObservationMessage("turn", "", "chat"))
		require.NoError(t, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	assert.Len(t, a.history, 4)
}

func TestModelAgent_CloneStartsEmpty(t *testing.T) {
	mock := model.NewMockModel("test-model")
	a := NewModelAgent("chat", mock)

	_, err := a.Execute(context.Background(), core.NewObservationMessage("remember this", "", "chat"))
	require.NoError(t, err)

	clone, ok := a.Clone().(*ModelAgent)
	require.True(t, ok)
	assert.Equal(t, "chat", clone.Name())

	clone.mu.Lock()
	defer clone.mu.Unlock()
	assert.Empty(t, clone.history)
}

// ---------------------------------------------------------------------------
// Tool surface
// ---------------------------------------------------------------------------

func TestModelAgent_ToolDefinitions(t *testing.T) {
	mock := model.NewMockModel("test-model")
	a := NewModelAgent("worker", mock, func(o *ModelAgentOptions) {
		o.Tools = []model.ToolDefinition{{Name: "search", Description: "Web search"}}
		o.AgentTools = map[string]string{"summarizer": "Summarizes long text"}
		o.AllowTransfer = true
	})

	defs := a.toolDefinitions()
	require.Len(t, defs, 3)

	names := make(map[string]model.ToolDefinition, len(defs))
	for _, d := range defs {
		names[d.Name] = d
	}
	assert.Contains(t, names, "search")
	assert.Contains(t, names, "summarizer")
	assert.Contains(t, names, tool.TransferToAgentName)

	// Agent tools expose a required string input parameter.
	data, err := json.Marshal(names["summarizer"].Parameters)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"input"`)
	assert.Contains(t, string(data), `"required"`)
}
