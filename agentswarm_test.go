package agentswarm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentswarm/agent"
	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/engine"
	"github.com/hupe1980/agentswarm/tool"
	"github.com/hupe1980/agentswarm/topology"
)

func pipelineGraph(t *testing.T) *topology.Graph {
	t.Helper()
	g, err := topology.NewBuilder(topology.Workflow).
		Pipeline(topology.N("research"), topology.N("write")).
		Build()
	require.NoError(t, err)
	return g
}

func pipelineAgents() []core.Agent {
	research := agent.NewFuncAgent("research", func(_ context.Context, msg core.Message) (*core.Decision, error) {
		return &core.Decision{Content: "facts about " + msg.Text()}, nil
	})
	write := agent.NewFuncAgent("write", func(_ context.Context, msg core.Message) (*core.Decision, error) {
		return &core.Decision{Content: "article: " + msg.Text(), Finished: true}, nil
	})
	return []core.Agent{research, write}
}

func TestNew(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		s, err := New(pipelineGraph(t), pipelineAgents())
		require.NoError(t, err)
		assert.NotNil(t, s.Swarm())
		assert.NotNil(t, s.Store())
	})

	t.Run("UnboundNode", func(t *testing.T) {
		_, err := New(pipelineGraph(t), pipelineAgents()[:1])
		require.Error(t, err)
		assert.Contains(t, err.Error(), "binding agents")
	})

	t.Run("UnknownEngine", func(t *testing.T) {
		_, err := New(pipelineGraph(t), pipelineAgents(), func(o *Options) {
			o.RunConfig = engine.RunConfig{Engine: "quantum"}
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "building engine")
	})
}

func TestAgentSwarm_Execute(t *testing.T) {
	s, err := New(pipelineGraph(t), pipelineAgents())
	require.NoError(t, err)

	resp, err := s.Execute(context.Background(), "solar panels")
	require.NoError(t, err)

	require.True(t, resp.Success, "unexpected failure: %v", resp.Err)
	assert.Equal(t, "article: facts about solar panels", resp.Answer)
	assert.Len(t, resp.Trajectory, 2)

	// Finished responses land in the store.
	stored, err := s.Store().Get(resp.TaskID)
	require.NoError(t, err)
	assert.Equal(t, resp.Answer, stored.Answer)
}

func TestAgentSwarm_SubmitCollect(t *testing.T) {
	s, err := New(pipelineGraph(t), pipelineAgents(), func(o *Options) {
		o.RunConfig = engine.RunConfig{Engine: engine.Batch, WorkerNum: 2}
	})
	require.NoError(t, err)

	tasks := []*core.Task{
		core.NewTask("wind"),
		core.NewTask("solar"),
		core.NewTask("hydro"),
	}

	futures, err := s.Submit(context.Background(), tasks)
	require.NoError(t, err)
	require.Len(t, futures, 3)

	results, err := s.Collect(context.Background(), futures)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for _, task := range tasks {
		resp := results[task.ID]
		require.NotNil(t, resp)
		assert.True(t, resp.Success)
		assert.Equal(t, "article: facts about "+task.Input, resp.Answer)
	}
	assert.Equal(t, 3, s.Store().Len())
}

func TestAgentSwarm_WithTools(t *testing.T) {
	g, err := topology.NewBuilder(topology.Workflow).AddNode("calc").Build()
	require.NoError(t, err)

	calc := agent.NewFuncAgent("calc", func(_ context.Context, msg core.Message) (*core.Decision, error) {
		if msg.Category == core.CategoryToolResult {
			return &core.Decision{Content: msg.Text(), Finished: true}, nil
		}
		return &core.Decision{
			Actions: []core.Action{core.NewFunctionToolCall("double", `{"n": 21}`)},
		}, nil
	})

	double := tool.NewFunctionTool("double", "Doubles a number",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{"n": map[string]any{"type": "number"}},
			"required":   []string{"n"},
		},
		func(_ context.Context, args map[string]any) (any, error) {
			return args["n"].(float64) * 2, nil
		},
	)

	s, err := New(g, []core.Agent{calc}, func(o *Options) {
		o.Tools = []tool.Tool{double}
	})
	require.NoError(t, err)

	resp, err := s.Execute(context.Background(), "double it")
	require.NoError(t, err)
	require.True(t, resp.Success, "unexpected failure: %v", resp.Err)
	assert.Equal(t, "double: 42", resp.Answer)
}
