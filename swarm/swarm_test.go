package swarm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/topology"
)

type stubAgent struct{ name string }

func (a *stubAgent) Name() string        { return a.name }
func (a *stubAgent) Description() string { return "stub " + a.name }

func (a *stubAgent) Execute(context.Context, core.Message) (*core.Decision, error) {
	return &core.Decision{Content: "ok", Finished: true}, nil
}

func agents(names ...string) []core.Agent {
	out := make([]core.Agent, 0, len(names))
	for _, n := range names {
		out = append(out, &stubAgent{name: n})
	}
	return out
}

// ---------------------------------------------------------------------------
// Binding
// ---------------------------------------------------------------------------

func TestNew(t *testing.T) {
	g, err := topology.NewBuilder(topology.Workflow).
		AddNodes("a", "b").
		AddEdge("a", "b").
		Build()
	require.NoError(t, err)

	t.Run("Success", func(t *testing.T) {
		s, err := New(g, agents("a", "b"))
		require.NoError(t, err)

		assert.Same(t, g, s.Graph())
		got, ok := s.Agent("a")
		require.True(t, ok)
		assert.Equal(t, "a", got.Name())
		_, ok = s.Agent("missing")
		assert.False(t, ok)
	})

	t.Run("MissingAgent", func(t *testing.T) {
		_, err := New(g, agents("a"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"b"`)
	})

	t.Run("DuplicateAgent", func(t *testing.T) {
		_, err := New(g, agents("a", "b", "a"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate")
	})

	t.Run("ExtraAgentsTolerated", func(t *testing.T) {
		_, err := New(g, agents("a", "b", "spare"))
		assert.NoError(t, err)
	})
}

// ---------------------------------------------------------------------------
// Next hop resolution
// ---------------------------------------------------------------------------

func TestSwarm_NextHops_Workflow(t *testing.T) {
	g, err := topology.NewBuilder(topology.Workflow).
		Pipeline(topology.N("a"), topology.Par(topology.N("b"), topology.N("c"))).
		Build()
	require.NoError(t, err)

	s, err := New(g, agents("a", "b", "c"))
	require.NoError(t, err)

	// Static successors win; any declared handoffs are ignored.
	hops, err := s.NextHops("a", &core.Decision{Handoffs: []string{"c"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, hops)

	hops, err = s.NextHops("b", &core.Decision{})
	require.NoError(t, err)
	assert.Empty(t, hops)
}

func TestSwarm_NextHops_Handoff(t *testing.T) {
	g, err := topology.NewBuilder(topology.Handoff).
		AddNodes("triage", "billing", "tech").
		AddEdge("triage", "billing").
		AddEdge("triage", "tech").
		AddEdge("tech", "triage").
		Roots("triage").
		AllowConnectedRoots().
		Build()
	require.NoError(t, err)

	t.Run("DecisionDrivenTargets", func(t *testing.T) {
		s, err := New(g, agents("triage", "billing", "tech"))
		require.NoError(t, err)

		hops, err := s.NextHops("triage", &core.Decision{Handoffs: []string{"tech"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"tech"}, hops)

		hops, err = s.NextHops("triage", &core.Decision{})
		require.NoError(t, err)
		assert.Empty(t, hops)
	})

	t.Run("LenientDropsIllegalTarget", func(t *testing.T) {
		s, err := New(g, agents("triage", "billing", "tech"))
		require.NoError(t, err)

		hops, err := s.NextHops("billing", &core.Decision{Handoffs: []string{"tech"}})
		require.NoError(t, err)
		assert.Empty(t, hops)

		// Legal targets survive alongside dropped ones.
		hops, err = s.NextHops("triage", &core.Decision{Handoffs: []string{"ghost", "billing"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"billing"}, hops)
	})

	t.Run("StrictFailsIllegalTarget", func(t *testing.T) {
		s, err := New(g, agents("triage", "billing", "tech"), func(o *Options) { o.Strict = true })
		require.NoError(t, err)
		assert.True(t, s.Strict())

		_, err = s.NextHops("billing", &core.Decision{Handoffs: []string{"tech"}})

		var routingErr *core.RoutingError
		require.ErrorAs(t, err, &routingErr)
		assert.Equal(t, "billing", routingErr.Source)
		assert.Equal(t, "tech", routingErr.Target)
	})
}

// ---------------------------------------------------------------------------
// Node status
// ---------------------------------------------------------------------------

func TestSwarm_Status(t *testing.T) {
	g, err := topology.NewBuilder(topology.Workflow).AddNode("a").Build()
	require.NoError(t, err)

	s, err := New(g, agents("a"))
	require.NoError(t, err)

	assert.Equal(t, core.NodeIdle, s.Status("a"))

	s.SetStatus("a", core.NodeRunning)
	assert.Equal(t, core.NodeRunning, s.Status("a"))
}
