package topology

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentswarm/core"
)

// ---------------------------------------------------------------------------
// Builder / Graph
// ---------------------------------------------------------------------------

func TestBuilder_Workflow(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		g, err := NewBuilder(Workflow).
			AddNodes("planner", "search", "math", "writer").
			AddEdge("planner", "search").
			AddEdge("planner", "math").
			AddEdge("search", "writer").
			AddEdge("math", "writer").
			Build()
		require.NoError(t, err)

		assert.Equal(t, Workflow, g.BuildType())
		assert.False(t, g.IsHandoff())
		assert.Equal(t, []string{"planner", "search", "math", "writer"}, g.Nodes())
		assert.Equal(t, []string{"planner"}, g.Roots())
		assert.Equal(t, []string{"search", "math"}, g.Successors("planner"))
		assert.Equal(t, []string{"search", "math"}, g.Predecessors("writer"))
		assert.Equal(t, 2, g.InDegree("writer"))
		assert.Equal(t, 0, g.InDegree("planner"))
		assert.True(t, g.HasNode("math"))
		assert.False(t, g.HasNode("reviewer"))
	})

	t.Run("DuplicateEdgesDeduped", func(t *testing.T) {
		g, err := NewBuilder(Workflow).
			AddNodes("a", "b").
			AddEdge("a", "b").
			AddEdge("a", "b").
			Build()
		require.NoError(t, err)

		assert.Equal(t, []string{"b"}, g.Successors("a"))
		assert.Equal(t, 1, g.InDegree("b"))
	})

	t.Run("UnknownNodeQueries", func(t *testing.T) {
		g, err := NewBuilder(Workflow).AddNode("a").Build()
		require.NoError(t, err)

		assert.Nil(t, g.Successors("missing"))
		assert.Nil(t, g.Predecessors("missing"))
		assert.Equal(t, 0, g.InDegree("missing"))
	})

	t.Run("NoNodes", func(t *testing.T) {
		_, err := NewBuilder(Workflow).Build()

		var buildErr *core.BuildError
		require.ErrorAs(t, err, &buildErr)
		assert.Contains(t, buildErr.Reason, "no nodes")
	})

	t.Run("UndeclaredEdgeEndpoint", func(t *testing.T) {
		_, err := NewBuilder(Workflow).
			AddNode("a").
			AddEdge("a", "ghost").
			Build()

		var buildErr *core.BuildError
		require.ErrorAs(t, err, &buildErr)
		assert.Equal(t, "ghost", buildErr.Node)
	})

	t.Run("Cycle", func(t *testing.T) {
		_, err := NewBuilder(Workflow).
			AddNodes("a", "b", "c").
			AddEdge("a", "b").
			AddEdge("b", "c").
			AddEdge("c", "a").
			Build()

		var cycleErr *core.CyclicWorkflowError
		require.ErrorAs(t, err, &cycleErr)
		assert.Equal(t, []string{"a", "b", "c", "a"}, cycleErr.Cycle)
	})

	t.Run("SelfLoopCycle", func(t *testing.T) {
		_, err := NewBuilder(Workflow).
			AddNode("a").
			AddEdge("a", "a").
			Build()

		var cycleErr *core.CyclicWorkflowError
		require.ErrorAs(t, err, &cycleErr)
		assert.Equal(t, []string{"a", "a"}, cycleErr.Cycle)
	})
}

func TestBuilder_Roots(t *testing.T) {
	t.Run("Derived", func(t *testing.T) {
		g, err := NewBuilder(Workflow).
			AddNodes("a", "b", "c").
			AddEdge("a", "c").
			AddEdge("b", "c").
			Build()
		require.NoError(t, err)

		assert.Equal(t, []string{"a", "b"}, g.Roots())
	})

	t.Run("Declared", func(t *testing.T) {
		g, err := NewBuilder(Workflow).
			AddNodes("a", "b").
			AddEdge("a", "b").
			Roots("a").
			Build()
		require.NoError(t, err)

		assert.Equal(t, []string{"a"}, g.Roots())
	})

	t.Run("DeclaredRootUnknown", func(t *testing.T) {
		_, err := NewBuilder(Workflow).
			AddNode("a").
			Roots("ghost").
			Build()

		var buildErr *core.BuildError
		require.ErrorAs(t, err, &buildErr)
		assert.Equal(t, "ghost", buildErr.Node)
	})

	t.Run("DeclaredRootWithIncomingEdges", func(t *testing.T) {
		_, err := NewBuilder(Workflow).
			AddNodes("a", "b").
			AddEdge("a", "b").
			Roots("b").
			Build()

		var buildErr *core.BuildError
		require.ErrorAs(t, err, &buildErr)
		assert.Equal(t, "b", buildErr.Node)
	})

	t.Run("AllowConnectedRoots", func(t *testing.T) {
		g, err := NewBuilder(Handoff).
			AddNodes("a", "b").
			AddEdge("a", "b").
			AddEdge("b", "a").
			Roots("a").
			AllowConnectedRoots().
			Build()
		require.NoError(t, err)

		assert.Equal(t, []string{"a"}, g.Roots())
	})

	t.Run("NoDerivableRoots", func(t *testing.T) {
		_, err := NewBuilder(Handoff).
			AddNodes("a", "b").
			AddEdge("a", "b").
			AddEdge("b", "a").
			Build()

		var buildErr *core.BuildError
		require.ErrorAs(t, err, &buildErr)
		assert.Contains(t, buildErr.Reason, "no root nodes")
	})
}

func TestBuilder_Handoff(t *testing.T) {
	t.Run("CyclesAllowed", func(t *testing.T) {
		g, err := NewBuilder(Handoff).
			AddNodes("triage", "support").
			AddEdge("triage", "support").
			AddEdge("support", "triage").
			AddEdge("support", "support").
			Roots("triage").
			AllowConnectedRoots().
			Build()
		require.NoError(t, err)

		assert.True(t, g.IsHandoff())
		assert.Equal(t, []string{"triage", "support"}, g.Successors("support"))
	})
}

// ---------------------------------------------------------------------------
// Group shorthand
// ---------------------------------------------------------------------------

func TestBuilder_Pipeline(t *testing.T) {
	t.Run("ParallelFanOutFanIn", func(t *testing.T) {
		g, err := NewBuilder(Workflow).
			Pipeline(N("a"), Par(N("b"), N("c")), N("d")).
			Build()
		require.NoError(t, err)

		assert.Equal(t, []string{"a", "b", "c", "d"}, g.Nodes())
		assert.Equal(t, []string{"b", "c"}, g.Successors("a"))
		assert.Equal(t, []string{"d"}, g.Successors("b"))
		assert.Equal(t, []string{"d"}, g.Successors("c"))
		assert.Equal(t, []string{"b", "c"}, g.Predecessors("d"))
		assert.Equal(t, []string{"a"}, g.Roots())
	})

	t.Run("NestedSeqInsidePar", func(t *testing.T) {
		g, err := NewBuilder(Workflow).
			Pipeline(N("a"), Par(Seq(N("b"), N("c")), N("d")), N("e")).
			Build()
		require.NoError(t, err)

		assert.Equal(t, []string{"b", "d"}, g.Successors("a"))
		assert.Equal(t, []string{"c"}, g.Successors("b"))
		assert.Equal(t, []string{"e"}, g.Successors("c"))
		assert.Equal(t, []string{"e"}, g.Successors("d"))
		assert.Equal(t, []string{"c", "d"}, g.Predecessors("e"))
	})

	t.Run("SingleElement", func(t *testing.T) {
		g, err := NewBuilder(Workflow).Pipeline(N("only")).Build()
		require.NoError(t, err)

		assert.Equal(t, []string{"only"}, g.Nodes())
		assert.Empty(t, g.Successors("only"))
	})
}

// ---------------------------------------------------------------------------
// Spec parsing
// ---------------------------------------------------------------------------

func TestParseJSON(t *testing.T) {
	t.Run("FlatNodesWithEdges", func(t *testing.T) {
		data := []byte(`{
			"nodes": ["planner", "writer"],
			"edges": [["planner", "writer"]],
			"build_type": "WORKFLOW"
		}`)

		b, err := ParseJSON(data)
		require.NoError(t, err)

		g, err := b.Build()
		require.NoError(t, err)

		assert.Equal(t, []string{"writer"}, g.Successors("planner"))
		assert.Equal(t, []string{"planner"}, g.Roots())
	})

	t.Run("NestedShorthand", func(t *testing.T) {
		data := []byte(`{
			"nodes": ["planner", ["search", "math"], "writer"],
			"build_type": "WORKFLOW"
		}`)

		b, err := ParseJSON(data)
		require.NoError(t, err)

		g, err := b.Build()
		require.NoError(t, err)

		assert.Equal(t, []string{"search", "math"}, g.Successors("planner"))
		assert.Equal(t, []string{"search", "math"}, g.Predecessors("writer"))
	})

	t.Run("MissingBuildType", func(t *testing.T) {
		_, err := ParseJSON([]byte(`{"nodes": ["a"]}`))

		var buildErr *core.BuildError
		require.ErrorAs(t, err, &buildErr)
		assert.Contains(t, buildErr.Reason, "build_type")
	})

	t.Run("UnknownBuildType", func(t *testing.T) {
		_, err := ParseJSON([]byte(`{"nodes": ["a"], "build_type": "GRID"}`))

		var buildErr *core.BuildError
		require.ErrorAs(t, err, &buildErr)
		assert.Contains(t, buildErr.Reason, "GRID")
	})

	t.Run("MalformedEdge", func(t *testing.T) {
		_, err := ParseJSON([]byte(`{
			"nodes": ["a", "b"],
			"edges": [["a"]],
			"build_type": "WORKFLOW"
		}`))

		var buildErr *core.BuildError
		require.ErrorAs(t, err, &buildErr)
		assert.Contains(t, buildErr.Reason, "two endpoints")
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		_, err := ParseJSON([]byte(`{`))

		require.Error(t, err)
		var buildErr *core.BuildError
		assert.False(t, errors.As(err, &buildErr))
	})
}

func TestParseYAML(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		data := []byte(`
nodes:
  - planner
  - [search, math]
  - writer
build_type: WORKFLOW
`)
		b, err := ParseYAML(data)
		require.NoError(t, err)

		g, err := b.Build()
		require.NoError(t, err)

		assert.Equal(t, []string{"planner", "search", "math", "writer"}, g.Nodes())
		assert.Equal(t, []string{"search", "math"}, g.Predecessors("writer"))
	})

	t.Run("HandoffWithRoots", func(t *testing.T) {
		data := []byte(`
nodes: [triage, support]
edges:
  - [triage, support]
  - [support, triage]
build_type: HANDOFF
roots: [triage]
`)
		b, err := ParseYAML(data)
		require.NoError(t, err)

		g, err := b.AllowConnectedRoots().Build()
		require.NoError(t, err)

		assert.True(t, g.IsHandoff())
		assert.Equal(t, []string{"triage"}, g.Roots())
	})
}
