// Package topology builds and represents the declarative collaboration graph
// executed by a swarm. A Builder collects node and edge declarations
// (optionally via nested parallel/sequential group shorthand), validates
// them, and produces an immutable Graph.
//
// Graphs come in two build types: WORKFLOW graphs are validated DAGs whose
// static edges drive routing and join barriers; HANDOFF graphs allow cycles
// and use their edges only to bound the legal dynamic targets an agent may
// emit.
package topology

// BuildType selects the routing semantics of a graph.
type BuildType string

const (
	// Workflow graphs route along static edges; their edges must form a DAG.
	Workflow BuildType = "WORKFLOW"
	// Handoff graphs route by per-step agent decision; edges are advisory
	// bounds on legal targets and cycles (including self-loops) are legal.
	Handoff BuildType = "HANDOFF"
)

// Graph is the immutable adjacency representation of a built topology.
//
// Nodes and edges are stored arena-style: node ids live in a slice and
// adjacency lists hold integer indices into it, so cyclic handoff graphs
// never form pointer cycles. A Graph is read-only after Build and safe for
// unsynchronized concurrent reads.
type Graph struct {
	buildType BuildType
	ids       []string
	index     map[string]int
	succ      [][]int // successor indices in edge declaration order
	pred      [][]int // predecessor indices in edge declaration order
	roots     []int
}

// BuildType returns the graph's routing semantics.
func (g *Graph) BuildType() BuildType { return g.buildType }

// IsHandoff reports whether the graph uses dynamic handoff routing.
func (g *Graph) IsHandoff() bool { return g.buildType == Handoff }

// Nodes returns all node ids in declaration order.
func (g *Graph) Nodes() []string {
	out := make([]string, len(g.ids))
	copy(out, g.ids)
	return out
}

// HasNode reports whether id is declared in the graph.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.index[id]
	return ok
}

// Successors returns the declared successor ids of a node in edge
// declaration order. Unknown nodes yield nil.
func (g *Graph) Successors(id string) []string {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	return g.resolve(g.succ[i])
}

// Predecessors returns the declared predecessor ids of a node in edge
// declaration order. The join coordinator relies on this order when
// aggregating barrier inputs. Unknown nodes yield nil.
func (g *Graph) Predecessors(id string) []string {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	return g.resolve(g.pred[i])
}

// Roots returns the entry node ids of the graph.
func (g *Graph) Roots() []string { return g.resolve(g.roots) }

// InDegree returns the number of static predecessors of a node.
func (g *Graph) InDegree(id string) int {
	i, ok := g.index[id]
	if !ok {
		return 0
	}
	return len(g.pred[i])
}

func (g *Graph) resolve(indices []int) []string {
	out := make([]string, len(indices))
	for i, idx := range indices {
		out[i] = g.ids[idx]
	}
	return out
}
