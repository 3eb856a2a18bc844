package topology

import (
	"github.com/hupe1980/agentswarm/core"
)

// Builder collects node and edge declarations and produces an immutable
// Graph. The zero value is not usable; construct via NewBuilder.
//
// Builders are not safe for concurrent use. Build may be called once; the
// returned Graph is independent of the builder.
type Builder struct {
	buildType BuildType
	nodes     []string
	nodeSet   map[string]struct{}
	edges     [][2]string
	roots     []string
	// allowConnectedRoots disables the in-degree-0 validation for
	// explicitly declared roots.
	allowConnectedRoots bool
}

// NewBuilder creates a builder for the given build type.
func NewBuilder(buildType BuildType) *Builder {
	return &Builder{buildType: buildType, nodeSet: map[string]struct{}{}}
}

// AddNode declares a node id. Re-declaring an id is a no-op; ids must be
// unique within the graph.
func (b *Builder) AddNode(id string) *Builder {
	if _, ok := b.nodeSet[id]; !ok {
		b.nodeSet[id] = struct{}{}
		b.nodes = append(b.nodes, id)
	}
	return b
}

// AddNodes declares multiple node ids.
func (b *Builder) AddNodes(ids ...string) *Builder {
	for _, id := range ids {
		b.AddNode(id)
	}
	return b
}

// AddEdge declares a directed edge. Both endpoints must be declared nodes by
// Build time.
func (b *Builder) AddEdge(source, target string) *Builder {
	b.edges = append(b.edges, [2]string{source, target})
	return b
}

// Pipeline expands nested parallel/sequential group shorthand into nodes and
// edges. The elements are connected sequentially; adjacent group boundaries
// are connected by cartesian product, so
//
//	b.Pipeline(N("a"), Par(N("b"), N("c")), N("d"))
//
// declares a→b, a→c, b→d, c→d.
func (b *Builder) Pipeline(elements ...Element) *Builder {
	expandInto(b, Seq(elements...))
	return b
}

// Roots declares the entry nodes. When omitted, Build derives roots as all
// nodes with static in-degree zero.
func (b *Builder) Roots(ids ...string) *Builder {
	b.roots = append(b.roots, ids...)
	return b
}

// AllowConnectedRoots permits explicitly declared roots to have incoming
// static edges, overriding the default in-degree-0 validation.
func (b *Builder) AllowConnectedRoots() *Builder {
	b.allowConnectedRoots = true
	return b
}

// Build validates the declaration and returns the immutable graph.
//
// Validation rules:
//   - every edge endpoint must reference a declared node (BuildError)
//   - WORKFLOW static edges must form a DAG (CyclicWorkflowError naming the
//     offending cycle)
//   - declared roots must have static in-degree zero unless
//     AllowConnectedRoots was set (BuildError)
func (b *Builder) Build() (*Graph, error) {
	if len(b.nodes) == 0 {
		return nil, &core.BuildError{Reason: "graph declares no nodes"}
	}

	g := &Graph{
		buildType: b.buildType,
		ids:       append([]string(nil), b.nodes...),
		index:     make(map[string]int, len(b.nodes)),
		succ:      make([][]int, len(b.nodes)),
		pred:      make([][]int, len(b.nodes)),
	}
	for i, id := range g.ids {
		g.index[id] = i
	}

	seen := make(map[[2]string]struct{}, len(b.edges))
	for _, e := range b.edges {
		si, ok := g.index[e[0]]
		if !ok {
			return nil, &core.BuildError{Node: e[0], Reason: "edge references undeclared node"}
		}
		ti, ok := g.index[e[1]]
		if !ok {
			return nil, &core.BuildError{Node: e[1], Reason: "edge references undeclared node"}
		}
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		g.succ[si] = append(g.succ[si], ti)
		g.pred[ti] = append(g.pred[ti], si)
	}

	if b.buildType == Workflow {
		if cycle := findCycle(g); cycle != nil {
			return nil, &core.CyclicWorkflowError{Cycle: cycle}
		}
	}

	if len(b.roots) > 0 {
		for _, r := range b.roots {
			ri, ok := g.index[r]
			if !ok {
				return nil, &core.BuildError{Node: r, Reason: "declared root is not a declared node"}
			}
			if !b.allowConnectedRoots && len(g.pred[ri]) > 0 {
				return nil, &core.BuildError{Node: r, Reason: "declared root has incoming static edges"}
			}
			g.roots = append(g.roots, ri)
		}
	} else {
		for i := range g.ids {
			if len(g.pred[i]) == 0 {
				g.roots = append(g.roots, i)
			}
		}
		if len(g.roots) == 0 {
			return nil, &core.BuildError{Reason: "no root nodes: every node has incoming edges; declare roots explicitly with AllowConnectedRoots"}
		}
	}

	return g, nil
}

// findCycle runs a tri-color DFS over the static edges. It returns the
// offending cycle path (closing node repeated last) or nil when the graph is
// acyclic.
func findCycle(g *Graph) []string {
	const (
		white = iota // unvisited
		gray         // on the current DFS stack
		black        // fully explored
	)
	color := make([]int, len(g.ids))
	var stack []int

	var visit func(n int) []string
	visit = func(n int) []string {
		color[n] = gray
		stack = append(stack, n)
		for _, s := range g.succ[n] {
			switch color[s] {
			case white:
				if cycle := visit(s); cycle != nil {
					return cycle
				}
			case gray:
				// Back edge: slice the stack from the first occurrence of s.
				for i, v := range stack {
					if v == s {
						cycle := make([]string, 0, len(stack)-i+1)
						for _, idx := range stack[i:] {
							cycle = append(cycle, g.ids[idx])
						}
						return append(cycle, g.ids[s])
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[n] = black
		return nil
	}

	for n := range g.ids {
		if color[n] == white {
			if cycle := visit(n); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}
