// Package swarm binds an immutable topology graph to live agent instances
// and adds dynamic (handoff) routing on top of the static edges. A Swarm is
// the unit actually executed by the task runner.
package swarm

import (
	"fmt"
	"sync"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/logging"
	"github.com/hupe1980/agentswarm/topology"
)

// Options configures a Swarm.
type Options struct {
	// Strict escalates out-of-set handoff targets from a dropped-and-logged
	// warning to a task-fatal RoutingError.
	Strict bool

	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Swarm is a Graph bound to concrete agent instances.
//
// For WORKFLOW graphs the next hops of a node are exactly its static
// successors. For HANDOFF graphs the next hops are chosen per step by the
// active agent's decision; every emitted target is checked against the
// node's statically declared successor set. Loops, including self-loops,
// are legal in HANDOFF graphs; termination relies on an agent-declared
// finished signal or the task's max-hop budget.
type Swarm struct {
	graph  *topology.Graph
	agents map[string]core.Agent
	strict bool
	logger logging.Logger

	mu     sync.RWMutex
	status map[string]core.NodeStatus
}

// New binds agents to the graph's nodes. Every node must have an agent with
// a matching name.
func New(graph *topology.Graph, agents []core.Agent, optFns ...func(o *Options)) (*Swarm, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	byName := make(map[string]core.Agent, len(agents))
	for _, a := range agents {
		if _, dup := byName[a.Name()]; dup {
			return nil, fmt.Errorf("duplicate agent %q", a.Name())
		}
		byName[a.Name()] = a
	}
	for _, id := range graph.Nodes() {
		if _, ok := byName[id]; !ok {
			return nil, fmt.Errorf("graph node %q has no bound agent", id)
		}
	}

	status := make(map[string]core.NodeStatus, len(graph.Nodes()))
	for _, id := range graph.Nodes() {
		status[id] = core.NodeIdle
	}

	return &Swarm{
		graph:  graph,
		agents: byName,
		strict: opts.Strict,
		logger: opts.Logger,
		status: status,
	}, nil
}

// Graph returns the underlying immutable graph.
func (s *Swarm) Graph() *topology.Graph { return s.graph }

// Agent returns the agent bound to a node id.
func (s *Swarm) Agent(id string) (core.Agent, bool) {
	a, ok := s.agents[id]
	return a, ok
}

// Strict reports whether out-of-set handoffs are task-fatal.
func (s *Swarm) Strict() bool { return s.strict }

// NextHops resolves the next destination nodes after a decision step at
// node.
//
// WORKFLOW: the static successors, regardless of the decision.
// HANDOFF: the decision's handoff targets, each validated against the
// node's declared successor set. An out-of-set target yields a
// RoutingError: in strict mode it is returned, otherwise the hop is dropped
// with a logged warning and routing continues with the remaining targets.
func (s *Swarm) NextHops(node string, d *core.Decision) ([]string, error) {
	if !s.graph.IsHandoff() {
		return s.graph.Successors(node), nil
	}

	allowed := map[string]struct{}{}
	for _, succ := range s.graph.Successors(node) {
		allowed[succ] = struct{}{}
	}

	var hops []string
	for _, target := range d.Handoffs {
		if _, ok := allowed[target]; !ok {
			rerr := &core.RoutingError{Source: node, Target: target}
			if s.strict {
				return nil, rerr
			}
			s.logger.Warn("dropping illegal handoff: %v", rerr)
			continue
		}
		hops = append(hops, target)
	}
	return hops, nil
}

// SetStatus updates the runtime status of a node.
func (s *Swarm) SetStatus(node string, status core.NodeStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[node] = status
}

// Status returns the runtime status of a node.
func (s *Swarm) Status(node string) core.NodeStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status[node]
}
