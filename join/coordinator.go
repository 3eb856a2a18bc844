// Package join implements barrier synchronization for nodes with multiple
// static predecessors. A node's handler fires exactly once, after every
// declared predecessor has delivered, with the inputs ordered by predecessor
// declaration rather than arrival.
package join

import (
	"fmt"
	"sync"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/logging"
	"github.com/hupe1980/agentswarm/topology"
)

// Policy selects the coordinator's behavior when a predecessor fails.
type Policy int

const (
	// FailFast fails the join immediately on the first predecessor failure.
	FailFast Policy = iota
	// BestEffort substitutes a placeholder for a failed predecessor,
	// records a warning and proceeds once all predecessors have reported.
	BestEffort
)

// Options configures a Coordinator.
type Options struct {
	Policy Policy
	Logger logging.Logger
}

// Coordinator tracks barrier state per multi-predecessor node of one task
// run. It is safe for concurrent use; counters are mutated under a per-node
// lock.
type Coordinator struct {
	graph  *topology.Graph
	policy Policy
	logger logging.Logger

	mu     sync.Mutex
	states map[string]*state
}

type state struct {
	mu        sync.Mutex
	expected  int
	received  int
	collected []core.Message
	present   []bool
	seen      map[string]struct{} // predecessor|attempt dedup set
	failed    bool
	fired     bool
}

// NewCoordinator creates a coordinator over the graph's static predecessor
// declarations.
func NewCoordinator(graph *topology.Graph, optFns ...func(o *Options)) *Coordinator {
	opts := Options{Policy: FailFast, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Coordinator{
		graph:  graph,
		policy: opts.Policy,
		logger: opts.Logger,
		states: map[string]*state{},
	}
}

// Required reports whether node is gated by a barrier, i.e. has more than
// one static predecessor.
func (c *Coordinator) Required(node string) bool {
	return c.graph.InDegree(node) > 1
}

// Offer delivers one predecessor's completion to the barrier of node.
//
// Deliveries are idempotent under retries: duplicates of the same
// (predecessor, attempt id) pair never double-increment the received count.
// When the last outstanding predecessor arrives, Offer returns ready=true
// exactly once together with the collected payloads in predecessor
// declaration order.
//
// An error-payload message counts as a predecessor failure. Under FailFast
// the join fails immediately with JoinFailure; under BestEffort the error
// message itself stands in as the placeholder and a warning is logged.
func (c *Coordinator) Offer(node, predecessor string, msg core.Message) (ready bool, inputs []core.Message, err error) {
	preds := c.graph.Predecessors(node)
	idx := -1
	for i, p := range preds {
		if p == predecessor {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, nil, &core.JoinFailure{Node: node, Predecessor: predecessor, Cause: &core.BuildError{Node: predecessor, Reason: "not a declared predecessor"}}
	}

	st := c.state(node, len(preds))
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.fired || st.failed {
		return false, nil, nil
	}

	key := predecessor + "|" + msg.AttemptID()
	if _, dup := st.seen[key]; dup {
		return false, nil, nil
	}
	st.seen[key] = struct{}{}

	if _, isErr := msg.Payload.(core.ErrorPayload); isErr {
		if c.policy == FailFast {
			st.failed = true
			return false, nil, &core.JoinFailure{Node: node, Predecessor: predecessor, Cause: fmt.Errorf("%s", msg.Text())}
		}
		c.logger.Warn("join at %s: predecessor %s failed, substituting placeholder: %s", node, predecessor, msg.Text())
	}

	if !st.present[idx] {
		st.present[idx] = true
		st.collected[idx] = msg
		st.received++
	}

	if st.received == st.expected {
		st.fired = true
		out := make([]core.Message, len(st.collected))
		copy(out, st.collected)
		return true, out, nil
	}
	return false, nil, nil
}

// Pending returns the number of predecessors still outstanding for node, or
// 0 when the node has no active barrier state.
func (c *Coordinator) Pending(node string) int {
	c.mu.Lock()
	st, ok := c.states[node]
	c.mu.Unlock()
	if !ok {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.expected - st.received
}

func (c *Coordinator) state(node string, expected int) *state {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.states[node]
	if !ok {
		st = &state{
			expected:  expected,
			collected: make([]core.Message, expected),
			present:   make([]bool, expected),
			seen:      map[string]struct{}{},
		}
		c.states[node] = st
	}
	return st
}
