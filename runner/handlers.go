package runner

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/agentswarm/core"
)

// stepHandler drives one decision step of the receiving node's agent. It
// accepts observation, tool-result and error deliveries; each delivery
// consumes one hop of the task budget and appends one trajectory record.
type stepHandler struct {
	run *run
}

// IsValid implements core.Handler. Only messages addressed to a bound node
// are accepted.
func (h *stepHandler) IsValid(msg core.Message) bool {
	if len(msg.Receivers) != 1 {
		return false
	}
	_, ok := h.run.runner.swarm.Agent(msg.Receivers[0])
	return ok
}

// Handle implements core.Handler.
func (h *stepHandler) Handle(ctx context.Context, msg core.Message) (<-chan core.Message, error) {
	run := h.run
	node := msg.Receivers[0]

	if run.failed() || ctx.Err() != nil {
		return core.EmitAll(), nil
	}
	if !run.consumeHop() {
		return core.EmitAll(), nil
	}

	// Observation deliveries from a declared predecessor of a join node are
	// parked at the barrier until every predecessor has reported.
	if msg.Category == core.CategoryObservation || msg.Category == core.CategoryError {
		if run.coord.Required(node) && h.isPredecessor(node, msg.Sender) {
			ready, inputs, err := run.coord.Offer(node, msg.Sender, msg)
			if err != nil {
				run.fail(err)
				return core.EmitAll(), nil
			}
			run.trajectory.Append(node, msg.Category, msg.Text(), "")
			if !ready {
				run.runner.swarm.SetStatus(node, core.NodeWaitingBarrier)
				// With no other delivery queued or in flight, every live
				// branch of the task is parked at a barrier.
				if run.router.Pending() <= 1 {
					run.setSuspended(true)
				}
				return core.EmitAll(), nil
			}
			merged := msg
			merged.Payload = core.Observation{Content: joinInputs(inputs)}
			merged.Category = core.CategoryObservation
			return h.step(ctx, node, merged)
		}
	}

	run.trajectory.Append(node, msg.Category, msg.Text(), "")
	return h.step(ctx, node, msg)
}

// step runs the node's agent on one delivery and turns the decision into
// follow-up messages.
func (h *stepHandler) step(ctx context.Context, node string, msg core.Message) (<-chan core.Message, error) {
	run := h.run
	sw := run.runner.swarm

	agent, ok := sw.Agent(node)
	if !ok {
		return nil, core.Unrecoverable(fmt.Errorf("no agent bound to node %q", node))
	}

	sw.SetStatus(node, core.NodeRunning)
	run.setSuspended(false)
	decision, err := agent.Execute(ctx, msg)
	if err != nil {
		sw.SetStatus(node, core.NodeError)
		// In a workflow the failure is this node's output: downstream join
		// barriers must observe it. Without successors the error bounces to
		// the sender for a retry/abort decision.
		if succs := sw.Graph().Successors(node); !sw.Graph().IsHandoff() && len(succs) > 0 {
			out := core.NewMessage(core.ErrorPayload{Code: core.CodeOf(err), Message: err.Error()}, node, succs...)
			out.SessionID = msg.SessionID
			return core.EmitAll(out), nil
		}
		return nil, err
	}

	root := run.tree.Root()
	if decision.Content != "" {
		root.Set("output:"+node, decision.Content)
	}

	// Proposed actions defer routing: the group result comes back to this
	// node as a tool-result delivery for the next decision step.
	if len(decision.Actions) > 0 {
		out := core.NewMessage(core.ActionList{Actions: decision.Actions}, node, node)
		out.SessionID = msg.SessionID
		return core.EmitAll(out), nil
	}

	if decision.Finished {
		sw.SetStatus(node, core.NodeFinished)
		out := core.NewMessage(core.Observation{Content: decision.Content}, node)
		out.SessionID = msg.SessionID
		return core.EmitAll(out), nil
	}

	hops, err := sw.NextHops(node, decision)
	if err != nil {
		sw.SetStatus(node, core.NodeError)
		run.fail(err)
		return core.EmitAll(), nil
	}

	out := core.NewMessage(core.Observation{Content: decision.Content}, node)
	out.SessionID = msg.SessionID
	out.Receivers = run.registry.Targets(out, hops)

	sw.SetStatus(node, core.NodeFinished)
	return core.EmitAll(out), nil
}

func (h *stepHandler) isPredecessor(node, sender string) bool {
	for _, p := range h.run.runner.swarm.Graph().Predecessors(node) {
		if p == sender {
			return true
		}
	}
	return false
}

// joinInputs renders the collected barrier inputs in predecessor declaration
// order, one line per predecessor.
func joinInputs(inputs []core.Message) string {
	parts := make([]string, len(inputs))
	for i, in := range inputs {
		parts[i] = in.Text()
	}
	return strings.Join(parts, "\n")
}

// actionHandler executes a node's proposed action group and routes the
// gathered results back to the node as a single tool-result delivery.
type actionHandler struct {
	run *run
}

// IsValid implements core.Handler.
func (h *actionHandler) IsValid(msg core.Message) bool {
	_, ok := msg.Payload.(core.ActionList)
	return ok
}

// Handle implements core.Handler.
func (h *actionHandler) Handle(ctx context.Context, msg core.Message) (<-chan core.Message, error) {
	run := h.run
	node := msg.Receivers[0]

	if run.failed() || ctx.Err() != nil {
		return core.EmitAll(), nil
	}

	list := msg.Payload.(core.ActionList)
	handle := run.groups.Start(ctx, list.Actions)
	if run.runner.onGroup != nil {
		run.runner.onGroup(node, handle)
	}

	// The task is suspended until the gather completes.
	run.setSuspended(true)
	results, err := handle.Wait(ctx)
	run.setSuspended(false)
	if err != nil {
		return nil, err
	}

	for _, res := range results {
		if res.Placeholder {
			run.partial.Store(true)
			break
		}
	}

	out := core.NewMessage(core.ToolResult{
		CallID: msg.ID,
		Name:   "action_group",
		Result: renderResults(results),
	}, node, node)
	out.SessionID = msg.SessionID
	return core.EmitAll(out), nil
}

// renderResults flattens the gathered results in proposal order, one line
// per action.
func renderResults(results []core.ActionResult) string {
	parts := make([]string, len(results))
	for i, res := range results {
		label := string(res.Action.Kind())
		switch a := res.Action.(type) {
		case core.FunctionToolCall:
			label = a.Name
		case core.AgentToolCall:
			label = a.Agent
		}
		parts[i] = fmt.Sprintf("%s: %v", label, res.Output)
	}
	return strings.Join(parts, "\n")
}
