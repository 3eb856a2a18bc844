package core

import "context"

// Agent is the reasoning contract consumed by the runtime. The orchestration
// engine never inspects how a decision is made; it only routes messages to
// agents and acts on the decisions they return.
//
// Implementations must:
//   - Respect context cancellation (the runner propagates task cancellation
//     cooperatively through the ctx argument)
//   - Be safe for serialized reuse (the router guarantees at most one
//     in-flight message per node, so Execute is never called concurrently
//     for the same bound node)
type Agent interface {
	// Name returns the unique agent identifier used for node binding.
	Name() string

	// Description returns a human-readable summary of the agent's purpose.
	Description() string

	// Execute consumes one message and returns the agent's decision for
	// this step: content, zero or more proposed actions, optional handoff
	// targets, and a finished flag.
	Execute(ctx context.Context, msg Message) (*Decision, error)
}

// CloneableAgent is implemented by agents that can be duplicated for
// isolated agent-as-tool execution. The clone must share no mutable state
// with the original.
type CloneableAgent interface {
	Agent

	// Clone returns an isolated copy of the agent.
	Clone() Agent
}

// Decision is the output of a single agent step.
//
// For HANDOFF graphs, Handoffs names the dynamic next hops; each target is
// validated against the node's declared successor set. For WORKFLOW graphs,
// Handoffs is ignored and the static successors apply.
type Decision struct {
	// Content is the agent's textual output for this step. The content of
	// the finishing step becomes the task's answer.
	Content string

	// Actions proposes zero or more tool / agent-as-tool invocations to be
	// executed concurrently as one group before routing continues.
	Actions []Action

	// Handoffs names the agent-chosen next hops (HANDOFF graphs only).
	Handoffs []string

	// Finished signals that the task should terminate at this node with
	// Content as the answer.
	Finished bool
}
