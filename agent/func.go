package agent

import (
	"context"

	"github.com/hupe1980/agentswarm/core"
)

// FuncAgent adapts a plain decision function to the core.Agent interface. It
// is the workhorse for deterministic workflow stages and for tests: the
// function receives the delivered message and returns the step's decision.
//
// FuncAgent carries no mutable state, so it is cloneable and may be used as
// an agent tool.
type FuncAgent struct {
	BaseAgent
	fn func(ctx context.Context, msg core.Message) (*core.Decision, error)
}

// NewFuncAgent constructs a FuncAgent from a name and a decision function.
func NewFuncAgent(name string, fn func(ctx context.Context, msg core.Message) (*core.Decision, error)) *FuncAgent {
	return &FuncAgent{
		BaseAgent: NewBaseAgent(name),
		fn:        fn,
	}
}

// Execute implements core.Agent.
func (a *FuncAgent) Execute(ctx context.Context, msg core.Message) (*core.Decision, error) {
	return a.fn(ctx, msg)
}

// Clone implements core.CloneableAgent. The decision function is shared; it
// must not close over mutable state if the agent is used as a tool.
func (a *FuncAgent) Clone() core.Agent {
	clone := *a
	return &clone
}
