package core

// ActionKind discriminates the Action union. The group executor resolves the
// kind through its classifier registry rather than via type switches in
// business code.
type ActionKind string

const (
	// ActionFunctionTool marks a plain tool/function invocation.
	ActionFunctionTool ActionKind = "function_tool"
	// ActionAgentTool marks a delegation to another agent executed as if it
	// were a tool ("agent as tool").
	ActionAgentTool ActionKind = "agent_tool"
)

// Action is one unit of work proposed by a decision step. Concrete types are
// FunctionToolCall and AgentToolCall.
type Action interface {
	// Kind reports the union tag used for classification.
	Kind() ActionKind
	// CallID returns the correlation id assigned at proposal time.
	CallID() string
}

// FunctionToolCall requests execution of a named tool with JSON-encoded
// arguments.
type FunctionToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Kind implements Action.
func (FunctionToolCall) Kind() ActionKind { return ActionFunctionTool }

// CallID implements Action.
func (c FunctionToolCall) CallID() string { return c.ID }

// AgentToolCall requests that a named agent process the given input in
// isolation. The runtime spawns a clone of the referenced agent plus a fresh
// sub-context; the shared live instance is never used.
type AgentToolCall struct {
	ID    string `json:"id"`
	Agent string `json:"agent"`
	Input string `json:"input"`
}

// Kind implements Action.
func (AgentToolCall) Kind() ActionKind { return ActionAgentTool }

// CallID implements Action.
func (c AgentToolCall) CallID() string { return c.ID }

// NewFunctionToolCall constructs a FunctionToolCall with a fresh call id.
func NewFunctionToolCall(name, arguments string) FunctionToolCall {
	return FunctionToolCall{ID: NewID(), Name: name, Arguments: arguments}
}

// NewAgentToolCall constructs an AgentToolCall with a fresh call id.
func NewAgentToolCall(agent, input string) AgentToolCall {
	return AgentToolCall{ID: NewID(), Agent: agent, Input: input}
}

// ActionResult pairs an action with its outcome. Index is the position of
// the action in the original proposal; gathered results are always returned
// in proposal order regardless of completion order.
type ActionResult struct {
	Index  int    `json:"index"`
	Action Action `json:"-"`
	Output any    `json:"output,omitempty"`
	Err    error  `json:"-"`
	// Placeholder is true when the result substitutes a failed action under
	// the continue-on-error policy.
	Placeholder bool `json:"placeholder,omitempty"`
}
