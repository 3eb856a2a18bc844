package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/model"
	"github.com/hupe1980/agentswarm/tool"
)

// ModelAgentOptions configures a ModelAgent instance.
//
// Use functional options with NewModelAgent to override defaults.
type ModelAgentOptions struct {
	Instruction        Instruction
	Tools              []model.ToolDefinition
	AgentTools         map[string]string // agent name -> description
	AllowTransfer      bool
	MaxHistoryMessages int
	FinishOnText       bool
}

// ModelAgent integrates with language models to make per-step decisions.
//
// This agent implementation supports:
//   - Natural language decision steps through system prompts
//   - Function calling against declared tool definitions
//   - Delegating to other agents as tools (isolated clone execution)
//   - Handoffs via the reserved transfer tool
//   - Bounded per-node conversation history
//
// ModelAgent embeds BaseAgent to inherit standard identity management. The
// router serializes deliveries per node, so the conversation history needs no
// external synchronization beyond clone isolation.
type ModelAgent struct {
	BaseAgent
	llm           model.Model
	instruction   Instruction
	tools         []model.ToolDefinition
	agentTools    map[string]string
	allowTransfer bool
	maxHistory    int
	finishOnText  bool

	mu      sync.Mutex
	history []model.Message
}

// NewModelAgent creates a new model-based agent with sensible defaults.
//
// The agent is initialized with:
//   - A generic assistant instruction named after the agent
//   - No tools and no agent tools
//   - A 20-message conversation history limit
//   - Transfer disabled (enable for nodes of handoff graphs)
func NewModelAgent(name string, llm model.Model, optFns ...func(o *ModelAgentOptions)) *ModelAgent {
	opts := ModelAgentOptions{
		Instruction:        NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
		MaxHistoryMessages: 20,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &ModelAgent{
		BaseAgent:     NewBaseAgent(name),
		llm:           llm,
		instruction:   opts.Instruction,
		tools:         opts.Tools,
		agentTools:    opts.AgentTools,
		allowTransfer: opts.AllowTransfer,
		maxHistory:    opts.MaxHistoryMessages,
		finishOnText:  opts.FinishOnText,
	}
}

// Model returns the underlying language model.
func (a *ModelAgent) Model() model.Model { return a.llm }

// Execute implements core.Agent: one delivered message becomes one model
// turn, and the model's reply is mapped onto a Decision.
func (a *ModelAgent) Execute(ctx context.Context, msg core.Message) (*core.Decision, error) {
	instructions, err := a.instruction.Resolve(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("resolving instructions: %w", err)
	}

	input := model.Message{Role: model.RoleUser, Content: msg.Text()}
	if msg.Category == core.CategoryToolResult {
		input.Content = "Tool results:\n" + msg.Text()
	}

	a.mu.Lock()
	messages := append(append([]model.Message{}, a.history...), input)
	a.mu.Unlock()

	resp, err := a.llm.Generate(ctx, model.Request{
		Instructions: instructions,
		Messages:     messages,
		Tools:        a.toolDefinitions(),
	})
	if err != nil {
		return nil, fmt.Errorf("model generate: %w", err)
	}

	decision := &core.Decision{Content: resp.Content}
	for _, tc := range resp.ToolCalls {
		switch {
		case tc.Name == tool.TransferToAgentName:
			target, err := stringArg(tc.Arguments, "agent")
			if err != nil {
				return nil, fmt.Errorf("transfer call: %w", err)
			}
			decision.Handoffs = append(decision.Handoffs, target)
		case a.isAgentTool(tc.Name):
			in, err := stringArg(tc.Arguments, "input")
			if err != nil {
				return nil, fmt.Errorf("agent tool call %q: %w", tc.Name, err)
			}
			decision.Actions = append(decision.Actions, core.AgentToolCall{ID: tc.ID, Agent: tc.Name, Input: in})
		default:
			decision.Actions = append(decision.Actions, core.FunctionToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments})
		}
	}

	if a.finishOnText && len(decision.Actions) == 0 && len(decision.Handoffs) == 0 {
		decision.Finished = true
	}

	// Tool calls are not replayed into history; results come back as a
	// rendered tool-result delivery and enter history as a user turn.
	a.mu.Lock()
	a.history = append(a.history, input, model.Message{Role: model.RoleAssistant, Content: resp.Content})
	if overflow := len(a.history) - a.maxHistory; overflow > 0 {
		a.history = a.history[overflow:]
	}
	a.mu.Unlock()

	return decision, nil
}

// Clone implements core.CloneableAgent: the clone shares the model and
// configuration but starts with an empty conversation history.
func (a *ModelAgent) Clone() core.Agent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return &ModelAgent{
		BaseAgent:     a.BaseAgent,
		llm:           a.llm,
		instruction:   a.instruction,
		tools:         a.tools,
		agentTools:    a.agentTools,
		allowTransfer: a.allowTransfer,
		maxHistory:    a.maxHistory,
		finishOnText:  a.finishOnText,
	}
}

func (a *ModelAgent) isAgentTool(name string) bool {
	_, ok := a.agentTools[name]
	return ok
}

// toolDefinitions assembles the full tool surface exposed to the model:
// declared function tools, agent tools and the reserved transfer tool.
func (a *ModelAgent) toolDefinitions() []model.ToolDefinition {
	defs := make([]model.ToolDefinition, 0, len(a.tools)+len(a.agentTools)+1)
	defs = append(defs, a.tools...)
	for name, description := range a.agentTools {
		defs = append(defs, model.ToolDefinition{
			Name:        name,
			Description: description,
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"input": map[string]any{"type": "string", "description": "Task for the delegated agent"},
				},
				"required": []string{"input"},
			},
		})
	}
	if a.allowTransfer {
		defs = append(defs, tool.TransferToAgentDefinition())
	}
	return defs
}

func stringArg(arguments, key string) (string, error) {
	args := map[string]any{}
	if arguments != "" {
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
	}
	v, ok := args[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("missing required field %q", key)
	}
	return v, nil
}
