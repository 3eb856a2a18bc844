package tool

import "github.com/hupe1980/agentswarm/model"

// TransferToAgentName is the reserved tool name used by model-driven agents
// to hand control to another node. Calls to it are intercepted by the agent
// layer and turned into handoffs; the registry never executes it.
const TransferToAgentName = "transfer_to_agent"

// TransferToAgentDefinition exposes the handoff capability to a model as a
// regular function tool.
func TransferToAgentDefinition() model.ToolDefinition {
	return model.ToolDefinition{
		Name:        TransferToAgentName,
		Description: "Request transfer of control to another agent by name. Use when another agent is better suited.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"agent": map[string]any{"type": "string", "description": "Target agent name"},
			},
			"required": []string{"agent"},
		},
	}
}
