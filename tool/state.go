package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentswarm/contexttree"
)

// StateTool exposes a task's context node as a tool so model-driven agents
// can read and write shared per-task state.
//
// Supported operations: get_state, set_state, list_keys. Reads fall through
// to the parent context chain; writes always land in the bound node.
type StateTool struct {
	node *contexttree.Node
}

// NewStateTool binds a state tool to a context node.
func NewStateTool(node *contexttree.Node) *StateTool {
	return &StateTool{node: node}
}

// Name returns the tool identifier.
func (t *StateTool) Name() string { return "state" }

// Description returns the tool description.
func (t *StateTool) Description() string {
	return "Reads and writes shared task state. Supports operations: get_state, set_state, list_keys."
}

// Parameters returns the JSON schema for tool parameters.
func (t *StateTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"operation": map[string]any{
				"type":        "string",
				"enum":        []string{"get_state", "set_state", "list_keys"},
				"description": "The state operation to perform",
			},
			"key": map[string]any{
				"type":        "string",
				"description": "State key for get_state/set_state operations",
			},
			"value": map[string]any{
				"description": "Value for set_state operations (any type)",
			},
		},
		"required": []string{"operation"},
	}
}

// Call executes the requested state operation.
func (t *StateTool) Call(_ context.Context, args map[string]any) (any, error) {
	op, _ := args["operation"].(string)

	switch op {
	case "get_state":
		key, ok := args["key"].(string)
		if !ok || key == "" {
			return nil, NewToolError(t.Name(), "get_state requires a non-empty 'key'", "VALIDATION_ERROR")
		}
		value, found := t.node.Get(key)
		return map[string]any{"key": key, "value": value, "found": found}, nil

	case "set_state":
		key, ok := args["key"].(string)
		if !ok || key == "" {
			return nil, NewToolError(t.Name(), "set_state requires a non-empty 'key'", "VALIDATION_ERROR")
		}
		t.node.Set(key, args["value"])
		return map[string]any{"key": key, "stored": true}, nil

	case "list_keys":
		return map[string]any{"keys": t.node.Keys()}, nil

	default:
		return nil, NewToolError(t.Name(), fmt.Sprintf("unknown operation %q", op), "VALIDATION_ERROR")
	}
}
