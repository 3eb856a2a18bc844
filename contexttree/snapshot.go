package contexttree

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/agentswarm/core"
)

// Snapshot is the serialized form of a context node used for
// checkpoint-based recovery.
type Snapshot struct {
	TaskID       string          `json:"task_id"`
	ParentTaskID string          `json:"parent_task_id,omitempty"`
	KV           map[string]any  `json:"kv"`
	Tokens       int             `json:"tokens"`
	Facts        int             `json:"facts"`
	Status       core.TaskStatus `json:"status"`
}

// Snapshot serializes the node's local kv store, usage counters and status.
// Parent linkage is recorded by task id only.
func (n *Node) Snapshot() ([]byte, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	snap := Snapshot{
		TaskID: n.taskID,
		KV:     make(map[string]any, len(n.kv)),
		Tokens: n.tokens,
		Facts:  n.facts,
		Status: n.status,
	}
	if n.parent != nil {
		snap.ParentTaskID = n.parent.taskID
	}
	for k, v := range n.kv {
		snap.KV[k] = v
	}
	return json.Marshal(snap)
}

// Restore reconstructs a node from snapshot data and attaches it to the
// tree. A non-root snapshot re-attaches to its parent chain by id lookup;
// restoring it before its parent is an error. Restoring an id that already
// exists replaces that node's state in place.
func (t *Tree) Restore(data []byte) (*Node, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode context snapshot: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.nodes[snap.TaskID]; ok {
		existing.mu.Lock()
		existing.kv = snap.KV
		existing.tokens = snap.Tokens
		existing.facts = snap.Facts
		existing.status = snap.Status
		existing.mu.Unlock()
		return existing, nil
	}

	var parent *Node
	if snap.ParentTaskID != "" {
		var ok bool
		parent, ok = t.nodes[snap.ParentTaskID]
		if !ok {
			return nil, fmt.Errorf("cannot restore context node %s: parent %s not present in tree", snap.TaskID, snap.ParentTaskID)
		}
	}

	node := &Node{
		taskID: snap.TaskID,
		parent: parent,
		kv:     snap.KV,
		tokens: snap.Tokens,
		facts:  snap.Facts,
		status: snap.Status,
	}
	if node.kv == nil {
		node.kv = map[string]any{}
	}
	if parent != nil {
		parent.mu.Lock()
		parent.children = append(parent.children, node)
		parent.mu.Unlock()
	}
	t.nodes[snap.TaskID] = node
	return node, nil
}
