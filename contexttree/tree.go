// Package contexttree implements the hierarchical per-task key/value state
// tree. Every task owns exactly one context node; spawning a sub-task
// creates a child node that reads through to its parent chain on local miss
// and merges its newly introduced keys back into the parent exactly once on
// completion.
package contexttree

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/logging"
)

// Node is one node of the context tree. The local kv store is single-writer
// (the owning task) with concurrent readers guarded by a read-write lock.
//
// The parent reference is a plain back-pointer, never an ownership link: the
// tree owns all nodes via its id index, so cyclic ownership cannot arise and
// a parent always outlives its children until merge-back.
type Node struct {
	taskID string
	parent *Node

	mu       sync.RWMutex
	children []*Node
	kv       map[string]any
	tokens   int
	facts    int
	status   core.TaskStatus
	merged   bool
}

// TaskID returns the id of the owning task.
func (n *Node) TaskID() string { return n.taskID }

// Parent returns the parent node, or nil for the root.
func (n *Node) Parent() *Node { return n.parent }

// Children returns a shallow copy of the node's children.
func (n *Node) Children() []*Node {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// Get returns the value for key, falling back to the parent chain on local
// miss. The upward walk is a read-through lookup only; it never copies
// parent state down.
func (n *Node) Get(key string) (any, bool) {
	for cur := n; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		v, ok := cur.kv[key]
		cur.mu.RUnlock()
		if ok {
			return v, true
		}
	}
	return nil, false
}

// GetLocal returns the value for key from this node's own store only.
func (n *Node) GetLocal(key string) (any, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	v, ok := n.kv[key]
	return v, ok
}

// Set writes a key into the node's local store. Only the owning task may
// call Set.
func (n *Node) Set(key string, value any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kv[key] = value
}

// Keys returns the locally stored keys.
func (n *Node) Keys() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]string, 0, len(n.kv))
	for k := range n.kv {
		out = append(out, k)
	}
	return out
}

// AddUsage accumulates token and fact counters for the node.
func (n *Node) AddUsage(tokens, facts int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tokens += tokens
	n.facts += facts
}

// Usage returns the accumulated token and fact counters.
func (n *Node) Usage() (tokens, facts int) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.tokens, n.facts
}

// SetStatus records the owning task's status on the node.
func (n *Node) SetStatus(s core.TaskStatus) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.status = s
}

// Status returns the recorded task status.
func (n *Node) Status() core.TaskStatus {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.status
}

// Options configures a Tree.
type Options struct {
	// Logger records merge conflicts. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Tree owns all context nodes of one task tree, indexed by task id.
type Tree struct {
	mu     sync.RWMutex
	nodes  map[string]*Node
	root   *Node
	logger logging.Logger
}

// NewTree creates a tree with a root node bound to the given task id.
func NewTree(taskID string, optFns ...func(o *Options)) *Tree {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	root := &Node{taskID: taskID, kv: map[string]any{}, status: core.TaskPending}
	return &Tree{
		nodes:  map[string]*Node{taskID: root},
		root:   root,
		logger: opts.Logger,
	}
}

// Root returns the root context node.
func (t *Tree) Root() *Node { return t.root }

// Node returns the context node owned by the given task id.
func (t *Tree) Node(taskID string) (*Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[taskID]
	return n, ok
}

// BuildSubContext creates a child node under parent, bound 1:1 to the given
// sub-task id and seeded with content. The child reads through to the parent
// chain on local miss.
func (t *Tree) BuildSubContext(parent *Node, subTaskID string, content map[string]any) (*Node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.nodes[subTaskID]; exists {
		return nil, fmt.Errorf("context node for task %s already exists", subTaskID)
	}

	child := &Node{taskID: subTaskID, parent: parent, kv: map[string]any{}, status: core.TaskPending}
	for k, v := range content {
		child.kv[k] = v
	}

	parent.mu.Lock()
	parent.children = append(parent.children, child)
	parent.mu.Unlock()

	t.nodes[subTaskID] = child
	return child, nil
}

// MergeSubContext copies the child's locally introduced keys, usage counters
// and facts into the parent store and detaches the child. Merge-back happens
// at most once per child; repeated calls return an error.
//
// Key collisions resolve last-writer-wins under the parent's write lock: the
// child value overwrites and a ContextMergeConflict warning is logged.
// Parent keys the child never wrote are left untouched.
func (t *Tree) MergeSubContext(child *Node) error {
	parent := child.parent
	if parent == nil {
		return fmt.Errorf("cannot merge root context node %s", child.taskID)
	}

	child.mu.Lock()
	if child.merged {
		child.mu.Unlock()
		return fmt.Errorf("context node %s already merged", child.taskID)
	}
	child.merged = true
	kv := make(map[string]any, len(child.kv))
	for k, v := range child.kv {
		kv[k] = v
	}
	tokens, facts := child.tokens, child.facts
	child.mu.Unlock()

	parent.mu.Lock()
	for k, v := range kv {
		// Values may hold maps or slices, so equality must be deep, never ==.
		if old, exists := parent.kv[k]; exists && !reflect.DeepEqual(old, v) {
			conflict := &core.ContextMergeConflict{Key: k, Parent: parent.taskID, Child: child.taskID}
			t.logger.Warn("context merge conflict: %v", conflict)
		}
		parent.kv[k] = v
	}
	parent.tokens += tokens
	parent.facts += facts
	for i, c := range parent.children {
		if c == child {
			parent.children = append(parent.children[:i], parent.children[i+1:]...)
			break
		}
	}
	parent.mu.Unlock()

	t.mu.Lock()
	delete(t.nodes, child.taskID)
	t.mu.Unlock()

	return nil
}
