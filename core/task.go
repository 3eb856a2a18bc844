package core

import (
	"sync"
	"time"
)

// Task is one unit of work driven to completion by a task runner. Tasks form
// a tree via ParentID: an agent-as-tool action spawns a sub-task bound 1:1
// to a fresh context node.
//
// A Task is mutated only by its owning runner; external callers should treat
// a submitted task as read-only until its TaskResponse arrives.
type Task struct {
	ID        string            `json:"id"`
	ParentID  string            `json:"parent_id,omitempty"`
	Input     string            `json:"input"`
	SessionID string            `json:"session_id,omitempty"`
	Status    TaskStatus        `json:"status"`
	MaxHops   int               `json:"max_hops,omitempty"`
	Timeout   time.Duration     `json:"timeout,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// TaskOption customizes a task at construction time.
type TaskOption func(*Task)

// WithMaxHops bounds the number of message deliveries the task may consume.
// Exceeding the budget fails the task with TimeoutBudgetExceeded.
func WithMaxHops(n int) TaskOption {
	return func(t *Task) { t.MaxHops = n }
}

// WithTimeout bounds the wall-clock time of the task.
func WithTimeout(d time.Duration) TaskOption {
	return func(t *Task) { t.Timeout = d }
}

// WithSessionID attaches a session identifier propagated on every message of
// the task.
func WithSessionID(id string) TaskOption {
	return func(t *Task) { t.SessionID = id }
}

// WithParent links the task under a parent task, forming the task tree.
func WithParent(parentID string) TaskOption {
	return func(t *Task) { t.ParentID = parentID }
}

// NewTask creates a pending task for the given input.
func NewTask(input string, opts ...TaskOption) *Task {
	t := &Task{
		ID:        NewID(),
		Input:     input,
		Status:    TaskPending,
		CreatedAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// TrajectoryRecord is one entry in a task's append-only execution log.
type TrajectoryRecord struct {
	Step      int       `json:"step"`
	Node      string    `json:"node"`
	Category  Category  `json:"category"`
	Content   string    `json:"content,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Trajectory is the ordered, append-only log of a task's deliveries, action
// outcomes and errors. It is safe for concurrent use.
type Trajectory struct {
	mu      sync.Mutex
	records []TrajectoryRecord
}

// NewTrajectory returns an empty trajectory.
func NewTrajectory() *Trajectory { return &Trajectory{} }

// Append adds a record, assigning the next step number, and returns it.
func (t *Trajectory) Append(node string, category Category, content, errText string) TrajectoryRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec := TrajectoryRecord{
		Step:      len(t.records) + 1,
		Node:      node,
		Category:  category,
		Content:   content,
		Error:     errText,
		Timestamp: time.Now().UTC(),
	}
	t.records = append(t.records, rec)
	return rec
}

// Records returns a defensive copy of all records in order.
func (t *Trajectory) Records() []TrajectoryRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TrajectoryRecord, len(t.records))
	copy(out, t.records)
	return out
}

// Len returns the number of records.
func (t *Trajectory) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

// TaskResponse is the terminal result returned to the submitter of a task.
// Errors are never swallowed: a failed task carries Success=false, the
// mapped result code and the structured error.
type TaskResponse struct {
	TaskID     string             `json:"task_id"`
	Answer     string             `json:"answer"`
	Trajectory []TrajectoryRecord `json:"trajectory"`
	Success    bool               `json:"success"`
	Code       ResultCode         `json:"code"`
	TimeCost   time.Duration      `json:"time_cost"`
	Err        error              `json:"-"`
}
