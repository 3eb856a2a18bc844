package core

// NodeStatus tracks the runtime state of a graph node during a task run.
// The graph itself is immutable; statuses live in per-task runtime state.
type NodeStatus int

const (
	// NodeIdle means the node has not yet received a delivery.
	NodeIdle NodeStatus = iota
	// NodeRunning means the node's agent is currently executing a step.
	NodeRunning
	// NodeWaitingBarrier means the node is parked at a join barrier until
	// all declared predecessors have completed.
	NodeWaitingBarrier
	// NodeFinished means the node completed its final step for this task.
	NodeFinished
	// NodeError means the node's last step failed.
	NodeError
)

func (s NodeStatus) String() string {
	switch s {
	case NodeIdle:
		return "IDLE"
	case NodeRunning:
		return "RUNNING"
	case NodeWaitingBarrier:
		return "WAITING_BARRIER"
	case NodeFinished:
		return "FINISHED"
	case NodeError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// TaskStatus tracks the lifecycle of a submitted task.
type TaskStatus int

const (
	// TaskPending means the task is created but not yet scheduled.
	TaskPending TaskStatus = iota
	// TaskRunning means the task runner is actively dispatching messages.
	TaskRunning
	// TaskWaitingBarrier means every live branch of the task is parked at a
	// join barrier or an outstanding external call.
	TaskWaitingBarrier
	// TaskCompleted means the task produced a final answer.
	TaskCompleted
	// TaskFailed means the task terminated with an error.
	TaskFailed
	// TaskCancelled means the task was cancelled before completion.
	TaskCancelled
)

func (s TaskStatus) String() string {
	switch s {
	case TaskPending:
		return "PENDING"
	case TaskRunning:
		return "RUNNING"
	case TaskWaitingBarrier:
		return "WAITING_BARRIER"
	case TaskCompleted:
		return "COMPLETED"
	case TaskFailed:
		return "FAILED"
	case TaskCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the status is a final state.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskCancelled
}
