package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ResultCode is the coarse-grained outcome classification attached to every
// TaskResponse and ErrorPayload.
type ResultCode string

const (
	// CodeSuccess marks a fully successful task.
	CodeSuccess ResultCode = "SUCCESS"
	// CodePartialFailure marks a task that completed under a
	// continue-on-error policy with placeholder results substituted.
	CodePartialFailure ResultCode = "PARTIAL_FAILURE"
	// CodeCyclicWorkflow maps CyclicWorkflowError.
	CodeCyclicWorkflow ResultCode = "CYCLIC_WORKFLOW_ERROR"
	// CodeRouting maps RoutingError.
	CodeRouting ResultCode = "ROUTING_ERROR"
	// CodeTimeoutBudget maps TimeoutBudgetExceeded.
	CodeTimeoutBudget ResultCode = "TIMEOUT_BUDGET_EXCEEDED"
	// CodeEngineDispatch maps EngineDispatchError.
	CodeEngineDispatch ResultCode = "ENGINE_DISPATCH_ERROR"
	// CodeCancelled marks a task whose caller cancelled it before
	// completion.
	CodeCancelled ResultCode = "CANCELLED"
	// CodeInternal covers failures outside the named taxonomy.
	CodeInternal ResultCode = "INTERNAL_ERROR"
)

// BuildError reports an invalid topology declaration: an edge referencing an
// undeclared node, a duplicate node id, or a declared root that is not a
// source within the static edges.
type BuildError struct {
	Node   string
	Reason string
}

func (e *BuildError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("topology build failed for node %q: %s", e.Node, e.Reason)
	}
	return fmt.Sprintf("topology build failed: %s", e.Reason)
}

// CyclicWorkflowError reports a cycle found in the static edges of a
// WORKFLOW graph. Cycle holds the offending path; the last element closes
// back onto the first.
type CyclicWorkflowError struct {
	Cycle []string
}

func (e *CyclicWorkflowError) Error() string {
	return fmt.Sprintf("workflow graph contains a cycle: %s", strings.Join(e.Cycle, " -> "))
}

// RoutingError reports a handoff target outside the emitting node's declared
// successor set. Non-fatal by default (the hop is dropped with a warning);
// fatal in strict mode.
type RoutingError struct {
	Source string
	Target string
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("handoff target %q is not a declared successor of %q", e.Target, e.Source)
}

// JoinFailure reports that a required predecessor of a join node failed.
type JoinFailure struct {
	Node        string
	Predecessor string
	Cause       error
}

func (e *JoinFailure) Error() string {
	return fmt.Sprintf("join at %q failed: predecessor %q: %v", e.Node, e.Predecessor, e.Cause)
}

func (e *JoinFailure) Unwrap() error { return e.Cause }

// ActionGroupFailure reports that one or more actions of a concurrently
// executed group failed.
type ActionGroupFailure struct {
	Failed int
	Total  int
	Causes []error
}

func (e *ActionGroupFailure) Error() string {
	return fmt.Sprintf("action group failed: %d of %d actions errored: %v", e.Failed, e.Total, errors.Join(e.Causes...))
}

func (e *ActionGroupFailure) Unwrap() []error { return e.Causes }

// EngineDispatchError reports that an execution engine could not dispatch a
// task after its bounded retry budget was exhausted.
type EngineDispatchError struct {
	Engine   string
	TaskID   string
	Attempts int
	Cause    error
}

func (e *EngineDispatchError) Error() string {
	return fmt.Sprintf("engine %q failed to dispatch task %s after %d attempts: %v", e.Engine, e.TaskID, e.Attempts, e.Cause)
}

func (e *EngineDispatchError) Unwrap() error { return e.Cause }

// TimeoutBudgetExceeded reports that a task ran out of its wall-clock or
// max-hop budget. Wall distinguishes the two.
type TimeoutBudgetExceeded struct {
	TaskID  string
	Hops    int
	Elapsed time.Duration
	Wall    bool
}

func (e *TimeoutBudgetExceeded) Error() string {
	if e.Wall {
		return fmt.Sprintf("task %s exceeded its wall-clock budget after %s", e.TaskID, e.Elapsed)
	}
	return fmt.Sprintf("task %s exceeded its max-hop budget of %d", e.TaskID, e.Hops)
}

// ContextMergeConflict reports a key collision during a sub-context merge.
// It is a warning, never fatal: the child value wins under the
// last-writer-wins policy and the conflict is logged.
type ContextMergeConflict struct {
	Key    string
	Parent string
	Child  string
}

func (e *ContextMergeConflict) Error() string {
	return fmt.Sprintf("context merge conflict on key %q: child %s overwrote a value of parent %s", e.Key, e.Child, e.Parent)
}

// unrecoverableError marks a handler failure that must abort the owning task
// instead of bouncing an error payload back to the sender.
type unrecoverableError struct{ cause error }

func (e *unrecoverableError) Error() string { return "unrecoverable: " + e.cause.Error() }
func (e *unrecoverableError) Unwrap() error { return e.cause }

// Unrecoverable wraps err so the router aborts the owning task instead of
// routing an error payload back to the sender.
func Unrecoverable(err error) error {
	if err == nil {
		return nil
	}
	return &unrecoverableError{cause: err}
}

// IsUnrecoverable reports whether err (or anything it wraps) was marked via
// Unrecoverable.
func IsUnrecoverable(err error) bool {
	var ue *unrecoverableError
	return errors.As(err, &ue)
}

// CodeOf maps an error to its result code. Unknown errors map to
// CodeInternal; nil maps to CodeSuccess.
func CodeOf(err error) ResultCode {
	if err == nil {
		return CodeSuccess
	}
	var (
		cyclic   *CyclicWorkflowError
		routing  *RoutingError
		timeout  *TimeoutBudgetExceeded
		dispatch *EngineDispatchError
	)
	switch {
	case errors.As(err, &cyclic):
		return CodeCyclicWorkflow
	case errors.As(err, &routing):
		return CodeRouting
	case errors.As(err, &timeout):
		return CodeTimeoutBudget
	case errors.As(err, &dispatch):
		return CodeEngineDispatch
	default:
		return CodeInternal
	}
}
