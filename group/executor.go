// Package group fans a single decision step's proposed actions into
// concurrent sub-executions and gathers their results in original proposal
// order. Function tool calls run as one concurrent batch against the tool
// invoker; each agent-as-tool call runs against an isolated agent clone with
// a fresh sub-context.
package group

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/logging"
)

// ToolInvoker executes a batch of function tool calls concurrently and
// returns one result per call in batch order.
type ToolInvoker interface {
	Invoke(ctx context.Context, calls []core.FunctionToolCall) []core.ToolResult
}

// AgentInvoker runs one agent-as-tool call against an isolated clone of the
// referenced agent.
type AgentInvoker interface {
	InvokeAgent(ctx context.Context, call core.AgentToolCall) (any, error)
}

// Group exposes live progress of one executing action group. The counters
// are readable while the gather runs; Wait blocks until the gathered results
// are available.
type Group struct {
	total     int
	pending   atomic.Int32
	completed atomic.Int32
	failed    atomic.Int32

	done    chan struct{}
	results []core.ActionResult
	err     error
}

// Total returns the number of actions in the group.
func (g *Group) Total() int { return g.total }

// Pending returns the number of actions not yet finished.
func (g *Group) Pending() int { return int(g.pending.Load()) }

// Completed returns the number of successfully finished actions.
func (g *Group) Completed() int { return int(g.completed.Load()) }

// Failed returns the number of failed actions.
func (g *Group) Failed() int { return int(g.failed.Load()) }

func (g *Group) finish(err error) {
	g.pending.Add(-1)
	if err != nil {
		g.failed.Add(1)
	} else {
		g.completed.Add(1)
	}
}

// Done is closed once the gather has completed.
func (g *Group) Done() <-chan struct{} { return g.done }

// Wait blocks until the gather completes and returns the results in original
// proposal order, or the context error if ctx ends first. The gather itself
// keeps running on the context passed to Start.
func (g *Group) Wait(ctx context.Context) ([]core.ActionResult, error) {
	select {
	case <-g.done:
		return g.results, g.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Options configures an Executor.
type Options struct {
	// ContinueOnError substitutes a placeholder result per failed action
	// instead of failing the whole group.
	ContinueOnError bool

	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Executor classifies and executes action groups. The classifier registry
// maps action kinds to their sub-executors; unknown kinds fail the
// offending action.
type Executor struct {
	continueOnError bool
	logger          logging.Logger
	classifiers     map[core.ActionKind]classifier
}

type classifier func(e *Executor, ctx context.Context, g *errgroup.Group, handle *Group, indices []int, actions []core.Action, results []core.ActionResult)

// New creates an executor over the given collaborators.
func New(tools ToolInvoker, agents AgentInvoker, optFns ...func(o *Options)) *Executor {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	e := &Executor{
		continueOnError: opts.ContinueOnError,
		logger:          opts.Logger,
	}
	e.classifiers = map[core.ActionKind]classifier{
		core.ActionFunctionTool: func(e *Executor, ctx context.Context, g *errgroup.Group, handle *Group, indices []int, actions []core.Action, results []core.ActionResult) {
			e.runToolBatch(ctx, g, handle, tools, indices, actions, results)
		},
		core.ActionAgentTool: func(e *Executor, ctx context.Context, g *errgroup.Group, handle *Group, indices []int, actions []core.Action, results []core.ActionResult) {
			e.runAgentCalls(ctx, g, handle, agents, indices, actions, results)
		},
	}
	return e
}

// Start launches all actions of one decision step concurrently and returns
// the Group handle immediately, so callers can observe live
// pending/completed/failed progress while the gather runs. Wait on the
// handle for the ordered results.
func (e *Executor) Start(ctx context.Context, actions []core.Action) *Group {
	handle := &Group{total: len(actions), done: make(chan struct{})}
	handle.pending.Store(int32(len(actions)))
	handle.results = make([]core.ActionResult, len(actions))

	if len(actions) == 0 {
		close(handle.done)
		return handle
	}

	go func() {
		defer close(handle.done)
		handle.err = e.gather(ctx, actions, handle)
	}()
	return handle
}

// Execute is the synchronous form of Start: it runs the action group to
// completion and returns the handle together with the gathered results.
//
// Under the default fail-fast policy any single failure fails the whole
// group with ActionGroupFailure. With ContinueOnError a placeholder result
// is substituted per failed action, a warning is recorded, and the partial
// results are returned without error.
func (e *Executor) Execute(ctx context.Context, actions []core.Action) (*Group, []core.ActionResult, error) {
	handle := e.Start(ctx, actions)
	results, err := handle.Wait(ctx)
	return handle, results, err
}

// gather executes the actions and fills handle.results in original proposal
// order, irrespective of completion order.
func (e *Executor) gather(ctx context.Context, actions []core.Action, handle *Group) error {
	results := handle.results

	// Partition proposal indices by action kind, preserving order within
	// each partition.
	byKind := map[core.ActionKind][]int{}
	for i, a := range actions {
		byKind[a.Kind()] = append(byKind[a.Kind()], i)
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for kind, indices := range byKind {
		cl, ok := e.classifiers[kind]
		if !ok {
			for _, i := range indices {
				results[i] = core.ActionResult{Index: i, Action: actions[i], Err: fmt.Errorf("unknown action kind %q", kind)}
				handle.finish(results[i].Err)
			}
			continue
		}
		cl(e, gctx, g, handle, indices, actions, results)
	}
	_ = g.Wait()

	var causes []error
	for i := range results {
		results[i].Index = i
		if results[i].Err != nil {
			causes = append(causes, fmt.Errorf("action %d (%s): %w", i, actions[i].Kind(), results[i].Err))
		}
	}

	e.logger.Debug("action group complete count=%d failed=%d duration_ms=%d", len(actions), len(causes), time.Since(start).Milliseconds())

	if len(causes) > 0 {
		if !e.continueOnError {
			return &core.ActionGroupFailure{Failed: len(causes), Total: len(actions), Causes: causes}
		}
		for i := range results {
			if results[i].Err != nil {
				e.logger.Warn("substituting placeholder for failed action %d: %v", i, results[i].Err)
				results[i].Placeholder = true
				results[i].Output = fmt.Sprintf("action failed: %v", results[i].Err)
			}
		}
	}
	return nil
}

// runToolBatch submits every function tool call of the group as one
// concurrent batch to the tool invoker.
func (e *Executor) runToolBatch(ctx context.Context, g *errgroup.Group, handle *Group, tools ToolInvoker, indices []int, actions []core.Action, results []core.ActionResult) {
	calls := make([]core.FunctionToolCall, len(indices))
	for i, idx := range indices {
		calls[i] = actions[idx].(core.FunctionToolCall)
	}

	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = e.recordPanic(handle, indices, actions, results, r)
			}
		}()

		if tools == nil {
			err = fmt.Errorf("no tool invoker configured")
			for _, idx := range indices {
				results[idx] = core.ActionResult{Action: actions[idx], Err: err}
				handle.finish(err)
			}
			return e.failFast(err)
		}

		batch := tools.Invoke(ctx, calls)
		var firstErr error
		for i, idx := range indices {
			var res core.ToolResult
			if i < len(batch) {
				res = batch[i]
			} else {
				res = core.ToolResult{CallID: calls[i].ID, Name: calls[i].Name, Error: "tool invoker returned no result"}
			}
			ar := core.ActionResult{Action: actions[idx], Output: res.Result}
			if res.Error != "" {
				ar.Err = fmt.Errorf("tool %s: %s", res.Name, res.Error)
				if firstErr == nil {
					firstErr = ar.Err
				}
			}
			results[idx] = ar
			handle.finish(ar.Err)
		}
		return e.failFast(firstErr)
	})
}

// runAgentCalls spawns one goroutine per agent-as-tool call; the invoker is
// responsible for clone + sub-context isolation.
func (e *Executor) runAgentCalls(ctx context.Context, g *errgroup.Group, handle *Group, agents AgentInvoker, indices []int, actions []core.Action, results []core.ActionResult) {
	for _, idx := range indices {
		call := actions[idx].(core.AgentToolCall)
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = e.recordPanic(handle, []int{idx}, actions, results, r)
				}
			}()

			if agents == nil {
				ar := core.ActionResult{Action: actions[idx], Err: fmt.Errorf("no agent invoker configured")}
				results[idx] = ar
				handle.finish(ar.Err)
				return e.failFast(ar.Err)
			}

			out, callErr := agents.InvokeAgent(ctx, call)
			results[idx] = core.ActionResult{Action: actions[idx], Output: out, Err: callErr}
			handle.finish(callErr)
			return e.failFast(callErr)
		})
	}
}

// failFast returns err only under the fail-fast policy so the errgroup
// cancels the remaining actions; under continue-on-error errors stay in the
// per-action results.
func (e *Executor) failFast(err error) error {
	if e.continueOnError {
		return nil
	}
	return err
}

func (e *Executor) recordPanic(handle *Group, indices []int, actions []core.Action, results []core.ActionResult, r any) error {
	err := fmt.Errorf("action panicked: %v", r)
	e.logger.Error("panic in action group: %v\n%s", r, debug.Stack())
	for _, idx := range indices {
		if results[idx].Action == nil {
			results[idx] = core.ActionResult{Action: actions[idx], Err: err}
			handle.finish(err)
		}
	}
	return e.failFast(err)
}
