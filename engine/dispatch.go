package engine

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/hupe1980/agentswarm/core"
)

// WorkItem is one task handed to an execution substrate together with the
// future resolving its result. Remote dispatchers serialize the task, hand
// it to their backend and call Complete with the backend's terminal
// response.
type WorkItem struct {
	ctx    context.Context
	task   *core.Task
	future *Future
}

// Context returns the submission context the task should execute under.
func (w WorkItem) Context() context.Context { return w.ctx }

// Task returns the task to execute.
func (w WorkItem) Task() *core.Task { return w.task }

// Complete resolves the item's future with the terminal response. It must be
// called exactly once per item; later calls are ignored.
func (w WorkItem) Complete(resp *core.TaskResponse) { w.future.complete(resp) }

// Dispatcher hands a work item to the execution substrate of a remote-style
// engine. Returning an error marks the dispatch attempt as failed; the
// engine retries with exponential backoff before surfacing
// EngineDispatchError.
type Dispatcher interface {
	Send(ctx context.Context, item WorkItem) error
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, item WorkItem) error

// Send implements Dispatcher.
func (f DispatcherFunc) Send(ctx context.Context, item WorkItem) error { return f(ctx, item) }

// FailingDispatcher always fails with cause. It exists so deployments and
// tests can exercise the dispatch retry and EngineDispatchError surfacing
// without a real remote backend.
func FailingDispatcher(cause error) Dispatcher {
	return DispatcherFunc(func(context.Context, WorkItem) error { return cause })
}

// dispatchWithRetry sends the item through the dispatcher, retrying with
// bounded exponential backoff. On exhaustion it returns EngineDispatchError
// carrying the attempt count and last cause.
func dispatchWithRetry(ctx context.Context, engine string, d Dispatcher, item WorkItem, maxRetries uint64, base time.Duration) error {
	attempts := 0
	op := func() error {
		attempts++
		return d.Send(ctx, item)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = base
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, maxRetries), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		return &core.EngineDispatchError{Engine: engine, TaskID: item.task.ID, Attempts: attempts, Cause: err}
	}
	return nil
}
