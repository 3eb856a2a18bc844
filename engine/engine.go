// Package engine provides the distributed-execution-engine abstraction: a
// uniform submit/collect contract over a local goroutine pool and pluggable
// remote backends (actor-style and batch-partition-style). Engines are
// swappable without touching orchestration or agent code.
//
// Contract guarantees:
//   - independent tasks (SequenceDependent=false) may execute concurrently
//     and out of order; with enough workers, total latency approaches the
//     maximum individual latency
//   - with SequenceDependent=true, tasks execute in strict submission order
//     even on a parallel engine: the engine serializes, not the caller
//   - dispatch failures trigger a bounded exponential-backoff retry before
//     surfacing EngineDispatchError
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/agentswarm/core"
)

// Kind identifies an execution engine implementation.
type Kind string

const (
	// Local runs tasks on an in-process goroutine pool.
	Local Kind = "local"
	// Actor runs tasks on a fixed set of actor workers with per-actor
	// mailboxes (remote-actor-style execution model).
	Actor Kind = "actor"
	// Batch partitions the submitted tasks and processes each partition
	// sequentially (remote-batch-style execution model).
	Batch Kind = "batch"
)

// RunConfig selects and tunes the engine for one submission.
type RunConfig struct {
	// Engine selects the backend. Defaults to Local.
	Engine Kind `json:"engine"`

	// WorkerNum is the parallelism bound (pool size, actor count or
	// partition count). Defaults to 4.
	WorkerNum int `json:"worker_num"`

	// SequenceDependent forces strict submission-order execution.
	SequenceDependent bool `json:"sequence_dependent"`

	// InLocal forces a remote-style engine to run in-process, for testing.
	InLocal bool `json:"in_local"`

	// EngineOverride bypasses the factory with a pre-built engine.
	EngineOverride Engine `json:"-"`
}

func (c RunConfig) workers() int {
	if c.WorkerNum < 1 {
		return 4
	}
	return c.WorkerNum
}

// TaskExecutor is the collaborator that actually drives one task to
// completion; the task runner implements it.
type TaskExecutor interface {
	ExecuteTask(ctx context.Context, task *core.Task) *core.TaskResponse
}

// Engine is the uniform execution contract. Submit never blocks on task
// completion: it returns one Future per task id.
type Engine interface {
	// Name identifies the engine implementation.
	Name() string

	// Submit schedules the tasks and returns a future per task id. A
	// non-nil error means the submission as a whole was rejected.
	Submit(ctx context.Context, tasks []*core.Task, cfg RunConfig) (map[string]*Future, error)
}

// Future is the pending result of one submitted task.
type Future struct {
	done chan struct{}
	once sync.Once
	resp *core.TaskResponse
}

// NewFuture creates an unresolved future.
func NewFuture() *Future { return &Future{done: make(chan struct{})} }

// complete resolves the future. Only the first call takes effect.
func (f *Future) complete(resp *core.TaskResponse) {
	f.once.Do(func() {
		f.resp = resp
		close(f.done)
	})
}

// Done returns a channel closed when the result is available.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the result is available or the context is cancelled.
func (f *Future) Wait(ctx context.Context) (*core.TaskResponse, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.done:
		return f.resp, nil
	}
}

// Collect awaits every future and returns the resolved responses keyed by
// task id.
func Collect(ctx context.Context, futures map[string]*Future) (map[string]*core.TaskResponse, error) {
	out := make(map[string]*core.TaskResponse, len(futures))
	for id, f := range futures {
		resp, err := f.Wait(ctx)
		if err != nil {
			return out, err
		}
		out[id] = resp
	}
	return out, nil
}

// New constructs the engine selected by cfg. EngineOverride wins over the
// Engine kind; an unknown kind is an error.
func New(cfg RunConfig, exec TaskExecutor, optFns ...func(o *Options)) (Engine, error) {
	if cfg.EngineOverride != nil {
		return cfg.EngineOverride, nil
	}
	switch cfg.Engine {
	case Local, "":
		return NewLocalEngine(exec, optFns...), nil
	case Actor:
		return NewActorEngine(exec, optFns...), nil
	case Batch:
		return NewBatchEngine(exec, optFns...), nil
	default:
		return nil, fmt.Errorf("unknown engine kind %q", cfg.Engine)
	}
}

// failedResponse builds the TaskResponse for a task that never ran.
func failedResponse(task *core.Task, err error) *core.TaskResponse {
	return &core.TaskResponse{
		TaskID:  task.ID,
		Success: false,
		Code:    core.CodeOf(err),
		Err:     err,
	}
}
