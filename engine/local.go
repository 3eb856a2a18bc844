package engine

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/logging"
)

// LocalEngine executes tasks on an in-process goroutine pool bounded by
// WorkerNum. It is the default engine and the reference for the contract's
// latency guarantees.
type LocalEngine struct {
	exec   TaskExecutor
	logger logging.Logger
}

// NewLocalEngine creates a local engine over the given executor.
func NewLocalEngine(exec TaskExecutor, optFns ...func(o *Options)) *LocalEngine {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &LocalEngine{exec: exec, logger: opts.Logger}
}

// Name implements Engine.
func (e *LocalEngine) Name() string { return string(Local) }

// Submit implements Engine. Independent tasks run concurrently up to
// WorkerNum; with SequenceDependent set, tasks run one after another in
// submission order regardless of the pool size.
func (e *LocalEngine) Submit(ctx context.Context, tasks []*core.Task, cfg RunConfig) (map[string]*Future, error) {
	futures := make(map[string]*Future, len(tasks))
	for _, task := range tasks {
		futures[task.ID] = NewFuture()
	}

	if cfg.SequenceDependent {
		go func() {
			for _, task := range tasks {
				futures[task.ID].complete(e.run(ctx, task))
			}
		}()
		return futures, nil
	}

	sem := semaphore.NewWeighted(int64(cfg.workers()))
	for _, task := range tasks {
		go func() {
			if err := sem.Acquire(ctx, 1); err != nil {
				futures[task.ID].complete(failedResponse(task, err))
				return
			}
			defer sem.Release(1)
			futures[task.ID].complete(e.run(ctx, task))
		}()
	}
	return futures, nil
}

func (e *LocalEngine) run(ctx context.Context, task *core.Task) *core.TaskResponse {
	e.logger.Debug("local engine running task %s", task.ID)
	return e.exec.ExecuteTask(ctx, task)
}
