package engine

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/logging"
)

// BatchEngine models a remote-batch-partition-style backend: the submitted
// tasks are split into WorkerNum partitions, partitions run in parallel and
// each partition processes its tasks sequentially. Sequence-dependent
// submissions collapse into a single partition, preserving strict
// submission order.
type BatchEngine struct {
	exec       TaskExecutor
	logger     logging.Logger
	dispatcher Dispatcher
	maxRetries uint64
	baseDelay  time.Duration
}

// NewBatchEngine creates a batch engine over the given executor.
func NewBatchEngine(exec TaskExecutor, optFns ...func(o *Options)) *BatchEngine {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &BatchEngine{
		exec:       exec,
		logger:     opts.Logger,
		dispatcher: opts.Dispatcher,
		maxRetries: opts.MaxDispatchRetries,
		baseDelay:  opts.DispatchBackoffBase,
	}
}

// Name implements Engine.
func (e *BatchEngine) Name() string { return string(Batch) }

// Submit implements Engine.
func (e *BatchEngine) Submit(ctx context.Context, tasks []*core.Task, cfg RunConfig) (map[string]*Future, error) {
	partitions := cfg.workers()
	if cfg.SequenceDependent || partitions > len(tasks) {
		if cfg.SequenceDependent {
			partitions = 1
		} else if len(tasks) > 0 {
			partitions = len(tasks)
		}
	}

	futures := make(map[string]*Future, len(tasks))
	items := make([]WorkItem, len(tasks))
	for i, task := range tasks {
		future := NewFuture()
		futures[task.ID] = future
		items[i] = WorkItem{ctx: ctx, task: task, future: future}
	}
	if len(items) == 0 {
		return futures, nil
	}

	dispatcher := e.dispatcher
	if dispatcher == nil || cfg.InLocal {
		dispatcher = e.localDispatcher()
	}

	// Round-robin partitioning keeps partition sizes balanced while
	// preserving relative order inside each partition.
	parts := make([][]WorkItem, partitions)
	for i, item := range items {
		parts[i%partitions] = append(parts[i%partitions], item)
	}

	g := new(errgroup.Group)
	for pi, part := range parts {
		if len(part) == 0 {
			continue
		}
		g.Go(func() error {
			e.logger.Debug("batch engine processing partition %d with %d tasks", pi, len(part))
			for _, item := range part {
				if err := dispatchWithRetry(ctx, e.Name(), dispatcher, item, e.maxRetries, e.baseDelay); err != nil {
					item.future.complete(failedResponse(item.task, err))
				}
			}
			return nil
		})
	}
	go func() { _ = g.Wait() }()

	return futures, nil
}

// localDispatcher executes the item inline, so each partition goroutine
// processes its tasks back to back.
func (e *BatchEngine) localDispatcher() Dispatcher {
	return DispatcherFunc(func(ctx context.Context, item WorkItem) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		item.future.complete(e.exec.ExecuteTask(ctx, item.task))
		return nil
	})
}
