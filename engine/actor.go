package engine

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/logging"
)

// ActorEngine models a remote-actor-style execution backend: a fixed set of
// actor workers, each with its own mailbox, receiving tasks through a
// dispatcher. With the default in-process dispatcher (or InLocal set) the
// actors run as goroutines, which makes the engine testable without a
// remote cluster while preserving the dispatch/retry semantics.
type ActorEngine struct {
	exec       TaskExecutor
	logger     logging.Logger
	dispatcher Dispatcher
	maxRetries uint64
	baseDelay  time.Duration

	mu     sync.Mutex
	actors []*actor
}

// actor is one worker with a serial mailbox.
type actor struct {
	mailbox chan WorkItem
	once    sync.Once
}

func (a *actor) start(exec TaskExecutor) {
	a.once.Do(func() {
		go func() {
			for item := range a.mailbox {
				if item.ctx.Err() != nil {
					item.future.complete(failedResponse(item.task, item.ctx.Err()))
					continue
				}
				item.future.complete(exec.ExecuteTask(item.ctx, item.task))
			}
		}()
	})
}

// NewActorEngine creates an actor engine over the given executor.
func NewActorEngine(exec TaskExecutor, optFns ...func(o *Options)) *ActorEngine {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ActorEngine{
		exec:       exec,
		logger:     opts.Logger,
		dispatcher: opts.Dispatcher,
		maxRetries: opts.MaxDispatchRetries,
		baseDelay:  opts.DispatchBackoffBase,
	}
}

// Name implements Engine.
func (e *ActorEngine) Name() string { return string(Actor) }

// Submit implements Engine. Independent tasks are assigned round-robin
// across WorkerNum actors; sequence-dependent submissions are pinned to a
// single actor so its serial mailbox preserves submission order.
func (e *ActorEngine) Submit(ctx context.Context, tasks []*core.Task, cfg RunConfig) (map[string]*Future, error) {
	workers := cfg.workers()
	if cfg.SequenceDependent {
		workers = 1
	}
	actors := e.pool(workers)

	dispatcher := e.dispatcher
	if dispatcher == nil || cfg.InLocal {
		dispatcher = e.localDispatcher(actors)
	}

	futures := make(map[string]*Future, len(tasks))
	for i, task := range tasks {
		future := NewFuture()
		futures[task.ID] = future
		item := WorkItem{ctx: ctx, task: task, future: future}
		e.logger.Debug("actor engine dispatching task %s to actor %d", task.ID, i%workers)
		if err := dispatchWithRetry(ctx, e.Name(), dispatcher, item, e.maxRetries, e.baseDelay); err != nil {
			future.complete(failedResponse(task, err))
		}
	}
	return futures, nil
}

// pool grows the actor set to at least n started actors and returns the
// first n.
func (e *ActorEngine) pool(n int) []*actor {
	e.mu.Lock()
	defer e.mu.Unlock()
	for len(e.actors) < n {
		a := &actor{mailbox: make(chan WorkItem, 64)}
		a.start(e.exec)
		e.actors = append(e.actors, a)
	}
	return e.actors[:n]
}

// localDispatcher assigns items round-robin over the in-process actors.
func (e *ActorEngine) localDispatcher(actors []*actor) Dispatcher {
	var next int
	var mu sync.Mutex
	return DispatcherFunc(func(ctx context.Context, item WorkItem) error {
		mu.Lock()
		a := actors[next%len(actors)]
		next++
		mu.Unlock()
		select {
		case a.mailbox <- item:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}
