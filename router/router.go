package router

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/logging"
)

// Options configures a Router.
type Options struct {
	// WorkerNum bounds the number of concurrently running handler
	// invocations across all nodes. Defaults to 8.
	WorkerNum int

	// OnTerminal receives messages addressed to no receiver, i.e. outputs
	// that leave the graph.
	OnTerminal func(msg core.Message)

	// OnAbort receives unrecoverable handler failures. The owner is
	// expected to cancel the dispatch context.
	OnAbort func(msg core.Message, err error)

	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Router delivers messages to their receiver nodes through per-node
// mailboxes.
//
// Ordering guarantees:
//   - FIFO per destination node (mailbox ordering)
//   - at most one handler invocation in flight per node, so state mutation
//     on a single agent is never racy
//   - no ordering guarantee across distinct destination nodes; their
//     handlers run concurrently up to the worker pool bound
//
// A handler's output stream is consumed incrementally and every produced
// message is re-dispatched, so pending work is tracked transitively:
// Quiesce returns once no message is queued or in flight.
type Router struct {
	registry *Registry
	sem      *semaphore.Weighted
	logger   logging.Logger

	onTerminal func(msg core.Message)
	onAbort    func(msg core.Message, err error)

	mu      sync.Mutex
	boxes   map[string]*mailbox
	pending atomic.Int64
	idleCh  chan struct{}
}

type envelope struct {
	ctx context.Context
	msg core.Message
}

// mailbox is an unbounded FIFO queue per destination node, drained by at
// most one goroutine at a time.
type mailbox struct {
	mu       sync.Mutex
	queue    []envelope
	draining bool
}

// New creates a router dispatching through the given registry.
func New(registry *Registry, optFns ...func(o *Options)) *Router {
	opts := Options{
		WorkerNum: 8,
		Logger:    logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.WorkerNum < 1 {
		opts.WorkerNum = 1
	}

	return &Router{
		registry:   registry,
		sem:        semaphore.NewWeighted(int64(opts.WorkerNum)),
		logger:     opts.Logger,
		onTerminal: opts.OnTerminal,
		onAbort:    opts.OnAbort,
		boxes:      map[string]*mailbox{},
		idleCh:     make(chan struct{}, 1),
	}
}

// Dispatch enqueues the message for every receiver. Each receiver gets an
// independent copy with a single-element receiver list. Messages without
// receivers are terminal and go to the OnTerminal callback.
func (r *Router) Dispatch(ctx context.Context, msg core.Message) {
	if len(msg.Receivers) == 0 {
		if r.onTerminal != nil {
			r.onTerminal(msg)
		}
		return
	}
	for _, receiver := range msg.Receivers {
		r.post(ctx, receiver, msg.ForReceiver(receiver))
	}
}

// Pending returns the number of messages currently queued or in flight.
func (r *Router) Pending() int { return int(r.pending.Load()) }

// Quiesce blocks until no message is queued or in flight, or the context is
// cancelled.
func (r *Router) Quiesce(ctx context.Context) error {
	for {
		if r.pending.Load() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.idleCh:
		}
	}
}

func (r *Router) post(ctx context.Context, receiver string, msg core.Message) {
	r.pending.Add(1)

	box := r.box(receiver)
	box.mu.Lock()
	box.queue = append(box.queue, envelope{ctx: ctx, msg: msg})
	if box.draining {
		box.mu.Unlock()
		return
	}
	box.draining = true
	box.mu.Unlock()

	go r.drain(receiver, box)
}

func (r *Router) box(receiver string) *mailbox {
	r.mu.Lock()
	defer r.mu.Unlock()
	box, ok := r.boxes[receiver]
	if !ok {
		box = &mailbox{}
		r.boxes[receiver] = box
	}
	return box
}

func (r *Router) drain(receiver string, box *mailbox) {
	for {
		box.mu.Lock()
		if len(box.queue) == 0 {
			box.draining = false
			box.mu.Unlock()
			return
		}
		env := box.queue[0]
		box.queue = box.queue[1:]
		box.mu.Unlock()

		r.deliver(env.ctx, receiver, env.msg)
		r.done()
	}
}

func (r *Router) done() {
	if r.pending.Add(-1) == 0 {
		select {
		case r.idleCh <- struct{}{}:
		default:
		}
	}
}

// deliver runs the single matching handler for one message, bounded by the
// worker pool, and re-dispatches every output message.
func (r *Router) deliver(ctx context.Context, receiver string, msg core.Message) {
	if ctx.Err() != nil {
		return
	}
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer r.sem.Release(1)

	handler, ok := r.registry.Resolve(msg)
	if !ok {
		r.logger.Warn("no handler accepts message category=%s receiver=%s; dropped", msg.Category, receiver)
		return
	}

	stream, err := handler.Handle(ctx, msg)
	if err != nil {
		r.handleError(ctx, msg, err)
		return
	}
	for out := range stream {
		r.Dispatch(ctx, out)
	}
}

// handleError converts a handler failure into an error payload routed back
// to the sender for a retry/abort decision. Unrecoverable failures, and
// failures without a sender to bounce to, abort the owning task.
func (r *Router) handleError(ctx context.Context, msg core.Message, err error) {
	if core.IsUnrecoverable(err) || msg.Sender == "" {
		r.logger.Error("unrecoverable handler failure receiver=%v: %v", msg.Receivers, err)
		if r.onAbort != nil {
			r.onAbort(msg, err)
		}
		return
	}
	r.logger.Warn("handler failure, routing error payload back to sender=%s: %v", msg.Sender, err)
	receiver := ""
	if len(msg.Receivers) == 1 {
		receiver = msg.Receivers[0]
	}
	r.Dispatch(ctx, core.NewErrorMessage(core.CodeOf(err), err, receiver, msg.Sender))
}
