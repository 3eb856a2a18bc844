// Package runner drives tasks to completion over a swarm. A Runner is the
// TaskExecutor plugged into an execution engine: per task it wires up a
// message router, a join coordinator, a context tree and an action group
// executor, seeds the graph roots with the task input and quiesces the
// message flow into a TaskResponse.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/agentswarm/contexttree"
	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/group"
	"github.com/hupe1980/agentswarm/join"
	"github.com/hupe1980/agentswarm/logging"
	"github.com/hupe1980/agentswarm/router"
	"github.com/hupe1980/agentswarm/swarm"
)

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// WorkerNum bounds the router's concurrent handler invocations per task.
	WorkerNum int

	// JoinPolicy selects fail-fast or best-effort barrier behavior.
	JoinPolicy join.Policy

	// ContinueOnError substitutes placeholders for failed actions instead of
	// failing the group; completed tasks are then marked PARTIAL_FAILURE.
	ContinueOnError bool

	// Tools executes function tool calls. Tasks whose agents never propose
	// function tools may leave it nil.
	Tools group.ToolInvoker

	// Policies overrides the per-category routing policy. Without an entry a
	// category fans out to every candidate next hop.
	Policies map[core.Category]router.Policy

	// Store persists finished task responses. Nil disables persistence.
	Store *Store

	// OnGroup receives the live Group handle of every action group as soon
	// as its gather starts, so callers can observe pending/completed/failed
	// progress while the actions run.
	OnGroup func(node string, g *group.Group)

	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Runner executes tasks against one swarm. It is stateless across tasks and
// safe for concurrent use; all per-task state lives in a run.
type Runner struct {
	swarm           *swarm.Swarm
	tools           group.ToolInvoker
	store           *Store
	logger          logging.Logger
	workerNum       int
	joinPolicy      join.Policy
	continueOnError bool
	policies        map[core.Category]router.Policy
	onGroup         func(node string, g *group.Group)
}

// New constructs a Runner over the swarm with optional overrides.
func New(sw *swarm.Swarm, optFns ...func(o *Options)) *Runner {
	opts := Options{
		WorkerNum: 8,
		Logger:    logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Runner{
		swarm:           sw,
		tools:           opts.Tools,
		store:           opts.Store,
		logger:          opts.Logger,
		workerNum:       opts.WorkerNum,
		joinPolicy:      opts.JoinPolicy,
		continueOnError: opts.ContinueOnError,
		policies:        opts.Policies,
		onGroup:         opts.OnGroup,
	}
}

// ExecuteTask runs one task to completion and returns its terminal response.
// It never returns nil; failures are reported through TaskResponse.Err and
// the mapped result code.
func (r *Runner) ExecuteTask(ctx context.Context, task *core.Task) *core.TaskResponse {
	start := time.Now()

	if task.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, task.Timeout)
		defer cancelTimeout()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	run := &run{
		runner:     r,
		task:       task,
		tree:       contexttree.NewTree(task.ID, func(o *contexttree.Options) { o.Logger = r.logger }),
		trajectory: core.NewTrajectory(),
		coord: join.NewCoordinator(r.swarm.Graph(), func(o *join.Options) {
			o.Policy = r.joinPolicy
			o.Logger = r.logger
		}),
		cancel: cancel,
	}
	run.groups = group.New(r.tools, run, func(o *group.Options) {
		o.ContinueOnError = r.continueOnError
		o.Logger = r.logger
	})

	registry := router.NewRegistry()
	step := &stepHandler{run: run}
	registry.Register(core.CategoryObservation, step)
	registry.Register(core.CategoryToolResult, step)
	registry.Register(core.CategoryError, step)
	registry.Register(core.CategoryActionList, &actionHandler{run: run})
	for category, policy := range r.policies {
		registry.RegisterPolicy(category, policy)
	}
	run.registry = registry

	run.router = router.New(registry, func(o *router.Options) {
		o.WorkerNum = r.workerNum
		o.Logger = r.logger
		o.OnTerminal = run.onTerminal
		o.OnAbort = run.onAbort
	})

	task.Status = core.TaskRunning
	run.tree.Root().SetStatus(core.TaskRunning)
	r.logger.Info("task %s started: roots=%v max_hops=%d", task.ID, r.swarm.Graph().Roots(), task.MaxHops)

	seed := core.NewObservationMessage(task.Input, "", r.swarm.Graph().Roots()...)
	seed.SessionID = task.SessionID
	run.router.Dispatch(ctx, seed)

	quiesceErr := run.router.Quiesce(ctx)

	resp := run.response(start, quiesceErr)
	switch {
	case resp.Success:
		task.Status = core.TaskCompleted
	case resp.Code == core.CodeCancelled:
		task.Status = core.TaskCancelled
	default:
		task.Status = core.TaskFailed
	}
	run.tree.Root().SetStatus(task.Status)

	r.logger.Info("task %s finished: success=%v code=%s steps=%d duration=%s",
		task.ID, resp.Success, resp.Code, len(resp.Trajectory), resp.TimeCost)

	if r.store != nil {
		r.store.Save(resp)
	}
	return resp
}

// run is the per-task execution state shared by the handlers of one task.
type run struct {
	runner     *Runner
	task       *core.Task
	tree       *contexttree.Tree
	trajectory *core.Trajectory
	coord      *join.Coordinator
	groups     *group.Executor
	registry   *router.Registry
	router     *router.Router
	cancel     context.CancelFunc

	hops    atomic.Int64
	partial atomic.Bool

	mu      sync.Mutex
	answer  string
	gotAns  bool
	failure error
}

// fail records the first task-fatal error and cancels the dispatch context so
// queued deliveries drain without running.
func (r *run) fail(err error) {
	r.mu.Lock()
	if r.failure == nil {
		r.failure = err
	}
	r.mu.Unlock()
	r.cancel()
}

func (r *run) failed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failure != nil
}

// setSuspended flips the task status between RUNNING and WAITING_BARRIER on
// the root context node while the task parks at a barrier or an action group
// gather. Terminal statuses are never overwritten.
func (r *run) setSuspended(suspended bool) {
	root := r.tree.Root()
	switch root.Status() {
	case core.TaskRunning:
		if suspended {
			root.SetStatus(core.TaskWaitingBarrier)
		}
	case core.TaskWaitingBarrier:
		if !suspended {
			root.SetStatus(core.TaskRunning)
		}
	}
}

// onTerminal receives messages that left the graph. The answer of the task is
// the content of the last terminal delivery.
func (r *run) onTerminal(msg core.Message) {
	r.mu.Lock()
	r.answer = msg.Text()
	r.gotAns = true
	r.mu.Unlock()
}

func (r *run) onAbort(msg core.Message, err error) {
	r.runner.logger.Error("task %s aborted at %v: %v", r.task.ID, msg.Receivers, err)
	r.fail(err)
}

// consumeHop counts one delivery against the task's hop budget. An exceeding
// delivery fails the task before anything is recorded, so the trajectory
// length equals the budget.
func (r *run) consumeHop() bool {
	n := r.hops.Add(1)
	if r.task.MaxHops > 0 && int(n) > r.task.MaxHops {
		r.fail(&core.TimeoutBudgetExceeded{TaskID: r.task.ID, Hops: r.task.MaxHops})
		return false
	}
	return true
}

// response assembles the terminal TaskResponse from the run's state.
func (r *run) response(start time.Time, quiesceErr error) *core.TaskResponse {
	r.mu.Lock()
	failure := r.failure
	answer := r.answer
	gotAns := r.gotAns
	r.mu.Unlock()

	resp := &core.TaskResponse{
		TaskID:     r.task.ID,
		Trajectory: r.trajectory.Records(),
		TimeCost:   time.Since(start),
	}

	switch {
	case failure != nil:
		resp.Code = core.CodeOf(failure)
		resp.Err = failure
	case quiesceErr != nil:
		// A deadline with a configured wall budget is the task's own expiry.
		// Anything else is the caller cancelling the submission context.
		if r.task.Timeout > 0 && errors.Is(quiesceErr, context.DeadlineExceeded) {
			resp.Err = &core.TimeoutBudgetExceeded{TaskID: r.task.ID, Elapsed: time.Since(start), Wall: true}
			resp.Code = core.CodeTimeoutBudget
		} else {
			resp.Err = quiesceErr
			resp.Code = core.CodeCancelled
		}
	case !gotAns:
		resp.Err = fmt.Errorf("task %s quiesced without producing an answer", r.task.ID)
		resp.Code = core.CodeInternal
	default:
		resp.Answer = answer
		resp.Success = true
		resp.Code = core.CodeSuccess
		if r.partial.Load() {
			resp.Code = core.CodePartialFailure
		}
	}
	return resp
}

// InvokeAgent implements group.AgentInvoker: it runs one agent-as-tool call
// against an isolated clone of the referenced agent with a fresh sub-context,
// and merges the sub-context back into the caller's task node on completion.
func (r *run) InvokeAgent(ctx context.Context, call core.AgentToolCall) (any, error) {
	target, ok := r.runner.swarm.Agent(call.Agent)
	if !ok {
		return nil, fmt.Errorf("agent %q is not part of the swarm", call.Agent)
	}
	cloneable, ok := target.(core.CloneableAgent)
	if !ok {
		return nil, fmt.Errorf("agent %q cannot be used as a tool: not cloneable", call.Agent)
	}
	clone := cloneable.Clone()

	subTask := core.NewTask(call.Input,
		core.WithParent(r.task.ID),
		core.WithSessionID(r.task.SessionID),
	)

	parentNode, ok := r.tree.Node(r.task.ID)
	if !ok {
		return nil, fmt.Errorf("no context node for task %s", r.task.ID)
	}
	child, err := r.tree.BuildSubContext(parentNode, subTask.ID, map[string]any{"input": call.Input})
	if err != nil {
		return nil, err
	}
	child.SetStatus(core.TaskRunning)

	decision, execErr := clone.Execute(ctx, core.NewObservationMessage(call.Input, r.task.ID, call.Agent))
	if execErr != nil {
		child.SetStatus(core.TaskFailed)
		if mergeErr := r.tree.MergeSubContext(child); mergeErr != nil {
			r.runner.logger.Warn("merging failed sub-context %s: %v", subTask.ID, mergeErr)
		}
		return nil, fmt.Errorf("agent tool %q: %w", call.Agent, execErr)
	}

	child.Set("answer:"+call.Agent, decision.Content)
	child.SetStatus(core.TaskCompleted)
	if err := r.tree.MergeSubContext(child); err != nil {
		return nil, err
	}
	return decision.Content, nil
}
