// Package agentswarm provides a high-level façade over the topology, swarm,
// runner and engine packages, enabling rapid construction of message-routed
// multi-agent systems. Most applications interact with this package by:
//  1. Building a graph with topology.NewBuilder (or topology.ParseYAML)
//  2. Creating an AgentSwarm via New() with the graph and its agents
//  3. Executing tasks synchronously (Execute) or in bulk (Submit/Collect)
//
// The façade delegates orchestration to runner.Runner and scheduling to the
// configured execution engine while keeping setup ergonomics concise. All
// defaults are safe for local development and testing; production deployments
// typically supply a structured logger and tune the engine run config.
package agentswarm

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/engine"
	"github.com/hupe1980/agentswarm/join"
	"github.com/hupe1980/agentswarm/logging"
	"github.com/hupe1980/agentswarm/router"
	"github.com/hupe1980/agentswarm/runner"
	"github.com/hupe1980/agentswarm/swarm"
	"github.com/hupe1980/agentswarm/tool"
	"github.com/hupe1980/agentswarm/topology"
)

// Options configures the AgentSwarm instance.
type Options struct {
	// Strict escalates illegal handoff targets from dropped-and-logged to
	// task-fatal.
	Strict bool

	// JoinPolicy selects fail-fast or best-effort barrier behavior.
	JoinPolicy join.Policy

	// ContinueOnError substitutes placeholders for failed actions instead of
	// failing the whole action group.
	ContinueOnError bool

	// Tools are the function tools available to every agent of the swarm.
	Tools []tool.Tool

	// WorkerNum bounds concurrent handler invocations per task.
	WorkerNum int

	// RunConfig selects and tunes the execution engine. Defaults to the
	// local goroutine-pool engine.
	RunConfig engine.RunConfig

	// Policies overrides per-category routing (e.g. router.SingleNext for
	// sequential semantics on fan-out edges).
	Policies map[core.Category]router.Policy

	// Store persists finished task responses. Defaults to a fresh in-memory
	// store.
	Store *runner.Store

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// AgentSwarm is the high-level façade aggregating a bound swarm, its task
// runner and the execution engine.
type AgentSwarm struct {
	swarm  *swarm.Swarm
	runner *runner.Runner
	engine engine.Engine
	cfg    engine.RunConfig
	store  *runner.Store
	logger logging.Logger
}

// New binds the agents to the graph and wires up the runner and engine. Any
// unset collaborator is initialized with an in-memory default.
func New(graph *topology.Graph, agents []core.Agent, optFns ...func(o *Options)) (*AgentSwarm, error) {
	opts := Options{
		WorkerNum: 8,
		Store:     runner.NewStore(),
		Logger:    logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	sw, err := swarm.New(graph, agents, func(o *swarm.Options) {
		o.Strict = opts.Strict
		o.Logger = opts.Logger
	})
	if err != nil {
		return nil, fmt.Errorf("binding agents: %w", err)
	}

	registry := tool.NewRegistry(opts.Tools, func(o *tool.RegistryOptions) {
		o.Logger = opts.Logger
	})

	run := runner.New(sw, func(o *runner.Options) {
		o.WorkerNum = opts.WorkerNum
		o.JoinPolicy = opts.JoinPolicy
		o.ContinueOnError = opts.ContinueOnError
		o.Tools = registry
		o.Policies = opts.Policies
		o.Store = opts.Store
		o.Logger = opts.Logger
	})

	eng, err := engine.New(opts.RunConfig, run, func(o *engine.Options) {
		o.Logger = opts.Logger
	})
	if err != nil {
		return nil, fmt.Errorf("building engine: %w", err)
	}

	return &AgentSwarm{
		swarm:  sw,
		runner: run,
		engine: eng,
		cfg:    opts.RunConfig,
		store:  opts.Store,
		logger: opts.Logger,
	}, nil
}

// Swarm returns the bound swarm.
func (s *AgentSwarm) Swarm() *swarm.Swarm { return s.swarm }

// Store returns the task response store.
func (s *AgentSwarm) Store() *runner.Store { return s.store }

// Execute runs a single task synchronously and returns its terminal response.
func (s *AgentSwarm) Execute(ctx context.Context, input string, taskOpts ...core.TaskOption) (*core.TaskResponse, error) {
	task := core.NewTask(input, taskOpts...)

	futures, err := s.engine.Submit(ctx, []*core.Task{task}, s.cfg)
	if err != nil {
		return nil, err
	}
	return futures[task.ID].Wait(ctx)
}

// Submit schedules the tasks on the configured engine and returns a future
// per task id. Use engine.Collect (or Future.Wait) to await the responses.
func (s *AgentSwarm) Submit(ctx context.Context, tasks []*core.Task) (map[string]*engine.Future, error) {
	return s.engine.Submit(ctx, tasks, s.cfg)
}

// Collect awaits every submitted future and returns the resolved responses
// keyed by task id.
func (s *AgentSwarm) Collect(ctx context.Context, futures map[string]*engine.Future) (map[string]*core.TaskResponse, error) {
	return engine.Collect(ctx, futures)
}
