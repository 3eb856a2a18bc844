package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/logging"
	"github.com/hupe1980/agentswarm/model"
)

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// Timeout bounds each individual tool call. Zero disables the bound.
	Timeout time.Duration

	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Registry holds the tools available to a swarm and executes batches of
// function tool calls concurrently. It implements the action group's tool
// invoker contract: one result per call, in batch order, with per-call errors
// captured in the result rather than failing the batch.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	timeout time.Duration
	logger  logging.Logger
}

// NewRegistry creates a registry holding the given tools.
func NewRegistry(tools []Tool, optFns ...func(o *RegistryOptions)) *Registry {
	opts := RegistryOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	r := &Registry{
		tools:   make(map[string]Tool, len(tools)),
		timeout: opts.Timeout,
		logger:  opts.Logger,
	}
	for _, t := range tools {
		r.tools[t.Name()] = t
	}
	return r
}

// Register adds a tool, replacing any previous tool of the same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Definitions exposes the registered tools as model tool definitions for
// function calling.
func (r *Registry) Definitions() []model.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]model.ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, model.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}

// Invoke executes the calls concurrently and returns one result per call in
// batch order. Unknown tools, bad arguments and execution failures are
// reported in the matching result's Error field.
func (r *Registry) Invoke(ctx context.Context, calls []core.FunctionToolCall) []core.ToolResult {
	results := make([]core.ToolResult, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = r.invokeOne(gctx, call)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (r *Registry) invokeOne(ctx context.Context, call core.FunctionToolCall) core.ToolResult {
	res := core.ToolResult{CallID: call.ID, Name: call.Name}

	t, ok := r.Get(call.Name)
	if !ok {
		res.Error = fmt.Sprintf("unknown tool %q", call.Name)
		return res
	}

	args := map[string]any{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			res.Error = fmt.Sprintf("invalid arguments for tool %q: %v", call.Name, err)
			return res
		}
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := t.Call(ctx, args)
	if err != nil {
		r.logger.Warn("tool %s failed after %s: %v", call.Name, time.Since(start), err)
		res.Error = err.Error()
		return res
	}

	r.logger.Debug("tool %s completed in %s", call.Name, time.Since(start))
	res.Result = out
	return res
}
