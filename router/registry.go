// Package router implements the typed pub/sub bus of the runtime: a
// HandlerRegistry resolving exactly one handler per message, and a
// MessageRouter delivering messages through per-node mailboxes drained by a
// bounded worker pool.
package router

import (
	"sync"

	"github.com/hupe1980/agentswarm/core"
)

// Policy decides how a decision step's next hops fan out for a message
// category. Given the legal candidate targets, it returns the targets that
// actually receive the message.
type Policy func(msg core.Message, candidates []string) []string

// SingleNext delivers to the first candidate only (sequential, ReAct-style
// semantics).
func SingleNext(_ core.Message, candidates []string) []string {
	if len(candidates) == 0 {
		return nil
	}
	return candidates[:1]
}

// Broadcast delivers to every candidate (fan-out, plan/execute-style
// semantics). This is the default policy.
func Broadcast(_ core.Message, candidates []string) []string {
	return candidates
}

// Registry holds handlers and routing policies keyed by message category.
// It is an explicit value passed through the runtime by reference; there is
// no global registry.
//
// Dispatch is single-match: Resolve returns the first handler registered
// under the message's category whose IsValid accepts the message.
type Registry struct {
	mu       sync.RWMutex
	handlers map[core.Category][]core.Handler
	policies map[core.Category]Policy
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: map[core.Category][]core.Handler{},
		policies: map[core.Category]Policy{},
	}
}

// Register installs a handler for a category. Handlers are consulted in
// registration order.
func (r *Registry) Register(category core.Category, h core.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[category] = append(r.handlers[category], h)
}

// RegisterPolicy installs a routing policy for a category, replacing any
// previous one.
func (r *Registry) RegisterPolicy(category core.Category, p Policy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[category] = p
}

// Resolve returns the single handler accepting the message, or false when
// no registered handler validates it.
func (r *Registry) Resolve(msg core.Message) (core.Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, h := range r.handlers[msg.Category] {
		if h.IsValid(msg) {
			return h, true
		}
	}
	return nil, false
}

// Targets applies the category's routing policy to the candidate next hops.
// Without a registered policy every candidate is targeted.
func (r *Registry) Targets(msg core.Message, candidates []string) []string {
	r.mu.RLock()
	p, ok := r.policies[msg.Category]
	r.mu.RUnlock()
	if !ok {
		return candidates
	}
	return p(msg, candidates)
}
