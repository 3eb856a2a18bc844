package runner

import (
	"fmt"
	"sync"

	"github.com/hupe1980/agentswarm/core"
)

// Store is a volatile task response store keeping finished trajectories in a
// process local map. It is safe for concurrent access and best suited for
// tests or ephemeral demo setups. Returned responses are shallow copies with
// a cloned trajectory slice to prevent external mutation of internal state.
type Store struct {
	mu        sync.RWMutex
	responses map[string]*core.TaskResponse
	order     []string
}

// NewStore constructs an empty in-memory task response store.
func NewStore() *Store {
	return &Store{responses: make(map[string]*core.TaskResponse)}
}

// Save stores the response under its task id, overwriting any previous one.
func (s *Store) Save(resp *core.TaskResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.responses[resp.TaskID]; !exists {
		s.order = append(s.order, resp.TaskID)
	}
	s.responses[resp.TaskID] = resp
}

// Get returns the stored response for a task id.
func (s *Store) Get(taskID string) (*core.TaskResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resp, ok := s.responses[taskID]
	if !ok {
		return nil, fmt.Errorf("no response for task %s", taskID)
	}
	return cloneResponse(resp), nil
}

// List returns all stored responses in insertion order.
func (s *Store) List() []*core.TaskResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*core.TaskResponse, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, cloneResponse(s.responses[id]))
	}
	return out
}

// Len returns the number of stored responses.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.responses)
}

func cloneResponse(resp *core.TaskResponse) *core.TaskResponse {
	clone := *resp
	clone.Trajectory = make([]core.TrajectoryRecord, len(resp.Trajectory))
	copy(clone.Trajectory, resp.Trajectory)
	return &clone
}
