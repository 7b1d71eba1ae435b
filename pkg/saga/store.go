package saga

import (
	"context"
	"fmt"
	"sync"
)

// MemoryRunStore is an in-memory RunStore implementation.
type MemoryRunStore struct {
	mu   sync.RWMutex
	runs map[string]*RunState
}

// NewMemoryRunStore creates an in-memory run store.
func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{runs: make(map[string]*RunState)}
}

// Save saves a run snapshot.
func (s *MemoryRunStore) Save(_ context.Context, state *RunState) error {
	if state == nil {
		return fmt.Errorf("run state cannot be nil")
	}
	s.mu.Lock()
	s.runs[state.RunID] = state.Clone()
	s.mu.Unlock()
	return nil
}

// Get gets one run by id.
func (s *MemoryRunStore) Get(_ context.Context, runID string) (*RunState, error) {
	s.mu.RLock()
	state, ok := s.runs[runID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrRunNotFound
	}
	return state.Clone(), nil
}

// List lists runs with optional phase filter and pagination.
func (s *MemoryRunStore) List(_ context.Context, filter RunListFilter) ([]*RunState, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*RunState, 0, len(s.runs))
	for _, state := range s.runs {
		if filter.Phase != "" && state.Phase.String() != filter.Phase {
			continue
		}
		all = append(all, state.Clone())
	}
	total := len(all)

	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Limit < 0 {
		filter.Limit = 0
	}
	if filter.Offset > total {
		filter.Offset = total
	}
	end := total
	if filter.Limit > 0 && filter.Offset+filter.Limit < end {
		end = filter.Offset + filter.Limit
	}

	return all[filter.Offset:end], total, nil
}

// Delete removes one run.
func (s *MemoryRunStore) Delete(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[runID]; !ok {
		return ErrRunNotFound
	}
	delete(s.runs, runID)
	return nil
}
