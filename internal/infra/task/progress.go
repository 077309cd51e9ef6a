package task

import (
	"sync"

	"github.com/google/uuid"
)

// ProgressStore holds live progress per task, separate from the task records so that
// frequent updates never touch the history. Writes of an unchanged value are dropped.
type ProgressStore struct {
	mu     sync.RWMutex
	values map[uuid.UUID]int
}

// NewProgressStore creates an empty store.
func NewProgressStore() *ProgressStore {
	return &ProgressStore{values: make(map[uuid.UUID]int)}
}

// Set stores progress for id and reports whether the value changed.
func (s *ProgressStore) Set(id uuid.UUID, progress int) bool {
	progress = min(max(progress, 0), 100)

	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.values[id]; ok && cur == progress {
		return false
	}
	s.values[id] = progress
	return true
}

// Get returns the progress for id.
func (s *ProgressStore) Get(id uuid.UUID) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[id]
	return v, ok
}

// Delete drops the entry for id.
func (s *ProgressStore) Delete(id uuid.UUID) {
	s.mu.Lock()
	delete(s.values, id)
	s.mu.Unlock()
}

// Len returns the number of tracked tasks.
func (s *ProgressStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}
