package cache

import (
	"context"
	"sync"

	"github.com/pixelhunt/pixelhunt/diff"
)

// MemoryStore provides an in-memory implementation of the Store interface.
// It is thread-safe and sufficient for single-instance deployments; for
// distributed setups use RedisStore.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]*diff.Info
}

// NewMemoryStore creates a new in-memory difference cache.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[string]*diff.Info),
	}
}

// Store caches the detection result under its job ID.
func (s *MemoryStore) Store(_ context.Context, jobID string, info *diff.Info) error {
	if jobID == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[jobID]; exists {
		return ErrDuplicateJob
	}
	s.jobs[jobID] = info
	return nil
}

// Take atomically retrieves and removes the detection result.
func (s *MemoryStore) Take(_ context.Context, jobID string) (*diff.Info, error) {
	if jobID == "" {
		return nil, ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	info, exists := s.jobs[jobID]
	if !exists {
		return nil, ErrNotFound
	}
	delete(s.jobs, jobID)
	return info, nil
}

// Len returns the number of unclaimed entries (primarily for tests and
// leak diagnostics).
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}
