package memory

import (
	"context"
	"sync"

	"tournament-quiz-service/internal/domain"
)

// ViolationStore keeps append-only violation lists per session.
type ViolationStore struct {
	mu     sync.RWMutex
	events map[string][]domain.ViolationEvent
}

func NewViolationStore() *ViolationStore {
	return &ViolationStore{events: make(map[string][]domain.ViolationEvent)}
}

func (s *ViolationStore) AppendViolation(_ context.Context, sessionID string, ev domain.ViolationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[sessionID] = append(s.events[sessionID], ev)
	return nil
}

func (s *ViolationStore) ListViolations(_ context.Context, sessionID string) ([]domain.ViolationEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.ViolationEvent(nil), s.events[sessionID]...), nil
}

func (s *ViolationStore) CountViolations(_ context.Context, sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events[sessionID]), nil
}
