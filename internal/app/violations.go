package app

import (
	"context"

	"tournament-quiz-service/internal/domain"
)

// ViolationStore persists anti-cheat events per session.
type ViolationStore interface {
	AppendViolation(ctx context.Context, sessionID string, ev domain.ViolationEvent) error
	ListViolations(ctx context.Context, sessionID string) ([]domain.ViolationEvent, error)
	CountViolations(ctx context.Context, sessionID string) (int, error)
}

// ViolationTracker records integrity events for later administrative
// review. Repeated identical events are all kept; no deduplication, since
// frequency is part of the signal. Nothing here ever terminates a session.
type ViolationTracker struct {
	store ViolationStore
}

func NewViolationTracker(store ViolationStore) *ViolationTracker {
	return &ViolationTracker{store: store}
}

// Report appends one event unconditionally. The caller gates on session
// status; the tracker itself accepts everything it is handed.
func (t *ViolationTracker) Report(ctx context.Context, sessionID string, ev domain.ViolationEvent) error {
	return t.store.AppendViolation(ctx, sessionID, ev)
}

func (t *ViolationTracker) List(ctx context.Context, sessionID string) ([]domain.ViolationEvent, error) {
	return t.store.ListViolations(ctx, sessionID)
}

func (t *ViolationTracker) Count(ctx context.Context, sessionID string) (int, error) {
	return t.store.CountViolations(ctx, sessionID)
}
