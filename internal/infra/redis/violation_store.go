package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"tournament-quiz-service/internal/domain"
)

// ViolationStore keeps one redis list per session; RPUSH preserves report
// order and never collapses duplicates.
type ViolationStore struct {
	client *redis.Client
}

func NewViolationStore(client *redis.Client) *ViolationStore {
	return &ViolationStore{client: client}
}

func (s *ViolationStore) AppendViolation(ctx context.Context, sessionID string, ev domain.ViolationEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal violation: %w", err)
	}
	return s.client.RPush(ctx, s.key(sessionID), data).Err()
}

func (s *ViolationStore) ListViolations(ctx context.Context, sessionID string) ([]domain.ViolationEvent, error) {
	raw, err := s.client.LRange(ctx, s.key(sessionID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.ViolationEvent, 0, len(raw))
	for _, item := range raw {
		var ev domain.ViolationEvent
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			return nil, fmt.Errorf("unmarshal violation: %w", err)
		}
		out = append(out, ev)
	}
	return out, nil
}

func (s *ViolationStore) CountViolations(ctx context.Context, sessionID string) (int, error) {
	n, err := s.client.LLen(ctx, s.key(sessionID)).Result()
	return int(n), err
}

func (s *ViolationStore) key(sessionID string) string {
	return "quiz:violations:" + sessionID
}
