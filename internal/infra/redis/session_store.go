package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tournament-quiz-service/internal/domain"
)

// SessionStore persists session snapshots as JSON keyed by session id.
// The engine remains the single writer; redis is the durable copy a
// replacement process would recover from.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) SaveSession(ctx context.Context, snap domain.QuizSession) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.client.Set(ctx, s.key(snap.ID), data, s.ttl).Err()
}

func (s *SessionStore) GetSession(ctx context.Context, id string) (domain.QuizSession, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err == redis.Nil {
		return domain.QuizSession{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.QuizSession{}, err
	}
	var snap domain.QuizSession
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.QuizSession{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return snap, nil
}

func (s *SessionStore) key(id string) string {
	return "quiz:session:" + id
}
