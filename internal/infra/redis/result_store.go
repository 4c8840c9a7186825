package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"tournament-quiz-service/internal/domain"
)

// ResultStore persists result records as JSON plus a per-tournament index
// set. Results carry no TTL; they are the permanent record.
type ResultStore struct {
	client *redis.Client
}

func NewResultStore(client *redis.Client) *ResultStore {
	return &ResultStore{client: client}
}

func (s *ResultStore) SaveResult(ctx context.Context, res domain.QuizResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(res.SessionID), data, 0)
	pipe.SAdd(ctx, s.indexKey(res.TournamentID), res.SessionID)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *ResultStore) GetResult(ctx context.Context, sessionID string) (domain.QuizResult, error) {
	data, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if err == redis.Nil {
		return domain.QuizResult{}, domain.ErrResultNotFound
	}
	if err != nil {
		return domain.QuizResult{}, err
	}
	var res domain.QuizResult
	if err := json.Unmarshal(data, &res); err != nil {
		return domain.QuizResult{}, fmt.Errorf("unmarshal result: %w", err)
	}
	return res, nil
}

func (s *ResultStore) ListByTournament(ctx context.Context, tournamentID string) ([]domain.QuizResult, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey(tournamentID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.QuizResult, 0, len(ids))
	for _, id := range ids {
		res, err := s.GetResult(ctx, id)
		if err == domain.ErrResultNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

func (s *ResultStore) key(sessionID string) string {
	return "quiz:result:" + sessionID
}

func (s *ResultStore) indexKey(tournamentID string) string {
	return "quiz:tournament:" + tournamentID + ":results"
}
