package memory

import (
	"context"
	"sync"

	"tournament-quiz-service/internal/domain"
)

// ResultStore is an in-memory implementation of app.ResultStore.
type ResultStore struct {
	mu           sync.RWMutex
	results      map[string]domain.QuizResult
	byTournament map[string][]string
}

func NewResultStore() *ResultStore {
	return &ResultStore{
		results:      make(map[string]domain.QuizResult),
		byTournament: make(map[string][]string),
	}
}

func (s *ResultStore) SaveResult(_ context.Context, res domain.QuizResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.results[res.SessionID]; !exists {
		s.byTournament[res.TournamentID] = append(s.byTournament[res.TournamentID], res.SessionID)
	}
	s.results[res.SessionID] = res
	return nil
}

func (s *ResultStore) GetResult(_ context.Context, sessionID string) (domain.QuizResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.results[sessionID]
	if !ok {
		return domain.QuizResult{}, domain.ErrResultNotFound
	}
	return res, nil
}

func (s *ResultStore) ListByTournament(_ context.Context, tournamentID string) ([]domain.QuizResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byTournament[tournamentID]
	out := make([]domain.QuizResult, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.results[id])
	}
	return out, nil
}
