package memory

import (
	"context"

	"tournament-quiz-service/internal/domain"
)

// StaticQuestionLoader serves a fixed question catalog grouped by category
// (useful for tests/demos).
type StaticQuestionLoader struct {
	byCategory map[string][]domain.Question
}

func NewStaticQuestionLoader(questions []domain.Question) *StaticQuestionLoader {
	byCategory := make(map[string][]domain.Question)
	for _, q := range questions {
		byCategory[q.Category] = append(byCategory[q.Category], q)
	}
	return &StaticQuestionLoader{byCategory: byCategory}
}

func (l *StaticQuestionLoader) LoadCategory(_ context.Context, category string) ([]domain.Question, error) {
	return l.byCategory[category], nil
}

// StaticTournamentRepository serves a fixed tournament set.
type StaticTournamentRepository struct {
	tournaments map[string]domain.Tournament
}

func NewStaticTournamentRepository(tournaments map[string]domain.Tournament) *StaticTournamentRepository {
	return &StaticTournamentRepository{tournaments: tournaments}
}

func (r *StaticTournamentRepository) GetTournament(_ context.Context, id string) (domain.Tournament, error) {
	t, ok := r.tournaments[id]
	if !ok {
		return domain.Tournament{}, domain.ErrTournamentNotFound
	}
	return t, nil
}
