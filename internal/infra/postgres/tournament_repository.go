package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"tournament-quiz-service/internal/domain"
)

// TournamentRepository loads tournament JSONB from Postgres.
type TournamentRepository struct {
	pool *pgxpool.Pool
}

func NewTournamentRepository(pool *pgxpool.Pool) *TournamentRepository {
	return &TournamentRepository{pool: pool}
}

func (r *TournamentRepository) GetTournament(ctx context.Context, id string) (domain.Tournament, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `SELECT data FROM tournaments WHERE id=$1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Tournament{}, domain.ErrTournamentNotFound
	}
	if err != nil {
		return domain.Tournament{}, fmt.Errorf("load tournament: %w", err)
	}
	var t domain.Tournament
	if err := json.Unmarshal(raw, &t); err != nil {
		return domain.Tournament{}, fmt.Errorf("unmarshal tournament: %w", err)
	}
	return t, nil
}
