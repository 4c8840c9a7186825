package app

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"

	"tournament-quiz-service/internal/domain"
)

// ResultStore persists finalized quiz results keyed by session id.
type ResultStore interface {
	SaveResult(ctx context.Context, res domain.QuizResult) error
	// GetResult returns domain.ErrResultNotFound when no record exists.
	GetResult(ctx context.Context, sessionID string) (domain.QuizResult, error)
	ListByTournament(ctx context.Context, tournamentID string) ([]domain.QuizResult, error)
}

// ResultsCompiler synthesizes the immutable QuizResult at session closure:
// score and timing aggregates, the violation list, and rank/prize against
// the results already finalized for the tournament. A result is written
// exactly once; it is never rewritten when later participants finish.
type ResultsCompiler struct {
	store    ResultStore
	tracker  *ViolationTracker
	wallet   Wallet
	notifier Notifier
	now      func() time.Time
}

func NewResultsCompiler(store ResultStore, tracker *ViolationTracker, wallet Wallet, notifier Notifier) *ResultsCompiler {
	return &ResultsCompiler{store: store, tracker: tracker, wallet: wallet, notifier: notifier, now: time.Now}
}

// Finalize builds and persists the result for a closed session snapshot.
// Abandoned sessions get a record but no rank and no payout.
func (c *ResultsCompiler) Finalize(ctx context.Context, snap domain.QuizSession, t domain.Tournament) (domain.QuizResult, error) {
	completedAt := c.now()
	if snap.CompletedAt != nil {
		completedAt = *snap.CompletedAt
	}

	violations, err := c.tracker.List(ctx, snap.ID)
	if err != nil {
		log.Printf("[results] listing violations for session %s: %v", snap.ID, err)
	}
	if violations == nil {
		violations = []domain.ViolationEvent{}
	}

	total := len(snap.QuestionIDs)
	res := domain.QuizResult{
		SessionID:      snap.ID,
		UserID:         snap.UserID,
		TournamentID:   snap.TournamentID,
		Status:         snap.Status,
		Score:          snap.Score,
		TotalQuestions: total,
		TotalTimeSec:   completedAt.Sub(snap.StartedAt).Seconds(),
		Answers:        snap.Answers,
		Violations:     violations,
		CompletedAt:    completedAt,
	}
	if total > 0 {
		res.Percentage = float64(snap.Score) / float64(total) * 100
	}

	if snap.Status == domain.SessionCompleted {
		rank, err := c.rankAtClosure(ctx, res)
		if err != nil {
			log.Printf("[results] ranking session %s: %v", snap.ID, err)
		} else {
			res.Rank = rank
			res.PrizeAmount = prizeFor(rank, t)
		}
	}

	if err := saveResultWithRetry(ctx, c.store, res); err != nil {
		return domain.QuizResult{}, err
	}

	if res.PrizeAmount > 0 {
		if err := c.wallet.Credit(ctx, res.UserID, res.PrizeAmount); err != nil {
			log.Printf("[results] crediting prize %.2f to user %s: %v", res.PrizeAmount, res.UserID, err)
		} else if c.notifier != nil {
			c.notifier.Publish(Event{
				Kind:      EventWalletUpdated,
				UserID:    res.UserID,
				SessionID: res.SessionID,
				Payload:   map[string]any{"credited": res.PrizeAmount},
			})
		}
	}
	return res, nil
}

// Result returns the stored record for a session; reads are idempotent.
func (c *ResultsCompiler) Result(ctx context.Context, sessionID string) (domain.QuizResult, error) {
	return c.store.GetResult(ctx, sessionID)
}

// Standings is the lazy leaderboard: ranks recomputed over all finalized
// results without touching the stored records.
func (c *ResultsCompiler) Standings(ctx context.Context, tournamentID string) (domain.Standings, error) {
	results, err := c.store.ListByTournament(ctx, tournamentID)
	if err != nil {
		return domain.Standings{}, err
	}
	completed := results[:0:0]
	for _, r := range results {
		if r.Status == domain.SessionCompleted {
			completed = append(completed, r)
		}
	}
	sortResults(completed)

	entries := make([]domain.StandingsEntry, len(completed))
	for i, r := range completed {
		entries[i] = domain.StandingsEntry{
			SessionID:    r.SessionID,
			UserID:       r.UserID,
			Score:        r.Score,
			TotalTimeSec: r.TotalTimeSec,
			Rank:         i + 1,
			PrizeAmount:  r.PrizeAmount,
		}
	}
	return domain.Standings{
		TournamentID: tournamentID,
		Entries:      entries,
		UpdatedAt:    c.now(),
	}, nil
}

// rankAtClosure places the candidate among the tournament's results that
// were already finalized when it closed.
func (c *ResultsCompiler) rankAtClosure(ctx context.Context, candidate domain.QuizResult) (int, error) {
	existing, err := c.store.ListByTournament(ctx, candidate.TournamentID)
	if err != nil {
		return 0, err
	}
	field := make([]domain.QuizResult, 0, len(existing)+1)
	for _, r := range existing {
		if r.Status == domain.SessionCompleted {
			field = append(field, r)
		}
	}
	field = append(field, candidate)
	sortResults(field)
	for i, r := range field {
		if r.SessionID == candidate.SessionID {
			return i + 1, nil
		}
	}
	return len(field), nil
}

// sortResults orders by score desc, then total time asc, then earlier
// completion. The tie-break is total, so ranking is deterministic.
func sortResults(rs []domain.QuizResult) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Score != rs[j].Score {
			return rs[i].Score > rs[j].Score
		}
		if rs[i].TotalTimeSec != rs[j].TotalTimeSec {
			return rs[i].TotalTimeSec < rs[j].TotalTimeSec
		}
		return rs[i].CompletedAt.Before(rs[j].CompletedAt)
	})
}

// prizeFor applies the tournament's fixed distribution table; it never
// recomputes the table.
func prizeFor(rank int, t domain.Tournament) float64 {
	if rank <= 0 || rank > len(t.PrizeSplit) {
		return 0
	}
	return t.PrizePool * t.PrizeSplit[rank-1]
}

func saveResultWithRetry(ctx context.Context, store ResultStore, res domain.QuizResult) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxElapsedTime = 2 * time.Second
	return backoff.Retry(func() error {
		return store.SaveResult(ctx, res)
	}, backoff.WithContext(bo, ctx))
}
