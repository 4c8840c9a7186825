package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"tournament-quiz-service/internal/domain"
)

// TournamentRepository loads tournament records.
type TournamentRepository interface {
	// GetTournament returns domain.ErrTournamentNotFound for unknown ids.
	GetTournament(ctx context.Context, id string) (domain.Tournament, error)
}

// Wallet is the external account collaborator. The engine only ever debits
// the entry fee at start and credits prizes at finalization; it never
// touches balances directly.
type Wallet interface {
	// Debit returns domain.ErrInsufficientFunds when the balance cannot
	// cover the amount.
	Debit(ctx context.Context, userID string, amount float64) error
	Credit(ctx context.Context, userID string, amount float64) error
}

// SessionStore persists session snapshots keyed by session id.
type SessionStore interface {
	SaveSession(ctx context.Context, snap domain.QuizSession) error
	// GetSession returns domain.ErrSessionNotFound for unknown ids.
	GetSession(ctx context.Context, id string) (domain.QuizSession, error)
}

// Config carries the server-authoritative timing constants.
type Config struct {
	PerQuestionLimit time.Duration
	TotalLimit       time.Duration
}

func DefaultConfig() Config {
	return Config{
		PerQuestionLimit: 5 * time.Second,
		TotalLimit:       5 * time.Minute,
	}
}

// StartResult is the response to a successful session start. The first
// question carries text and options only.
type StartResult struct {
	SessionID           string                `json:"sessionId"`
	FirstQuestion       domain.QuestionPrompt `json:"firstQuestion"`
	QuestionCount       int                   `json:"questionCount"`
	PerQuestionLimitSec int                   `json:"perQuestionLimitSec"`
	TotalLimitSec       int                   `json:"totalLimitSec"`
}

// SubmitResult echoes the outcome of the just-answered question and, when
// the session continues, the next prompt.
type SubmitResult struct {
	Correct      bool                   `json:"correct"`
	CorrectIndex int                    `json:"correctAnswer"`
	Explanation  string                 `json:"explanation,omitempty"`
	Score        int                    `json:"currentScore"`
	Completed    bool                   `json:"completed"`
	NextQuestion *domain.QuestionPrompt `json:"nextQuestion,omitempty"`
}

// SessionState is the resync payload for reconnecting clients.
type SessionState struct {
	SessionID         string                 `json:"sessionId"`
	Status            domain.SessionStatus   `json:"status"`
	CurrentQuestion   *domain.QuestionPrompt `json:"currentQuestion,omitempty"`
	Score             int                    `json:"score"`
	AnsweredCount     int                    `json:"answeredCount"`
	TotalQuestions    int                    `json:"totalQuestions"`
	TotalRemainingSec int                    `json:"totalRemainingSec"`
}

// Engine owns session progression and timing. Every externally visible
// operation is request/response; the per-question and total countdowns run
// on a per-session goroutine and feed the same advance path as client
// submits.
type Engine struct {
	cfg         Config
	tournaments TournamentRepository
	bank        *QuestionBank
	wallet      Wallet
	store       SessionStore
	compiler    *ResultsCompiler
	tracker     *ViolationTracker
	notifier    Notifier
	now         func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	sessions map[string]*session
	byEntry  map[string]string // userID|tournamentID -> session id
	entrants map[string]int    // tournamentID -> sessions started
}

func NewEngine(
	cfg Config,
	tournaments TournamentRepository,
	bank *QuestionBank,
	wallet Wallet,
	store SessionStore,
	compiler *ResultsCompiler,
	tracker *ViolationTracker,
	notifier Notifier,
) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		cfg:         cfg,
		tournaments: tournaments,
		bank:        bank,
		wallet:      wallet,
		store:       store,
		compiler:    compiler,
		tracker:     tracker,
		notifier:    notifier,
		now:         time.Now,
		ctx:         ctx,
		cancel:      cancel,
		sessions:    make(map[string]*session),
		byEntry:     make(map[string]string),
		entrants:    make(map[string]int),
	}
}

// Start creates and activates a session for the user/tournament pair. The
// entry fee debit and the session creation succeed or fail together: a
// failed debit leaves no session, and a failed question draw refunds the
// debit.
func (e *Engine) Start(ctx context.Context, tournamentID, userID string) (StartResult, error) {
	t, err := e.tournaments.GetTournament(ctx, tournamentID)
	if err != nil {
		return StartResult{}, err
	}
	if t.Status != domain.TournamentActive {
		return StartResult{}, domain.ErrTournamentNotOpen
	}

	key := userID + "|" + tournamentID
	sessionID := uuid.NewString()

	e.mu.Lock()
	if _, ok := e.byEntry[key]; ok {
		e.mu.Unlock()
		return StartResult{}, domain.ErrAlreadyActive
	}
	if t.MaxParticipants > 0 && e.entrants[tournamentID] >= t.MaxParticipants {
		e.mu.Unlock()
		return StartResult{}, domain.ErrTournamentFull
	}
	e.byEntry[key] = sessionID
	e.entrants[tournamentID]++
	e.mu.Unlock()

	release := func() {
		e.mu.Lock()
		delete(e.byEntry, key)
		e.entrants[tournamentID]--
		e.mu.Unlock()
	}

	if err := e.wallet.Debit(ctx, userID, t.EntryFee); err != nil {
		release()
		return StartResult{}, err
	}

	questions, err := e.bank.Draw(ctx, t.Category, t.QuestionCount, sessionID)
	if err != nil {
		if cerr := e.wallet.Credit(ctx, userID, t.EntryFee); cerr != nil {
			log.Printf("[engine] refunding entry fee for user %s: %v", userID, cerr)
		}
		release()
		return StartResult{}, err
	}

	s := newSession(sessionID, userID, tournamentID, questions, e.cfg.PerQuestionLimit, e.now)

	e.mu.Lock()
	e.sessions[sessionID] = s
	e.mu.Unlock()

	if err := e.saveWithRetry(ctx, s.view()); err != nil {
		log.Printf("[engine] persisting new session %s: %v", sessionID, err)
	}

	timerCtx, cancelTimers := context.WithCancel(e.ctx)
	s.cancelTimers = cancelTimers
	go e.runTimers(timerCtx, s)

	first, _ := s.prompt(0)
	e.publish(Event{
		Kind:      EventQuizStarted,
		UserID:    userID,
		SessionID: sessionID,
		Payload: map[string]any{
			"tournamentId":  tournamentID,
			"questionCount": len(questions),
		},
	})

	return StartResult{
		SessionID:           sessionID,
		FirstQuestion:       first,
		QuestionCount:       len(questions),
		PerQuestionLimitSec: int(e.cfg.PerQuestionLimit / time.Second),
		TotalLimitSec:       int(e.cfg.TotalLimit / time.Second),
	}, nil
}

// SubmitAnswer scores one answer for the current question. clientSeconds is
// accepted for the wire contract but timing is always derived server-side.
func (e *Engine) SubmitAnswer(ctx context.Context, sessionID string, questionIndex int, answer *int, clientSeconds float64) (SubmitResult, error) {
	_ = clientSeconds

	s, err := e.session(sessionID)
	if err != nil {
		return SubmitResult{}, err
	}

	out, err := s.advance(questionIndex, answer, false)
	if err != nil {
		return SubmitResult{}, err
	}

	result := SubmitResult{
		Correct:      out.Record.Correct,
		CorrectIndex: out.CorrectIndex,
		Explanation:  out.Explanation,
		Score:        out.Score,
		Completed:    out.Completed,
		NextQuestion: out.Next,
	}

	if out.Completed {
		if _, err := e.finalize(ctx, s); err != nil {
			return result, err
		}
		return result, nil
	}

	// The just-computed record must not be lost to a transient store
	// failure; the write retries before the request fails.
	if err := e.saveWithRetry(ctx, s.view()); err != nil {
		return SubmitResult{}, fmt.Errorf("persist answer: %w", err)
	}

	e.publish(Event{
		Kind:      EventQuestionAdvanced,
		UserID:    s.userID(),
		SessionID: sessionID,
		Payload: map[string]any{
			"questionIndex": out.Record.QuestionIndex,
			"correct":       out.Record.Correct,
			"score":         out.Score,
			"nextQuestion":  out.Next,
		},
	})
	return result, nil
}

// Complete closes the session, recording null answers for anything left.
// Calling it on an already-closed session is a no-op returning the stored
// result.
func (e *Engine) Complete(ctx context.Context, sessionID string) (domain.QuizResult, error) {
	s, err := e.session(sessionID)
	if err != nil {
		return domain.QuizResult{}, err
	}

	if _, transitioned := s.close(domain.SessionCompleted); !transitioned {
		res, err := e.compiler.Result(ctx, sessionID)
		if err == domain.ErrResultNotFound {
			return domain.QuizResult{}, domain.ErrResultNotReady
		}
		return res, err
	}
	return e.finalize(ctx, s)
}

// Abandon terminates the session with no payout. Terminal like Complete,
// but silent: no completion event, no rank, no prize.
func (e *Engine) Abandon(ctx context.Context, sessionID string) error {
	s, err := e.session(sessionID)
	if err != nil {
		return err
	}
	if _, transitioned := s.close(domain.SessionAbandoned); !transitioned {
		return domain.ErrSessionClosed
	}
	_, err = e.finalize(ctx, s)
	return err
}

// ReportViolation records an anti-cheat signal for an active session.
func (e *Engine) ReportViolation(ctx context.Context, sessionID string, vt domain.ViolationType, at time.Time) error {
	if !domain.KnownViolationType(vt) {
		return domain.ErrUnknownViolationType
	}
	s, err := e.session(sessionID)
	if err != nil {
		return err
	}
	if s.status() != domain.SessionActive {
		return domain.ErrSessionNotActive
	}
	if at.IsZero() {
		at = e.now()
	}
	return e.tracker.Report(ctx, sessionID, domain.ViolationEvent{Type: vt, At: at})
}

// Results returns the stored result once the session has closed.
func (e *Engine) Results(ctx context.Context, sessionID string) (domain.QuizResult, error) {
	e.mu.RLock()
	s, known := e.sessions[sessionID]
	e.mu.RUnlock()

	if known && !s.status().Terminal() {
		return domain.QuizResult{}, domain.ErrResultNotReady
	}

	res, err := e.compiler.Result(ctx, sessionID)
	if err == domain.ErrResultNotFound {
		if known {
			return domain.QuizResult{}, domain.ErrResultNotReady
		}
		return domain.QuizResult{}, domain.ErrSessionNotFound
	}
	return res, err
}

// State is the resync payload: current question (without the answer),
// progress, and remaining total time.
func (e *Engine) State(ctx context.Context, sessionID string) (SessionState, error) {
	s, err := e.session(sessionID)
	if err != nil {
		return SessionState{}, err
	}
	snap := s.view()

	state := SessionState{
		SessionID:      snap.ID,
		Status:         snap.Status,
		Score:          snap.Score,
		AnsweredCount:  len(snap.Answers),
		TotalQuestions: len(snap.QuestionIDs),
	}
	if snap.Status == domain.SessionActive {
		remaining := e.cfg.TotalLimit - e.now().Sub(snap.StartedAt)
		if remaining < 0 {
			remaining = 0
		}
		state.TotalRemainingSec = int(remaining / time.Second)
		if prompt, ok := s.prompt(snap.CurrentIndex); ok {
			state.CurrentQuestion = &prompt
		}
	}
	return state, nil
}

// Standings returns the live leaderboard for a tournament.
func (e *Engine) Standings(ctx context.Context, tournamentID string) (domain.Standings, error) {
	return e.compiler.Standings(ctx, tournamentID)
}

// Shutdown stops all session timers.
func (e *Engine) Shutdown() {
	e.cancel()
}

// runTimers drives both countdowns for one session. Expiry goes through
// the same advance path as a client submit, so "answered or expired" is a
// single code path and a late submit after auto-timeout is rejected as
// stale by the index compare.
func (e *Engine) runTimers(ctx context.Context, s *session) {
	total := time.NewTimer(e.cfg.TotalLimit)
	defer total.Stop()
	question := time.NewTimer(e.cfg.PerQuestionLimit)
	defer question.Stop()

	for {
		if s.status().Terminal() {
			return
		}
		idx := s.currentIndex()

		if !question.Stop() {
			select {
			case <-question.C:
			default:
			}
		}
		question.Reset(e.cfg.PerQuestionLimit)

		select {
		case <-ctx.Done():
			return
		case <-s.advanced:
			// client moved the session on; re-arm for the next question
		case <-question.C:
			e.expireQuestion(s, idx)
		case <-total.C:
			e.expireSession(s)
			return
		}
	}
}

// expireQuestion auto-submits a null answer for the question at idx. If a
// client submit won the race the compare-and-advance rejects this as stale
// and nothing happens.
func (e *Engine) expireQuestion(s *session, idx int) {
	out, err := s.advance(idx, nil, true)
	if err != nil {
		return
	}

	ctx := context.Background()
	snap := s.view()
	if out.Completed {
		if _, err := e.finalize(ctx, s); err != nil {
			log.Printf("[engine] finalizing session %s after timeout: %v", snap.ID, err)
		}
		return
	}
	if err := e.saveWithRetry(ctx, snap); err != nil {
		log.Printf("[engine] persisting timeout advance for session %s: %v", snap.ID, err)
	}
	e.publish(Event{
		Kind:      EventQuestionAdvanced,
		UserID:    snap.UserID,
		SessionID: snap.ID,
		Payload: map[string]any{
			"questionIndex": out.Record.QuestionIndex,
			"timedOut":      true,
			"score":         out.Score,
			"nextQuestion":  out.Next,
		},
	})
}

// expireSession completes the session when the total countdown hits zero.
func (e *Engine) expireSession(s *session) {
	if _, transitioned := s.close(domain.SessionCompleted); !transitioned {
		return
	}
	if _, err := e.finalize(context.Background(), s); err != nil {
		log.Printf("[engine] finalizing expired session: %v", err)
	}
}

// finalize persists the terminal snapshot, compiles the result, and
// announces completion. Callers guarantee it runs at most once per session
// via the close/advance transition flags.
func (e *Engine) finalize(ctx context.Context, s *session) (domain.QuizResult, error) {
	if s.cancelTimers != nil {
		s.cancelTimers()
	}
	snap := s.view()

	if err := e.saveWithRetry(ctx, snap); err != nil {
		log.Printf("[engine] persisting terminal session %s: %v", snap.ID, err)
	}

	t, err := e.tournaments.GetTournament(ctx, snap.TournamentID)
	if err != nil {
		return domain.QuizResult{}, err
	}
	res, err := e.compiler.Finalize(ctx, snap, t)
	if err != nil {
		return domain.QuizResult{}, err
	}

	if snap.Status == domain.SessionCompleted {
		e.publish(Event{
			Kind:      EventQuizCompleted,
			UserID:    snap.UserID,
			SessionID: snap.ID,
			Payload:   res,
		})
	}
	return res, nil
}

func (e *Engine) session(id string) (*session, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

func (e *Engine) saveWithRetry(ctx context.Context, snap domain.QuizSession) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxElapsedTime = 2 * time.Second
	return backoff.Retry(func() error {
		return e.store.SaveSession(ctx, snap)
	}, backoff.WithContext(bo, ctx))
}

// publish dispatches an event; delivery failures never block or fail the
// operation that produced them.
func (e *Engine) publish(ev Event) {
	if e.notifier == nil {
		return
	}
	e.notifier.Publish(ev)
}
