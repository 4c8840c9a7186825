package app

import (
	"context"
	"sync"
	"time"

	"tournament-quiz-service/internal/domain"
)

// session is the authoritative in-memory state of one attempt. All
// mutations go through advance or close, which hold the mutex for the whole
// compare-and-advance, so a client submit and an auto-timeout racing for
// the same question index resolve to exactly one winner.
type session struct {
	mu        sync.Mutex
	snap      domain.QuizSession
	questions []domain.Question
	perLimit  time.Duration
	now       func() time.Time

	// advanced wakes the timer loop after a successful client submit so the
	// per-question window re-arms for the next question.
	advanced     chan struct{}
	cancelTimers context.CancelFunc
}

// advanceOutcome is what one accepted advance (submit or timeout) produced.
type advanceOutcome struct {
	Record       domain.AnswerRecord
	CorrectIndex int
	Explanation  string
	Score        int
	Completed    bool
	Next         *domain.QuestionPrompt
}

func newSession(id, userID, tournamentID string, questions []domain.Question, perLimit time.Duration, now func() time.Time) *session {
	started := now()
	ids := make([]string, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
	}
	return &session{
		snap: domain.QuizSession{
			ID:                id,
			UserID:            userID,
			TournamentID:      tournamentID,
			QuestionIDs:       ids,
			Status:            domain.SessionActive,
			Answers:           make([]domain.AnswerRecord, 0, len(questions)),
			StartedAt:         started,
			QuestionStartedAt: started,
		},
		questions: questions,
		perLimit:  perLimit,
		now:       now,
		advanced:  make(chan struct{}, 1),
	}
}

// advance applies one answer (or timeout when timedOut is set) for the
// question at index. A mismatched index means the submission lost the race
// and is rejected with no side effects.
func (s *session) advance(index int, answer *int, timedOut bool) (advanceOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snap.Status != domain.SessionActive {
		return advanceOutcome{}, domain.ErrSessionClosed
	}
	if index != s.snap.CurrentIndex || index >= len(s.questions) {
		return advanceOutcome{}, domain.ErrStaleQuestionIndex
	}

	now := s.now()
	q := s.questions[index]

	// Client-reported timing is advisory only; time taken is derived from
	// the server-side question start and clamped to [1, limit].
	taken := clampSeconds(now.Sub(s.snap.QuestionStartedAt), s.perLimit)
	if timedOut {
		taken = int(s.perLimit / time.Second)
	}

	correct := answer != nil && *answer == q.CorrectIndex
	record := domain.AnswerRecord{
		QuestionIndex: index,
		Answer:        answer,
		Correct:       correct,
		TimeTakenSec:  taken,
		Explanation:   q.Explanation,
		AnsweredAt:    now,
	}
	s.snap.Answers = append(s.snap.Answers, record)
	if correct {
		s.snap.Score++
	}
	s.snap.CurrentIndex++

	out := advanceOutcome{
		Record:       record,
		CorrectIndex: q.CorrectIndex,
		Explanation:  q.Explanation,
		Score:        s.snap.Score,
	}
	if s.snap.CurrentIndex >= len(s.questions) {
		s.snap.Status = domain.SessionCompleted
		s.snap.CompletedAt = &now
		out.Completed = true
	} else {
		s.snap.QuestionStartedAt = now
		next := s.promptLocked(s.snap.CurrentIndex)
		out.Next = &next
	}

	select {
	case s.advanced <- struct{}{}:
	default:
	}
	return out, nil
}

// close moves the session to a terminal status, recording null answers for
// every question never reached. It reports whether this call performed the
// transition; callers that observe transitioned=false must not finalize
// again.
func (s *session) close(status domain.SessionStatus) (domain.QuizSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snap.Status.Terminal() {
		return s.viewLocked(), false
	}

	now := s.now()
	for i := s.snap.CurrentIndex; i < len(s.questions); i++ {
		taken := 0
		if i == s.snap.CurrentIndex {
			taken = clampSeconds(now.Sub(s.snap.QuestionStartedAt), s.perLimit)
		}
		s.snap.Answers = append(s.snap.Answers, domain.AnswerRecord{
			QuestionIndex: i,
			Answer:        nil,
			Correct:       false,
			TimeTakenSec:  taken,
			Explanation:   s.questions[i].Explanation,
			AnsweredAt:    now,
		})
	}
	s.snap.CurrentIndex = len(s.questions)
	s.snap.Status = status
	s.snap.CompletedAt = &now

	select {
	case s.advanced <- struct{}{}:
	default:
	}
	return s.viewLocked(), true
}

func (s *session) view() domain.QuizSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *session) viewLocked() domain.QuizSession {
	snap := s.snap
	snap.QuestionIDs = append([]string(nil), s.snap.QuestionIDs...)
	snap.Answers = append([]domain.AnswerRecord(nil), s.snap.Answers...)
	return snap
}

func (s *session) currentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.CurrentIndex
}

func (s *session) status() domain.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Status
}

func (s *session) userID() string {
	return s.snap.UserID
}

// prompt returns the client-facing view of the question at index, without
// the correct option.
func (s *session) prompt(index int) (domain.QuestionPrompt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.questions) {
		return domain.QuestionPrompt{}, false
	}
	return s.promptLocked(index), true
}

func (s *session) promptLocked(index int) domain.QuestionPrompt {
	q := s.questions[index]
	return domain.QuestionPrompt{
		Index:   index,
		Text:    q.Text,
		Options: append([]string(nil), q.Options...),
	}
}

func clampSeconds(elapsed, limit time.Duration) int {
	secs := int((elapsed + time.Second/2) / time.Second)
	if secs < 1 {
		secs = 1
	}
	if max := int(limit / time.Second); secs > max {
		secs = max
	}
	return secs
}
