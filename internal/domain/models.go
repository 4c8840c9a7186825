package domain

import "time"

// SessionStatus tracks the quiz session lifecycle. Transitions only move
// forward: pending -> active -> completed or abandoned.
type SessionStatus string

const (
	SessionPending   SessionStatus = "pending"
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionAbandoned SessionStatus = "abandoned"
)

// Terminal reports whether a session can no longer be mutated.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionAbandoned
}

// TournamentStatus is the entry gate for new sessions; only active
// tournaments accept them.
type TournamentStatus string

const (
	TournamentUpcoming  TournamentStatus = "upcoming"
	TournamentActive    TournamentStatus = "active"
	TournamentCompleted TournamentStatus = "completed"
	TournamentCancelled TournamentStatus = "cancelled"
)

// ViolationType enumerates the anti-cheat signals clients may report.
type ViolationType string

const (
	ViolationTabSwitch      ViolationType = "tab_switch"
	ViolationCopyAttempt    ViolationType = "copy_attempt"
	ViolationFullscreenExit ViolationType = "fullscreen_exit"
	ViolationDevtools       ViolationType = "devtools_detected"
)

// KnownViolationType reports whether vt is one of the enumerated signals.
func KnownViolationType(vt ViolationType) bool {
	switch vt {
	case ViolationTabSwitch, ViolationCopyAttempt, ViolationFullscreenExit, ViolationDevtools:
		return true
	}
	return false
}

// ViolationEvent is one recorded anti-cheat signal. Events are append-only
// and never deduplicated; frequency itself is the review signal.
type ViolationEvent struct {
	Type ViolationType `json:"type"`
	At   time.Time     `json:"at"`
}

// Question is an MCQ question with exactly one correct option. Session code
// treats question content as read-only.
type Question struct {
	ID           string   `json:"id"`
	Category     string   `json:"category"`
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	Explanation  string   `json:"explanation,omitempty"`
}

// QuestionPrompt is the client-facing view of a question. It never carries
// the correct index.
type QuestionPrompt struct {
	Index   int      `json:"index"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

// Tournament is the catalog record a session is played against.
type Tournament struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Category        string           `json:"category"`
	EntryFee        float64          `json:"entryFee"`
	PrizePool       float64          `json:"prizePool"`
	MaxParticipants int              `json:"maxParticipants"`
	QuestionCount   int              `json:"questionCount"`
	Status          TournamentStatus `json:"status"`
	// PrizeSplit holds the payout fractions for ranks 1..n, e.g. 0.5/0.3/0.2.
	PrizeSplit []float64 `json:"prizeSplit"`
}

// AnswerRecord captures one question outcome. A nil Answer means the
// question timed out or was skipped. Records are appended exactly once per
// question and are immutable afterwards.
type AnswerRecord struct {
	QuestionIndex int       `json:"questionIndex"`
	Answer        *int      `json:"answer"`
	Correct       bool      `json:"correct"`
	TimeTakenSec  int       `json:"timeTakenSec"`
	Explanation   string    `json:"explanation,omitempty"`
	AnsweredAt    time.Time `json:"answeredAt"`
}

// QuizSession is the persisted snapshot of one user's attempt.
type QuizSession struct {
	ID                string         `json:"id"`
	UserID            string         `json:"userId"`
	TournamentID      string         `json:"tournamentId"`
	QuestionIDs       []string       `json:"questionIds"`
	CurrentIndex      int            `json:"currentIndex"`
	Score             int            `json:"score"`
	Status            SessionStatus  `json:"status"`
	Answers           []AnswerRecord `json:"answers"`
	StartedAt         time.Time      `json:"startedAt"`
	QuestionStartedAt time.Time      `json:"questionStartedAt"`
	CompletedAt       *time.Time     `json:"completedAt,omitempty"`
}

// QuizResult is the immutable outcome written once at session closure.
type QuizResult struct {
	SessionID      string           `json:"sessionId"`
	UserID         string           `json:"userId"`
	TournamentID   string           `json:"tournamentId"`
	Status         SessionStatus    `json:"status"`
	Score          int              `json:"score"`
	TotalQuestions int              `json:"totalQuestions"`
	Percentage     float64          `json:"percentage"`
	TotalTimeSec   float64          `json:"totalTimeSec"`
	Answers        []AnswerRecord   `json:"answers"`
	Violations     []ViolationEvent `json:"violations"`
	Rank           int              `json:"rank,omitempty"`
	PrizeAmount    float64          `json:"prizeAmount"`
	CompletedAt    time.Time        `json:"completedAt"`
}

// StandingsEntry is one row of a tournament leaderboard.
type StandingsEntry struct {
	SessionID    string  `json:"sessionId"`
	UserID       string  `json:"userId"`
	Score        int     `json:"score"`
	TotalTimeSec float64 `json:"totalTimeSec"`
	Rank         int     `json:"rank"`
	PrizeAmount  float64 `json:"prizeAmount"`
}

// Standings is the ordered leaderboard for a tournament, recomputed lazily
// from finalized results.
type Standings struct {
	TournamentID string           `json:"tournamentId"`
	Entries      []StandingsEntry `json:"entries"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}
