package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a session id is unknown.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrSessionClosed is returned on mutations against a terminal session.
	ErrSessionClosed = errors.New("quiz session already closed")
	// ErrSessionNotActive rejects violation reports outside the active phase.
	ErrSessionNotActive = errors.New("quiz session not active")
	// ErrAlreadyActive is returned when a user already holds a session for a tournament.
	ErrAlreadyActive = errors.New("session already exists for this tournament")
	// ErrStaleQuestionIndex rejects submits for a question the session has moved past.
	ErrStaleQuestionIndex = errors.New("stale question index")
	// ErrInsufficientFunds is returned when the wallet cannot cover the entry fee.
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
	// ErrInsufficientQuestions indicates the category cannot fill the tournament draw.
	ErrInsufficientQuestions = errors.New("not enough questions in category")
	// ErrTournamentNotFound indicates an unknown tournament id.
	ErrTournamentNotFound = errors.New("tournament not found")
	// ErrTournamentFull is returned when the participant cap has been reached.
	ErrTournamentFull = errors.New("tournament is full")
	// ErrTournamentNotOpen is returned when the tournament is not accepting sessions.
	ErrTournamentNotOpen = errors.New("tournament is not open")
	// ErrResultNotReady is returned when results are requested before closure.
	ErrResultNotReady = errors.New("quiz result not ready")
	// ErrResultNotFound indicates no result record exists for a session.
	ErrResultNotFound = errors.New("quiz result not found")
	// ErrUnknownViolationType rejects violation reports outside the known set.
	ErrUnknownViolationType = errors.New("unknown violation type")
)
