package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"tournament-quiz-service/internal/app"
	"tournament-quiz-service/internal/domain"
)

// APIHandler exposes the session engine over JSON endpoints. Every error
// surfaces a stable code the client can branch on plus a readable message.
type APIHandler struct {
	engine *app.Engine
}

func NewAPIHandler(engine *app.Engine) *APIHandler {
	return &APIHandler{engine: engine}
}

// Register wires all quiz routes into mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/quiz/{tournamentID}/start", h.start)
	mux.HandleFunc("POST /api/quiz/{sessionID}/answer", h.answer)
	mux.HandleFunc("POST /api/quiz/{sessionID}/violation", h.violation)
	mux.HandleFunc("POST /api/quiz/{sessionID}/complete", h.complete)
	mux.HandleFunc("POST /api/quiz/{sessionID}/abandon", h.abandon)
	mux.HandleFunc("GET /api/quiz/{sessionID}/results", h.results)
	mux.HandleFunc("GET /api/quiz/{sessionID}/state", h.state)
	mux.HandleFunc("GET /api/tournaments/{tournamentID}/standings", h.standings)
}

type startRequest struct {
	UserID string `json:"userId"`
}

func (h *APIHandler) start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "userId is required")
		return
	}
	res, err := h.engine.Start(r.Context(), r.PathValue("tournamentID"), req.UserID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

type answerRequest struct {
	QuestionIndex int     `json:"questionIndex"`
	Answer        *int    `json:"answer"`
	TimeTaken     float64 `json:"timeTaken"`
}

func (h *APIHandler) answer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid answer payload")
		return
	}
	res, err := h.engine.SubmitAnswer(r.Context(), r.PathValue("sessionID"), req.QuestionIndex, req.Answer, req.TimeTaken)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type violationRequest struct {
	Type string     `json:"type"`
	At   *time.Time `json:"at"`
}

func (h *APIHandler) violation(w http.ResponseWriter, r *http.Request) {
	var req violationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Type == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "type is required")
		return
	}
	at := time.Time{}
	if req.At != nil {
		at = *req.At
	}
	if err := h.engine.ReportViolation(r.Context(), r.PathValue("sessionID"), domain.ViolationType(req.Type), at); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

func (h *APIHandler) complete(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.Complete(r.Context(), r.PathValue("sessionID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *APIHandler) abandon(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Abandon(r.Context(), r.PathValue("sessionID")); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "abandoned"})
}

func (h *APIHandler) results(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.Results(r.Context(), r.PathValue("sessionID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *APIHandler) state(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.State(r.Context(), r.PathValue("sessionID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *APIHandler) standings(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.Standings(r.Context(), r.PathValue("tournamentID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeEngineError(w http.ResponseWriter, err error) {
	status, code := codeFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("[api] internal error: %v", err)
		msg = "internal error"
	}
	writeError(w, status, code, msg)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// codeFor maps engine sentinels to a stable error code and HTTP status.
func codeFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, domain.ErrTournamentNotFound):
		return http.StatusNotFound, "tournament_not_found"
	case errors.Is(err, domain.ErrResultNotFound):
		return http.StatusNotFound, "result_not_found"
	case errors.Is(err, domain.ErrSessionClosed):
		return http.StatusConflict, "session_closed"
	case errors.Is(err, domain.ErrSessionNotActive):
		return http.StatusConflict, "session_not_active"
	case errors.Is(err, domain.ErrAlreadyActive):
		return http.StatusConflict, "already_active"
	case errors.Is(err, domain.ErrStaleQuestionIndex):
		return http.StatusConflict, "stale_question_index"
	case errors.Is(err, domain.ErrTournamentFull):
		return http.StatusConflict, "tournament_full"
	case errors.Is(err, domain.ErrTournamentNotOpen):
		return http.StatusConflict, "tournament_not_open"
	case errors.Is(err, domain.ErrResultNotReady):
		return http.StatusConflict, "result_not_ready"
	case errors.Is(err, domain.ErrInsufficientQuestions):
		return http.StatusConflict, "insufficient_questions"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusPaymentRequired, "insufficient_funds"
	case errors.Is(err, domain.ErrUnknownViolationType):
		return http.StatusBadRequest, "unknown_violation_type"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
