package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/code-debugger/internal/apperror"
	"github.com/sakif/code-debugger/internal/auth"
	"github.com/sakif/code-debugger/internal/executor"
	"github.com/sakif/code-debugger/internal/model"
	"github.com/sakif/code-debugger/internal/service"
)

// SessionService is the part of service.SessionService the handlers use.
type SessionService interface {
	Start(ctx context.Context, language string) (*service.State, error)
	Current(ctx context.Context, id string) (*service.State, error)
	Submit(ctx context.Context, id, questionID, code string) (*service.SubmitResult, error)
	Run(ctx context.Context, id, code, stdin string) (*executor.ExecutionResult, error)
	Stats(ctx context.Context, id string) (*service.Stats, error)
}

var _ SessionService = (*service.SessionService)(nil)

// SessionHandler serves the quiz endpoints.
//
// Only HandleStart is public. Every other handler sits behind
// auth.RequireSession and takes the session ID from the request context,
// never from the URL, so a client can only act on its own session.
type SessionHandler struct {
	sessions SessionService
	tokens   *auth.TokenService
	logger   *slog.Logger
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(sessions SessionService, tokens *auth.TokenService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, tokens: tokens, logger: logger}
}

type startRequest struct {
	Language string `json:"language"`
}

// StartResponse is returned when a session is created.
type StartResponse struct {
	SessionID string                `json:"sessionId"`
	Language  string                `json:"language"`
	Token     string                `json:"token"`
	ExpiresAt time.Time             `json:"expiresAt"`
	Question  *model.PublicQuestion `json:"question"`
	Progress  service.Progress      `json:"progress"`
}

// HandleStart begins a new quiz session.
//
// HTTP: POST /api/sessions
// REQUEST BODY: {"language": "python"}
//
// The token in the response must accompany every /api/session/* call, as a
// Bearer header; browsers also get it as an HttpOnly cookie.
func (h *SessionHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}

	st, err := h.sessions.Start(r.Context(), req.Language)
	if err != nil {
		h.logError("starting session", err)
		WriteError(w, err)
		return
	}

	token, expires, err := h.tokens.Issue(st.Session.ID)
	if err != nil {
		h.logError("issuing session token", err)
		WriteError(w, err)
		return
	}
	auth.SetSessionCookie(w, token, expires, r.TLS != nil)

	writeJSON(w, http.StatusCreated, StartResponse{
		SessionID: st.Session.ID,
		Language:  st.Session.Language,
		Token:     token,
		ExpiresAt: expires.UTC(),
		Question:  publicQuestion(st.Question),
		Progress:  st.Progress,
	})
}

// QuestionResponse is the current question, or completed=true when none
// remain. timeUp says the session ended because its time ran out.
type QuestionResponse struct {
	Completed bool                  `json:"completed"`
	TimeUp    bool                  `json:"timeUp"`
	Question  *model.PublicQuestion `json:"question,omitempty"`
	Progress  service.Progress      `json:"progress"`
}

// HandleQuestion returns the question the player is working on.
//
// HTTP: GET /api/session/question
func (h *SessionHandler) HandleQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	st, err := h.sessions.Current(r.Context(), id)
	if err != nil {
		h.logError("loading session", err)
		WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, QuestionResponse{
		Completed: st.Question == nil,
		TimeUp:    st.Session.TimeUp(),
		Question:  publicQuestion(st.Question),
		Progress:  st.Progress,
	})
}

type submitRequest struct {
	QuestionID string `json:"questionId"`
	Code       string `json:"code"`
}

// SubmitResponse reports the verdict. Once a question has been answered its
// expected output and explanation are revealed, right or wrong.
type SubmitResponse struct {
	IsCorrect          bool                  `json:"isCorrect"`
	Output             string                `json:"output"`
	Errors             string                `json:"errors"`
	CompileError       bool                  `json:"compileError"`
	TimedOut           bool                  `json:"timedOut"`
	ExpectedOutput     string                `json:"expectedOutput"`
	Explanation        string                `json:"explanation"`
	Score              int                   `json:"score"`
	QuestionsAttempted int                   `json:"questionsAttempted"`
	QuestionsSolved    int                   `json:"questionsSolved"`
	TestComplete       bool                  `json:"testComplete"`
	NextQuestion       *model.PublicQuestion `json:"nextQuestion,omitempty"`
	Progress           service.Progress      `json:"progress"`
}

// HandleSubmit judges a fix for the current question.
//
// HTTP: POST /api/session/submit
// REQUEST BODY: {"questionId": "py1", "code": "print('hello')"}
func (h *SessionHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}

	res, err := h.sessions.Submit(r.Context(), id, req.QuestionID, req.Code)
	if err != nil {
		h.logError("submitting answer", err)
		WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SubmitResponse{
		IsCorrect:          res.IsCorrect,
		Output:             res.Execution.Output,
		Errors:             res.Execution.Error,
		CompileError:       res.Execution.CompileError,
		TimedOut:           res.Execution.TimedOut,
		ExpectedOutput:     res.Question.ExpectedOutput,
		Explanation:        res.Question.Explanation,
		Score:              res.Session.Score,
		QuestionsAttempted: res.Session.QuestionsAttempted,
		QuestionsSolved:    res.Session.QuestionsSolved,
		TestComplete:       res.TestComplete,
		NextQuestion:       publicQuestion(res.Next),
		Progress:           res.Progress,
	})
}

type runRequest struct {
	Code  string `json:"code"`
	Stdin string `json:"stdin"`
}

// HandleRun executes code in the session's language without scoring it.
//
// HTTP: POST /api/session/run
// REQUEST BODY: {"code": "...", "stdin": "optional input"}
func (h *SessionHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var req runRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}

	res, err := h.sessions.Run(r.Context(), id, req.Code, req.Stdin)
	if err != nil {
		h.logError("running code", err)
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newExecuteResponse(res))
}

// HandleStats returns the session's score and elapsed time.
//
// HTTP: GET /api/session/stats
func (h *SessionHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	stats, err := h.sessions.Stats(r.Context(), id)
	if err != nil {
		h.logError("loading stats", err)
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *SessionHandler) sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := auth.SessionIDFromContext(r.Context())
	if !ok {
		// Only reachable if a route was registered without RequireSession.
		WriteError(w, apperror.Unauthorized("a session token is required"))
		return "", false
	}
	return id, true
}

// logError logs unexpected failures. Client mistakes (4xx) are not logged
// as errors.
func (h *SessionHandler) logError(action string, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return
	}
	h.logger.Error("session request failed",
		slog.String("action", action),
		slog.String("error", err.Error()),
	)
}

func publicQuestion(q *model.Question) *model.PublicQuestion {
	if q == nil {
		return nil
	}
	p := q.Public()
	return &p
}
