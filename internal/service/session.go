// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → validates, enforces rules, orchestrates
//	Repository (data layer)  → reads/writes to the database
//
// SessionService is the scoring loop of the debugging quiz: it hands out
// questions, runs submissions through the executor, judges their output,
// and keeps score. It depends only on interfaces (repository, executor), so
// tests drive it with in-memory fakes and no toolchains.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/sakif/code-debugger/internal/apperror"
	"github.com/sakif/code-debugger/internal/executor"
	"github.com/sakif/code-debugger/internal/metrics"
	"github.com/sakif/code-debugger/internal/model"
	"github.com/sakif/code-debugger/internal/quiz"
	"github.com/sakif/code-debugger/internal/repository"
)

const (
	// PointsPerSolve is added to the score for every correct submission.
	PointsPerSolve = 5
	// MaxCodeLength bounds a submission, in bytes.
	MaxCodeLength  = 100000
	MaxStdinLength = 64 * 1024
	// DefaultTimeLimit is how long a player has to finish a session.
	DefaultTimeLimit = 30 * time.Minute
)

// Progress is the player's position in a session: Current is the 1-based
// number of the question being worked on.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// State is a session together with the question at the head of its queue.
// Question is nil once the session is complete.
type State struct {
	Session  *model.Session
	Question *model.Question
	Progress Progress
}

// SubmitResult is the verdict on one submission plus the updated session.
// Question is the question that was answered, answer fields included; Next
// is nil when the session is complete.
type SubmitResult struct {
	IsCorrect    bool
	Execution    *executor.ExecutionResult
	Comparison   quiz.Comparison
	Question     model.Question
	Session      *model.Session
	Next         *model.Question
	Progress     Progress
	TestComplete bool
}

// Stats summarizes a session.
type Stats struct {
	Language           string `json:"language"`
	Score              int    `json:"score"`
	QuestionsAttempted int    `json:"questionsAttempted"`
	QuestionsSolved    int    `json:"questionsSolved"`
	Total              int    `json:"total"`
	TimeSpent          int    `json:"timeSpent"` // seconds
	TimeSpentFormatted string `json:"timeSpentFormatted"`
	TimeRemaining      int    `json:"timeRemaining"` // seconds, 0 once over
	Completed          bool   `json:"completed"`
	TimeUp             bool   `json:"timeUp"`
}

// SessionService runs quiz sessions.
type SessionService struct {
	repo    repository.SessionRepository
	bank    *quiz.Bank
	exec    executor.Executor
	logger  *slog.Logger
	shuffle func([]string)
	now     func() time.Time
	limit   time.Duration
}

// Option customizes a SessionService. Tests use these to make the question
// order and the clock deterministic.
type Option func(*SessionService)

// WithShuffle replaces the function that orders a new session's questions.
func WithShuffle(fn func([]string)) Option {
	return func(s *SessionService) { s.shuffle = fn }
}

// WithTimeLimit sets how long a session lasts before it ends on its own.
// Zero or less disables the limit.
func WithTimeLimit(d time.Duration) Option {
	return func(s *SessionService) { s.limit = d }
}

// WithClock replaces time.Now.
func WithClock(fn func() time.Time) Option {
	return func(s *SessionService) { s.now = fn }
}

// NewSessionService wires a SessionService. Dependencies are interfaces so
// main.go decides the implementations (SQLite, local executor).
func NewSessionService(repo repository.SessionRepository, bank *quiz.Bank, exec executor.Executor, logger *slog.Logger, opts ...Option) *SessionService {
	s := &SessionService{
		repo:    repo,
		bank:    bank,
		exec:    exec,
		logger:  logger,
		shuffle: shuffleIDs,
		now:     time.Now,
		limit:   DefaultTimeLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func shuffleIDs(ids []string) {
	rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
}

// Start creates a session for language with every question of that
// language queued in random order.
func (s *SessionService) Start(ctx context.Context, language string) (*State, error) {
	lang, ok := executor.ParseLanguage(language)
	if !ok {
		return nil, apperror.ValidationFailed("language", fmt.Sprintf("unsupported language: %s", language))
	}

	questions := s.bank.ForLanguage(lang)
	if len(questions) == 0 {
		return nil, apperror.ValidationFailed("language", fmt.Sprintf("no questions available for %s", lang))
	}

	queue := make([]string, len(questions))
	for i, q := range questions {
		queue[i] = q.ID
	}
	s.shuffle(queue)

	session := &model.Session{
		Language:  string(lang),
		Total:     len(queue),
		Queue:     queue,
		Solved:    []string{},
		Unsolved:  []string{},
		StartedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, session); err != nil {
		s.logger.Error("failed to create session",
			slog.String("language", string(lang)),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating session: %w", err)
	}

	s.logger.Info("session started",
		slog.String("id", session.ID),
		slog.String("language", session.Language),
		slog.Int("questions", session.Total),
	)
	return s.state(session)
}

// Current returns the session and the question at the head of its queue.
func (s *SessionService) Current(ctx context.Context, id string) (*State, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.state(session)
}

// Submit runs code against the current question and updates the session.
//
// The program gets the question's TestInput on stdin. It is correct iff it
// ran successfully and its normalized output equals the expected output.
// A correct answer scores PointsPerSolve and leaves the queue; a wrong one
// goes to the back of the queue to be retried later.
//
// questionID must name the head of the queue (an empty questionID means the
// head). Answering anything else, or answering after the session is over,
// is rejected without running the code.
func (s *SessionService) Submit(ctx context.Context, id, questionID, code string) (*SubmitResult, error) {
	if err := validateCode(code); err != nil {
		return nil, err
	}

	session, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Over() {
		return nil, apperror.Conflict("session", session.ID)
	}

	head := session.CurrentQuestionID()
	questionID = strings.TrimSpace(questionID)
	if questionID == "" {
		questionID = head
	}
	if questionID != head {
		return nil, apperror.ValidationFailed("questionId",
			fmt.Sprintf("question %s is not the current question", questionID))
	}

	lang := executor.Language(session.Language)
	question, ok := s.bank.Get(lang, questionID)
	if !ok {
		// The bank changed since the session was created.
		return nil, apperror.NotFound("question", questionID)
	}

	res := s.exec.Execute(ctx, executor.ExecutionRequest{
		Code:     code,
		Language: session.Language,
		Stdin:    question.TestInput,
	})
	cmp := quiz.Compare(question.ExpectedOutput, res.Output)
	correct := res.Success && cmp.IsCorrect

	applySubmission(session, questionID, correct, s.now())

	if err := s.repo.Update(ctx, session); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			// Another submission for this session landed while ours ran.
			s.logger.Warn("concurrent submission rejected", slog.String("session", session.ID))
			return nil, err
		}
		return nil, fmt.Errorf("saving submission: %w", err)
	}

	verdict := "wrong"
	if correct {
		verdict = "correct"
	}
	metrics.SubmissionsTotal.WithLabelValues(session.Language, verdict).Inc()
	s.logger.Info("submission judged",
		slog.String("session", session.ID),
		slog.String("question", questionID),
		slog.String("verdict", verdict),
		slog.Int("score", session.Score),
	)

	st, err := s.state(session)
	if err != nil {
		return nil, err
	}
	return &SubmitResult{
		IsCorrect:    correct,
		Execution:    res,
		Comparison:   cmp,
		Question:     question,
		Session:      session,
		Next:         st.Question,
		Progress:     st.Progress,
		TestComplete: session.Over(),
	}, nil
}

// applySubmission moves the head of the queue according to the verdict.
func applySubmission(session *model.Session, questionID string, correct bool, now time.Time) {
	session.Queue = session.Queue[1:]
	session.QuestionsAttempted++

	if correct {
		session.Solved = append(session.Solved, questionID)
		session.Score += PointsPerSolve
		session.QuestionsSolved++
	} else {
		session.Queue = append(session.Queue, questionID)
		session.Unsolved = append(session.Unsolved, questionID)
	}

	if session.Complete() && session.EndedAt == nil {
		ended := now.UTC()
		session.EndedAt = &ended
	}
}

// Run executes code in the session's language without judging or scoring.
func (s *SessionService) Run(ctx context.Context, id, code, stdin string) (*executor.ExecutionResult, error) {
	if err := validateCode(code); err != nil {
		return nil, err
	}
	if len(stdin) > MaxStdinLength {
		return nil, apperror.ValidationFailed("stdin",
			fmt.Sprintf("stdin must be %d bytes or less", MaxStdinLength))
	}

	session, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	return s.exec.Execute(ctx, executor.ExecutionRequest{
		Code:     code,
		Language: session.Language,
		Stdin:    stdin,
	}), nil
}

// Stats reports the session's score and time spent. Time stops counting
// when the session is over.
func (s *SessionService) Stats(ctx context.Context, id string) (*Stats, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	elapsed := session.Elapsed(s.now())
	seconds := int(elapsed.Round(time.Second) / time.Second)
	remaining := 0
	if s.limit > 0 && !session.Over() {
		remaining = int((s.limit - elapsed).Round(time.Second) / time.Second)
	}
	return &Stats{
		Language:           session.Language,
		Score:              session.Score,
		QuestionsAttempted: session.QuestionsAttempted,
		QuestionsSolved:    session.QuestionsSolved,
		Total:              session.Total,
		TimeSpent:          seconds,
		TimeSpentFormatted: FormatSeconds(seconds),
		TimeRemaining:      max(remaining, 0),
		Completed:          session.Over(),
		TimeUp:             session.TimeUp(),
	}, nil
}

// PurgeStarted deletes sessions started more than maxAge ago and returns how
// many were removed.
func (s *SessionService) PurgeStarted(ctx context.Context, maxAge time.Duration) (int64, error) {
	n, err := s.repo.DeleteStartedBefore(ctx, s.now().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("purging sessions: %w", err)
	}
	if n > 0 {
		s.logger.Info("purged old sessions", slog.Int64("count", n))
	}
	return n, nil
}

// RunPurger calls PurgeStarted every interval until ctx is done. Failures
// are logged and retried on the next tick.
func (s *SessionService) RunPurger(ctx context.Context, maxAge, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.PurgeStarted(ctx, maxAge); err != nil && ctx.Err() == nil {
				s.logger.Error("session purge failed", slog.String("error", err.Error()))
			}
		}
	}
}

// FormatSeconds renders a duration as m:ss, e.g. 125 → "2:05".
func FormatSeconds(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

func (s *SessionService) get(ctx context.Context, id string) (*model.Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("sessionId", "session ID is required")
	}
	return s.repo.GetByID(ctx, id)
}

// load is get plus the time limit: a session past its limit is ended and
// saved before the caller sees it.
func (s *SessionService) load(ctx context.Context, id string) (*model.Session, error) {
	session, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.limit <= 0 || session.Over() || s.now().Sub(session.StartedAt) < s.limit {
		return session, nil
	}

	ended := session.StartedAt.Add(s.limit).UTC()
	session.EndedAt = &ended
	if err := s.repo.Update(ctx, session); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			// Someone else saved it first; their copy is the current one.
			return s.get(ctx, id)
		}
		return nil, fmt.Errorf("ending session: %w", err)
	}

	s.logger.Info("session time limit reached",
		slog.String("id", session.ID),
		slog.Int("score", session.Score),
	)
	return session, nil
}

func (s *SessionService) state(session *model.Session) (*State, error) {
	st := &State{
		Session:  session,
		Progress: progressOf(session),
	}
	if head := session.CurrentQuestionID(); head != "" {
		q, ok := s.bank.Get(executor.Language(session.Language), head)
		if !ok {
			return nil, apperror.NotFound("question", head)
		}
		st.Question = &q
	}
	return st, nil
}

// progressOf numbers the current question. Wrong answers are requeued, so
// the queue only shrinks on a solve: the player is on question solved+1.
func progressOf(session *model.Session) Progress {
	current := session.Total - len(session.Queue) + 1
	if current > session.Total {
		current = session.Total
	}
	return Progress{Current: current, Total: session.Total}
}

func validateCode(code string) error {
	if strings.TrimSpace(code) == "" {
		return apperror.ValidationFailed("code", "code is required")
	}
	if len(code) > MaxCodeLength {
		return apperror.ValidationFailed("code",
			fmt.Sprintf("code must be %d bytes or less", MaxCodeLength))
	}
	return nil
}
