package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/code-debugger/internal/apperror"
	"github.com/sakif/code-debugger/internal/executor"
	"github.com/sakif/code-debugger/internal/model"
	"github.com/sakif/code-debugger/internal/quiz"
)

// Pinger is anything that can report whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// MetaHandler serves the read-only endpoints: health, languages, and the
// public question catalogue.
type MetaHandler struct {
	bank   *quiz.Bank
	db     Pinger
	logger *slog.Logger
}

// NewMetaHandler creates a MetaHandler. db may be nil, in which case the
// health check does not touch storage.
func NewMetaHandler(bank *quiz.Bank, db Pinger, logger *slog.Logger) *MetaHandler {
	return &MetaHandler{bank: bank, db: db, logger: logger}
}

// HandleHealth reports liveness.
//
// HTTP: GET /health
// 200 {"status":"ok"} when storage answers, 503 {"status":"unavailable"} otherwise.
func (h *MetaHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			h.logger.Error("health check failed", slog.String("error", err.Error()))
			resp["status"] = "unavailable"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// LanguageInfo describes one language the server can run.
type LanguageInfo struct {
	ID        string `json:"id"`
	Questions int    `json:"questions"`
}

// HandleLanguages lists every supported language and how many quiz
// questions it has.
//
// HTTP: GET /api/languages
func (h *MetaHandler) HandleLanguages(w http.ResponseWriter, r *http.Request) {
	langs := executor.SupportedLanguages()
	out := make([]LanguageInfo, 0, len(langs))
	for _, lang := range langs {
		out = append(out, LanguageInfo{
			ID:        string(lang),
			Questions: len(h.bank.ForLanguage(lang)),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleQuestions lists a language's questions without their answers.
//
// HTTP: GET /api/questions/{language}
//
// URL PARAMETERS:
// chi.URLParam(r, "language") extracts the {language} segment; the match is
// case-insensitive, so /api/questions/Python works too.
func (h *MetaHandler) HandleQuestions(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "language")
	lang, ok := executor.ParseLanguage(raw)
	if !ok {
		WriteError(w, apperror.NotFound("language", raw))
		return
	}

	questions := h.bank.ForLanguage(lang)
	out := make([]model.PublicQuestion, 0, len(questions))
	for _, q := range questions {
		out = append(out, q.Public())
	}
	writeJSON(w, http.StatusOK, out)
}
