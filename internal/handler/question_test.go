package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/code-debugger/internal/handler"
	"github.com/sakif/code-debugger/internal/quiz"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func newMetaRouter(t *testing.T, db handler.Pinger) http.Handler {
	t.Helper()
	bank, err := quiz.DefaultBank()
	require.NoError(t, err)

	h := handler.NewMetaHandler(bank, db, testLogger())
	r := chi.NewRouter()
	r.Get("/health", h.HandleHealth)
	r.Get("/api/languages", h.HandleLanguages)
	r.Get("/api/questions/{language}", h.HandleQuestions)
	return r
}

func TestMetaHandler_Health(t *testing.T) {
	tests := []struct {
		name       string
		db         handler.Pinger
		wantStatus int
		wantState  string
	}{
		{"no database", nil, http.StatusOK, "ok"},
		{"database up", fakePinger{}, http.StatusOK, "ok"},
		{"database down", fakePinger{err: errors.New("disk I/O error")}, http.StatusServiceUnavailable, "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			newMetaRouter(t, tt.db).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantStatus, rr.Code)
			var body map[string]string
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
			assert.Equal(t, tt.wantState, body["status"])
			assert.NotEmpty(t, body["timestamp"])
		})
	}
}

func TestMetaHandler_Languages(t *testing.T) {
	rr := httptest.NewRecorder()
	newMetaRouter(t, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/languages", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var langs []handler.LanguageInfo
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&langs))

	require.Len(t, langs, 3)
	assert.Equal(t, "python", langs[0].ID)
	assert.Equal(t, "c", langs[1].ID)
	assert.Equal(t, "java", langs[2].ID)
	for _, l := range langs {
		assert.GreaterOrEqual(t, l.Questions, 5)
	}
}

func TestMetaHandler_Questions(t *testing.T) {
	router := newMetaRouter(t, nil)

	t.Run("hides answers", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/questions/Python", nil))

		require.Equal(t, http.StatusOK, rr.Code)
		var raw []map[string]any
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&raw))
		require.NotEmpty(t, raw)
		for _, q := range raw {
			assert.NotEmpty(t, q["id"])
			assert.NotEmpty(t, q["buggyCode"])
			assert.NotContains(t, q, "expectedOutput")
			assert.NotContains(t, q, "explanation")
		}
	})

	t.Run("unknown language", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/questions/cobol", nil))

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
