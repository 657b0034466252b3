package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/code-debugger/internal/executor"
	"github.com/sakif/code-debugger/internal/handler"
)

// MockExecutor implements a fast, mock executor for handler testing without
// launching any compiler or interpreter.
type MockExecutor struct {
	mu          sync.Mutex
	CapturedReq executor.ExecutionRequest
	Calls       int
	ReturnRes   *executor.ExecutionResult
	// ByCode, when set, overrides ReturnRes for matching source text.
	ByCode map[string]*executor.ExecutionResult
}

func (m *MockExecutor) Execute(_ context.Context, req executor.ExecutionRequest) *executor.ExecutionResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CapturedReq = req
	m.Calls++
	if res, ok := m.ByCode[req.Code]; ok {
		c := *res
		return &c
	}
	if m.ReturnRes != nil {
		c := *m.ReturnRes
		return &c
	}
	return &executor.ExecutionResult{Error: "no result configured", ExitCode: -1}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestExecuteHandler_HandleExecute(t *testing.T) {
	logger := testLogger()

	t.Run("valid execution", func(t *testing.T) {
		mockExec := &MockExecutor{
			ReturnRes: &executor.ExecutionResult{
				Success:  true,
				Output:   "Hello World\n",
				ExitCode: 0,
				Duration: 120 * time.Millisecond,
			},
		}
		h := handler.NewExecuteHandler(mockExec, logger)

		reqBody := `{"code":"print('Hello World')","language":"python","stdin":"x"}`
		req := httptest.NewRequest(http.MethodPost, "/api/execute", bytes.NewBufferString(reqBody))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		h.HandleExecute(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

		var res map[string]any
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		assert.Equal(t, true, res["success"])
		assert.Equal(t, "Hello World\n", res["output"])
		assert.Equal(t, false, res["compileError"])
		assert.Equal(t, float64(120), res["durationMs"])
		assert.NotContains(t, res, "duration", "raw nanoseconds are not exposed")

		assert.Equal(t, "print('Hello World')", mockExec.CapturedReq.Code)
		assert.Equal(t, "python", mockExec.CapturedReq.Language)
		assert.Equal(t, "x", mockExec.CapturedReq.Stdin)
	})

	t.Run("failed execution is still 200", func(t *testing.T) {
		mockExec := &MockExecutor{
			ReturnRes: &executor.ExecutionResult{
				Error:    "Unsupported language: ruby",
				ExitCode: -1,
			},
		}
		h := handler.NewExecuteHandler(mockExec, logger)

		req := httptest.NewRequest(http.MethodPost, "/api/execute",
			bytes.NewBufferString(`{"code":"puts 1","language":"ruby"}`))
		rr := httptest.NewRecorder()

		h.HandleExecute(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		var res executor.ExecutionResult
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		assert.False(t, res.Success)
		assert.Equal(t, "Unsupported language: ruby", res.Error)
	})

	t.Run("invalid request body", func(t *testing.T) {
		mockExec := &MockExecutor{}
		h := handler.NewExecuteHandler(mockExec, logger)

		req := httptest.NewRequest(http.MethodPost, "/api/execute", bytes.NewBufferString(`{"invalid_json":`))
		rr := httptest.NewRecorder()

		h.HandleExecute(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Zero(t, mockExec.Calls)
	})

	t.Run("empty code", func(t *testing.T) {
		mockExec := &MockExecutor{}
		h := handler.NewExecuteHandler(mockExec, logger)

		req := httptest.NewRequest(http.MethodPost, "/api/execute", bytes.NewBufferString(`{"code":"  ","language":"c"}`))
		rr := httptest.NewRecorder()

		h.HandleExecute(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		var body handler.ErrorResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		assert.Equal(t, "validation_error", body.Error)
		assert.Equal(t, "code", body.Field)
		assert.Zero(t, mockExec.Calls)
	})

	t.Run("oversized body", func(t *testing.T) {
		mockExec := &MockExecutor{}
		h := handler.NewExecuteHandler(mockExec, logger)

		big := `{"language":"python","code":"` + strings.Repeat("x", handler.MaxBodyBytes) + `"}`
		req := httptest.NewRequest(http.MethodPost, "/api/execute", strings.NewReader(big))
		rr := httptest.NewRecorder()

		h.HandleExecute(rr, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
		assert.Zero(t, mockExec.Calls)
	})
}
