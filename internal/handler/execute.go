package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/code-debugger/internal/apperror"
	"github.com/sakif/code-debugger/internal/executor"
)

// ExecuteHandler runs arbitrary code outside any quiz session.
type ExecuteHandler struct {
	exec   executor.Executor
	logger *slog.Logger
}

// NewExecuteHandler creates a new ExecuteHandler.
func NewExecuteHandler(exec executor.Executor, logger *slog.Logger) *ExecuteHandler {
	return &ExecuteHandler{
		exec:   exec,
		logger: logger,
	}
}

// ExecuteResponse is an ExecutionResult with the duration in milliseconds.
type ExecuteResponse struct {
	*executor.ExecutionResult
	DurationMs int64 `json:"durationMs"`
}

func newExecuteResponse(res *executor.ExecutionResult) ExecuteResponse {
	return ExecuteResponse{ExecutionResult: res, DurationMs: res.Duration.Milliseconds()}
}

// HandleExecute compiles and runs one program.
//
// HTTP: POST /api/execute
// REQUEST BODY: {"code": "print(1)", "language": "python", "stdin": ""}
//
// Every execution outcome (compile error, crash, timeout, unsupported
// language) is a 200 with success=false; only a malformed request is a 4xx.
func (h *ExecuteHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req executor.ExecutionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("invalid execution request body", slog.String("error", err.Error()))
		WriteError(w, err)
		return
	}

	if strings.TrimSpace(req.Code) == "" {
		WriteError(w, apperror.ValidationFailed("code", "code cannot be empty"))
		return
	}

	h.logger.Debug("executing code", slog.String("language", req.Language))

	result := h.exec.Execute(r.Context(), req)
	writeJSON(w, http.StatusOK, newExecuteResponse(result))
}
