// Package executor defines the contract every code execution backend satisfies.
//
// Callers (HTTP handlers, the scoring service) only ever see this package.
// The concrete engine that compiles and runs programs on the host lives in
// internal/executor/local.
package executor

import (
	"context"
	"strings"
	"time"
)

// Language identifies one of the supported source languages.
type Language string

const (
	Python Language = "python"
	C      Language = "c"
	Java   Language = "java"
)

// SupportedLanguages returns the languages an Executor accepts, in display order.
func SupportedLanguages() []Language {
	return []Language{Python, C, Java}
}

// ParseLanguage normalises a caller-supplied language name.
// Matching is case-insensitive: "Python", "PYTHON" and " python " all resolve to Python.
func ParseLanguage(s string) (Language, bool) {
	switch Language(strings.ToLower(strings.TrimSpace(s))) {
	case Python:
		return Python, true
	case C:
		return C, true
	case Java:
		return Java, true
	}
	return "", false
}

// ExecutionRequest is one piece of untrusted source code to compile and run.
type ExecutionRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
	// Stdin is fed to the running program. Empty means no input.
	Stdin string `json:"stdin,omitempty"`
}

// ExecutionResult is the outcome of a single execution.
//
// Success is true only when the program launched, ran to completion and
// exited with status 0. CompileError is true only when the compile step
// failed, which means the program was never run.
type ExecutionResult struct {
	Success      bool          `json:"success"`
	Output       string        `json:"output"`
	Error        string        `json:"error"`
	CompileError bool          `json:"compileError"`
	ExitCode     int           `json:"exitCode"`
	TimedOut     bool          `json:"timedOut"`
	Truncated    bool          `json:"truncated"`
	Duration     time.Duration `json:"-"`
}

// Executor runs untrusted code and reports the result.
//
// Execute never returns a Go error: every failure (unsupported language,
// compile failure, missing toolchain, timeout, crash) is described by the
// returned result. The context carries request-scoped values; cancelling it
// does not stop an execution that is already running.
type Executor interface {
	Execute(ctx context.Context, req ExecutionRequest) *ExecutionResult
}
