// Package local implements executor.Executor by compiling and running
// submissions as child processes on the host.
//
// Every call follows the same shape:
//
//	stage source in the scratch directory
//	compile (C, Java) under CompileTimeout
//	run under RunTimeout with bounded output capture
//	classify the outcome
//	remove every staged file, whatever happened above
//
// There is no OS-level isolation: the only bounds are wall-clock time and
// captured output size.
package local

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sakif/code-debugger/internal/executor"
	"github.com/sakif/code-debugger/internal/metrics"
)

// Executor implements the executor.Executor interface with host processes.
type Executor struct {
	cfg      Config
	platform Platform
	runner   ProcessRunner
	logger   *slog.Logger
}

var _ executor.Executor = (*Executor)(nil)

// New creates an Executor that launches processes with os/exec.
func New(cfg Config, platform Platform, logger *slog.Logger) (*Executor, error) {
	return NewWithRunner(cfg, platform, OSRunner{}, logger)
}

// NewWithRunner creates an Executor with a custom process runner.
func NewWithRunner(cfg Config, platform Platform, runner ProcessRunner, logger *slog.Logger) (*Executor, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if platform == nil {
		platform = HostPlatform{}
	}
	if runner == nil {
		runner = OSRunner{}
	}

	// Absolute paths keep the run command from being resolved through PATH
	// and keep it valid for the Java steps, which change working directory.
	abs, err := filepath.Abs(cfg.ScratchDir)
	if err != nil {
		return nil, fmt.Errorf("local: resolving scratch directory: %w", err)
	}
	cfg.ScratchDir = abs

	return &Executor{
		cfg:      cfg,
		platform: platform,
		runner:   runner,
		logger:   logger,
	}, nil
}

func validateConfig(cfg Config) error {
	switch {
	case cfg.ScratchDir == "":
		return errors.New("local: scratch directory is required")
	case cfg.CompileTimeout <= 0:
		return errors.New("local: compile timeout must be positive")
	case cfg.RunTimeout <= 0:
		return errors.New("local: run timeout must be positive")
	case cfg.MaxOutputBytes <= 0:
		return errors.New("local: max output bytes must be positive")
	case len(cfg.Toolchains.Python) == 0, len(cfg.Toolchains.CC) == 0,
		len(cfg.Toolchains.Javac) == 0, len(cfg.Toolchains.Java) == 0:
		return errors.New("local: every toolchain command must be set")
	}
	return nil
}

// ScratchDir returns the absolute path of the staging directory.
func (e *Executor) ScratchDir() string {
	return e.cfg.ScratchDir
}

// Execute compiles and runs req.Code.
//
// It always returns a result. Staged files are removed before it returns on
// every path, including a panic in the pipeline.
func (e *Executor) Execute(ctx context.Context, req executor.ExecutionRequest) (res *executor.ExecutionResult) {
	start := time.Now()

	lang, ok := executor.ParseLanguage(req.Language)
	if !ok {
		metrics.ExecutionsTotal.WithLabelValues("unknown", metrics.OutcomeUnsupported).Inc()
		return &executor.ExecutionResult{
			ExitCode: -1,
			Error:    fmt.Sprintf("Unsupported language: %s", req.Language),
		}
	}

	logger := e.logger.With(slog.String("language", string(lang)))
	artifacts := newArtifactSet(logger)
	outcome := metrics.OutcomeInternal

	defer func() {
		if r := recover(); r != nil {
			logger.Error("execution panicked", slog.Any("panic", r))
			outcome = metrics.OutcomeInternal
			res = &executor.ExecutionResult{
				ExitCode: -1,
				Error:    fmt.Sprintf("Internal error during execution: %v", r),
			}
		}
		artifacts.cleanup()

		res.Duration = time.Since(start)
		metrics.ExecutionsTotal.WithLabelValues(string(lang), outcome).Inc()
		metrics.ExecutionDuration.WithLabelValues(string(lang), "total").Observe(res.Duration.Seconds())
		logger.Debug("execution finished",
			slog.String("outcome", outcome),
			slog.Int("exitCode", res.ExitCode),
			slog.Duration("duration", res.Duration),
		)
	}()

	// The scratch directory is shared between calls and never removed.
	if err := os.MkdirAll(e.cfg.ScratchDir, 0o755); err != nil {
		return &executor.ExecutionResult{
			ExitCode: -1,
			Error:    fmt.Sprintf("preparing scratch directory: %v", err),
		}
	}

	p, err := e.stage(lang, req.Code, artifacts)
	if err != nil {
		return &executor.ExecutionResult{ExitCode: -1, Error: err.Error()}
	}

	if p.compile != nil {
		compiled := e.runner.Run(ctx, ProcessSpec{
			Args:      p.compile.args,
			Dir:       p.compile.dir,
			Timeout:   e.cfg.CompileTimeout,
			MaxOutput: e.cfg.MaxOutputBytes,
		})
		metrics.ExecutionDuration.WithLabelValues(string(lang), "compile").Observe(compiled.Duration.Seconds())

		if failed := e.compileFailure(compiled); failed != nil {
			outcome = metrics.OutcomeCompileError
			return failed
		}
	}

	ran := e.runner.Run(ctx, ProcessSpec{
		Args:      p.run.args,
		Dir:       p.run.dir,
		Stdin:     req.Stdin,
		Timeout:   e.cfg.RunTimeout,
		MaxOutput: e.cfg.MaxOutputBytes,
	})
	metrics.ExecutionDuration.WithLabelValues(string(lang), "run").Observe(ran.Duration.Seconds())

	res, outcome = e.classify(ran)
	return res
}

// compileFailure returns a compile-error result, or nil if compilation succeeded.
func (e *Executor) compileFailure(r ProcessResult) *executor.ExecutionResult {
	var msg string
	switch {
	case r.TimedOut:
		msg = fmt.Sprintf("Compilation timed out after %s.", e.cfg.CompileTimeout)
	case r.SpawnErr != nil:
		msg = r.SpawnErr.Error()
	case r.ExitCode != 0 || r.Signal != "":
		msg = r.Stderr
		if msg == "" {
			msg = r.Stdout
		}
		if msg == "" {
			msg = fmt.Sprintf("Compilation failed with exit code %d", r.ExitCode)
		}
	default:
		return nil
	}

	return &executor.ExecutionResult{
		Error:        msg,
		CompileError: true,
		ExitCode:     -1,
		TimedOut:     r.TimedOut,
		Truncated:    r.Truncated,
	}
}

// classify turns the run step's outcome into a result. Checks are ordered:
// timeout, then launch failure, then exit status.
func (e *Executor) classify(r ProcessResult) (*executor.ExecutionResult, string) {
	res := &executor.ExecutionResult{
		Output:    r.Stdout,
		ExitCode:  r.ExitCode,
		Truncated: r.Truncated,
	}

	switch {
	case r.TimedOut:
		res.ExitCode = -1
		res.TimedOut = true
		res.Error = TimeoutMessage(e.cfg.RunTimeout)
		return res, metrics.OutcomeTimeout

	case r.SpawnErr != nil:
		res.ExitCode = -1
		res.Error = r.SpawnErr.Error()
		return res, metrics.OutcomeSpawnError

	case r.ExitCode != 0 || r.Signal != "":
		res.Error = r.Stderr
		if res.Error == "" {
			if r.Signal != "" {
				res.Error = fmt.Sprintf("Program terminated by signal %s", r.Signal)
			} else {
				res.Error = fmt.Sprintf("Program exited with code %d", r.ExitCode)
			}
		}
		return res, metrics.OutcomeRuntimeError
	}

	res.Success = true
	res.Error = r.Stderr
	return res, metrics.OutcomeSuccess
}

// TimeoutMessage is the error reported when a program exceeds its run limit.
func TimeoutMessage(limit time.Duration) string {
	return fmt.Sprintf("Execution timed out after %s. Possible infinite loop.", limit)
}
