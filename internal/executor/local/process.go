package local

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"
)

// waitDelay is how long Wait keeps draining output after the process is
// killed. Orphaned grandchildren holding the pipes open would otherwise
// block Wait forever.
const waitDelay = 500 * time.Millisecond

// ProcessSpec describes a single program invocation.
type ProcessSpec struct {
	// Args is the full argument vector. Args[0] is the program; nothing is
	// passed through a shell.
	Args      []string
	Dir       string
	Stdin     string
	Timeout   time.Duration
	MaxOutput int64
}

// ProcessResult is what happened to a single invocation.
// Exactly one of TimedOut, SpawnErr != nil, or a valid ExitCode describes the
// outcome.
type ProcessResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	// Signal names the signal that terminated the process, if any.
	Signal    string
	TimedOut  bool
	SpawnErr  error
	Truncated bool
	Duration  time.Duration
}

// ProcessRunner launches programs. OSRunner is the production implementation.
type ProcessRunner interface {
	Run(ctx context.Context, spec ProcessSpec) ProcessResult
}

// OSRunner runs programs with os/exec.
type OSRunner struct{}

var _ ProcessRunner = OSRunner{}

// Run starts spec.Args and waits for it to exit or for spec.Timeout to elapse.
//
// The deadline is derived from a context detached from ctx's cancellation, so
// a caller going away does not abort a run that is already in progress.
func (OSRunner) Run(ctx context.Context, spec ProcessSpec) ProcessResult {
	if len(spec.Args) == 0 || spec.Args[0] == "" {
		return ProcessResult{ExitCode: -1, SpawnErr: errors.New("empty command")}
	}

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), spec.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, spec.Args[0], spec.Args[1:]...)
	cmd.Dir = spec.Dir
	cmd.Stdin = strings.NewReader(spec.Stdin)

	stdout := newCappedBuffer(spec.MaxOutput)
	stderr := newCappedBuffer(spec.MaxOutput)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	// Kill the whole process group on timeout, not just the direct child.
	configureProcessGroup(cmd)
	cmd.WaitDelay = waitDelay

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return ProcessResult{ExitCode: -1, SpawnErr: err, Duration: time.Since(start)}
	}
	waitErr := cmd.Wait()

	// The direct child is gone, but anything it started in the background
	// may still be running. Nothing outlives the call.
	killProcessGroup(cmd)

	res := ProcessResult{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		ExitCode:  -1,
		Truncated: stdout.Truncated() || stderr.Truncated(),
		Duration:  time.Since(start),
	}

	// A child killed at the deadline shows up as "signal: killed", which must
	// not be mistaken for a crash. A child that exited on its own is judged
	// by its exit status even if the deadline passed while Wait was still
	// draining pipes held open by a background process.
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && !exitedNormally(cmd.ProcessState) {
		res.TimedOut = true
		return res
	}

	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
		res.Signal = terminationSignal(cmd.ProcessState)
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) && !errors.Is(waitErr, exec.ErrWaitDelay) {
		// Wait failed for a reason other than the exit status (I/O copy error).
		res.SpawnErr = waitErr
	}
	return res
}

func exitedNormally(state *os.ProcessState) bool {
	return state != nil && state.Exited()
}

// cappedBuffer is an io.Writer that keeps the first max bytes and silently
// discards the rest. Writes never fail, so the child never sees EPIPE.
type cappedBuffer struct {
	buf       bytes.Buffer
	max       int64
	truncated bool
}

func newCappedBuffer(max int64) *cappedBuffer {
	return &cappedBuffer{max: max}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if b.max <= 0 {
		b.buf.Write(p)
		return len(p), nil
	}
	remaining := b.max - int64(b.buf.Len())
	if remaining <= 0 {
		b.truncated = len(p) > 0 || b.truncated
		return len(p), nil
	}
	if int64(len(p)) > remaining {
		b.buf.Write(p[:remaining])
		b.truncated = true
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *cappedBuffer) String() string { return b.buf.String() }

func (b *cappedBuffer) Truncated() bool { return b.truncated }
