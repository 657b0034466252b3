//go:build unix

package local

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// configureProcessGroup starts the child in a new process group and makes
// context cancellation kill the whole group at the deadline.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		if err := signalGroup(cmd.Process.Pid); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	}
}

// killProcessGroup kills whatever is left of the child's process group once
// Wait has returned. A submission that backgrounds a process and exits
// cannot leave it running. The group ID stays reserved while any member is
// alive, so it cannot name an unrelated group.
func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = signalGroup(cmd.Process.Pid)
}

// signalGroup sends SIGKILL to process group pgid. A group with no members
// left is not an error.
func signalGroup(pgid int) error {
	// A negative pid addresses the process group.
	if err := unix.Kill(-pgid, unix.SIGKILL); err != nil && err != unix.ESRCH {
		return err
	}
	return nil
}

// terminationSignal returns the name of the signal that killed the process,
// e.g. "SIGSEGV", or "" if it exited normally.
func terminationSignal(state *os.ProcessState) string {
	ws, ok := state.Sys().(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return ""
	}
	if name := unix.SignalName(ws.Signal()); name != "" {
		return name
	}
	return ws.Signal().String()
}
