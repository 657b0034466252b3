//go:build !unix

package local

import (
	"os"
	"os/exec"
)

// configureProcessGroup is a no-op: exec.CommandContext's default Cancel
// kills the direct child, which is all these platforms support portably.
func configureProcessGroup(*exec.Cmd) {}

// killProcessGroup is a no-op for the same reason.
func killProcessGroup(*exec.Cmd) {}

func terminationSignal(*os.ProcessState) string { return "" }
