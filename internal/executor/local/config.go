package local

import (
	"runtime"
	"time"
)

// Toolchains holds the argument-vector prefix used to invoke each tool.
// Extra arguments (source path, output path, class name) are appended by the
// pipeline, so a prefix like []string{"python3", "-X", "utf8"} is valid.
type Toolchains struct {
	Python []string
	CC     []string
	Javac  []string
	Java   []string
}

// Config holds the configuration for host execution.
type Config struct {
	// ScratchDir is where per-call source files and binaries are staged.
	// It is created on demand and never removed itself.
	ScratchDir string
	// CompileTimeout bounds the C and Java compile step.
	CompileTimeout time.Duration
	// RunTimeout bounds the program run step.
	RunTimeout time.Duration
	// MaxOutputBytes caps captured stdout and stderr, each.
	MaxOutputBytes int64
	// WrapJava enables wrapping of Java submissions that lack a Main class.
	WrapJava bool
	// Toolchains are the compiler and interpreter commands.
	Toolchains Toolchains
}

// DefaultConfig provides the limits used by the quiz: 5 seconds to compile,
// 5 seconds to run, 10 MiB of output.
func DefaultConfig() Config {
	python := "python3"
	if runtime.GOOS == "windows" {
		// The python.org installer registers "python", not "python3".
		python = "python"
	}
	return Config{
		ScratchDir:     "temp",
		CompileTimeout: 5 * time.Second,
		RunTimeout:     5 * time.Second,
		MaxOutputBytes: 10 * 1024 * 1024,
		WrapJava:       true,
		Toolchains: Toolchains{
			Python: []string{python},
			CC:     []string{"gcc"},
			Javac:  []string{"javac"},
			Java:   []string{"java"},
		},
	}
}
