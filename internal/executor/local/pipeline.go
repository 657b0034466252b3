package local

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/xid"

	"github.com/sakif/code-debugger/internal/executor"
)

// command is one argument-vector invocation and the directory it runs in.
type command struct {
	args []string
	dir  string
}

// plan is what a language pipeline produced after staging the source:
// an optional compile step and the run step.
type plan struct {
	compile *command
	run     command
}

// stage writes code into the scratch directory and builds the commands for
// lang. Every path it creates is registered with set before it is created.
func (e *Executor) stage(lang executor.Language, code string, set *artifactSet) (*plan, error) {
	// xid values are unique per process and across processes on the host,
	// so concurrent calls never share a file name.
	id := xid.New().String()

	switch lang {
	case executor.Python:
		return e.stagePython(id, code, set)
	case executor.C:
		return e.stageC(id, code, set)
	case executor.Java:
		return e.stageJava(id, code, set)
	}
	return nil, fmt.Errorf("unsupported language: %s", lang)
}

func (e *Executor) stagePython(id, code string, set *artifactSet) (*plan, error) {
	source := filepath.Join(e.cfg.ScratchDir, "script_"+id+".py")
	set.add(source)
	if err := writeSource(source, code); err != nil {
		return nil, err
	}

	return &plan{
		run: command{args: withArgs(e.cfg.Toolchains.Python, source)},
	}, nil
}

func (e *Executor) stageC(id, code string, set *artifactSet) (*plan, error) {
	source := filepath.Join(e.cfg.ScratchDir, "program_"+id+".c")
	binary := filepath.Join(e.cfg.ScratchDir, executableName(e.platform, "program_"+id))
	set.add(source, binary)
	if err := writeSource(source, code); err != nil {
		return nil, err
	}

	return &plan{
		compile: &command{args: withArgs(e.cfg.Toolchains.CC, source, "-o", binary)},
		// The binary path is the whole argument vector.
		run: command{args: []string{binary}},
	}, nil
}

// stageJava gives each call its own directory. javac insists the file is
// named after the public class, so every call writes Main.java; a private
// directory is what keeps concurrent Java submissions from overwriting each
// other.
func (e *Executor) stageJava(id, code string, set *artifactSet) (*plan, error) {
	dir := filepath.Join(e.cfg.ScratchDir, "java_"+id)
	set.add(dir)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating java work directory: %w", err)
	}

	source := filepath.Join(dir, javaSourceFile)
	set.add(source, filepath.Join(dir, javaMainClass+".class"))

	if e.cfg.WrapJava {
		code = wrapJava(code)
	}
	if err := writeSource(source, code); err != nil {
		return nil, err
	}

	return &plan{
		compile: &command{args: withArgs(e.cfg.Toolchains.Javac, javaSourceFile), dir: dir},
		run:     command{args: withArgs(e.cfg.Toolchains.Java, "-cp", dir, javaMainClass), dir: dir},
	}, nil
}

func writeSource(path, code string) error {
	if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
		return fmt.Errorf("writing source file: %w", err)
	}
	return nil
}

// withArgs returns a fresh slice so the configured toolchain prefix is never
// aliased by append.
func withArgs(prefix []string, args ...string) []string {
	out := make([]string, 0, len(prefix)+len(args))
	out = append(out, prefix...)
	return append(out, args...)
}
