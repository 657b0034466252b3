package local

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/sakif/code-debugger/internal/metrics"
)

// artifactSet tracks every filesystem path one execution creates.
//
// Paths are removed in reverse order of registration, so files staged inside
// a per-call directory go before the directory itself. Directories are removed
// recursively to catch outputs the pipeline never named (e.g. Main$1.class).
type artifactSet struct {
	paths  []string
	logger *slog.Logger
}

func newArtifactSet(logger *slog.Logger) *artifactSet {
	return &artifactSet{logger: logger}
}

// add registers a path for cleanup. Register a path before creating it, so a
// failure halfway through creation still leaves it on the list.
func (a *artifactSet) add(paths ...string) {
	a.paths = append(a.paths, paths...)
}

// Paths returns the registered paths in registration order.
func (a *artifactSet) Paths() []string {
	return append([]string(nil), a.paths...)
}

// cleanup removes every registered path. Each removal is attempted regardless
// of earlier failures; failures are logged and counted, never returned.
func (a *artifactSet) cleanup() {
	for i := len(a.paths) - 1; i >= 0; i-- {
		path := a.paths[i]
		if err := removePath(path); err != nil {
			metrics.CleanupFailures.Inc()
			a.logger.Warn("failed to remove execution artifact",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
		}
	}
	a.paths = nil
}

// removePath deletes path if it exists. Missing paths are not an error.
func removePath(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.IsDir() {
		return os.RemoveAll(path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
