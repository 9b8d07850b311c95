package dumputil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Dir writes diagnostic artifacts (screenshots, page dumps) into a
// directory. The zero value discards everything.
type Dir struct {
	directory string
}

// NewDir makes sure dir exists. An empty dir returns the discarding Dir.
func NewDir(dir string) (Dir, error) {
	if dir == "" {
		return Dir{}, nil
	}
	err := os.MkdirAll(dir, 0700)
	if err != nil {
		return Dir{}, err
	}
	return Dir{directory: dir}, nil
}

func (d Dir) Enabled() bool {
	return d.directory != ""
}

// Write stores contents as "<unix millis>-<name>" and returns the path.
// Failures are only logged, a missing artifact must never fail the caller.
func (d Dir) Write(name string, contents []byte) string {
	if !d.Enabled() {
		return ""
	}
	path := filepath.Join(d.directory, fmt.Sprintf("%d-%s", time.Now().UnixMilli(), name))
	err := os.WriteFile(path, contents, 0600)
	if err != nil {
		slog.Warn("failed to write debug artifact", "name", name, "err", err)
		return ""
	}
	return path
}
