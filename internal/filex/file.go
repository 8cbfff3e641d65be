// Package filex holds filesystem helpers for the ingest work directory.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureWorkDir resolves dir against the current working directory and
// creates it if needed. An empty dir means the system temp directory and
// is returned unchanged, so callers can hand it straight to os.MkdirTemp.
func EnsureWorkDir(dir string) (string, error) {
	if dir == "" {
		return "", nil
	}

	if !filepath.IsAbs(dir) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getwd: %w", err)
		}
		dir = filepath.Join(cwd, dir)
	}

	if err := os.MkdirAll(dir, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}
