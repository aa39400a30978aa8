// Package prune removes directories that hold nothing worth
// keeping.
package prune

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ignorable lists platform housekeeping files that never keep a
// directory alive. The set is checked on every platform.
var ignorable = map[string]bool{
	".DS_Store":   true,
	"desktop.ini": true,
	"Thumbs.db":   true,
}

// IsIgnorable reports whether name is a housekeeping artifact.
func IsIgnorable(name string) bool {
	return ignorable[name]
}

// Dir removes, bottom-up, every directory under root (root
// included) that is empty or only holds ignorable artifacts once
// its children have been pruned. A missing root is treated as
// already pruned.
func Dir(root string) error {
	_, err := pruneDir(root)
	return err
}

// pruneDir reports whether dir no longer exists on return.
func pruneDir(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", dir, err)
	}

	keep := false
	var artifacts []string
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		switch {
		case e.IsDir():
			gone, err := pruneDir(path)
			if err != nil {
				return false, err
			}
			if !gone {
				keep = true
			}
		case e.Type().IsRegular() && IsIgnorable(e.Name()):
			artifacts = append(artifacts, path)
		default:
			keep = true
		}
	}
	if keep {
		return false, nil
	}

	for _, path := range artifacts {
		if err := os.Remove(path); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return false, fmt.Errorf("removing %s: %w", path, err)
		}
	}
	if err := os.Remove(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return true, nil
		}
		return false, fmt.Errorf("removing %s: %w", dir, err)
	}
	return true, nil
}
