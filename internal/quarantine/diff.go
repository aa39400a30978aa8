package quarantine

import (
	"errors"
	"io/fs"
	"log"
	"path/filepath"
	"sort"
)

// Diff walks root and returns the files whose extension is in
// types, that are not inside a batch directory, and that linked
// does not declare. Linked paths are relative to root unless
// absolute; empty entries are ignored. The result is sorted. A
// missing root, e.g. one pruned away, has no unlinked files.
func Diff(
	root string, types FileTypes, linked []string,
) ([]string, error) {
	declared := make(map[string]bool, len(linked))
	for _, p := range linked {
		if abs := resolveLinked(root, p); abs != "" {
			declared[abs] = true
		}
	}

	var unlinked []string
	err := filepath.WalkDir(root,
		func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == root {
					if errors.Is(err, fs.ErrNotExist) {
						return filepath.SkipAll
					}
					return err
				}
				log.Printf("diff: skipping %s: %v", path, err)
				return nil
			}
			if !d.Type().IsRegular() || !types.Match(path) {
				return nil
			}
			if IsBatchName(filepath.Base(filepath.Dir(path))) {
				return nil
			}
			if !declared[filepath.Clean(path)] {
				unlinked = append(unlinked, path)
			}
			return nil
		})
	if err != nil {
		return nil, err
	}
	sort.Strings(unlinked)
	return unlinked, nil
}

func resolveLinked(root, p string) string {
	if p == "" {
		return ""
	}
	p = filepath.FromSlash(p)
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(root, p)
}
