package quarantine

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// FileTypes is a set of lowercase extensions without the leading
// dot.
type FileTypes map[string]struct{}

// ParseFileTypes parses a comma-separated extension list such as
// "pdf, djvu, .EPUB".
func ParseFileTypes(csv string) (FileTypes, error) {
	return NewFileTypes(strings.Split(csv, ",")...)
}

// NewFileTypes normalizes exts into a filter. At least one
// non-empty extension is required.
func NewFileTypes(exts ...string) (FileTypes, error) {
	ft := make(FileTypes, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		ext = strings.TrimLeft(ext, ".")
		if ext == "" {
			continue
		}
		ft[ext] = struct{}{}
	}
	if len(ft) == 0 {
		return nil, fmt.Errorf(
			"%w: no file types given", ErrConfiguration,
		)
	}
	return ft, nil
}

// Match reports whether path's extension is in the set.
func (ft FileTypes) Match(path string) bool {
	ext := strings.TrimPrefix(
		strings.ToLower(filepath.Ext(path)), ".",
	)
	if ext == "" {
		return false
	}
	_, ok := ft[ext]
	return ok
}

// String returns the sorted extensions joined by commas.
func (ft FileTypes) String() string {
	exts := make([]string, 0, len(ft))
	for ext := range ft {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return strings.Join(exts, ",")
}
