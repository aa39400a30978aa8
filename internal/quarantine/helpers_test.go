package quarantine

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// staticLinks is a fixed metadata source.
type staticLinks []string

func (s staticLinks) AttachmentPaths(context.Context) ([]string, error) {
	return s, nil
}

var fixedNow = time.Date(2024, 6, 15, 12, 30, 45, 0, time.Local)

// tempRoot returns a fresh directory with symlinks resolved, so it
// compares equal to Session.Root.
func tempRoot(t *testing.T) string {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return root
}

// makeTree creates each relative path under a fresh root with its
// own path as content, and returns the root.
func makeTree(t *testing.T, files ...string) string {
	t.Helper()
	root := tempRoot(t)
	for _, f := range files {
		writeFile(t, filepath.Join(root, f), f)
	}
	return root
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// snapshot returns every file under root keyed by slash-separated
// relative path, with its content.
func snapshot(t *testing.T, root string) map[string]string {
	t.Helper()
	files := map[string]string{}
	err := filepath.WalkDir(root,
		func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			rel, _ := filepath.Rel(root, path)
			files[filepath.ToSlash(rel)] = string(data)
			return nil
		})
	require.NoError(t, err)
	return files
}

// dirs returns every directory below root as slash-separated
// relative paths.
func dirs(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(root,
		func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() && path != root {
				rel, _ := filepath.Rel(root, path)
				out = append(out, filepath.ToSlash(rel))
			}
			return nil
		})
	require.NoError(t, err)
	return out
}

func newSession(
	t *testing.T, root string, links []string, exts ...string,
) *Session {
	t.Helper()
	if len(exts) == 0 {
		exts = []string{"pdf"}
	}
	types, err := NewFileTypes(exts...)
	require.NoError(t, err)
	s, err := NewSession(
		root, types, staticLinks(links), WithClock(func() time.Time {
			return fixedNow
		}),
	)
	require.NoError(t, err)
	return s
}

func fileExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
