package quarantine

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFileTypes(t *testing.T) {
	tests := []struct {
		name    string
		csv     string
		want    string
		wantErr bool
	}{
		{"single", "pdf", "pdf", false},
		{"trims and lowercases", " PDF, .Djvu ,epub", "djvu,epub,pdf", false},
		{"drops empties", "pdf,,", "pdf", false},
		{"empty", "", "", true},
		{"only separators", " , ,", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft, err := ParseFileTypes(tt.csv)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ft.String())
		})
	}
}

func TestFileTypesMatch(t *testing.T) {
	ft, err := NewFileTypes("pdf", "djvu")
	require.NoError(t, err)

	assert.True(t, ft.Match("/a/b.pdf"))
	assert.True(t, ft.Match("/a/B.PDF"))
	assert.True(t, ft.Match("x.tar.djvu"))
	assert.False(t, ft.Match("/a/b.txt"))
	assert.False(t, ft.Match("/a/pdf"))
	assert.False(t, ft.Match("/a/.pdf.bak"))
}

func TestDiff(t *testing.T) {
	root := makeTree(t,
		"a.pdf",
		"b.pdf",
		"sub/c.PDF",
		"sub/d.txt",
		"sub/deep/e.pdf",
		"_unlinked_files/q.pdf",
		"_unlinked_files_20240101/r.pdf",
		"sub/_unlinked_files_x/s.pdf",
	)
	types, err := NewFileTypes("pdf")
	require.NoError(t, err)

	linked := []string{
		"a.pdf",
		"sub/deep/e.pdf",
		"",
		"missing/never.pdf",
	}
	got, err := Diff(root, types, linked)
	require.NoError(t, err)

	want := []string{
		filepath.Join(root, "b.pdf"),
		filepath.Join(root, "sub", "c.PDF"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Diff() mismatch (-want +got):\n%s", diff)
	}
}

func TestDiffAbsoluteLinkedPath(t *testing.T) {
	root := makeTree(t, "a.pdf", "b.pdf")
	types, err := NewFileTypes("pdf")
	require.NoError(t, err)

	got, err := Diff(root, types, []string{
		filepath.Join(root, "a.pdf"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "b.pdf")}, got)
}

func TestDiffNeverReturnsBatchOrLinked(t *testing.T) {
	root := makeTree(t,
		"x/1.pdf", "x/2.pdf", "y/3.pdf",
		"_unlinked_files_old/4.pdf",
	)
	types, err := NewFileTypes("pdf")
	require.NoError(t, err)
	linked := []string{"x/2.pdf"}

	got, err := Diff(root, types, linked)
	require.NoError(t, err)
	for _, p := range got {
		assert.False(t,
			IsBatchName(filepath.Base(filepath.Dir(p))),
			"%s is inside a batch", p,
		)
		assert.NotEqual(t, filepath.Join(root, "x", "2.pdf"), p)
	}
	assert.Len(t, got, 2)
}

func TestDiffMissingRoot(t *testing.T) {
	types, err := NewFileTypes("pdf")
	require.NoError(t, err)
	got, err := Diff(filepath.Join(t.TempDir(), "gone"), types, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
