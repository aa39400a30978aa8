package quarantine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchName(t *testing.T) {
	assert.Equal(t, "_unlinked_files", BatchName(""))
	assert.Equal(t, "_unlinked_files_x", BatchName("x"))
	assert.True(t, IsBatchName("_unlinked_files_20240101"))
	assert.False(t, IsBatchName("unlinked_files"))
}

func TestLoadRecordMissing(t *testing.T) {
	dir := t.TempDir()
	rec, found, err := LoadRecord(dir)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, dir, rec.Dir)
	assert.True(t, rec.Empty())
}

func TestLoadRecordMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", "{nope"},
		{"array", `["a", "b"]`},
		{"non-string value", `{"/q/a.pdf": 3}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, RecordFileName), tt.body)
			_, _, err := LoadRecord(dir)
			assert.Error(t, err)
		})
	}
}

func TestSaveRecordMergesExistingWins(t *testing.T) {
	dir := filepath.Join(t.TempDir(), BatchName("keep"))
	require.NoError(t, os.MkdirAll(dir, 0o755))

	first := Record{Dir: dir, Moves: map[string]string{
		"/q/a.pdf": "/orig/a.pdf",
		"/q/b.pdf": "/orig/b.pdf",
	}}
	require.NoError(t, SaveRecord(first))

	second := Record{Dir: dir, Moves: map[string]string{
		"/q/b.pdf": "/elsewhere/b.pdf",
		"/q/c.pdf": "/orig/c.pdf",
	}}
	require.NoError(t, SaveRecord(second))

	got, found, err := LoadRecord(dir)
	require.NoError(t, err)
	require.True(t, found)
	want := map[string]string{
		"/q/a.pdf": "/orig/a.pdf",
		"/q/b.pdf": "/orig/b.pdf",
		"/q/c.pdf": "/orig/c.pdf",
	}
	if diff := cmp.Diff(want, got.Moves); diff != "" {
		t.Fatalf("merged record mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "_unlinked_files_keep", got.Name)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestSaveRecordIsIndentedJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, SaveRecord(Record{Dir: dir, Moves: map[string]string{
		"/q/a.pdf": "/orig/a.pdf",
	}}))
	data, err := os.ReadFile(filepath.Join(dir, RecordFileName))
	require.NoError(t, err)
	assert.Equal(t,
		"{\n    \"/q/a.pdf\": \"/orig/a.pdf\"\n}", string(data),
	)
}

func TestListBatches(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a", "b", "c"} {
		dir := filepath.Join(root, BatchName(name))
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, SaveRecord(Record{Dir: dir, Moves: map[string]string{
			filepath.Join(dir, name+".pdf"): filepath.Join(root, name+".pdf"),
		}}))
	}
	// No record file: not a batch yet.
	require.NoError(t, os.MkdirAll(filepath.Join(root, BatchName("d")), 0o755))
	// Not a batch name.
	writeFile(t, filepath.Join(root, "other", RecordFileName), "{}")
	// Nested batches are not listed.
	nested := filepath.Join(root, "sub", BatchName("e"))
	require.NoError(t, os.MkdirAll(nested, 0o755))
	writeFile(t, filepath.Join(nested, RecordFileName), "{}")

	names := func(recs []Record) []string {
		var out []string
		for _, r := range recs {
			out = append(out, r.Name)
		}
		return out
	}

	tests := []struct {
		name   string
		filter BatchFilter
		want   []string
	}{
		{"all", BatchFilter{}, []string{
			"_unlinked_files_a", "_unlinked_files_b", "_unlinked_files_c",
		}},
		{"include", BatchFilter{Include: []string{"_unlinked_files_b"}},
			[]string{"_unlinked_files_b"}},
		{"exclude", BatchFilter{Exclude: []string{"_unlinked_files_a"}},
			[]string{"_unlinked_files_b", "_unlinked_files_c"}},
		{"include and exclude", BatchFilter{
			Include: []string{"_unlinked_files_a", "_unlinked_files_c"},
			Exclude: []string{"_unlinked_files_b"},
		}, []string{"_unlinked_files_a", "_unlinked_files_c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ListBatches(root, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(got))
		})
	}
}

func TestListBatchesOverlap(t *testing.T) {
	_, err := ListBatches(t.TempDir(), BatchFilter{
		Include: []string{"_unlinked_files_a"},
		Exclude: []string{"_unlinked_files_a"},
	})
	assert.ErrorIs(t, err, ErrConflictingPolicy)
}

func TestListBatchesMissingRoot(t *testing.T) {
	got, err := ListBatches(filepath.Join(t.TempDir(), "gone"), BatchFilter{})
	require.NoError(t, err)
	assert.Empty(t, got)
}
