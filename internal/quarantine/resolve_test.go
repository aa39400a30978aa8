package quarantine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordNames(recs []Record) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Name)
	}
	return out
}

// seedBatches relocates one file into each labelled batch using a
// throwaway session that links keep, so the batches look like past
// sessions.
func seedBatches(
	t *testing.T, root string, keep []string, labels ...string,
) {
	t.Helper()
	past := newSession(t, root, keep)
	for _, label := range labels {
		writeFile(t, filepath.Join(root, "in", label+".pdf"), label)
		_, err := past.Relocate(context.Background(), label)
		require.NoError(t, err)
	}
}

func TestResolveConflictingPolicy(t *testing.T) {
	root := makeTree(t, "b.pdf")
	s := newSession(t, root, nil)
	before := snapshot(t, root)

	_, err := s.Resolve(context.Background(), Selection{
		ThisSession: true, Unrelocated: true,
	})
	require.ErrorIs(t, err, ErrConflictingPolicy)
	assert.Equal(t, before, snapshot(t, root), "no mutation on policy error")
}

func TestResolveFilterOverlapBeforeRelocation(t *testing.T) {
	root := makeTree(t, "b.pdf")
	s := newSession(t, root, nil)
	before := snapshot(t, root)

	_, err := s.Resolve(context.Background(), Selection{
		PastSessions: true,
		Unrelocated:  true,
		Filter: BatchFilter{
			Include: []string{"_unlinked_files_x"},
			Exclude: []string{"_unlinked_files_x"},
		},
	})
	require.ErrorIs(t, err, ErrConflictingPolicy)
	assert.Equal(t, before, snapshot(t, root))
}

func TestResolveNoSessionRelocation(t *testing.T) {
	s := newSession(t, makeTree(t, "b.pdf"), nil)
	_, err := s.Resolve(context.Background(), Selection{ThisSession: true})
	assert.ErrorIs(t, err, ErrNoSessionRelocation)
}

func TestResolvePastSessions(t *testing.T) {
	root := makeTree(t, "keep.pdf")
	seedBatches(t, root, []string{"keep.pdf"}, "a", "b", "c")
	s := newSession(t, root, []string{"keep.pdf"})

	recs, err := s.Resolve(context.Background(), Selection{
		PastSessions: true,
		Filter:       BatchFilter{Exclude: []string{"_unlinked_files_b"}},
	})
	require.NoError(t, err)
	assert.Equal(t,
		[]string{"_unlinked_files_a", "_unlinked_files_c"},
		recordNames(recs),
	)
}

func TestResolveThisAndPastSkipsThisBatch(t *testing.T) {
	root := makeTree(t, "keep.pdf")
	seedBatches(t, root, []string{"keep.pdf"}, "a", "z")
	s := newSession(t, root, []string{"keep.pdf"})
	ctx := context.Background()

	writeFile(t, filepath.Join(root, "new.pdf"), "new")
	_, err := s.Relocate(ctx, "m")
	require.NoError(t, err)

	recs, err := s.Resolve(ctx, Selection{
		ThisSession:  true,
		PastSessions: true,
		Filter: BatchFilter{Include: []string{
			"_unlinked_files_m", "_unlinked_files_z",
		}},
	})
	require.NoError(t, err)
	assert.Equal(t,
		[]string{"_unlinked_files_m", "_unlinked_files_z"},
		recordNames(recs),
	)
}

func TestResolveUnrelocated(t *testing.T) {
	root := makeTree(t, "keep.pdf", "b.pdf")
	seedBatches(t, root, []string{"keep.pdf", "b.pdf"}, "old")
	s := newSession(t, root, []string{"keep.pdf"})
	ctx := context.Background()

	recs, err := s.Resolve(ctx, Selection{
		PastSessions: true,
		Unrelocated:  true,
	})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "_unlinked_files_old", recs[0].Name)
	assert.Equal(t, "_unlinked_files_20240615123045", recs[1].Name)
	assert.Len(t, recs[1].Moves, 1)

	stats, err := s.Remove(recs)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Records)
	assert.Equal(t, 2, stats.Removed)
	assert.Len(t, stats.Applied, 2)
	assert.Equal(t,
		map[string]string{"keep.pdf": "keep.pdf"}, snapshot(t, root),
	)
}

func TestResolveUnrelocatedEmpty(t *testing.T) {
	root := makeTree(t, "keep.pdf")
	s := newSession(t, root, []string{"keep.pdf"})
	ctx := context.Background()

	recs, err := s.Resolve(ctx, Selection{Unrelocated: true, Label: "now"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Empty())

	stats, err := s.Remove(recs)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Records)
	assert.Zero(t, stats.Removed)
	assert.Empty(t, stats.Applied)
	assert.True(t, fileExists(filepath.Join(root, "keep.pdf")))
}

func TestRestorePastSessions(t *testing.T) {
	root := makeTree(t, "keep.pdf")
	seedBatches(t, root, []string{"keep.pdf"}, "a", "b")
	s := newSession(t, root, []string{"keep.pdf"})

	recs, err := s.Resolve(context.Background(), Selection{
		PastSessions: true,
		Filter:       BatchFilter{Include: []string{"_unlinked_files_a"}},
	})
	require.NoError(t, err)
	stats, err := s.Restore(recs)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Records)
	assert.Equal(t, 1, stats.Restored)
	require.Len(t, stats.Applied, 1)
	assert.Equal(t, "_unlinked_files_a", stats.Applied[0].Name)

	files := snapshot(t, root)
	assert.Equal(t, "a", files["in/a.pdf"])
	assert.Equal(t, "b", files["_unlinked_files_b/b.pdf"])
	assert.NotContains(t, files, "_unlinked_files_a/"+RecordFileName)
}
