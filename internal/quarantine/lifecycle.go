package quarantine

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/airallergy/zotutil/internal/prune"
)

// RemoveStats summarizes a Remove call.
type RemoveStats struct {
	Records int
	Removed int
	Missing int

	// Applied holds, per record, only the files this call deleted.
	// Records with none are omitted.
	Applied []Record
}

// RestoreStats summarizes a Restore call.
type RestoreStats struct {
	Records  int
	Restored int
	Missing  int

	// Applied holds, per record, only the files this call moved
	// back, including those of a record cut short by a conflict.
	// Records with none are omitted.
	Applied []Record
}

// applied returns an empty record for the same batch as rec.
func applied(rec Record) Record {
	return Record{Name: rec.Name, Dir: rec.Dir, Moves: map[string]string{}}
}

// Remove permanently deletes the quarantined files of each record,
// then the record file, then prunes the root. Files already gone
// are counted as missing and skipped.
func (s *Session) Remove(records []Record) (RemoveStats, error) {
	var stats RemoveStats
	for _, rec := range records {
		handled := make(map[string]bool, len(rec.Moves))
		done := applied(rec)
		for _, q := range sortedKeys(rec.Moves) {
			if !s.governs(rec, q) {
				continue
			}
			err := os.Remove(q)
			switch {
			case err == nil:
				stats.Removed++
				handled[q] = true
				done.Moves[q] = rec.Moves[q]
			case errors.Is(err, fs.ErrNotExist):
				stats.Missing++
				handled[q] = true
			default:
				log.Printf("remove: deleting %s: %v", q, err)
			}
		}
		if !done.Empty() {
			stats.Applied = append(stats.Applied, done)
		}
		if err := s.settle(rec, handled); err != nil {
			return stats, err
		}
		stats.Records++
	}
	if err := prune.Dir(s.root); err != nil {
		return stats, fmt.Errorf("pruning: %w", err)
	}
	return stats, nil
}

// Restore moves the quarantined files of each record back to their
// original paths, recreating parent directories as needed, then
// deletes the record file and prunes the root.
//
// If an original path is occupied, Restore stops with a
// *RestoreConflictError. Files restored before the conflict stay
// restored and the record is rewritten to govern only the files
// still in quarantine. Later records are not processed.
func (s *Session) Restore(records []Record) (RestoreStats, error) {
	var stats RestoreStats
	for _, rec := range records {
		if err := s.restoreRecord(rec, &stats); err != nil {
			if pruneErr := prune.Dir(s.root); pruneErr != nil {
				log.Printf("restore: pruning: %v", pruneErr)
			}
			return stats, err
		}
		stats.Records++
	}
	if err := prune.Dir(s.root); err != nil {
		return stats, fmt.Errorf("pruning: %w", err)
	}
	return stats, nil
}

func (s *Session) restoreRecord(
	rec Record, stats *RestoreStats,
) error {
	handled := make(map[string]bool, len(rec.Moves))
	done := applied(rec)
	defer func() {
		if !done.Empty() {
			stats.Applied = append(stats.Applied, done)
		}
	}()
	for _, q := range sortedKeys(rec.Moves) {
		orig := rec.Moves[q]
		if !s.governs(rec, q) {
			continue
		}
		if _, err := os.Lstat(q); errors.Is(err, fs.ErrNotExist) {
			stats.Missing++
			handled[q] = true
			continue
		}
		if _, err := os.Lstat(orig); err == nil {
			if err := s.settle(rec, handled); err != nil {
				log.Printf("restore: %v", err)
			}
			return &RestoreConflictError{Quarantined: q, Original: orig}
		}
		if err := os.MkdirAll(filepath.Dir(orig), 0o755); err != nil {
			log.Printf("restore: creating parent of %s: %v", orig, err)
			continue
		}
		if err := os.Rename(q, orig); err != nil {
			log.Printf("restore: moving %s: %v", q, err)
			continue
		}
		handled[q] = true
		done.Moves[q] = orig
		stats.Restored++
	}
	return s.settle(rec, handled)
}

// settle brings the batch's record file in line with what is still
// quarantined: handled entries and entries whose file is gone are
// dropped, and the file is deleted once nothing is left. The file
// on disk may hold more than rec when a batch label was reused.
func (s *Session) settle(rec Record, handled map[string]bool) error {
	onDisk, found, err := LoadRecord(rec.Dir)
	if err != nil {
		return err
	}
	left := make(map[string]string)
	if found {
		for q, orig := range onDisk.Moves {
			if handled[q] {
				continue
			}
			if _, err := os.Lstat(q); err != nil {
				continue
			}
			left[q] = orig
		}
	}
	if len(left) > 0 {
		if err := writeRecord(rec.Dir, left); err != nil {
			return fmt.Errorf("rewriting %s: %w", rec.Path(), err)
		}
		return nil
	}
	if err := deleteRecord(rec); err != nil {
		return err
	}
	s.forget(rec)
	return nil
}

// governs reports whether q is a file the record may act on: a
// direct child of the record's batch directory.
func (s *Session) governs(rec Record, q string) bool {
	if filepath.Dir(filepath.Clean(q)) == filepath.Clean(rec.Dir) {
		return true
	}
	log.Printf("%s: ignoring %s outside the batch", rec.Name, q)
	return false
}

// forget clears this session's relocation once its batch is gone.
func (s *Session) forget(rec Record) {
	if s.last != nil && s.last.Dir == rec.Dir {
		s.last = nil
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
