package quarantine

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	// BatchPrefix starts the name of every quarantine batch
	// directory.
	BatchPrefix = "_unlinked_files"

	// RecordFileName is the relocation record kept in each batch.
	RecordFileName = "_relocation_map.json"
)

// Record maps quarantined file paths to the paths they were moved
// from. Name and Dir identify the batch directory holding them.
type Record struct {
	Name  string
	Dir   string
	Moves map[string]string
}

// Empty reports whether the record governs no files.
func (r Record) Empty() bool {
	return len(r.Moves) == 0
}

// Path returns the location of the record file.
func (r Record) Path() string {
	return filepath.Join(r.Dir, RecordFileName)
}

// BatchName returns the batch directory name for label. An empty
// label yields the bare prefix.
func BatchName(label string) string {
	if label == "" {
		return BatchPrefix
	}
	return BatchPrefix + "_" + label
}

// IsBatchName reports whether name looks like a batch directory.
func IsBatchName(name string) bool {
	return strings.HasPrefix(name, BatchPrefix)
}

// LoadRecord reads the record file in dir. found is false when the
// directory has no record.
func LoadRecord(dir string) (rec Record, found bool, err error) {
	rec = Record{Name: filepath.Base(dir), Dir: dir}
	data, err := os.ReadFile(filepath.Join(dir, RecordFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return rec, false, nil
	}
	if err != nil {
		return rec, false, fmt.Errorf("reading record: %w", err)
	}
	moves, err := parseMoves(data)
	if err != nil {
		return rec, false, fmt.Errorf(
			"parsing %s: %w", rec.Path(), err,
		)
	}
	rec.Moves = moves
	return rec, true, nil
}

func parseMoves(data []byte) (map[string]string, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("invalid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, errors.New("record is not a JSON object")
	}
	moves := make(map[string]string)
	var bad string
	root.ForEach(func(key, value gjson.Result) bool {
		if value.Type != gjson.String {
			bad = key.String()
			return false
		}
		moves[key.String()] = value.String()
		return true
	})
	if bad != "" {
		return nil, fmt.Errorf("entry %q is not a path", bad)
	}
	return moves, nil
}

// SaveRecord writes rec.Moves to the batch's record file, merging
// with any record already there. Existing entries win on key
// collision. The file is replaced atomically so a failed write
// leaves the previous record intact.
func SaveRecord(rec Record) error {
	existing, found, err := LoadRecord(rec.Dir)
	if err != nil {
		return err
	}
	merged := make(map[string]string, len(rec.Moves))
	for k, v := range rec.Moves {
		merged[k] = v
	}
	if found {
		for k, v := range existing.Moves {
			merged[k] = v
		}
	}
	return writeRecord(rec.Dir, merged)
}

// writeRecord replaces the record file without merging.
func writeRecord(dir string, moves map[string]string) error {
	out, err := json.MarshalIndent(moves, "", "    ")
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".relocation-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp record: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		return fmt.Errorf("writing record: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing record: %w", err)
	}
	if err := os.Rename(
		tmpPath, filepath.Join(dir, RecordFileName),
	); err != nil {
		return fmt.Errorf("replacing record: %w", err)
	}
	return nil
}

func deleteRecord(rec Record) error {
	err := os.Remove(rec.Path())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting record: %w", err)
	}
	return nil
}

// BatchFilter narrows ListBatches by batch directory name. An
// empty Include admits every batch.
type BatchFilter struct {
	Include []string
	Exclude []string
}

func (f BatchFilter) validate() error {
	inc := make(map[string]bool, len(f.Include))
	for _, n := range f.Include {
		inc[n] = true
	}
	var both []string
	for _, n := range f.Exclude {
		if inc[n] {
			both = append(both, n)
		}
	}
	if len(both) > 0 {
		return fmt.Errorf(
			"%w: %s found in both include and exclude",
			ErrConflictingPolicy, strings.Join(both, ", "),
		)
	}
	return nil
}

func (f BatchFilter) admits(name string) bool {
	for _, n := range f.Exclude {
		if n == name {
			return false
		}
	}
	if len(f.Include) == 0 {
		return true
	}
	for _, n := range f.Include {
		if n == name {
			return true
		}
	}
	return false
}

// ListBatches returns the records of batch directories directly
// under root, in name order. Directories without a record file are
// skipped.
func ListBatches(root string, f BatchFilter) ([]Record, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing batches: %w", err)
	}

	var records []Record
	for _, e := range entries {
		if !e.IsDir() || !IsBatchName(e.Name()) ||
			!f.admits(e.Name()) {
			continue
		}
		rec, found, err := LoadRecord(filepath.Join(root, e.Name()))
		if err != nil {
			return nil, err
		}
		if found {
			records = append(records, rec)
		}
	}
	return records, nil
}
