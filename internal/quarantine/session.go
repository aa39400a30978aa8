// Package quarantine reconciles an attachment directory against the
// paths a Zotero library declares, and moves unlinked files into
// quarantine batches that can later be removed or restored.
//
// A Session is not safe for concurrent use, and no two sessions,
// in this process or another, may operate on the same attachment
// root at the same time. Callers must serialize access to a root.
package quarantine

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/airallergy/zotutil/internal/prune"
	"github.com/airallergy/zotutil/internal/timeutil"
)

// LinkedPaths supplies the attachment paths the metadata source
// currently declares. It is queried afresh on every pass.
type LinkedPaths interface {
	AttachmentPaths(ctx context.Context) ([]string, error)
}

// Session holds the state of one reconciliation session against a
// single attachment root.
type Session struct {
	root   string
	types  FileTypes
	linked LinkedPaths
	now    func() time.Time

	// alias is root as the caller named it, when that path reaches
	// root through a symlink.
	alias string

	// last is the record of the most recent non-empty relocation
	// in this session, nil when there was none.
	last *Record
}

// Option configures a Session.
type Option func(*Session)

// WithClock overrides the clock used for timestamped batch labels.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// NewSession validates root and returns a session bound to it.
func NewSession(
	root string, types FileTypes, linked LinkedPaths,
	opts ...Option,
) (*Session, error) {
	if len(types) == 0 {
		return nil, fmt.Errorf(
			"%w: empty file type filter", ErrConfiguration,
		)
	}
	if linked == nil {
		return nil, fmt.Errorf(
			"%w: no metadata source", ErrConfiguration,
		)
	}
	s := &Session{types: types, linked: linked, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.SetRoot(root); err != nil {
		return nil, err
	}
	return s, nil
}

// Root returns the attachment root.
func (s *Session) Root() string { return s.root }

// FileTypes returns the session's file type filter.
func (s *Session) FileTypes() FileTypes { return s.types }

// SetRoot rebinds the session to another attachment root and
// forgets this session's relocation. Symlinks in root are resolved,
// so Root returns the real directory.
func (s *Session) SetRoot(root string) error {
	if root == "" {
		return fmt.Errorf(
			"%w: attachment root not set", ErrConfiguration,
		)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return fmt.Errorf(
			"%w: attachment root: %v", ErrConfiguration, err,
		)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return fmt.Errorf(
			"%w: attachment root: %v", ErrConfiguration, err,
		)
	}
	if !info.IsDir() {
		return fmt.Errorf(
			"%w: attachment root %s is not a directory",
			ErrConfiguration, abs,
		)
	}
	s.root = resolved
	s.alias = ""
	if resolved != abs {
		s.alias = abs
	}
	s.last = nil
	return nil
}

// LastRelocation returns the record of this session's most recent
// relocation that moved at least one file.
func (s *Session) LastRelocation() (Record, bool) {
	if s.last == nil {
		return Record{}, false
	}
	return *s.last, true
}

// Unlinked returns the files a relocation would move right now.
func (s *Session) Unlinked(ctx context.Context) ([]string, error) {
	linked, err := s.linked.AttachmentPaths(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing linked attachments: %w", err)
	}
	if s.alias != "" {
		linked = rebase(linked, s.alias, s.root)
	}
	return Diff(s.root, s.types, linked)
}

// rebase rewrites absolute paths below from so they lie below to.
// Other paths are returned unchanged.
func rebase(paths []string, from, to string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = p
		fp := filepath.FromSlash(p)
		if !filepath.IsAbs(fp) {
			continue
		}
		rel, err := filepath.Rel(from, filepath.Clean(fp))
		if err != nil || rel == ".." ||
			strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		out[i] = filepath.Join(to, rel)
	}
	return out
}

// TimestampLabel returns a batch label derived from the session
// clock.
func (s *Session) TimestampLabel() string {
	return timeutil.BatchLabel(s.now())
}

// Relocate moves every unlinked file into the batch named by label
// (the bare BatchPrefix when label is empty) and records where each
// file came from. When nothing is unlinked no batch is created
// and an empty record is returned. Reusing a label merges into the
// existing batch.
//
// Files that fail to move are logged and left in place. The
// returned record holds only the files moved by this call.
func (s *Session) Relocate(
	ctx context.Context, label string,
) (Record, error) {
	if strings.ContainsAny(label, `/\`) {
		return Record{}, fmt.Errorf(
			"%w: invalid batch label %q", ErrConfiguration, label,
		)
	}
	name := BatchName(label)
	rec := Record{
		Name:  name,
		Dir:   filepath.Join(s.root, name),
		Moves: map[string]string{},
	}

	unlinked, err := s.Unlinked(ctx)
	if err != nil {
		return rec, err
	}
	if len(unlinked) == 0 {
		return rec, nil
	}
	if err := checkCollisions(rec, unlinked); err != nil {
		return rec, err
	}

	if err := os.MkdirAll(rec.Dir, 0o755); err != nil {
		return rec, fmt.Errorf("creating batch: %w", err)
	}
	for _, src := range unlinked {
		dst := filepath.Join(rec.Dir, filepath.Base(src))
		if _, err := os.Lstat(dst); err == nil {
			log.Printf("relocate: %s already exists, skipping", dst)
			continue
		}
		if err := os.Rename(src, dst); err != nil {
			log.Printf("relocate: moving %s: %v", src, err)
			continue
		}
		rec.Moves[dst] = src
	}

	if !rec.Empty() {
		if err := SaveRecord(rec); err != nil {
			return rec, fmt.Errorf(
				"saving record for %d moved files: %w",
				len(rec.Moves), err,
			)
		}
		last := rec
		s.last = &last
	}
	if err := prune.Dir(s.root); err != nil {
		return rec, fmt.Errorf("pruning: %w", err)
	}
	return rec, nil
}

// checkCollisions fails if two sources share a basename or a
// basename is already taken inside the batch. Names are compared
// case-insensitively so case-folding filesystems are covered.
func checkCollisions(rec Record, sources []string) error {
	byName := make(map[string][]string, len(sources))
	var order []string
	for _, src := range sources {
		key := strings.ToLower(filepath.Base(src))
		if _, seen := byName[key]; !seen {
			order = append(order, key)
		}
		byName[key] = append(byName[key], src)
	}

	taken := make(map[string]string)
	if entries, err := os.ReadDir(rec.Dir); err == nil {
		for _, e := range entries {
			taken[strings.ToLower(e.Name())] = filepath.Join(
				rec.Dir, e.Name(),
			)
		}
	}

	for _, key := range order {
		paths := byName[key]
		if existing, ok := taken[key]; ok {
			paths = append([]string{existing}, paths...)
		}
		if len(paths) > 1 {
			return &NameCollisionError{
				Batch: rec.Name,
				Name:  filepath.Base(byName[key][0]),
				Paths: paths,
			}
		}
	}
	return nil
}
