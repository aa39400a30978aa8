package quarantine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration reports an unresolvable root or filter.
	ErrConfiguration = errors.New("configuration error")

	// ErrConflictingPolicy reports incompatible selection flags.
	ErrConflictingPolicy = errors.New("conflicting selection policy")

	// ErrNoSessionRelocation reports a this-session selection
	// made before any relocation in the session.
	ErrNoSessionRelocation = errors.New(
		"no relocation done previously in this session",
	)

	ErrRestoreConflict = errors.New("restore destination exists")
	ErrNameCollision   = errors.New("basename collision")
)

// RestoreConflictError is returned when a quarantined file cannot
// go back because its original path is occupied.
type RestoreConflictError struct {
	Quarantined string
	Original    string
}

func (e *RestoreConflictError) Error() string {
	return fmt.Sprintf(
		"restoring %s: %q already exists",
		e.Quarantined, e.Original,
	)
}

func (e *RestoreConflictError) Is(target error) bool {
	return target == ErrRestoreConflict
}

// NameCollisionError is returned when two unlinked files would land
// on the same name inside a batch directory.
type NameCollisionError struct {
	Batch string
	Name  string
	Paths []string
}

func (e *NameCollisionError) Error() string {
	return fmt.Sprintf(
		"%s: %q would be taken by %s",
		e.Batch, e.Name, strings.Join(e.Paths, ", "),
	)
}

func (e *NameCollisionError) Is(target error) bool {
	return target == ErrNameCollision
}
