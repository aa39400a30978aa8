package quarantine

import (
	"context"
	"fmt"
)

// Selection chooses which quarantine batches an operation acts on.
type Selection struct {
	// ThisSession selects the batch written by this session's most
	// recent relocation.
	ThisSession bool

	// PastSessions selects batches already on disk, narrowed by
	// Filter.
	PastSessions bool
	Filter       BatchFilter

	// Unrelocated runs a fresh relocation into Label, or into a
	// timestamped batch when Label is empty, and selects its
	// result. It cannot be combined with ThisSession.
	Unrelocated bool
	Label       string
}

func (sel Selection) validate() error {
	if sel.ThisSession && sel.Unrelocated {
		return fmt.Errorf(
			"%w: this-session and unrelocated cannot both be set",
			ErrConflictingPolicy,
		)
	}
	if sel.PastSessions {
		return sel.Filter.validate()
	}
	return nil
}

// Resolve returns the records selected by sel: this session's batch
// first, then past batches in name order, then the record of a new
// relocation pass. All policy checks run before the relocation, so
// an invalid selection never touches the filesystem.
func (s *Session) Resolve(
	ctx context.Context, sel Selection,
) ([]Record, error) {
	if err := sel.validate(); err != nil {
		return nil, err
	}

	var records []Record
	if sel.ThisSession {
		last, ok := s.LastRelocation()
		if !ok {
			return nil, ErrNoSessionRelocation
		}
		records = append(records, last)
	}

	if sel.PastSessions {
		past, err := ListBatches(s.root, sel.Filter)
		if err != nil {
			return nil, err
		}
		for _, rec := range past {
			// Already selected as this session's batch.
			if sel.ThisSession && rec.Name == s.last.Name {
				continue
			}
			records = append(records, rec)
		}
	}

	if sel.Unrelocated {
		label := sel.Label
		if label == "" {
			label = s.TimestampLabel()
		}
		rec, err := s.Relocate(ctx, label)
		if err != nil {
			return nil, fmt.Errorf("relocating: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}
