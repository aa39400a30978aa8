// Package timeutil formats the timestamps zotutil writes to disk.
package timeutil

import "time"

// batchLayout matches the labels of timestamped quarantine batches,
// e.g. 20240615123045.
const batchLayout = "20060102150405"

// Format returns t as RFC3339Nano in UTC, or "" for the zero time.
func Format(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// BatchLabel returns the local-time label used to name a batch
// directory when the caller supplies none.
func BatchLabel(t time.Time) string {
	return t.Format(batchLayout)
}

// ParseBatchLabel parses a label produced by BatchLabel. ok is
// false for caller-chosen labels.
func ParseBatchLabel(label string) (t time.Time, ok bool) {
	t, err := time.ParseInLocation(batchLayout, label, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
