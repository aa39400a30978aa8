package main

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/airallergy/zotutil/internal/db"
	"github.com/airallergy/zotutil/internal/quarantine"
)

// Runner executes commands against one session.
type Runner struct {
	Session *quarantine.Session
	Journal *db.DB // nil disables journaling
	Out     io.Writer
	In      io.Reader
}

// newRunner wires a Runner to the terminal and the journal. The
// returned func closes the journal.
func newRunner(e *env) (*Runner, func()) {
	journal := openJournal(e.cfg)
	r := &Runner{
		Session: e.session,
		Journal: journal,
		Out:     os.Stdout,
		In:      os.Stdin,
	}
	return r, func() {
		if journal != nil {
			journal.Close()
		}
	}
}

// record journals one batch operation. Failures are logged.
func (r *Runner) record(kind string, rec quarantine.Record) {
	if r.Journal == nil || rec.Empty() {
		return
	}
	_, err := r.Journal.RecordOperation(db.Operation{
		Kind:  kind,
		Root:  r.Session.Root(),
		Batch: rec.Name,
	}, rec.Moves)
	if err != nil {
		log.Printf("warning: journaling %s of %s: %v", kind, rec.Name, err)
	}
}

func confirm(r io.Reader, w io.Writer, msg string) bool {
	fmt.Fprintf(w, "%s [y/N] ", msg)
	scanner := bufio.NewScanner(r)
	scanner.Scan()
	ans := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return ans == "y" || ans == "yes"
}

// relPath shows p relative to root when it lies inside it.
func relPath(root, p string) string {
	rel, err := filepath.Rel(root, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return p
	}
	return rel
}

// writeBatchSummary prints each batch with its file count and
// size, followed by files about to be relocated.
func writeBatchSummary(
	w io.Writer, root string,
	records []quarantine.Record, unlinked []string,
) {
	var total int64
	for _, rec := range records {
		var paths []string
		for q := range rec.Moves {
			paths = append(paths, q)
		}
		size := totalSize(paths)
		total += size
		fmt.Fprintf(w, "  %-40s %4d files  %s\n",
			rec.Name, len(rec.Moves), formatBytes(size))
	}
	if len(unlinked) > 0 {
		size := totalSize(unlinked)
		total += size
		fmt.Fprintf(w, "  %-40s %4d files  %s\n",
			"(unlinked, not yet relocated)", len(unlinked),
			formatBytes(size))
		for _, p := range unlinked {
			fmt.Fprintf(w, "    %s\n", relPath(root, p))
		}
	}
	fmt.Fprintf(w, "Total: %s\n", formatBytes(total))
}

// writeFileList prints the files of each record, sorted.
func writeFileList(w io.Writer, root string, rec quarantine.Record) {
	keys := make([]string, 0, len(rec.Moves))
	for q := range rec.Moves {
		keys = append(keys, q)
	}
	sort.Strings(keys)
	for _, q := range keys {
		fmt.Fprintf(w, "  %s <- %s\n",
			relPath(root, q), relPath(root, rec.Moves[q]))
	}
}

func countFiles(records []quarantine.Record) int {
	n := 0
	for _, rec := range records {
		n += len(rec.Moves)
	}
	return n
}

// totalSize sums the sizes of the paths that still exist.
func totalSize(paths []string) int64 {
	var n int64
	for _, p := range paths {
		if info, err := os.Lstat(p); err == nil {
			n += info.Size()
		}
	}
	return n
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
