package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/airallergy/zotutil/internal/config"
	"github.com/airallergy/zotutil/internal/db"
	"github.com/airallergy/zotutil/internal/quarantine"
	"github.com/airallergy/zotutil/internal/timeutil"
)

// List prints every batch under the attachment root.
func (r *Runner) List() error {
	root := r.Session.Root()
	records, err := quarantine.ListBatches(root, quarantine.BatchFilter{})
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintf(r.Out, "No batches under %s.\n", root)
		return nil
	}

	fmt.Fprintf(r.Out, "Batches under %s:\n", root)
	for _, rec := range records {
		var paths []string
		for q := range rec.Moves {
			paths = append(paths, q)
		}
		created := ""
		label := strings.TrimPrefix(rec.Name, quarantine.BatchPrefix+"_")
		if t, ok := timeutil.ParseBatchLabel(label); ok {
			created = t.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(r.Out, "  %-40s %4d files  %-10s %s\n",
			rec.Name, len(rec.Moves),
			formatBytes(totalSize(paths)), created)
	}
	return nil
}

// Status prints the session's configuration and the files a
// relocation would move right now.
func (r *Runner) Status(ctx context.Context, source string) error {
	root := r.Session.Root()
	fmt.Fprintf(r.Out, "Attachment root: %s\n", root)
	fmt.Fprintf(r.Out, "File types:      %s\n", r.Session.FileTypes())
	fmt.Fprintf(r.Out, "Library:         %s\n", source)

	records, err := quarantine.ListBatches(root, quarantine.BatchFilter{})
	if err != nil {
		return err
	}
	fmt.Fprintf(r.Out, "Batches:         %d (%d files)\n",
		len(records), countFiles(records))

	return r.writeUnlinked(ctx)
}

func (r *Runner) writeUnlinked(ctx context.Context) error {
	unlinked, err := r.Session.Unlinked(ctx)
	if err != nil {
		return err
	}
	if len(unlinked) == 0 {
		fmt.Fprintln(r.Out, "\nNo unlinked files.")
		return nil
	}
	fmt.Fprintf(r.Out, "\n%d unlinked files (%s):\n",
		len(unlinked), formatBytes(totalSize(unlinked)))
	for _, p := range unlinked {
		fmt.Fprintf(r.Out, "  %s\n", relPath(r.Session.Root(), p))
	}
	return nil
}

// sourceName describes where linked paths are read from.
func (e *env) sourceName() string {
	if e.libraryPath != "" {
		return e.libraryPath
	}
	return e.cfg.ItemsExport + " (items export)"
}

func runList(args []string) {
	fs := newFlagSet("list")
	exitOnParseError(fs.Parse(args))
	runner := &Runner{Session: loadEnv(fs).session, Out: os.Stdout}
	if err := runner.List(); err != nil {
		log.Fatalf("list: %v", err)
	}
}

func runStatus(args []string) {
	fs := newFlagSet("status")
	exitOnParseError(fs.Parse(args))
	e := loadEnv(fs)
	runner := &Runner{Session: e.session, Out: os.Stdout}
	if err := runner.Status(context.Background(), e.sourceName()); err != nil {
		log.Fatalf("status: %v", err)
	}
}

// HistoryConfig holds parsed CLI options for the history command.
type HistoryConfig struct {
	Limit int
	Files bool
}

// writeHistory prints journaled operations, newest first.
func writeHistory(
	ctx context.Context, w io.Writer, journal *db.DB, cfg HistoryConfig,
) error {
	ops, err := journal.ListOperations(ctx, cfg.Limit)
	if err != nil {
		return err
	}
	if len(ops) == 0 {
		fmt.Fprintln(w, "No operations recorded.")
		return nil
	}
	for _, op := range ops {
		fmt.Fprintf(w, "#%-5d %-25s %-9s %4d files  %s  %s\n",
			op.ID, op.CreatedAt, op.Kind, op.FileCount,
			op.Batch, op.Root)
		if !cfg.Files {
			continue
		}
		files, err := journal.OperationFiles(ctx, op.ID)
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Fprintf(w, "        %s <- %s\n",
				relPath(op.Root, f.Quarantined),
				relPath(op.Root, f.Original))
		}
	}
	return nil
}

func runHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "Number of operations to show (0 for all)")
	files := fs.Bool("files", false, "List the files each operation moved")
	exitOnParseError(fs.Parse(args))

	cfg, err := config.Load(fs)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	journal, err := db.Open(cfg.JournalPath)
	if err != nil {
		log.Fatalf("opening journal: %v", err)
	}
	defer journal.Close()

	if err := writeHistory(context.Background(), os.Stdout, journal,
		HistoryConfig{Limit: *limit, Files: *files}); err != nil {
		log.Fatalf("history: %v", err)
	}
}
