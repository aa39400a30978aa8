package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/airallergy/zotutil/internal/db"
	"github.com/airallergy/zotutil/internal/quarantine"
)

// RestoreConfig holds parsed CLI options for the restore command.
type RestoreConfig struct {
	Filter quarantine.BatchFilter
	DryRun bool
	Yes    bool
}

func parseRestoreFlags(
	args []string,
) (RestoreConfig, *flag.FlagSet, error) {
	fs := newFlagSet("restore")
	include := fs.String("include", "",
		"Comma-separated batch names to restore (default: all)")
	exclude := fs.String("exclude", "",
		"Comma-separated batch names to skip")
	dryRun := fs.Bool("dry-run", false,
		"Show what would be restored without moving anything")
	yes := fs.Bool("yes", false, "Skip confirmation prompt")

	if err := fs.Parse(args); err != nil {
		return RestoreConfig{}, fs, err
	}
	return RestoreConfig{
		Filter: quarantine.BatchFilter{
			Include: splitList(*include),
			Exclude: splitList(*exclude),
		},
		DryRun: *dryRun,
		Yes:    *yes,
	}, fs, nil
}

// Restore moves batched files back to where they were relocated
// from.
func (r *Runner) Restore(ctx context.Context, cfg RestoreConfig) error {
	sel := quarantine.Selection{PastSessions: true, Filter: cfg.Filter}
	records, err := r.Session.Resolve(ctx, sel)
	if err != nil {
		return err
	}
	n := countFiles(records)
	if n == 0 {
		fmt.Fprintln(r.Out, "Nothing to restore.")
		return nil
	}

	root := r.Session.Root()
	fmt.Fprintf(r.Out, "Found %d files to restore:\n", n)
	for _, rec := range records {
		fmt.Fprintf(r.Out, "%s\n", rec.Name)
		writeFileList(r.Out, root, rec)
	}

	if cfg.DryRun {
		fmt.Fprintln(r.Out, "\nDry run: no changes made.")
		return nil
	}
	if !cfg.Yes {
		msg := fmt.Sprintf("\nRestore %d files?", n)
		if !confirm(r.In, r.Out, msg) {
			fmt.Fprintln(r.Out, "Aborted.")
			return nil
		}
	}

	stats, err := r.Session.Restore(records)
	for _, done := range stats.Applied {
		r.record(db.KindRestore, done)
	}
	var conflict *quarantine.RestoreConflictError
	if errors.As(err, &conflict) {
		fmt.Fprintf(r.Out,
			"\nRestored %d files, then stopped: %s already exists.\n"+
				"Move it aside and run restore again.\n",
			stats.Restored, relPath(root, conflict.Original),
		)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(r.Out, "\nRestored %d files from %d batches\n",
		stats.Restored, stats.Records)
	if stats.Missing > 0 {
		fmt.Fprintf(r.Out, "%d files were already gone.\n", stats.Missing)
	}
	return nil
}

func runRestore(args []string) {
	cfg, fs, err := parseRestoreFlags(args)
	exitOnParseError(err)
	runner, closeJournal := newRunner(loadEnv(fs))
	defer closeJournal()

	if err := runner.Restore(context.Background(), cfg); err != nil {
		log.Fatalf("restore: %v", err)
	}
}
