package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/airallergy/zotutil/internal/db"
	"github.com/airallergy/zotutil/internal/quarantine"
)

// RemoveConfig holds parsed CLI options for the remove command.
type RemoveConfig struct {
	Selection quarantine.Selection
	DryRun    bool
	Yes       bool
}

func parseRemoveFlags(args []string) (RemoveConfig, *flag.FlagSet, error) {
	fs := newFlagSet("remove")
	past := fs.Bool("past", false,
		"Select batches already under the attachment root")
	unrelocated := fs.Bool("unrelocated", false,
		"Relocate unlinked files first and select the new batch")
	include := fs.String("include", "",
		"Comma-separated batch names to select (implies -past)")
	exclude := fs.String("exclude", "",
		"Comma-separated batch names to skip (implies -past)")
	label := fs.String("label", "",
		"Batch label for -unrelocated (default: current time)")
	dryRun := fs.Bool("dry-run", false,
		"Show what would be deleted without deleting")
	yes := fs.Bool("yes", false, "Skip confirmation prompt")

	if err := fs.Parse(args); err != nil {
		return RemoveConfig{}, fs, err
	}

	filter := quarantine.BatchFilter{
		Include: splitList(*include),
		Exclude: splitList(*exclude),
	}
	hasFilter := len(filter.Include) > 0 || len(filter.Exclude) > 0
	cfg := RemoveConfig{
		Selection: quarantine.Selection{
			PastSessions: *past || hasFilter,
			Filter:       filter,
			Unrelocated:  *unrelocated,
			Label:        *label,
		},
		DryRun: *dryRun,
		Yes:    *yes,
	}
	if !cfg.Selection.PastSessions && !cfg.Selection.Unrelocated {
		return cfg, fs, fmt.Errorf(
			"nothing selected\n" +
				"use -past, -include, -exclude, or -unrelocated",
		)
	}
	return cfg, fs, nil
}

// preview lists what a selection would act on without touching the
// filesystem: the existing batches it selects and the files a fresh
// relocation would add.
func (r *Runner) preview(
	ctx context.Context, sel quarantine.Selection,
) ([]quarantine.Record, []string, error) {
	var past []quarantine.Record
	if sel.PastSessions {
		var err error
		past, err = quarantine.ListBatches(r.Session.Root(), sel.Filter)
		if err != nil {
			return nil, nil, err
		}
	}
	var unlinked []string
	if sel.Unrelocated {
		var err error
		if unlinked, err = r.Session.Unlinked(ctx); err != nil {
			return nil, nil, err
		}
	}
	return past, unlinked, nil
}

// Remove permanently deletes the selected batches.
func (r *Runner) Remove(ctx context.Context, cfg RemoveConfig) error {
	past, unlinked, err := r.preview(ctx, cfg.Selection)
	if err != nil {
		return err
	}
	n := countFiles(past) + len(unlinked)
	if n == 0 {
		fmt.Fprintln(r.Out, "Nothing to remove.")
		return nil
	}

	fmt.Fprintf(r.Out, "Found %d files to delete:\n", n)
	writeBatchSummary(r.Out, r.Session.Root(), past, unlinked)

	if cfg.DryRun {
		fmt.Fprintln(r.Out, "\nDry run: no changes made.")
		return nil
	}
	if !cfg.Yes {
		msg := fmt.Sprintf("\nPermanently delete %d files?", n)
		if !confirm(r.In, r.Out, msg) {
			fmt.Fprintln(r.Out, "Aborted.")
			return nil
		}
	}

	records, err := r.Session.Resolve(ctx, cfg.Selection)
	if err != nil {
		return err
	}
	if cfg.Selection.Unrelocated {
		r.record(db.KindRelocate, records[len(records)-1])
	}

	sizes := make(map[string]int64)
	for _, rec := range records {
		for q := range rec.Moves {
			sizes[q] = totalSize([]string{q})
		}
	}

	stats, err := r.Session.Remove(records)
	var reclaimed int64
	for _, done := range stats.Applied {
		r.record(db.KindRemove, done)
		for q := range done.Moves {
			reclaimed += sizes[q]
		}
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(r.Out,
		"\nDeleted %d files from %d batches (%s reclaimed)\n",
		stats.Removed, stats.Records, formatBytes(reclaimed),
	)
	if stats.Missing > 0 {
		fmt.Fprintf(r.Out, "%d files were already gone.\n", stats.Missing)
	}
	return nil
}

func runRemove(args []string) {
	cfg, fs, err := parseRemoveFlags(args)
	exitOnParseError(err)
	runner, closeJournal := newRunner(loadEnv(fs))
	defer closeJournal()

	if err := runner.Remove(context.Background(), cfg); err != nil {
		log.Fatalf("remove: %v", err)
	}
}
