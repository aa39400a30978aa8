package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/airallergy/zotutil/internal/db"
)

// RelocateConfig holds parsed CLI options for the relocate command.
type RelocateConfig struct {
	Label  string
	DryRun bool
}

func parseRelocateFlags(
	args []string,
) (RelocateConfig, *flag.FlagSet, error) {
	fs := newFlagSet("relocate")
	label := fs.String("label", "",
		"Batch label (default: current time)")
	dryRun := fs.Bool("dry-run", false,
		"Show what would be moved without moving it")
	if err := fs.Parse(args); err != nil {
		return RelocateConfig{}, fs, err
	}
	return RelocateConfig{Label: *label, DryRun: *dryRun}, fs, nil
}

// Relocate moves every unlinked file into a new batch.
func (r *Runner) Relocate(ctx context.Context, cfg RelocateConfig) error {
	root := r.Session.Root()
	if cfg.DryRun {
		unlinked, err := r.Session.Unlinked(ctx)
		if err != nil {
			return err
		}
		if len(unlinked) == 0 {
			fmt.Fprintln(r.Out, "No unlinked files.")
			return nil
		}
		fmt.Fprintf(r.Out, "Would relocate %d files:\n", len(unlinked))
		for _, p := range unlinked {
			fmt.Fprintf(r.Out, "  %s\n", relPath(root, p))
		}
		fmt.Fprintln(r.Out, "\nDry run: no changes made.")
		return nil
	}

	label := cfg.Label
	if label == "" {
		label = r.Session.TimestampLabel()
	}
	rec, err := r.Session.Relocate(ctx, label)
	// A failed prune still leaves moved files behind to journal.
	r.record(db.KindRelocate, rec)
	if err != nil {
		return err
	}
	if rec.Empty() {
		fmt.Fprintln(r.Out, "No unlinked files.")
		return nil
	}
	fmt.Fprintf(r.Out, "Relocated %d files into %s:\n",
		len(rec.Moves), rec.Name)
	writeFileList(r.Out, root, rec)
	return nil
}

func runRelocate(args []string) {
	cfg, fs, err := parseRelocateFlags(args)
	exitOnParseError(err)
	runner, closeJournal := newRunner(loadEnv(fs))
	defer closeJournal()

	if err := runner.Relocate(context.Background(), cfg); err != nil {
		log.Fatalf("relocate: %v", err)
	}
}
