package main

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/airallergy/zotutil/internal/config"
	"github.com/airallergy/zotutil/internal/db"
	"github.com/airallergy/zotutil/internal/library"
	"github.com/airallergy/zotutil/internal/quarantine"
	"github.com/airallergy/zotutil/internal/zotero"
)

// newFlagSet returns a flag set carrying the shared flags.
func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	config.RegisterFlags(fs)
	return fs
}

// env is everything a command needs to act on one attachment root.
type env struct {
	cfg     config.Config
	session *quarantine.Session
	source  library.Source

	// libraryPath is the zotero.sqlite in use, or "" when reading
	// an items export.
	libraryPath string
}

// openEnv resolves the attachment root, file types and metadata
// source, consulting the Zotero profile only for what cfg leaves
// unset.
func openEnv(cfg config.Config) (*env, error) {
	var resolver *zotero.Resolver
	prefs := func() (*zotero.Resolver, error) {
		if resolver != nil {
			return resolver, nil
		}
		p, err := zotero.OpenProfile(cfg.ProfileDir)
		if err != nil {
			return nil, fmt.Errorf(
				"%w: opening Zotero profile: %v",
				quarantine.ErrConfiguration, err,
			)
		}
		resolver = &zotero.Resolver{Profile: p, Home: cfg.Home}
		return resolver, nil
	}

	root := cfg.AttachmentRoot
	if root == "" {
		r, err := prefs()
		if err != nil {
			return nil, err
		}
		if root, err = r.AttachmentRoot(); err != nil {
			return nil, fmt.Errorf(
				"%w: %v", quarantine.ErrConfiguration, err,
			)
		}
	}

	csv := cfg.FileTypes
	if csv == "" {
		r, err := prefs()
		if err != nil {
			return nil, err
		}
		if csv, err = r.FileTypesCSV(); err != nil {
			return nil, fmt.Errorf(
				"%w: %v", quarantine.ErrConfiguration, err,
			)
		}
	}
	types, err := quarantine.ParseFileTypes(csv)
	if err != nil {
		return nil, err
	}

	e := &env{cfg: cfg}
	if cfg.ItemsExport != "" {
		e.source = library.ExportSource{Path: cfg.ItemsExport}
	} else {
		e.libraryPath = cfg.LibraryPath()
		if e.libraryPath == "" {
			r, err := prefs()
			if err != nil {
				return nil, err
			}
			dataDir, err := r.DataDir()
			if err != nil {
				return nil, fmt.Errorf(
					"%w: %v", quarantine.ErrConfiguration, err,
				)
			}
			e.libraryPath = filepath.Join(dataDir, "zotero.sqlite")
		}
		e.source = library.SQLiteSource{Path: e.libraryPath}
	}

	e.session, err = quarantine.NewSession(root, types, e.source)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// openJournal opens the operation journal. A journal that cannot
// be opened is logged and skipped; it never blocks filesystem work.
func openJournal(cfg config.Config) *db.DB {
	journal, err := db.Open(cfg.JournalPath)
	if err != nil {
		log.Printf("warning: journal unavailable: %v", err)
		return nil
	}
	return journal
}

// loadEnv loads the layered config for the parsed flag set and
// opens the command environment, exiting on failure.
func loadEnv(fs *flag.FlagSet) *env {
	if fs.NArg() > 0 {
		exitOnParseError(fmt.Errorf(
			"unexpected arguments: %s", strings.Join(fs.Args(), " "),
		))
	}
	cfg, err := config.Load(fs)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	e, err := openEnv(cfg)
	if err != nil {
		log.Fatal(err)
	}
	return e
}

// splitList splits a comma-separated flag value.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
