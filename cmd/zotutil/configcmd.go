package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/airallergy/zotutil/internal/config"
)

// saveConfig persists the layered config and prints what is now
// stored.
func saveConfig(w io.Writer, cfg config.Config) error {
	if err := cfg.Save(); err != nil {
		return err
	}
	fmt.Fprintf(w, "Saved %s/config.json\n", cfg.DataDir)
	show := func(name, v string) {
		if v == "" {
			v = "(from Zotero preferences)"
		}
		fmt.Fprintf(w, "  %-16s %s\n", name, v)
	}
	show("profile", cfg.ProfileDir)
	show("zotero data dir", cfg.ZoteroDataDir)
	show("root", cfg.AttachmentRoot)
	show("file types", cfg.FileTypes)
	if cfg.ItemsExport != "" {
		show("items json", cfg.ItemsExport)
	}
	return nil
}

func runConfig(args []string) {
	fs := newFlagSet("config")
	exitOnParseError(fs.Parse(args))
	cfg, err := config.Load(fs)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if err := saveConfig(os.Stdout, cfg); err != nil {
		log.Fatalf("config: %v", err)
	}
}
