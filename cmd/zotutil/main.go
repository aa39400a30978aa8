package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	_ "time/tzdata"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = ""
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("zotutil: ")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	args := os.Args[2:]
	switch os.Args[1] {
	case "relocate":
		runRelocate(args)
	case "remove":
		runRemove(args)
	case "restore":
		runRestore(args)
	case "list":
		runList(args)
	case "status":
		runStatus(args)
	case "watch":
		runWatch(args)
	case "history":
		runHistory(args)
	case "config":
		runConfig(args)
	case "version", "--version", "-v":
		fmt.Printf("zotutil %s (commit %s, built %s)\n",
			version, commit, buildDate)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		printUsage()
		os.Exit(2)
	}
}

func printUsage() {
	fmt.Printf(`zotutil %s - tidy files Zotero no longer links to

Finds files under the Zotero attachment root that no linked-file
attachment points at, moves them into _unlinked_files batches, and
later deletes or restores those batches.

Usage:
  zotutil relocate [flags]    Move unlinked files into a new batch
  zotutil remove [flags]      Permanently delete batched files
  zotutil restore [flags]     Move batched files back where they were
  zotutil list [flags]        List batches under the attachment root
  zotutil status [flags]      Show which files are currently unlinked
  zotutil watch [flags]       Report unlinked files as the library changes
  zotutil history [flags]     Show past operations
  zotutil config [flags]      Save shared flags as defaults
  zotutil version             Show version information
  zotutil help                Show this help

Shared flags:
  -root string        Attachment root (default: from Zotero preferences)
  -file-types string  Comma-separated extensions (default: from ZotFile)
  -profile string     Zotero profile directory containing profiles.ini
  -items-json string  Saved Web API items export to use instead of zotero.sqlite

Relocate flags:
  -label string       Batch label (default: current time)
  -dry-run            Show what would be moved

Remove flags:
  -past               Select existing batches
  -unrelocated        Relocate unlinked files first and select them
  -include list       Only these batch names
  -exclude list       Skip these batch names
  -label string       Batch label for -unrelocated
  -dry-run            Show what would be deleted
  -yes                Skip confirmation prompt

Restore flags:
  -include list       Only these batch names
  -exclude list       Skip these batch names
  -dry-run            Show what would be restored
  -yes                Skip confirmation prompt

History flags:
  -limit int          Number of operations to show (default 20)
  -files              Also list the files each operation moved

Environment variables:
  ZOTERO_PROFILE_DIR       Zotero profile directory
  ZOTERO_DATA_DIR          Directory holding zotero.sqlite
  ZOTUTIL_ATTACHMENT_ROOT  Attachment root
  ZOTUTIL_FILE_TYPES       Comma-separated extensions
  ZOTUTIL_DATA_DIR         Data directory (journal, config)

Data is stored in ~/.zotutil/ by default.
`, version)
}

// exitOnParseError handles errors from a command's flag parsing.
func exitOnParseError(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(2)
}
