package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/airallergy/zotutil/internal/quarantine"
	"github.com/airallergy/zotutil/internal/watch"
)

const watcherDebounce = 500 * time.Millisecond

// watchIgnore skips batch directories, and anything in the library
// directory other than the library file and its journals. The
// library directory only matters when it is not the root itself.
func watchIgnore(root, libDir, libName string) func(string) bool {
	return func(path string) bool {
		base := filepath.Base(path)
		if quarantine.IsBatchName(base) {
			return true
		}
		if libDir == "" || libDir == root {
			return false
		}
		return filepath.Dir(path) == libDir &&
			!strings.HasPrefix(base, libName)
	}
}

// libraryFile returns the file the metadata source reads.
func (e *env) libraryFile() string {
	if e.libraryPath != "" {
		return e.libraryPath
	}
	return e.cfg.ItemsExport
}

// Watch reports the unlinked files once, then again after every
// settled change to the attachment root or the library, until ctx
// is done.
func (r *Runner) Watch(ctx context.Context, library string) error {
	root := r.Session.Root()
	libDir, libName := "", ""
	if library != "" {
		abs, err := filepath.Abs(library)
		if err != nil {
			return err
		}
		libDir, libName = filepath.Dir(abs), filepath.Base(abs)
	}

	if err := r.writeUnlinked(ctx); err != nil {
		return err
	}

	changed := make(chan struct{}, 1)
	w, err := watch.NewWatcher(watcherDebounce,
		watchIgnore(root, libDir, libName),
		func([]string) {
			select {
			case changed <- struct{}{}:
			default:
			}
		},
	)
	if err != nil {
		return err
	}
	defer w.Stop()

	watched, unwatched, err := w.WatchRecursive(root)
	if err != nil {
		return err
	}
	if unwatched > 0 {
		log.Printf("warning: %d directories could not be watched", unwatched)
	}
	if libDir != "" && libDir != root {
		if err := w.Watch(libDir); err != nil {
			log.Printf("warning: watching %s: %v", libDir, err)
		}
	}
	log.Printf("watching %d directories under %s", watched, root)
	w.Start()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
			if err := r.writeUnlinked(ctx); err != nil {
				log.Printf("watch: %v", err)
			}
		}
	}
}

func runWatch(args []string) {
	fs := newFlagSet("watch")
	exitOnParseError(fs.Parse(args))
	e := loadEnv(fs)

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	runner := &Runner{Session: e.session, Out: os.Stdout}
	if err := runner.Watch(ctx, e.libraryFile()); err != nil {
		log.Fatalf("watch: %v", err)
	}
}
