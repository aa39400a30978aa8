// Package db keeps a local journal of the filesystem operations
// zotutil has performed.
package db

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// historyReaders bounds the read-only pool used by history queries.
const historyReaders = 2

// DB is the operation journal. Entries are appended through one
// connection; history is read through a separate read-only pool.
type DB struct {
	appendMu sync.Mutex
	appender *sql.DB
	history  *sql.DB
}

// journalDSN returns the go-sqlite3 DSN for the journal file.
// Readers open it with mode=ro, the appender with
// synchronous=NORMAL.
func journalDSN(path string, readOnly bool) string {
	q := url.Values{
		"_journal_mode": {"WAL"},
		"_busy_timeout": {"5000"},
		"_foreign_keys": {"ON"},
	}
	if readOnly {
		q.Set("mode", "ro")
	} else {
		q.Set("_synchronous", "NORMAL")
	}
	return path + "?" + q.Encode()
}

func openPool(path string, readOnly bool, conns int) (*sql.DB, error) {
	pool, err := sql.Open("sqlite3", journalDSN(path, readOnly))
	if err != nil {
		return nil, err
	}
	pool.SetMaxOpenConns(conns)
	return pool, nil
}

// Open opens the journal at path, creating the file, its directory
// and its tables as needed.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}

	appender, err := openPool(path, false, 1)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	// A read-only connection cannot create the file, so the
	// tables go in first.
	if _, err := appender.Exec(schemaSQL); err != nil {
		appender.Close()
		return nil, fmt.Errorf("creating journal tables: %w", err)
	}

	history, err := openPool(path, true, historyReaders)
	if err != nil {
		appender.Close()
		return nil, fmt.Errorf("opening journal for reading: %w", err)
	}
	return &DB{appender: appender, history: history}, nil
}

// Close releases both connection pools.
func (db *DB) Close() error {
	return errors.Join(db.appender.Close(), db.history.Close())
}

// appendTx runs fn in a transaction on the appender. fn's error
// rolls everything back.
func (db *DB) appendTx(fn func(tx *sql.Tx) error) error {
	db.appendMu.Lock()
	defer db.appendMu.Unlock()

	tx, err := db.appender.Begin()
	if err != nil {
		return fmt.Errorf("starting journal entry: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing journal entry: %w", err)
	}
	return nil
}
