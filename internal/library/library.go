// Package library reads which attachment files a Zotero library
// links to.
package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/tidwall/gjson"
)

// ErrNoLibrary is returned when the library database or export
// file does not exist.
var ErrNoLibrary = errors.New("library not found")

// Source lists linked attachment paths. Paths are either relative
// to the attachment root or absolute. Every call reads the library
// afresh.
type Source interface {
	AttachmentPaths(ctx context.Context) ([]string, error)
}

// relativePrefix marks paths stored relative to the base
// attachment directory.
const relativePrefix = "attachments:"

// linkedFile is Zotero's linkMode for files linked in place.
const linkedFile = 2

// normalizePath strips the relative prefix from a stored path.
// Absolute paths come back unchanged.
func normalizePath(stored string) string {
	if i := strings.LastIndex(stored, relativePrefix); i >= 0 {
		return stored[i+len(relativePrefix):]
	}
	return stored
}

// SQLiteSource reads zotero.sqlite.
type SQLiteSource struct {
	Path string
}

// AttachmentPaths queries every linked-file attachment. The
// database is opened read-only so a running Zotero keeps its lock.
func (s SQLiteSource) AttachmentPaths(
	ctx context.Context,
) ([]string, error) {
	if _, err := os.Stat(s.Path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoLibrary, s.Path)
	}

	db, err := openLibraryDB(s.Path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx,
		`SELECT path FROM itemAttachments
		 WHERE linkMode = ? AND path IS NOT NULL`,
		linkedFile,
	)
	if err != nil {
		return nil, fmt.Errorf("querying attachments: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var stored string
		if err := rows.Scan(&stored); err != nil {
			return nil, fmt.Errorf("scanning attachment: %w", err)
		}
		if p := normalizePath(stored); p != "" {
			paths = append(paths, p)
		}
	}
	return paths, rows.Err()
}

func openLibraryDB(path string) (*sql.DB, error) {
	dsn := path + "?mode=ro&_busy_timeout=3000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening library db %s: %w", path, err)
	}
	return db, nil
}

// ExportSource reads a JSON array of Web API items, as saved from
// the /items endpoint.
type ExportSource struct {
	Path string
}

func (s ExportSource) AttachmentPaths(
	ctx context.Context,
) ([]string, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoLibrary, s.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading items export: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return parseExport(data)
}

func parseExport(data []byte) ([]string, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("items export is not valid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, fmt.Errorf("items export is not an array")
	}

	var paths []string
	root.ForEach(func(_, item gjson.Result) bool {
		mode := item.Get("data.linkMode")
		if mode.Exists() && mode.Str != "linked_file" {
			return true
		}
		if p := normalizePath(item.Get("data.path").Str); p != "" {
			paths = append(paths, p)
		}
		return true
	})
	return paths, nil
}

// StaticSource is a fixed list of paths.
type StaticSource []string

func (s StaticSource) AttachmentPaths(
	context.Context,
) ([]string, error) {
	return append([]string(nil), s...), nil
}
