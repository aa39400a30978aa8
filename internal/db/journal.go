package db

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/airallergy/zotutil/internal/timeutil"
)

// Operation kinds.
const (
	KindRelocate = "relocate"
	KindRemove   = "remove"
	KindRestore  = "restore"
)

// Operation is one journaled batch operation.
type Operation struct {
	ID        int64
	Kind      string
	Root      string
	Batch     string
	FileCount int
	CreatedAt string
}

// FileMove pairs a quarantined path with its original location.
type FileMove struct {
	Quarantined string
	Original    string
}

// RecordOperation journals op together with the files it moved,
// keyed by quarantined path, and returns the new operation ID.
// FileCount and CreatedAt are filled in when zero.
func (db *DB) RecordOperation(
	op Operation, files map[string]string,
) (int64, error) {
	if op.FileCount == 0 {
		op.FileCount = len(files)
	}
	if op.CreatedAt == "" {
		op.CreatedAt = timeutil.Format(time.Now())
	}

	var id int64
	err := db.appendTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(
			`INSERT INTO operations
			 (kind, root, batch, file_count, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			op.Kind, op.Root, op.Batch, op.FileCount, op.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting operation: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("operation id: %w", err)
		}

		stmt, err := tx.Prepare(
			"INSERT INTO operation_files" +
				" (operation_id, quarantined, original)" +
				" VALUES (?, ?, ?)",
		)
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		defer stmt.Close()

		keys := make([]string, 0, len(files))
		for k := range files {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if _, err := stmt.Exec(id, k, files[k]); err != nil {
				return fmt.Errorf("inserting file %s: %w", k, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ListOperations returns the most recent operations, newest
// first. A limit of zero or less returns all of them.
func (db *DB) ListOperations(
	ctx context.Context, limit int,
) ([]Operation, error) {
	query := `SELECT id, kind, root, batch, file_count, created_at
		FROM operations ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.history.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var ops []Operation
	for rows.Next() {
		var op Operation
		if err := rows.Scan(
			&op.ID, &op.Kind, &op.Root, &op.Batch,
			&op.FileCount, &op.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// OperationFiles returns the files an operation moved, ordered by
// quarantined path.
func (db *DB) OperationFiles(
	ctx context.Context, id int64,
) ([]FileMove, error) {
	rows, err := db.history.QueryContext(ctx,
		`SELECT quarantined, original FROM operation_files
		 WHERE operation_id = ? ORDER BY quarantined`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("loading operation files: %w", err)
	}
	defer rows.Close()

	var files []FileMove
	for rows.Next() {
		var f FileMove
		if err := rows.Scan(&f.Quarantined, &f.Original); err != nil {
			return nil, fmt.Errorf("scanning operation file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}
