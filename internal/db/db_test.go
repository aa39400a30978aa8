package db

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	d, err := Open(path)
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func canceledCtx() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

func TestOpenCreatesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subdir", "journal.db")
	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("db file not created: %v", err)
	}
}

func TestOpenTwiceKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := d.RecordOperation(Operation{
		Kind: KindRelocate, Root: "/r",
	}, nil); err != nil {
		t.Fatalf("RecordOperation: %v", err)
	}
	d.Close()

	d, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer d.Close()
	ops, err := d.ListOperations(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListOperations: %v", err)
	}
	if len(ops) != 1 {
		t.Fatalf("got %d operations, want 1", len(ops))
	}
}

func TestRecordOperation_RoundTrip(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	files := map[string]string{
		"/r/_unlinked_files/b.pdf": "/r/b.pdf",
		"/r/_unlinked_files/a.pdf": "/r/sub/a.pdf",
	}
	id, err := d.RecordOperation(Operation{
		Kind:      KindRelocate,
		Root:      "/r",
		Batch:     "_unlinked_files",
		CreatedAt: "2024-06-15T12:30:45Z",
	}, files)
	if err != nil {
		t.Fatalf("RecordOperation: %v", err)
	}

	ops, err := d.ListOperations(ctx, 10)
	if err != nil {
		t.Fatalf("ListOperations: %v", err)
	}
	want := []Operation{{
		ID:        id,
		Kind:      KindRelocate,
		Root:      "/r",
		Batch:     "_unlinked_files",
		FileCount: 2,
		CreatedAt: "2024-06-15T12:30:45Z",
	}}
	if diff := cmp.Diff(want, ops); diff != "" {
		t.Errorf("operations mismatch (-want +got):\n%s", diff)
	}

	got, err := d.OperationFiles(ctx, id)
	if err != nil {
		t.Fatalf("OperationFiles: %v", err)
	}
	wantFiles := []FileMove{
		{"/r/_unlinked_files/a.pdf", "/r/sub/a.pdf"},
		{"/r/_unlinked_files/b.pdf", "/r/b.pdf"},
	}
	if diff := cmp.Diff(wantFiles, got); diff != "" {
		t.Errorf("files mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordOperation_DefaultsTimestamp(t *testing.T) {
	d := testDB(t)
	if _, err := d.RecordOperation(Operation{
		Kind: KindRemove, Root: "/r", FileCount: 3,
	}, nil); err != nil {
		t.Fatalf("RecordOperation: %v", err)
	}
	ops, err := d.ListOperations(context.Background(), 1)
	if err != nil {
		t.Fatalf("ListOperations: %v", err)
	}
	if ops[0].CreatedAt == "" {
		t.Error("CreatedAt not filled in")
	}
	if ops[0].FileCount != 3 {
		t.Errorf("FileCount = %d, want 3", ops[0].FileCount)
	}
}

func TestListOperations_NewestFirstWithLimit(t *testing.T) {
	d := testDB(t)
	for _, kind := range []string{KindRelocate, KindRemove, KindRestore} {
		if _, err := d.RecordOperation(Operation{
			Kind: kind, Root: "/r",
		}, nil); err != nil {
			t.Fatalf("RecordOperation %s: %v", kind, err)
		}
	}

	ops, err := d.ListOperations(context.Background(), 2)
	if err != nil {
		t.Fatalf("ListOperations: %v", err)
	}
	var kinds []string
	for _, op := range ops {
		kinds = append(kinds, op.Kind)
	}
	if diff := cmp.Diff([]string{KindRestore, KindRemove}, kinds); diff != "" {
		t.Errorf("kinds mismatch (-want +got):\n%s", diff)
	}
}

func TestOperationFiles_Unknown(t *testing.T) {
	d := testDB(t)
	files, err := d.OperationFiles(context.Background(), 42)
	if err != nil {
		t.Fatalf("OperationFiles: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("got %d files, want 0", len(files))
	}
}

func TestListOperations_CanceledContext(t *testing.T) {
	d := testDB(t)
	_, err := d.ListOperations(canceledCtx(), 0)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestAppendTx_RollsBackOnError(t *testing.T) {
	d := testDB(t)
	sentinel := errors.New("boom")
	err := d.appendTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			`INSERT INTO operations (kind, root, created_at)
			 VALUES ('relocate', '/r', 'now')`,
		); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want sentinel", err)
	}
	ops, err := d.ListOperations(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListOperations: %v", err)
	}
	if len(ops) != 0 {
		t.Errorf("got %d operations after rollback, want 0", len(ops))
	}
}
