package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenSourceCreatesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")

	db, err := OpenSource(dir, "chembl", false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	var one int
	if err := db.NewRaw("SELECT 1").Scan(context.Background(), &one); err != nil {
		t.Fatalf("query: %v", err)
	}
	if one != 1 {
		t.Fatalf("expected 1, got %d", one)
	}

	if _, err := os.Stat(Path(dir, "chembl")); err != nil {
		t.Fatalf("expected database file: %v", err)
	}
}

func TestOpenExistingRequiresFile(t *testing.T) {
	_, err := OpenExisting(filepath.Join(t.TempDir(), "missing.db"), false)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}

func TestOpenReadOnlyRejectsWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.sqlite")
	db, err := NewDB(path, false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = DELETE; CREATE TABLE gse (gse TEXT)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	_ = db.Close()

	ro, err := OpenReadOnly(path)
	if err != nil {
		t.Fatalf("open read-only: %v", err)
	}
	t.Cleanup(func() { _ = ro.Close() })

	var n int
	if err := ro.NewRaw("SELECT COUNT(*) FROM gse").Scan(ctx, &n); err != nil {
		t.Fatalf("query: %v", err)
	}
	if _, err := ro.ExecContext(ctx, "INSERT INTO gse (gse) VALUES ('GSE1')"); err == nil {
		t.Fatalf("expected write to fail on read-only database")
	}
}
