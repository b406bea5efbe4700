package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

// NewDB opens a SQLite database with sane defaults and optional debug logging.
// The pool holds a single connection so pragmas apply to every query and
// writers never contend for the file lock.
func NewDB(dsn string, debug bool) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	if _, err := db.Exec(`
        PRAGMA journal_mode = WAL;
        PRAGMA synchronous = NORMAL;
        PRAGMA foreign_keys = ON;
        PRAGMA busy_timeout = 5000;
        PRAGMA cache_size = -64000;
    `); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	return db, nil
}

// Path returns the database file used by source under dataDir.
func Path(dataDir, source string) string {
	return filepath.Join(dataDir, source+".db")
}

// RunsFile is the harvest run ledger shared by every source.
const RunsFile = "runs.db"

// RunsPath returns the run ledger file under dataDir.
func RunsPath(dataDir string) string {
	return filepath.Join(dataDir, RunsFile)
}

// OpenRuns opens the run ledger, creating dataDir if needed.
func OpenRuns(dataDir string, debug bool) (*bun.DB, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return NewDB(RunsPath(dataDir), debug)
}

// OpenSource opens the per-source database file, creating dataDir if needed.
func OpenSource(dataDir, source string, debug bool) (*bun.DB, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return NewDB(Path(dataDir, source), debug)
}

// OpenReadOnly opens an existing SQLite file without modifying it.
func OpenReadOnly(path string) (*bun.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat sqlite file: %w", err)
	}
	sqldb, err := sql.Open(sqliteshim.ShimName, "file:"+filepath.ToSlash(path)+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqldb.SetMaxOpenConns(1)
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// OpenExisting opens a database file that must already exist.
func OpenExisting(path string, debug bool) (*bun.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat sqlite file: %w", err)
	}
	return NewDB(path, debug)
}
