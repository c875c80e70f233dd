// Package storage bootstraps the four single-file relational databases
// (conversation, memory, scheduler, plans) and applies their embedded
// schema migrations. Every store is opened through modernc.org/sqlite, a
// pure-Go driver, so the whole assistant builds and runs without cgo.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Open creates (if needed) the parent directory of path and returns a
// *sql.DB with the pragmas the rest of the package assumes: a single
// writer busy-waits instead of erroring, and foreign keys are enforced.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("storage: create dir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}

	// SQLite allows only one writer at a time; a single physical
	// connection avoids SQLITE_BUSY from the driver's own pool.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000; PRAGMA foreign_keys = ON; PRAGMA case_sensitive_like = ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: set pragmas on %s: %w", path, err)
	}

	return db, nil
}
