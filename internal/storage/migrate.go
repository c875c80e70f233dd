package storage

import (
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strconv"
	"strings"
)

// Migrate applies every *.sql file under migrationsFS not yet recorded in
// the schema_migrations table, in ascending filename order. Filenames are
// expected to start with a zero-padded integer version ("0001_init.sql"),
// mirroring the numbered-migration convention golang-migrate itself uses
// -- this package just applies them directly against modernc.org/sqlite
// instead of going through a migrate.Driver, since golang-migrate ships no
// cgo-free sqlite driver.
func Migrate(db *sql.DB, migrationsFS fs.FS) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`); err != nil {
		return fmt.Errorf("storage: create schema_migrations: %w", err)
	}

	entries, err := fs.ReadDir(migrationsFS, ".")
	if err != nil {
		return fmt.Errorf("storage: read migrations dir: %w", err)
	}

	type migration struct {
		version int
		name    string
	}
	var pending []migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		version, ok := leadingVersion(e.Name())
		if !ok {
			continue
		}
		pending = append(pending, migration{version: version, name: e.Name()})
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].version < pending[j].version })

	current, err := currentVersion(db)
	if err != nil {
		return err
	}

	for _, m := range pending {
		if m.version <= current {
			continue
		}
		sqlBytes, err := fs.ReadFile(migrationsFS, m.name)
		if err != nil {
			return fmt.Errorf("storage: read %s: %w", m.name, err)
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("storage: begin tx for %s: %w", m.name, err)
		}
		if _, err := tx.Exec(string(sqlBytes)); err != nil {
			tx.Rollback()
			return fmt.Errorf("storage: apply %s: %w", m.name, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("storage: record %s: %w", m.name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("storage: commit %s: %w", m.name, err)
		}
		slog.Info("storage: applied migration", "file", m.name, "version", m.version)
	}

	return nil
}

func currentVersion(db *sql.DB) (int, error) {
	var version sql.NullInt64
	err := db.QueryRow(`SELECT MAX(version) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("storage: read current version: %w", err)
	}
	return int(version.Int64), nil
}

func leadingVersion(name string) (int, bool) {
	i := strings.IndexByte(name, '_')
	if i <= 0 {
		return 0, false
	}
	version, err := strconv.Atoi(name[:i])
	if err != nil {
		return 0, false
	}
	return version, true
}
