package storage

import (
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestOpenCreatesParentDirAndPragmas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "convo.db")
	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()

	var fk int
	require.NoError(t, db.QueryRow(`PRAGMA foreign_keys`).Scan(&fk))
	require.Equal(t, 1, fk)
}

func TestMigrateAppliesInOrderAndIsIdempotent(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	migrations := fstest.MapFS{
		"0001_init.sql":     {Data: []byte(`CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT NOT NULL);`)},
		"0002_add_col.sql":  {Data: []byte(`ALTER TABLE widgets ADD COLUMN color TEXT;`)},
		"not_a_migration.txt": {Data: []byte(`ignored`)},
	}

	require.NoError(t, Migrate(db, migrations))
	// second run must be a no-op, not an error (ALTER TABLE twice would fail)
	require.NoError(t, Migrate(db, migrations))

	_, err = db.Exec(`INSERT INTO widgets (name, color) VALUES ('a', 'red')`)
	require.NoError(t, err)

	version, verr := currentVersion(db)
	require.NoError(t, verr)
	require.Equal(t, 2, version)
}
