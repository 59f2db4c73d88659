package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func columns(t *testing.T, d *DB) []string {
	t.Helper()
	rows, err := d.Conn().Query(`SELECT name FROM pragma_table_info('turns')`)
	require.NoError(t, err)
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		cols = append(cols, name)
	}
	require.NoError(t, rows.Err())
	return cols
}

func userVersion(t *testing.T, d *DB) int {
	t.Helper()
	var v int
	require.NoError(t, d.Conn().QueryRow("PRAGMA user_version").Scan(&v))
	return v
}

func TestOpenAndMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "agentdesk.db")

	d, err := Open(path)
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Migrate())
	// Migrations are idempotent.
	require.NoError(t, d.Migrate())

	var name string
	err = d.Conn().QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'turns'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "turns", name)
	assert.FileExists(t, path)

	assert.Equal(t, 2, userVersion(t, d))
	assert.Subset(t, columns(t, d), []string{"id", "persona_id", "request_id", "instance"})
}

func TestMigrate_UpgradesUnversionedJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentdesk.db")

	d, err := Open(path)
	require.NoError(t, err)
	defer d.Close()

	// A journal created before versioned migrations: the turns table at
	// user_version 0, with a row in it.
	_, err = d.Conn().Exec(`
		CREATE TABLE turns (
			id TEXT PRIMARY KEY, persona_id TEXT NOT NULL, message TEXT NOT NULL,
			tool_results TEXT NOT NULL DEFAULT '[]', reply TEXT, error TEXT,
			duration_ms INTEGER NOT NULL DEFAULT 0, created_at TEXT NOT NULL
		);
		CREATE INDEX idx_turns_persona ON turns (persona_id, created_at);
		INSERT INTO turns (id, persona_id, message, created_at) VALUES ('old', '1', 'hi', '2026-01-01T00:00:00Z');
	`)
	require.NoError(t, err)

	require.NoError(t, d.Migrate())
	assert.Equal(t, 2, userVersion(t, d))
	assert.Subset(t, columns(t, d), []string{"request_id", "instance"})

	var instance string
	require.NoError(t, d.Conn().QueryRow(`SELECT instance FROM turns WHERE id = 'old'`).Scan(&instance))
	assert.Empty(t, instance)
}
