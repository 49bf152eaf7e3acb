package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/canto-lessons/pkg/config"
)

func TestOpenSQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lessons.db")
	db, err := Open(config.DatabaseConfig{Driver: config.DriverSQLite, Path: path})
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec("CREATE TABLE scratch (id TEXT PRIMARY KEY)")
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO scratch (id) VALUES (?)", "a")
	require.NoError(t, err)

	var count int
	require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM scratch"))
	assert.Equal(t, 1, count)
	assert.Equal(t, "sqlite3", db.DriverName())
}

func TestOpenSQLiteMemoryKeepsState(t *testing.T) {
	db, err := NewSQLite("")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec("CREATE TABLE scratch (id TEXT)")
	require.NoError(t, err)
	var name string
	require.NoError(t, db.Get(&name, "SELECT name FROM sqlite_master WHERE type='table' AND name='scratch'"))
	assert.Equal(t, "scratch", name)
}
