package storage

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveOpenDelete(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("lessons/abc.json", []byte(`{"id":"abc"}`))
	require.NoError(t, err)

	f, err := store.Open("lessons/abc.json")
	require.NoError(t, err)
	body, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.JSONEq(t, `{"id":"abc"}`, string(body))

	_, err = store.Save("lessons/abc.json", []byte(`{"id":"abc","v":2}`))
	require.NoError(t, err)
	entries, err := os.ReadDir(filepath.Dir(store.Path("lessons/abc.json")))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not linger")

	require.NoError(t, store.Delete("lessons/abc.json"))
	require.NoError(t, store.Delete("lessons/abc.json"))
}

func TestLocalStorageRejectsEscapingPaths(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"../outside.json", "/etc/passwd", "", "a/../../b"} {
		_, err := store.Save(name, []byte("x"))
		assert.Error(t, err, name)
		assert.Empty(t, store.Path(name), name)
	}
}

func TestLocalStorageCleanupOlderThan(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	_, err = store.Save("old.json", []byte("{}"))
	require.NoError(t, err)
	_, err = store.Save("fresh.json", []byte("{}"))
	require.NoError(t, err)
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "old.json"), past, past))

	deleted, err := store.CleanupOlderThan(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"old.json"}, deleted)
	_, err = os.Stat(filepath.Join(dir, "fresh.json"))
	assert.NoError(t, err)
}
