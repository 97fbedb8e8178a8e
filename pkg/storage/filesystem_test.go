package storage

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveOverwritesAndOpens(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	rel, err := store.Save("Physics Batch.txt", []byte("first"))
	require.NoError(t, err)
	require.Equal(t, "Physics Batch.txt", rel)

	_, err = store.Save("Physics Batch.txt", []byte("second"))
	require.NoError(t, err)

	file, err := store.Open(rel)
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck
	body, err := io.ReadAll(file)
	require.NoError(t, err)
	require.Equal(t, "second", string(body))

	info, err := store.Stat(rel)
	require.NoError(t, err)
	require.EqualValues(t, 6, info.Size())

	entries, err := os.ReadDir(store.BaseDir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestLocalStorageRejectsEscapingNames(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("../outside.txt", []byte("x"))
	require.Error(t, err)
	require.Empty(t, store.Path("../../etc/passwd"))
	require.Error(t, store.Delete(""))
}

func TestLocalStorageDeleteAndCleanup(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("old.txt", []byte("old"))
	require.NoError(t, err)
	_, err = store.Save("fresh.txt", []byte("fresh"))
	require.NoError(t, err)
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(store.BaseDir(), "old.txt"), past, past))

	deleted, err := store.CleanupOlderThan(time.Hour)
	require.NoError(t, err)
	require.Equal(t, []string{"old.txt"}, deleted)

	require.NoError(t, store.Delete("fresh.txt"))
	require.NoError(t, store.Delete("fresh.txt"))
	_, err = store.Stat("fresh.txt")
	require.Error(t, err)
}
