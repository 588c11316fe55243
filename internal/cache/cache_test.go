package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCache_HasChangedAndUpdate(t *testing.T) {
	dir := t.TempDir()
	c := Load(filepath.Join(dir, "cache.json"))

	require.True(t, c.HasChanged("scenario-a", "hash1"), "unknown scenario should be treated as changed")

	c.Update("scenario-a", "hash1")
	require.False(t, c.HasChanged("scenario-a", "hash1"))
	require.True(t, c.HasChanged("scenario-a", "hash2"))
}

func TestCache_SaveAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")

	c := Load(path)
	c.Update("scenario-a", "hash1")
	require.NoError(t, c.Save())

	reloaded := Load(path)
	require.False(t, reloaded.HasChanged("scenario-a", "hash1"))
}

func TestCache_CorruptFileIsDiscardedNotError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not valid json"), 0o644))

	c := Load(path)
	require.True(t, c.HasChanged("anything", "hash"), "corrupt cache should behave like an empty one")
}

func TestCache_SaveIsNoOpWhenNotDirty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	c := Load(path)
	require.NoError(t, c.Save())
	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err), "save should not write a file when nothing changed")
}

func TestCache_Clear(t *testing.T) {
	dir := t.TempDir()
	c := Load(filepath.Join(dir, "cache.json"))
	c.Update("scenario-a", "hash1")
	c.Clear()
	require.True(t, c.HasChanged("scenario-a", "hash1"))
}
