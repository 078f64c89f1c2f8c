package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKVStore_PersistsAcrossInstances(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	first, err := NewKVStore(dir)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "football_data_highlights_v2", `{"date":"x"}`))
	require.NoError(t, first.Set(ctx, "broadcaster_a/b", "v"))

	second, err := NewKVStore(dir)
	require.NoError(t, err)
	got, ok, err := second.Get(ctx, "football_data_highlights_v2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"date":"x"}`, got)

	keys, err := second.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"broadcaster_a/b", "football_data_highlights_v2"}, keys)

	require.NoError(t, second.Delete(ctx, "broadcaster_a/b"))
	require.NoError(t, second.Delete(ctx, "never-written"))
	_, ok, err = second.Get(ctx, "broadcaster_a/b")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKVStore_IgnoresForeignFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.json"), 0o755))

	store, err := NewKVStore(dir)
	require.NoError(t, err)
	keys, err := store.Keys(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestNewKVStore_RequiresDir(t *testing.T) {
	t.Parallel()

	_, err := NewKVStore("  ")
	require.Error(t, err)
}
