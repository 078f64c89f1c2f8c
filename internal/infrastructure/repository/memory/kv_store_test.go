package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKVStore_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewKVStore()

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "b", "1"))
	require.NoError(t, store.Set(ctx, "a", "2"))
	require.NoError(t, store.Set(ctx, "b", "3"))

	got, ok, err := store.Get(ctx, "b")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "3", got)

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)

	require.NoError(t, store.Delete(ctx, "a"))
	keys, _ = store.Keys(ctx)
	assert.Equal(t, []string{"b"}, keys)
}
