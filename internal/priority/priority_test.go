package priority

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) *RedisBlobStore {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return NewRedisBlobStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "")
}

func TestDirectoryDefaults(t *testing.T) {
	d := NewDirectory(newRedisStore(t), LevelDefault)
	ctx := context.Background()

	assert.Equal(t, LevelDefault, d.Get(ctx, "unknown-user"))
	assert.Equal(t, LevelDefault, d.DefaultLevel())
}

func TestDirectorySetAndRemove(t *testing.T) {
	d := NewDirectory(newRedisStore(t), LevelDefault)
	ctx := context.Background()

	require.NoError(t, d.SetMany(ctx, []string{"u1", "u2"}, LevelHigh))
	assert.Equal(t, LevelHigh, d.Get(ctx, "u1"))
	assert.Equal(t, LevelHigh, d.Get(ctx, "u2"))

	require.NoError(t, d.RemoveMany(ctx, []string{"u1"}))
	assert.Equal(t, LevelDefault, d.Get(ctx, "u1"))
	assert.Equal(t, LevelHigh, d.Get(ctx, "u2"))

	all, err := d.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"u2": LevelHigh}, all)
}

func TestDirectoryClear(t *testing.T) {
	d := NewDirectory(newRedisStore(t), LevelDefault)
	ctx := context.Background()

	require.NoError(t, d.SetMany(ctx, []string{"u1"}, LevelAdmin))
	require.NoError(t, d.Clear(ctx))

	all, err := d.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

// failingStore always errors on Load.
type failingStore struct{}

func (failingStore) Load(context.Context) (map[string]int, error) {
	return nil, errors.New("store down")
}
func (failingStore) Save(context.Context, map[string]int) error {
	return errors.New("store down")
}

func TestDirectoryGetFallsBackOnStoreFailure(t *testing.T) {
	d := NewDirectory(failingStore{}, LevelDefault)
	assert.Equal(t, LevelDefault, d.Get(context.Background(), "u1"))
}

func TestFileBlobStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "priority_users.json")
	store := NewFileBlobStore(path)
	ctx := context.Background()

	users, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, users, "missing file reads as empty directory")

	require.NoError(t, store.Save(ctx, map[string]int{"u1": LevelHigh, "u2": LevelAdmin}))

	users, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"u1": LevelHigh, "u2": LevelAdmin}, users)
}

func TestRedisBlobStoreMissingKeyIsEmpty(t *testing.T) {
	store := newRedisStore(t)
	users, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
}
