package service

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanreader/lanreader/internal/lanraragi/lanraragitest"
	"github.com/lanreader/lanreader/internal/logger"
	"github.com/lanreader/lanreader/internal/store"
	"github.com/lanreader/lanreader/internal/watcher"
)

func cacheArchive(t *testing.T, env *testEnv, id string, pages int) {
	t.Helper()
	env.addArchive(id, "Title "+id, "", pages)
	_, err := env.archives.LoadArchives(context.Background(), true)
	require.NoError(t, err)
	entry, err := env.cache.CacheArchive(context.Background(), id, nil)
	require.NoError(t, err)
	require.True(t, entry.Cached)
}

func TestCacheArchive(t *testing.T) {
	env := newTestEnv(t)
	env.addArchive("a1", "Alpha", "artist:foo", 3)
	env.srv.SetThumbnail("a1", pngBytes(t, 8, 8))
	ctx := context.Background()
	_, err := env.archives.LoadArchives(ctx, true)
	require.NoError(t, err)
	_, err = env.archives.Thumbnail(ctx, "a1", false)
	require.NoError(t, err)

	entry, err := env.cache.CacheArchive(ctx, "a1", nil)
	require.NoError(t, err)
	assert.True(t, entry.Cached)
	assert.Equal(t, 3, entry.TotalPages)
	assert.Equal(t, "Alpha", entry.Title)
	assert.NotEmpty(t, entry.Thumbnail)

	stored, err := env.store.GetArchiveCache(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, stored.Cached)

	listed, err := env.cache.CachedArchives(ctx)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestCacheArchive_PartialIsNotCached(t *testing.T) {
	env := newTestEnv(t)
	env.addArchive("a1", "Alpha", "", 2)
	ctx := context.Background()
	_, err := env.archives.LoadArchives(ctx, true)
	require.NoError(t, err)

	env.srv.FailWith(lanraragitest.RoutePage, http.StatusInternalServerError)
	entry, err := env.cache.CacheArchive(ctx, "a1", nil)
	require.NoError(t, err)
	assert.False(t, entry.Cached)

	env.srv.FailWith(lanraragitest.RoutePage, 0)
	entry, err = env.cache.CacheArchive(ctx, "a1", nil)
	require.NoError(t, err)
	assert.True(t, entry.Cached, "a retry fills in the missing pages")
}

func TestCacheArchive_UnknownArchive(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.cache.CacheArchive(context.Background(), "missing", nil)
	require.Error(t, err)
	assert.Zero(t, env.srv.TotalCalls())
}

func TestCacheSizeAndClear(t *testing.T) {
	env := newTestEnv(t)
	cacheArchive(t, env, "a1", 2)
	ctx := context.Background()

	size, err := env.cache.Size(ctx)
	require.NoError(t, err)
	assert.Positive(t, size.Database)
	assert.Positive(t, size.Pages)
	assert.Equal(t, size.Database+size.Pages, size.Total())

	removed, err := env.cache.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, removed, "two page rows and one archive cache row")

	size, err = env.cache.Size(ctx)
	require.NoError(t, err)
	assert.Zero(t, size.Pages)

	_, err = env.store.GetArchive(ctx, "a1")
	assert.NoError(t, err, "the archive list survives a cache clear")
}

func TestUncacheArchive(t *testing.T) {
	env := newTestEnv(t)
	cacheArchive(t, env, "a1", 2)
	ctx := context.Background()

	require.NoError(t, env.cache.UncacheArchive(ctx, "a1"))

	_, err := env.store.GetArchiveCache(ctx, "a1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	rows, err := env.store.ListArchiveImages(ctx, "a1")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestResetPages(t *testing.T) {
	env := newTestEnv(t)
	cacheArchive(t, env, "a1", 2)
	ctx := context.Background()

	require.NoError(t, env.cache.ResetPages(ctx))

	rows, err := env.store.ListAllArchiveImages(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
	n, err := env.files.Size()
	require.NoError(t, err)
	assert.Zero(t, n)

	entry, err := env.store.GetArchiveCache(ctx, "a1")
	require.NoError(t, err, "the offline entry stays listed")
	assert.False(t, entry.Cached)
}

func TestFollowPageRemovals(t *testing.T) {
	env := newTestEnv(t)
	cacheArchive(t, env, "a1", 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := watcher.New(logger.Discard(), watcher.Options{SettleDelay: 10 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { w.Stop() }) //nolint:errcheck // Test cleanup
	require.NoError(t, w.Watch(env.files.Dir()))
	go w.Start(ctx) //nolint:errcheck // Test goroutine
	go env.cache.FollowPageRemovals(ctx, w)

	rows, err := env.store.ListArchiveImages(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	require.NoError(t, os.Remove(rows[0].Path))

	require.Eventually(t, func() bool {
		rows, err := env.store.ListArchiveImages(ctx, "a1")
		return err == nil && len(rows) == 0
	}, 2*time.Second, 20*time.Millisecond)
}
