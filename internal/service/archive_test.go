package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanreader/lanreader/internal/domain"
	apperrors "github.com/lanreader/lanreader/internal/errors"
	"github.com/lanreader/lanreader/internal/lanraragi"
	"github.com/lanreader/lanreader/internal/lanraragi/lanraragitest"
	"github.com/lanreader/lanreader/internal/store"
)

func TestLoadArchives_CacheFirstIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.addArchive("a1", "Alpha", "artist:foo", 2)
	env.addArchive("a2", "Beta", "artist:bar", 3)
	ctx := context.Background()

	first, err := env.archives.LoadArchives(ctx, false)
	require.NoError(t, err)
	require.Len(t, first, 2)
	callsAfterFirst := env.srv.TotalCalls()
	assert.Equal(t, 1, env.srv.Calls(lanraragitest.RouteArchives), "empty cache falls through to the server")

	second, err := env.archives.LoadArchives(ctx, false)
	require.NoError(t, err)

	assert.Equal(t, callsAfterFirst, env.srv.TotalCalls(), "second cache-only load must not touch the network")
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Title, second[i].Title)
		assert.Equal(t, first[i].Tags, second[i].Tags)
	}
}

func TestLoadArchives_FromServerUpserts(t *testing.T) {
	env := newTestEnv(t)
	env.addArchive("a1", "Alpha", "", 2)
	ctx := context.Background()

	_, err := env.archives.LoadArchives(ctx, true)
	require.NoError(t, err)

	env.srv.AddArchive(lanraragi.ArchiveSummary{ID: "a1", Title: "Alpha", Progress: 7}, []byte("x"), []byte("y"))
	archives, err := env.archives.LoadArchives(ctx, true)
	require.NoError(t, err)

	require.Len(t, archives, 1, "one row per id")
	assert.Equal(t, 7, archives[0].Progress)
	count, err := env.store.CountArchives(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestLoadArchives_FailureLeavesCacheUntouched(t *testing.T) {
	env := newTestEnv(t)
	env.addArchive("a1", "Alpha", "", 1)
	ctx := context.Background()

	_, err := env.archives.LoadArchives(ctx, true)
	require.NoError(t, err)

	env.srv.FailWith(lanraragitest.RouteArchives, http.StatusInternalServerError)
	env.addArchive("a2", "Beta", "", 1)

	_, err = env.archives.LoadArchives(ctx, true)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeServer, apperrors.CodeOf(err))

	cached, err := env.store.ListArchives(ctx)
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, "a1", cached[0].ID)
	assert.True(t, env.tags.RebuildPending(), "a rebuild is scheduled even when the fetch fails")
}

func TestLoadArchives_UnauthorizedCode(t *testing.T) {
	env := newTestEnv(t)
	env.srv.SetAPIKey("other")

	_, err := env.archives.LoadArchives(context.Background(), true)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeUnauthorized, apperrors.CodeOf(err))
}

func TestUpdateProgress_OptimisticWhileOffline(t *testing.T) {
	env := newTestEnv(t)
	env.addArchive("a1", "Alpha", "", 10)
	ctx := context.Background()
	_, err := env.archives.LoadArchives(ctx, true)
	require.NoError(t, err)

	env.srv.FailWith(lanraragitest.RouteProgress, http.StatusServiceUnavailable)
	require.NoError(t, env.archives.UpdateProgress(ctx, "a1", 5))
	env.tasks.Wait()
	assert.Equal(t, 1, env.srv.Calls(lanraragitest.RouteProgress))

	calls := env.srv.TotalCalls()
	archives, err := env.archives.LoadArchives(ctx, false)
	require.NoError(t, err)
	require.Len(t, archives, 1)
	assert.Equal(t, 5, archives[0].Progress, "local write survives the failed push")
	assert.NotZero(t, archives[0].LastReadTime)
	assert.Equal(t, calls, env.srv.TotalCalls())

	server, _ := env.srv.Archive("a1")
	assert.Equal(t, lanraragi.Number(0), server.Progress)
}

func TestUpdateProgress_PushesToServer(t *testing.T) {
	env := newTestEnv(t)
	env.addArchive("a1", "Alpha", "", 10)
	ctx := context.Background()
	_, err := env.archives.LoadArchives(ctx, true)
	require.NoError(t, err)

	require.NoError(t, env.archives.UpdateProgress(ctx, "a1", 3))
	env.tasks.Wait()

	server, _ := env.srv.Archive("a1")
	assert.Equal(t, lanraragi.Number(3), server.Progress)
}

func TestUpdateProgress_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	err := env.archives.UpdateProgress(ctx, "missing", 1)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))

	err = env.archives.UpdateProgress(ctx, "missing", -1)
	assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))
	assert.Zero(t, env.srv.TotalCalls())
}

func TestUpdateMetadata(t *testing.T) {
	env := newTestEnv(t)
	env.addArchive("a1", "Alpha", "artist:foo", 1)
	ctx := context.Background()
	_, err := env.archives.LoadArchives(ctx, true)
	require.NoError(t, err)

	err = env.archives.UpdateMetadata(ctx, "a1", MetadataUpdate{Title: "", Tags: "x"})
	assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))

	require.NoError(t, env.archives.UpdateMetadata(ctx, "a1", MetadataUpdate{
		Title: "Alpha (Digital)",
		Tags:  " artist:foo , language:english,",
	}))
	env.tasks.Wait()

	a, err := env.archives.Archive(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "Alpha (Digital)", a.Title)
	assert.Equal(t, "artist:foo,language:english", a.Tags)

	server, _ := env.srv.Archive("a1")
	assert.Equal(t, "Alpha (Digital)", server.Title)
	assert.Equal(t, "artist:foo,language:english", server.Tags)
	assert.True(t, env.tags.RebuildPending())
}

func TestClearNew(t *testing.T) {
	env := newTestEnv(t)
	env.addArchive("a1", "Alpha", "", 1)
	ctx := context.Background()
	_, err := env.archives.LoadArchives(ctx, true)
	require.NoError(t, err)

	require.NoError(t, env.archives.ClearNew(ctx, "a1"))
	env.tasks.Wait()

	a, err := env.archives.Archive(ctx, "a1")
	require.NoError(t, err)
	assert.False(t, a.IsNew)
	server, _ := env.srv.Archive("a1")
	assert.False(t, bool(server.IsNew))
}

func TestDeleteArchive_RemoteFirst(t *testing.T) {
	env := newTestEnv(t)
	env.addArchive("a1", "Alpha", "", 2)
	env.addArchive("a2", "Beta", "", 1)
	ctx := context.Background()
	_, err := env.archives.LoadArchives(ctx, true)
	require.NoError(t, err)

	pages, err := env.pages.Extract(ctx, "a1")
	require.NoError(t, err)
	env.pages.Prefetch(ctx, "a1", pages, nil)
	require.NoError(t, env.pages.RecordHistory(ctx, "a1"))

	env.srv.RefuseDelete("a2")
	err = env.archives.DeleteArchive(ctx, "a2")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeServer, apperrors.CodeOf(err))
	_, err = env.store.GetArchive(ctx, "a2")
	assert.NoError(t, err, "a refused delete keeps the local copy")

	require.NoError(t, env.archives.DeleteArchive(ctx, "a1"))

	_, err = env.store.GetArchive(ctx, "a1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	for _, p := range pages {
		assert.False(t, env.files.Exists(p), "page files are removed with the archive")
	}
	history, err := env.pages.History(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
	_, ok := env.srv.Archive("a1")
	assert.False(t, ok)
}

func TestDeleteArchive_TransportFailureKeepsLocal(t *testing.T) {
	env := newTestEnv(t)
	env.addArchive("a1", "Alpha", "", 1)
	ctx := context.Background()
	_, err := env.archives.LoadArchives(ctx, true)
	require.NoError(t, err)

	env.srv.FailWith(lanraragitest.RouteDelete, http.StatusBadGateway)
	err = env.archives.DeleteArchive(ctx, "a1")
	assert.Equal(t, apperrors.CodeServer, apperrors.CodeOf(err))

	_, err = env.store.GetArchive(ctx, "a1")
	assert.NoError(t, err)
}

func TestThumbnail_CacheFirst(t *testing.T) {
	env := newTestEnv(t)
	env.addArchive("a1", "Alpha", "", 1)
	cover := pngBytes(t, 16, 24)
	env.srv.SetThumbnail("a1", cover)
	ctx := context.Background()

	thumb, err := env.archives.Thumbnail(ctx, "a1", false)
	require.NoError(t, err)
	assert.Equal(t, cover, thumb.Data)
	assert.NotEmpty(t, thumb.BlurHash)

	_, err = env.archives.Thumbnail(ctx, "a1", false)
	require.NoError(t, err)
	assert.Equal(t, 1, env.srv.Calls(lanraragitest.RouteThumbnail), "cached cover is reused")

	_, err = env.archives.Thumbnail(ctx, "a1", true)
	require.NoError(t, err)
	assert.Equal(t, 2, env.srv.Calls(lanraragitest.RouteThumbnail), "force bypasses the cache")
}

func TestRefreshArchive(t *testing.T) {
	env := newTestEnv(t)
	env.addArchive("a1", "Alpha", "artist:foo", 4)

	a, err := env.archives.RefreshArchive(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, 4, a.PageCount)

	cached, err := env.archives.Archive(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", cached.Title)

	_, err = env.archives.RefreshArchive(context.Background(), "missing")
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
}

func TestUpdateProgress_FailedPushSurvivesSyncAndIsRetried(t *testing.T) {
	env := newTestEnv(t)
	env.addArchive("a1", "Alpha", "", 10)
	ctx := context.Background()
	_, err := env.archives.LoadArchives(ctx, true)
	require.NoError(t, err)

	env.srv.FailWith(lanraragitest.RouteProgress, http.StatusInternalServerError)
	require.NoError(t, env.archives.UpdateProgress(ctx, "a1", 4))
	env.tasks.Wait()

	archives, err := env.archives.LoadArchives(ctx, true)
	require.NoError(t, err)
	require.Len(t, archives, 1)
	assert.Equal(t, 4, archives[0].Progress, "server progress must not overwrite an unpushed local value")
	assert.True(t, archives[0].Pending.Has(domain.PendingProgress))
	assert.Equal(t, 2, env.srv.Calls(lanraragitest.RouteProgress), "sync retries the pending push")

	env.srv.FailWith(lanraragitest.RouteProgress, 0)
	archives, err = env.archives.LoadArchives(ctx, true)
	require.NoError(t, err)
	require.Len(t, archives, 1)
	assert.Equal(t, 4, archives[0].Progress)
	assert.Zero(t, archives[0].Pending)

	server, _ := env.srv.Archive("a1")
	assert.Equal(t, lanraragi.Number(4), server.Progress)

	pending, err := env.store.ListPendingArchives(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestUpdateMetadata_FailedPushSurvivesSync(t *testing.T) {
	env := newTestEnv(t)
	env.addArchive("a1", "Alpha", "artist:foo", 1)
	ctx := context.Background()
	_, err := env.archives.LoadArchives(ctx, true)
	require.NoError(t, err)

	env.srv.FailWith(lanraragitest.RouteUpdateMetadata, http.StatusServiceUnavailable)
	require.NoError(t, env.archives.UpdateMetadata(ctx, "a1", MetadataUpdate{Title: "Alpha (Digital)", Tags: "artist:foo"}))
	env.tasks.Wait()

	archives, err := env.archives.LoadArchives(ctx, true)
	require.NoError(t, err)
	require.Len(t, archives, 1)
	assert.Equal(t, "Alpha (Digital)", archives[0].Title)

	env.srv.FailWith(lanraragitest.RouteUpdateMetadata, 0)
	_, err = env.archives.LoadArchives(ctx, true)
	require.NoError(t, err)

	server, _ := env.srv.Archive("a1")
	assert.Equal(t, "Alpha (Digital)", server.Title)
	a, err := env.archives.Archive(ctx, "a1")
	require.NoError(t, err)
	assert.Zero(t, a.Pending)
}

func TestUpdateProgress_SuccessfulPushClearsPending(t *testing.T) {
	env := newTestEnv(t)
	env.addArchive("a1", "Alpha", "", 10)
	ctx := context.Background()
	_, err := env.archives.LoadArchives(ctx, true)
	require.NoError(t, err)

	require.NoError(t, env.archives.UpdateProgress(ctx, "a1", 2))
	env.tasks.Wait()

	a, err := env.archives.Archive(ctx, "a1")
	require.NoError(t, err)
	assert.Zero(t, a.Pending)

	_, err = env.archives.LoadArchives(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, env.srv.Calls(lanraragitest.RouteProgress), "nothing left to retry")
}

func TestLoadArchives_CancelledCallerDoesNotFailJoinedCaller(t *testing.T) {
	env := newTestEnv(t)
	env.addArchive("a1", "Alpha", "", 1)
	env.srv.Delay(lanraragitest.RouteArchives, 200*time.Millisecond)

	leaderCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	leaderErr := make(chan error, 1)
	go func() {
		_, err := env.archives.LoadArchives(leaderCtx, true)
		leaderErr <- err
	}()
	require.Eventually(t, func() bool {
		return env.srv.Calls(lanraragitest.RouteArchives) == 1
	}, time.Second, 5*time.Millisecond)

	type result struct {
		archives []*domain.Archive
		err      error
	}
	joined := make(chan result, 1)
	go func() {
		archives, err := env.archives.LoadArchives(context.Background(), true)
		joined <- result{archives, err}
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	err := <-leaderErr
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	res := <-joined
	require.NoError(t, res.err)
	require.Len(t, res.archives, 1)
	assert.Equal(t, "a1", res.archives[0].ID)
	assert.Equal(t, 1, env.srv.Calls(lanraragitest.RouteArchives), "the joined caller shares the leader's request")
}
