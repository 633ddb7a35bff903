package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanreader/lanreader/internal/domain"
	"github.com/lanreader/lanreader/internal/logger"
	"github.com/lanreader/lanreader/internal/search"
)

func tagSet(items []domain.TagItem) map[string]int {
	out := make(map[string]int, len(items))
	for _, it := range items {
		out[it.Tag] = it.Count
	}
	return out
}

func TestRebuild_ExcludesReservedKeys(t *testing.T) {
	env := newTestEnv(t)
	env.addArchive("a1", "Alpha", "date_added:123, artist:foo", 1)
	env.addArchive("a2", "Beta", "artist:foo,source:example.com/g/1", 1)
	ctx := context.Background()

	_, err := env.archives.LoadArchives(ctx, true)
	require.NoError(t, err)
	require.True(t, env.tags.Flush(), "load schedules a rebuild")

	items, err := env.store.ListTagItems(ctx)
	require.NoError(t, err)
	set := tagSet(items)
	assert.Equal(t, 2, set["artist:foo"])
	for tag := range set {
		assert.NotEqual(t, "date_added", domain.TagKey(tag))
		assert.NotEqual(t, "source", domain.TagKey(tag))
	}
	assert.False(t, env.tags.RebuildPending())
}

func TestRebuild_ReplacesPreviousSet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.store.SaveArchive(ctx, &domain.Archive{ID: "a1", Title: "Alpha", Tags: "artist:old"}))
	require.NoError(t, env.tags.Rebuild(ctx))

	require.NoError(t, env.store.UpdateArchiveMetadata(ctx, "a1", "Alpha", "artist:new"))
	require.NoError(t, env.tags.Rebuild(ctx))

	items, err := env.store.ListTagItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.TagItem{{Tag: "artist:new", Count: 1}}, items)
}

func TestRebuild_NormalizesUnicode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	// "é" precomposed and as e + combining acute.
	require.NoError(t, env.store.SaveArchive(ctx, &domain.Archive{ID: "a1", Tags: "artist:caf\u00e9"}))
	require.NoError(t, env.store.SaveArchive(ctx, &domain.Archive{ID: "a2", Tags: "artist:cafe\u0301"}))

	require.NoError(t, env.tags.Rebuild(ctx))

	items, err := env.store.ListTagItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.TagItem{{Tag: "artist:caf\u00e9", Count: 2}}, items)
}

func TestRebuild_RefreshesSearchIndex(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.store.SaveArchive(ctx, &domain.Archive{ID: "a1", Title: "Blue Period"}))

	require.NoError(t, env.tags.Rebuild(ctx))

	count, err := env.index.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	archives, total, err := env.search.SearchLocal(ctx, search.Params{Text: "blue"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, archives, 1)
	assert.Equal(t, "a1", archives[0].ID)
}

func TestScheduleRebuild_Coalesces(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.store.SaveArchive(ctx, &domain.Archive{ID: "a1", Tags: "artist:foo"}))

	tags := NewTagService(env.store, nil, 50*time.Millisecond, logger.Discard())
	t.Cleanup(tags.Close)

	for range 5 {
		tags.ScheduleRebuild()
		time.Sleep(10 * time.Millisecond)
	}
	assert.True(t, tags.RebuildPending(), "each trigger restarts the wait")

	require.Eventually(t, func() bool {
		items, err := env.store.ListTagItems(ctx)
		return err == nil && len(items) == 1
	}, 2*time.Second, 20*time.Millisecond)
	assert.False(t, tags.RebuildPending())
}

func TestSuggest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for i := range 15 {
		tags := "artist:foo"
		if i%2 == 0 {
			tags += ",parody:foobar"
		}
		require.NoError(t, env.store.SaveArchive(ctx, &domain.Archive{ID: string(rune('a' + i)), Tags: tags}))
	}
	require.NoError(t, env.tags.Rebuild(ctx))

	items, err := env.tags.Suggest(ctx, " foo ")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, domain.TagItem{Tag: "artist:foo", Count: 15}, items[0])
	assert.Equal(t, domain.TagItem{Tag: "parody:foobar", Count: 8}, items[1])

	items, err = env.tags.Suggest(ctx, "  ")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSuggest_CapsResults(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tags := make([]string, 0, 20)
	for i := range 20 {
		tags = append(tags, "series:s"+string(rune('a'+i)))
	}
	require.NoError(t, env.store.SaveArchive(ctx, &domain.Archive{ID: "a1", Tags: domain.JoinTags(tags)}))
	require.NoError(t, env.tags.Rebuild(ctx))

	items, err := env.tags.Suggest(ctx, "series")
	require.NoError(t, err)
	assert.Len(t, items, TagSuggestLimit)
}
