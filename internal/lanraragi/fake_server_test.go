package lanraragi_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanreader/lanreader/internal/lanraragi"
	"github.com/lanreader/lanreader/internal/lanraragi/lanraragitest"
	"github.com/lanreader/lanreader/internal/logger"
)

func TestClientAgainstFakeServer(t *testing.T) {
	srv := lanraragitest.NewServer(t, "key")
	srv.AddArchive(lanraragi.ArchiveSummary{ID: "abc", Title: "Blue Period", Tags: "artist:foo", IsNew: true},
		[]byte("page-1"), []byte("page-2"))
	srv.AddCategory(lanraragi.Category{ID: "SET_1", Name: "Foo", Search: "artist:foo"})

	client, err := lanraragi.New(lanraragi.Options{ServerURL: srv.URL, APIKey: "key"}, logger.Discard())
	require.NoError(t, err)
	ctx := context.Background()

	archives, err := client.ListArchives(ctx)
	require.NoError(t, err)
	require.Len(t, archives, 1)
	assert.Equal(t, 2, archives[0].ToDomain().PageCount)

	pages, err := client.Extract(ctx, "abc")
	require.NoError(t, err)
	require.Len(t, pages, 2)

	data, err := client.Page(ctx, pages[1], nil)
	require.NoError(t, err)
	assert.Equal(t, "page-2", string(data))

	require.NoError(t, client.ClearNew(ctx, "abc"))
	got, _ := srv.Archive("abc")
	assert.False(t, bool(got.IsNew))

	cats, err := client.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	cat := cats[0].ToDomain()
	cat.Pinned = true
	require.NoError(t, client.UpdateCategory(ctx, cat))
	serverCat, _ := srv.Category("SET_1")
	assert.True(t, bool(serverCat.Pinned))

	res, err := client.Search(ctx, lanraragi.SearchParams{Category: "SET_1"})
	require.NoError(t, err)
	assert.Equal(t, lanraragi.Number(1), res.RecordsFiltered)

	assert.Equal(t, 1, srv.Calls(lanraragitest.RouteExtract))
}

func TestClientAgainstFakeServer_WrongKey(t *testing.T) {
	srv := lanraragitest.NewServer(t, "key")

	client, err := lanraragi.New(lanraragi.Options{ServerURL: srv.URL, APIKey: "wrong"}, logger.Discard())
	require.NoError(t, err)

	_, err = client.Info(context.Background())
	assert.ErrorIs(t, err, lanraragi.ErrUnauthorized)

	require.NoError(t, client.SetCredentials(srv.URL, "key"))
	info, err := client.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "LANraragi", info.Name)
}
