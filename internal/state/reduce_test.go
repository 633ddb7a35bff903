package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanreader/lanreader/internal/domain"
	apperrors "github.com/lanreader/lanreader/internal/errors"
	"github.com/lanreader/lanreader/internal/lanraragi"
	"github.com/lanreader/lanreader/internal/prefetch"
	"github.com/lanreader/lanreader/internal/service"
)

// collect runs an effect that does not touch Env and returns what it sent.
func collect(fx Effect) []Action {
	var sent []Action
	fx(context.Background(), func(a Action) { sent = append(sent, a) })
	return sent
}

func archivesOf(ids ...string) []*domain.Archive {
	out := make([]*domain.Archive, 0, len(ids))
	for _, id := range ids {
		out = append(out, &domain.Archive{ID: id, Title: "Title " + id, IsNew: true})
	}
	return out
}

func TestLoadArchives_IgnoredWhileLoading(t *testing.T) {
	s, effects := Reduce(State{}, LoadArchives{FromServer: true}, nil)
	assert.True(t, s.Archives.Loading)
	assert.Equal(t, uint64(1), s.Archives.Generation)
	assert.Len(t, effects, 1)

	again, effects := Reduce(s, LoadArchives{}, nil)
	assert.Equal(t, s, again)
	assert.Empty(t, effects)
}

func TestArchivesLoaded_StaleGenerationDiscarded(t *testing.T) {
	s, _ := Reduce(State{}, LoadArchives{}, nil)

	stale, _ := Reduce(s, ArchivesLoaded{Generation: 0, Archives: archivesOf("old")}, nil)
	assert.Equal(t, s, stale)

	s, _ = Reduce(s, ArchivesLoaded{Generation: 1, Archives: archivesOf("a1", "a2")}, nil)
	assert.False(t, s.Archives.Loading)
	assert.Len(t, s.Archives.Archives, 2)

	s, _ = Reduce(s, LoadArchives{}, nil)
	s, _ = Reduce(s, ArchivesFailed{Generation: 2, Code: apperrors.CodeServer}, nil)
	assert.False(t, s.Archives.Loading)
	assert.Equal(t, apperrors.CodeServer, s.Archives.Error)
	assert.Len(t, s.Archives.Archives, 2, "a failed load keeps the previous list")
}

func TestUpdateProgress_OptimisticCopy(t *testing.T) {
	before := State{Archives: ArchiveListState{Archives: archivesOf("a1", "a2")}}

	after, effects := Reduce(before, UpdateProgress{ID: "a2", Page: 7}, nil)
	require.Len(t, effects, 1)
	assert.Equal(t, 7, after.Archives.Archive("a2").Progress)
	assert.Zero(t, before.Archives.Archive("a2").Progress, "earlier snapshots are not mutated")
	assert.Same(t, before.Archives.Archives[0], after.Archives.Archives[0], "untouched archives are shared")

	rejected, effects := Reduce(before, UpdateProgress{ID: "a1", Page: -1}, nil)
	assert.Empty(t, effects)
	assert.Equal(t, apperrors.CodeValidation, rejected.Archives.Error)
}

func TestArchivesLoaded_KeepsOptimisticEditsRacingTheLoad(t *testing.T) {
	s := State{Archives: ArchiveListState{Archives: archivesOf("a1", "a2")}}
	s, _ = Reduce(s, LoadArchives{FromServer: true}, nil)

	// Edit while the load is running; the loaded rows predate the write.
	s, _ = Reduce(s, UpdateProgress{ID: "a1", Page: 5}, nil)
	s, _ = Reduce(s, ArchivesLoaded{Generation: 1, Archives: archivesOf("a1", "a2")}, nil)
	assert.Equal(t, 5, s.Archives.Archive("a1").Progress, "in-flight write survives the load")

	// The write commits, then a second load started before the commit lands.
	s, _ = Reduce(s, LoadArchives{}, nil)
	s, _ = Reduce(s, ArchiveWritten{ID: "a1"}, nil)
	s, _ = Reduce(s, ArchivesLoaded{Generation: 2, Archives: archivesOf("a1", "a2")}, nil)
	assert.Equal(t, 5, s.Archives.Archive("a1").Progress, "write settled during the load survives it")
	assert.Empty(t, s.Archives.writes)

	// A load started after the commit is authoritative again.
	s, _ = Reduce(s, LoadArchives{}, nil)
	fresh := archivesOf("a1", "a2")
	fresh[0].Progress = 8
	s, _ = Reduce(s, ArchivesLoaded{Generation: 3, Archives: fresh}, nil)
	assert.Equal(t, 8, s.Archives.Archive("a1").Progress)
}

func TestArchiveWritten_FailureSetsError(t *testing.T) {
	s := State{Archives: ArchiveListState{Archives: archivesOf("a1")}}
	s, _ = Reduce(s, ClearNew{ID: "a1"}, nil)

	s, _ = Reduce(s, ArchiveWritten{ID: "a1", Code: apperrors.CodeNotFound}, nil)
	assert.Equal(t, apperrors.CodeNotFound, s.Archives.Error)
	assert.Zero(t, s.Archives.writes["a1"].inFlight)

	s, _ = Reduce(s, LoadArchives{}, nil)
	s, _ = Reduce(s, ArchivesLoaded{Generation: 1, Archives: archivesOf("a1")}, nil)
	assert.True(t, s.Archives.Archive("a1").IsNew, "a rejected write does not outlive the next load")
}

func TestUpdateMetadataAndClearNew(t *testing.T) {
	s := State{Archives: ArchiveListState{Archives: archivesOf("a1")}}

	s, effects := Reduce(s, UpdateMetadata{ID: "a1", Update: service.MetadataUpdate{
		Title: "Renamed",
		Tags:  " artist:foo ,, female:glasses ",
	}}, nil)
	require.Len(t, effects, 1)
	assert.Equal(t, "Renamed", s.Archives.Archive("a1").Title)
	assert.Equal(t, "artist:foo,female:glasses", s.Archives.Archive("a1").Tags)

	s, effects = Reduce(s, ClearNew{ID: "a1"}, nil)
	require.Len(t, effects, 1)
	assert.False(t, s.Archives.Archive("a1").IsNew)
}

func TestArchiveDeleted(t *testing.T) {
	before := State{Archives: ArchiveListState{Archives: archivesOf("a1", "a2", "a3")}}

	after, _ := Reduce(before, ArchiveDeleted{ID: "a2"}, nil)
	assert.Len(t, after.Archives.Archives, 2)
	assert.Nil(t, after.Archives.Archive("a2"))
	assert.Len(t, before.Archives.Archives, 3)
	assert.Equal(t, "a2", before.Archives.Archives[1].ID)
}

func TestResetError(t *testing.T) {
	s := State{
		Archives:  ArchiveListState{Error: apperrors.CodeServer},
		Search:    SearchState{Error: apperrors.CodeDecode},
		Downloads: DownloadsState{Error: apperrors.CodeValidation},
	}

	s, _ = Reduce(s, ResetError{Slice: SliceSearch}, nil)
	assert.Empty(t, s.Search.Error)
	assert.Equal(t, apperrors.CodeServer, s.Archives.Error, "other slices keep their error")

	s, _ = Reduce(s, ResetError{Slice: SliceArchives}, nil)
	s, _ = Reduce(s, ResetError{Slice: SliceDownloads}, nil)
	assert.Empty(t, s.Archives.Error)
	assert.Empty(t, s.Downloads.Error)
}

func TestSearch_NewQuerySupersedesOld(t *testing.T) {
	s, _ := Reduce(State{}, SubmitSearch{Params: lanraragi.SearchParams{Filter: "first", Start: 40}}, nil)
	assert.Zero(t, s.Search.Params.Start, "a new query starts at the first page")
	s, _ = Reduce(s, SubmitSearch{Params: lanraragi.SearchParams{Filter: "second"}}, nil)
	require.Equal(t, uint64(2), s.Search.Generation)

	stale, _ := Reduce(s, SearchResults{Generation: 1, Page: &service.SearchPage{Archives: archivesOf("x")}}, nil)
	assert.Equal(t, s, stale)

	s, _ = Reduce(s, SearchResults{Generation: 2, Page: &service.SearchPage{
		Archives: archivesOf("a1", "a2"),
		Total:    10,
		Filtered: 4,
	}}, nil)
	assert.False(t, s.Search.Loading)
	assert.Equal(t, 2, s.Search.NextStart)
	assert.True(t, s.Search.More)
	assert.Equal(t, "second", s.Search.Params.Filter)
}

func TestSearch_LoadMoreMergesPages(t *testing.T) {
	s, _ := Reduce(State{}, SubmitSearch{Params: lanraragi.SearchParams{Filter: "q"}}, nil)

	_, effects := Reduce(s, LoadMoreResults{}, nil)
	assert.Empty(t, effects, "ignored while the first page loads")

	s, _ = Reduce(s, SearchResults{Generation: 1, Page: &service.SearchPage{Archives: archivesOf("a1", "a2"), Filtered: 3}}, nil)
	s, effects = Reduce(s, LoadMoreResults{}, nil)
	require.Len(t, effects, 1)
	assert.True(t, s.Search.Loading)

	s, _ = Reduce(s, SearchResults{Generation: 1, Append: true, Page: &service.SearchPage{
		Archives: archivesOf("a2", "a3"),
		Start:    2,
		Filtered: 3,
	}}, nil)
	ids := make([]string, 0, len(s.Search.Results))
	for _, a := range s.Search.Results {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"a1", "a2", "a3"}, ids)
	assert.False(t, s.Search.More)

	_, effects = Reduce(s, LoadMoreResults{}, nil)
	assert.Empty(t, effects, "nothing left to load")
}

func TestSearch_OfflineHasNoMorePages(t *testing.T) {
	s, _ := Reduce(State{}, SubmitSearch{Params: lanraragi.SearchParams{Filter: "blue"}, Offline: true}, nil)
	s, _ = Reduce(s, SearchResults{Generation: 1, Page: &service.SearchPage{Archives: archivesOf("a1"), Filtered: 5}}, nil)
	assert.False(t, s.Search.More)
}

func TestSuggestTags_StaleCompletionsDropped(t *testing.T) {
	s, effects := Reduce(State{}, SuggestTags{Text: "art"}, nil)
	require.Len(t, effects, 1)
	s, _ = Reduce(s, SuggestTags{Text: "artist:f"}, nil)

	stale, _ := Reduce(s, TagsSuggested{Text: "art", Items: []domain.TagItem{{Tag: "artist:bar"}}}, nil)
	assert.Empty(t, stale.Search.Suggestions)

	s, _ = Reduce(s, TagsSuggested{Text: "artist:f", Items: []domain.TagItem{{Tag: "artist:foo", Count: 3}}}, nil)
	assert.Equal(t, []domain.TagItem{{Tag: "artist:foo", Count: 3}}, s.Search.Suggestions)

	s, effects = Reduce(s, SuggestTags{}, nil)
	assert.Empty(t, effects)
	assert.Nil(t, s.Search.Suggestions)
}

func TestCategories(t *testing.T) {
	s, effects := Reduce(State{}, LoadCategories{}, nil)
	require.Len(t, effects, 1)
	_, effects = Reduce(s, LoadCategories{FromServer: true}, nil)
	assert.Empty(t, effects)

	cats := []*domain.Category{{ID: "SET_1", Name: "A"}, {ID: "SET_2", Name: "B", Search: "artist:foo"}}
	s, _ = Reduce(s, CategoriesLoaded{Categories: cats}, nil)
	assert.False(t, s.Categories.Loading)

	s, _ = Reduce(s, CategoryUpdated{Category: &domain.Category{ID: "SET_2", Name: "C", Search: "artist:bar"}}, nil)
	assert.Equal(t, "C", s.Categories.Categories[1].Name)
	assert.Equal(t, "B", cats[1].Name)

	s, _ = Reduce(s, CategoryWriteFailed{ID: "SET_1", Code: apperrors.CodeValidation}, nil)
	assert.Equal(t, apperrors.CodeValidation, s.Categories.Error)
}

func openedReader(t *testing.T, pages int) State {
	t.Helper()
	s, effects := Reduce(State{}, OpenReader{ArchiveID: "a1", Page: 1}, nil)
	require.Len(t, effects, 1)

	list := make([]string, pages)
	for i := range list {
		list[i] = "api/archives/a1/page?path=" + string(rune('a'+i)) + ".jpg"
	}
	s, _ = Reduce(s, ReaderPagesLoaded{Generation: s.Reader.Generation, Pages: list}, nil)
	return s
}

func TestReader_OpenIgnoredWhileLoadingSameArchive(t *testing.T) {
	s, _ := Reduce(State{}, OpenReader{ArchiveID: "a1"}, nil)
	again, effects := Reduce(s, OpenReader{ArchiveID: "a1"}, nil)
	assert.Equal(t, s, again)
	assert.Empty(t, effects)

	other, effects := Reduce(s, OpenReader{ArchiveID: "a2"}, nil)
	assert.Len(t, effects, 1)
	stale, _ := Reduce(other, ReaderPagesLoaded{Generation: s.Reader.Generation, Pages: []string{"p"}}, nil)
	assert.Empty(t, stale.Reader.Pages, "pages of the previous archive are dropped")
}

func TestReader_TurnPage(t *testing.T) {
	s := openedReader(t, 4)
	assert.Equal(t, 1, s.Reader.Current)

	s, effects := Reduce(s, TurnPage{Page: 9}, nil)
	assert.Equal(t, 3, s.Reader.Current, "clamped to the last page")
	require.NotEmpty(t, effects)
	assert.Equal(t, []Action{UpdateProgress{ID: "a1", Page: 4}}, collect(effects[0]))

	_, effects = Reduce(s, TurnPage{Page: 3}, nil)
	assert.Empty(t, effects, "turning to the current page does nothing")
}

func TestReader_PrefetchWindowSkipsReadyPages(t *testing.T) {
	s := openedReader(t, 3)
	for _, p := range s.Reader.Pages {
		s, _ = Reduce(s, PagePrefetchProgress{Generation: s.Reader.Generation, PageID: p, Value: prefetch.ProgressDone}, nil)
	}
	assert.True(t, s.Reader.PageReady(s.Reader.Pages[2]))

	_, effects := Reduce(s, TurnPage{Page: 0}, nil)
	assert.Len(t, effects, 1, "only the progress update, every page is cached")
}

func TestReader_ProgressFromClosedSessionDropped(t *testing.T) {
	s := openedReader(t, 2)
	gen := s.Reader.Generation

	s, _ = Reduce(s, CloseReader{}, nil)
	s, _ = Reduce(s, PagePrefetchProgress{Generation: gen, PageID: "x", Value: 0.5}, nil)
	assert.Empty(t, s.Reader.Progress)
	assert.Empty(t, s.Reader.ArchiveID)
}

func TestDownloads_FinishedJobRefreshesLibrary(t *testing.T) {
	s, _ := Reduce(State{}, DownloadQueued{Job: &domain.DownloadJob{ID: 1, IsActive: true}}, nil)
	s, _ = Reduce(s, DownloadQueued{Job: &domain.DownloadJob{ID: 2, IsActive: true}}, nil)
	assert.Equal(t, 2, s.Downloads.Jobs[0].ID, "newest first")
	assert.Len(t, s.Downloads.Active(), 2)

	s, effects := Reduce(s, DownloadsUpdated{Jobs: []*domain.DownloadJob{
		{ID: 1, IsSuccess: true, ArchiveID: "new1"},
		{ID: 2, IsActive: true},
	}}, nil)
	require.Len(t, effects, 1)
	assert.Equal(t, []Action{ArchiveChanged{ID: "new1"}, LoadArchives{}}, collect(effects[0]))
	assert.Len(t, s.Downloads.Active(), 1)

	_, effects = Reduce(s, DownloadsUpdated{Jobs: []*domain.DownloadJob{{ID: 1, IsSuccess: true, ArchiveID: "new1"}}}, nil)
	assert.Empty(t, effects, "already finished jobs do not refresh again")

	s, effects = Reduce(s, DismissDownload{ID: 1}, nil)
	assert.Len(t, effects, 1)
	assert.Len(t, s.Downloads.Jobs, 1)
}

func TestDownloads_PollSkippedWithoutActiveJobs(t *testing.T) {
	_, effects := Reduce(State{}, PollDownloads{}, nil)
	assert.Empty(t, effects)
}

func TestTriggers(t *testing.T) {
	s, _ := Reduce(State{}, ArchiveChanged{ID: "a1"}, nil)
	s, _ = Reduce(s, ArchiveChanged{ID: "a1"}, nil)
	assert.Equal(t, uint64(2), s.Triggers.ArchiveVersion("a1"))
	assert.Zero(t, s.Triggers.ArchiveVersion("a2"))

	s, _ = Reduce(s, ThumbnailFailed{ID: "a1", Code: apperrors.CodeNotFound}, nil)
	assert.Equal(t, apperrors.CodeNotFound, s.Triggers.ThumbnailErrors["a1"])

	before := s
	s, _ = Reduce(s, ThumbnailChanged{ID: "a1"}, nil)
	assert.Equal(t, uint64(1), s.Triggers.ThumbnailVersion("a1"))
	assert.NotContains(t, s.Triggers.ThumbnailErrors, "a1")
	assert.Contains(t, before.Triggers.ThumbnailErrors, "a1")
}

type unknownAction struct{}

func (unknownAction) action() {}

func TestReduce_UnknownActionPanics(t *testing.T) {
	assert.Panics(t, func() { Reduce(State{}, unknownAction{}, nil) })
}
