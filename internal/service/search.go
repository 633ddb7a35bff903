package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/lanreader/lanreader/internal/domain"
	apperrors "github.com/lanreader/lanreader/internal/errors"
	"github.com/lanreader/lanreader/internal/lanraragi"
	"github.com/lanreader/lanreader/internal/search"
	"github.com/lanreader/lanreader/internal/store"
)

// SearchPage is one offset page of server search results.
type SearchPage struct {
	Archives []*domain.Archive
	Start    int
	Total    int // Archives on the server
	Filtered int // Archives matching the query
}

// NextStart is the offset of the following page.
func (p *SearchPage) NextStart() int {
	return p.Start + len(p.Archives)
}

// HasMore reports whether another page exists after this one.
func (p *SearchPage) HasMore() bool {
	return len(p.Archives) > 0 && p.NextStart() < p.Filtered
}

// SearchService runs server-side and offline searches.
type SearchService struct {
	store  store.Store
	remote Remote
	index  *search.ArchiveIndex
	logger *slog.Logger
}

// NewSearchService creates a search service.
func NewSearchService(store store.Store, remote Remote, index *search.ArchiveIndex, logger *slog.Logger) *SearchService {
	return &SearchService{
		store:  store,
		remote: remote,
		index:  index,
		logger: logger,
	}
}

// Search fetches one page of server results starting at params.Start.
func (s *SearchService) Search(ctx context.Context, params lanraragi.SearchParams) (*SearchPage, error) {
	if params.Start < 0 {
		return nil, apperrors.Validation("start must not be negative")
	}

	res, err := s.remote.Search(ctx, params)
	if err != nil {
		return nil, apperrors.FromRemote("search", err)
	}

	page := &SearchPage{
		Archives: make([]*domain.Archive, 0, len(res.Archives)),
		Start:    params.Start,
		Total:    int(res.RecordsTotal),
		Filtered: int(res.RecordsFiltered),
	}
	for _, sum := range res.Archives {
		page.Archives = append(page.Archives, sum.ToDomain())
	}
	return page, nil
}

// Merge appends next to prev, dropping archives already present. Neither
// input is modified.
func Merge(prev, next []*domain.Archive) []*domain.Archive {
	out := make([]*domain.Archive, 0, len(prev)+len(next))
	seen := make(map[string]struct{}, len(prev)+len(next))
	for _, list := range [][]*domain.Archive{prev, next} {
		for _, a := range list {
			if _, dup := seen[a.ID]; dup {
				continue
			}
			seen[a.ID] = struct{}{}
			out = append(out, a)
		}
	}
	return out
}

// SearchLocal searches the cached archive set without the network.
// It returns the matching archives in rank order and the total hit count.
func (s *SearchService) SearchLocal(ctx context.Context, params search.Params) ([]*domain.Archive, int, error) {
	if s.index == nil {
		return nil, 0, apperrors.Server("offline search unavailable", nil)
	}

	res, err := s.index.Search(ctx, params)
	if err != nil {
		return nil, 0, apperrors.Server("offline search", err)
	}

	archives := make([]*domain.Archive, 0, len(res.Hits))
	for _, id := range res.IDs() {
		a, err := s.store.GetArchive(ctx, id)
		if err != nil {
			// The index lags deletes until the next rebuild.
			if !errors.Is(err, store.ErrNotFound) {
				return nil, 0, apperrors.Persistence("get archive", err)
			}
			continue
		}
		archives = append(archives, a)
	}
	return archives, int(res.Total), nil
}
