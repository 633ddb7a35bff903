package state

import (
	"context"

	"github.com/lanreader/lanreader/internal/domain"
	apperrors "github.com/lanreader/lanreader/internal/errors"
	"github.com/lanreader/lanreader/internal/lanraragi"
	"github.com/lanreader/lanreader/internal/search"
	"github.com/lanreader/lanreader/internal/service"
)

// SearchState is the search view: the active query, the pages merged so far
// and tag completions for the query box.
type SearchState struct {
	Params  lanraragi.SearchParams
	Offline bool

	Results   []*domain.Archive
	Total     int
	Filtered  int
	NextStart int
	More      bool

	Loading    bool
	Generation uint64 // Stamp of the active query
	Error      apperrors.Code

	SuggestText string
	Suggestions []domain.TagItem
}

// SearchAction is the sealed action set of the search view.
type SearchAction interface {
	Action
	searchAction()
}

type (
	// SubmitSearch starts a new query, superseding any running one. Offline
	// queries run against the local index with Params.Filter as text.
	SubmitSearch struct {
		Params  lanraragi.SearchParams
		Offline bool
	}
	// LoadMoreResults fetches the next page of the active query.
	LoadMoreResults struct{}
	// SearchResults delivers a page for the query stamped with Generation.
	SearchResults struct {
		Generation uint64
		Page       *service.SearchPage
		Append     bool
	}
	// SearchFailed fails the query stamped with Generation.
	SearchFailed struct {
		Generation uint64
		Code       apperrors.Code
	}
	// ClearSearch drops the query and its results.
	ClearSearch struct{}
	// SuggestTags asks for completions of a partial tag.
	SuggestTags struct {
		Text string
	}
	// TagsSuggested delivers completions for Text.
	TagsSuggested struct {
		Text  string
		Items []domain.TagItem
	}
)

func (SubmitSearch) action()    {}
func (LoadMoreResults) action() {}
func (SearchResults) action()   {}
func (SearchFailed) action()    {}
func (ClearSearch) action()     {}
func (SuggestTags) action()     {}
func (TagsSuggested) action()   {}

func (SubmitSearch) searchAction()    {}
func (LoadMoreResults) searchAction() {}
func (SearchResults) searchAction()   {}
func (SearchFailed) searchAction()    {}
func (ClearSearch) searchAction()     {}
func (SuggestTags) searchAction()     {}
func (TagsSuggested) searchAction()   {}

func reduceSearch(s SearchState, a SearchAction, env *Env) (SearchState, []Effect) {
	switch a := a.(type) {
	case SubmitSearch:
		params := a.Params
		params.Start = 0
		s = SearchState{
			Params:      params,
			Offline:     a.Offline,
			Loading:     true,
			Generation:  s.Generation + 1,
			SuggestText: s.SuggestText,
			Suggestions: s.Suggestions,
		}
		if a.Offline {
			return s, []Effect{searchLocal(env, s.Generation, params)}
		}
		return s, []Effect{searchRemote(env, s.Generation, params, false)}

	case LoadMoreResults:
		if s.Loading || !s.More {
			return s, nil
		}
		s.Loading = true
		params := s.Params
		params.Start = s.NextStart
		return s, []Effect{searchRemote(env, s.Generation, params, true)}

	case SearchResults:
		if a.Generation != s.Generation {
			return s, nil
		}
		if a.Append {
			s.Results = service.Merge(s.Results, a.Page.Archives)
		} else {
			s.Results = a.Page.Archives
		}
		s.Total = a.Page.Total
		s.Filtered = a.Page.Filtered
		s.NextStart = a.Page.NextStart()
		s.More = !s.Offline && a.Page.HasMore()
		s.Loading = false
		s.Error = ""
		return s, nil

	case SearchFailed:
		if a.Generation != s.Generation {
			return s, nil
		}
		s.Loading = false
		s.Error = a.Code
		return s, nil

	case ClearSearch:
		return SearchState{Generation: s.Generation + 1}, nil

	case SuggestTags:
		s.SuggestText = a.Text
		if a.Text == "" {
			s.Suggestions = nil
			return s, nil
		}
		text := a.Text
		return s, []Effect{func(ctx context.Context, send func(Action)) {
			items, err := env.Tags.Suggest(ctx, text)
			if err != nil {
				env.logger().Debug("tag suggestion failed", "text", text, "error", err)
			}
			send(TagsSuggested{Text: text, Items: items})
		}}

	case TagsSuggested:
		if a.Text != s.SuggestText {
			return s, nil
		}
		s.Suggestions = a.Items
		return s, nil

	default:
		panic("state: unhandled search action")
	}
}

func searchRemote(env *Env, gen uint64, params lanraragi.SearchParams, appendPage bool) Effect {
	return func(ctx context.Context, send func(Action)) {
		page, err := env.Search.Search(ctx, params)
		if err != nil {
			send(SearchFailed{Generation: gen, Code: apperrors.CodeOf(err)})
			return
		}
		send(SearchResults{Generation: gen, Page: page, Append: appendPage})
	}
}

func searchLocal(env *Env, gen uint64, params lanraragi.SearchParams) Effect {
	return func(ctx context.Context, send func(Action)) {
		archives, total, err := env.Search.SearchLocal(ctx, search.Params{
			Text:    params.Filter,
			NewOnly: params.NewOnly,
		})
		if err != nil {
			send(SearchFailed{Generation: gen, Code: apperrors.CodeOf(err)})
			return
		}
		send(SearchResults{Generation: gen, Page: &service.SearchPage{
			Archives: archives,
			Total:    total,
			Filtered: total,
		}})
	}
}
