package state

import (
	"context"
	"maps"

	apperrors "github.com/lanreader/lanreader/internal/errors"
	"github.com/lanreader/lanreader/internal/prefetch"
)

// ReaderState is an open reading session.
type ReaderState struct {
	ArchiveID string
	Pages     []string
	Current   int // Zero-based index into Pages

	// Progress is the latest prefetch value per page id: [0,1) while
	// downloading, prefetch.ProgressCompressing, then prefetch.ProgressDone.
	Progress map[string]float64

	Loading    bool
	Generation uint64 // Stamp of the open session
	Error      apperrors.Code
}

// PageReady reports whether a page has landed in the cache.
func (s ReaderState) PageReady(pageID string) bool {
	return s.Progress[pageID] == prefetch.ProgressDone
}

// ReaderAction is the sealed action set of the reader.
type ReaderAction interface {
	Action
	readerAction()
}

type (
	// OpenReader opens an archive at a zero-based page.
	OpenReader struct {
		ArchiveID string
		Page      int
	}
	// ReaderPagesLoaded delivers the page list of the session stamped with
	// Generation.
	ReaderPagesLoaded struct {
		Generation uint64
		Pages      []string
	}
	// ReaderFailed fails the session stamped with Generation.
	ReaderFailed struct {
		Generation uint64
		Code       apperrors.Code
	}
	// TurnPage moves to a zero-based page.
	TurnPage struct {
		Page int
	}
	// PagePrefetchProgress reports download progress of one page.
	PagePrefetchProgress struct {
		Generation uint64
		PageID     string
		Value      float64
	}
	// CloseReader ends the session.
	CloseReader struct{}
)

func (OpenReader) action()           {}
func (ReaderPagesLoaded) action()    {}
func (ReaderFailed) action()         {}
func (TurnPage) action()             {}
func (PagePrefetchProgress) action() {}
func (CloseReader) action()          {}

func (OpenReader) readerAction()           {}
func (ReaderPagesLoaded) readerAction()    {}
func (ReaderFailed) readerAction()         {}
func (TurnPage) readerAction()             {}
func (PagePrefetchProgress) readerAction() {}
func (CloseReader) readerAction()          {}

func reduceReader(s ReaderState, a ReaderAction, env *Env) (ReaderState, []Effect) {
	switch a := a.(type) {
	case OpenReader:
		if s.Loading && s.ArchiveID == a.ArchiveID {
			return s, nil
		}
		s = ReaderState{
			ArchiveID:  a.ArchiveID,
			Current:    max(a.Page, 0),
			Loading:    true,
			Generation: s.Generation + 1,
		}
		return s, []Effect{openArchive(env, s.Generation, a.ArchiveID)}

	case ReaderPagesLoaded:
		if a.Generation != s.Generation {
			return s, nil
		}
		s.Loading = false
		s.Pages = a.Pages
		s.Current = max(min(s.Current, len(a.Pages)-1), 0)
		s.Error = ""
		return s, s.prefetchWindow(env)

	case ReaderFailed:
		if a.Generation != s.Generation {
			return s, nil
		}
		s.Loading = false
		s.Error = a.Code
		return s, nil

	case TurnPage:
		if len(s.Pages) == 0 {
			return s, nil
		}
		page := min(max(a.Page, 0), len(s.Pages)-1)
		if page == s.Current {
			return s, nil
		}
		s.Current = page
		id := s.ArchiveID
		// Server progress is one-based.
		effects := []Effect{func(_ context.Context, send func(Action)) {
			send(UpdateProgress{ID: id, Page: page + 1})
		}}
		return s, append(effects, s.prefetchWindow(env)...)

	case PagePrefetchProgress:
		if a.Generation != s.Generation {
			return s, nil
		}
		progress := make(map[string]float64, len(s.Progress)+1)
		maps.Copy(progress, s.Progress)
		progress[a.PageID] = a.Value
		s.Progress = progress
		return s, nil

	case CloseReader:
		return ReaderState{Generation: s.Generation + 1}, nil

	default:
		panic("state: unhandled reader action")
	}
}

func openArchive(env *Env, gen uint64, id string) Effect {
	return func(ctx context.Context, send func(Action)) {
		if err := env.Pages.RecordHistory(ctx, id); err != nil {
			env.logger().Warn("failed to record history", "archive_id", id, "error", err)
		}
		pages, err := env.Pages.Extract(ctx, id)
		if err != nil {
			send(ReaderFailed{Generation: gen, Code: apperrors.CodeOf(err)})
			return
		}
		send(ReaderPagesLoaded{Generation: gen, Pages: pages})
	}
}

// prefetchWindow downloads the current page and the look-ahead behind it,
// skipping pages already known to be cached.
func (s ReaderState) prefetchWindow(env *Env) []Effect {
	if len(s.Pages) == 0 {
		return nil
	}
	end := min(s.Current+env.prefetchAhead()+1, len(s.Pages))
	var window []string
	for _, p := range s.Pages[s.Current:end] {
		if !s.PageReady(p) {
			window = append(window, p)
		}
	}
	if len(window) == 0 {
		return nil
	}

	id, gen := s.ArchiveID, s.Generation
	return []Effect{func(ctx context.Context, send func(Action)) {
		env.Pages.Prefetch(ctx, id, window, func(pageID string, value float64) {
			send(PagePrefetchProgress{Generation: gen, PageID: pageID, Value: value})
		})
	}}
}
