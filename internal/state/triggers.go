package state

import (
	"context"
	"maps"

	apperrors "github.com/lanreader/lanreader/internal/errors"
)

// TriggersState holds change markers. Views watching an archive or its
// thumbnail reload when its version moves.
type TriggersState struct {
	Archives        map[string]uint64
	Thumbnails      map[string]uint64
	ThumbnailErrors map[string]apperrors.Code
}

// ArchiveVersion is the change counter of an archive.
func (s TriggersState) ArchiveVersion(id string) uint64 {
	return s.Archives[id]
}

// ThumbnailVersion is the change counter of a thumbnail.
func (s TriggersState) ThumbnailVersion(id string) uint64 {
	return s.Thumbnails[id]
}

// TriggersAction is the sealed action set of the change markers.
type TriggersAction interface {
	Action
	triggersAction()
}

type (
	// ArchiveChanged marks an archive as modified.
	ArchiveChanged struct {
		ID string
	}
	// LoadThumbnail fetches a thumbnail into the cache, forcing a server
	// round trip when Force is set.
	LoadThumbnail struct {
		ID    string
		Force bool
	}
	// ThumbnailChanged marks a thumbnail as (re)cached.
	ThumbnailChanged struct {
		ID string
	}
	// ThumbnailFailed records why a thumbnail could not be loaded.
	ThumbnailFailed struct {
		ID   string
		Code apperrors.Code
	}
)

func (ArchiveChanged) action()   {}
func (LoadThumbnail) action()    {}
func (ThumbnailChanged) action() {}
func (ThumbnailFailed) action()  {}

func (ArchiveChanged) triggersAction()   {}
func (LoadThumbnail) triggersAction()    {}
func (ThumbnailChanged) triggersAction() {}
func (ThumbnailFailed) triggersAction()  {}

func reduceTriggers(s TriggersState, a TriggersAction, env *Env) (TriggersState, []Effect) {
	switch a := a.(type) {
	case ArchiveChanged:
		s.Archives = bump(s.Archives, a.ID)
		return s, nil

	case LoadThumbnail:
		id, force := a.ID, a.Force
		return s, []Effect{func(ctx context.Context, send func(Action)) {
			if _, err := env.Archives.Thumbnail(ctx, id, force); err != nil {
				send(ThumbnailFailed{ID: id, Code: apperrors.CodeOf(err)})
				return
			}
			send(ThumbnailChanged{ID: id})
		}}

	case ThumbnailChanged:
		s.Thumbnails = bump(s.Thumbnails, a.ID)
		if _, ok := s.ThumbnailErrors[a.ID]; ok {
			s.ThumbnailErrors = maps.Clone(s.ThumbnailErrors)
			delete(s.ThumbnailErrors, a.ID)
		}
		return s, nil

	case ThumbnailFailed:
		errs := make(map[string]apperrors.Code, len(s.ThumbnailErrors)+1)
		maps.Copy(errs, s.ThumbnailErrors)
		errs[a.ID] = a.Code
		s.ThumbnailErrors = errs
		return s, nil

	default:
		panic("state: unhandled triggers action")
	}
}

// bump returns a copy of m with the counter for id incremented.
func bump(m map[string]uint64, id string) map[string]uint64 {
	out := make(map[string]uint64, len(m)+1)
	maps.Copy(out, m)
	out[id]++
	return out
}
