package state

import (
	"context"
	"slices"

	"github.com/lanreader/lanreader/internal/domain"
	apperrors "github.com/lanreader/lanreader/internal/errors"
	"github.com/lanreader/lanreader/internal/service"
)

// ArchiveListState is the library view.
type ArchiveListState struct {
	Archives   []*domain.Archive
	Loading    bool
	Generation uint64 // Stamp of the most recent load
	Error      apperrors.Code

	writes map[string]localWrite
}

// localWrite tracks optimistic edits of one archive so a load that raced
// with them cannot roll the list back.
type localWrite struct {
	inFlight int
	settled  uint64 // Generation current when the last write committed
}

// overrides reports whether the listed copy of id beats a load stamped gen.
func (w localWrite) overrides(gen uint64) bool {
	return w.inFlight > 0 || w.settled >= gen
}

// track returns a copy of the write table with edit applied to id.
func (s ArchiveListState) track(id string, edit func(w *localWrite)) map[string]localWrite {
	out := make(map[string]localWrite, len(s.writes)+1)
	for k, v := range s.writes {
		out[k] = v
	}
	w := out[id]
	edit(&w)
	out[id] = w
	return out
}

// Archive returns the listed archive with id, or nil.
func (s ArchiveListState) Archive(id string) *domain.Archive {
	if i := s.index(id); i >= 0 {
		return s.Archives[i]
	}
	return nil
}

func (s ArchiveListState) index(id string) int {
	return slices.IndexFunc(s.Archives, func(a *domain.Archive) bool { return a.ID == id })
}

// replace returns a copy of the list with the archive at i swapped for a
// modified copy.
func (s ArchiveListState) replace(i int, edit func(a *domain.Archive)) []*domain.Archive {
	out := slices.Clone(s.Archives)
	a := *out[i]
	edit(&a)
	out[i] = &a
	return out
}

// ArchiveListAction is the sealed action set of the library view.
type ArchiveListAction interface {
	Action
	archiveListAction()
}

type (
	// LoadArchives starts a library load. Ignored while one is running.
	LoadArchives struct {
		FromServer bool
	}
	// ArchivesLoaded completes the load stamped with Generation.
	ArchivesLoaded struct {
		Generation uint64
		Archives   []*domain.Archive
	}
	// ArchivesFailed fails the load stamped with Generation.
	ArchivesFailed struct {
		Generation uint64
		Code       apperrors.Code
	}
	// UpdateProgress records the last read page of an archive.
	UpdateProgress struct {
		ID   string
		Page int
	}
	// UpdateMetadata edits an archive's title and tags.
	UpdateMetadata struct {
		ID     string
		Update service.MetadataUpdate
	}
	// ClearNew drops the "new" flag of an archive.
	ClearNew struct {
		ID string
	}
	// DeleteArchive deletes an archive on the server and then locally.
	DeleteArchive struct {
		ID string
	}
	// ArchiveDeleted removes a deleted archive from the list.
	ArchiveDeleted struct {
		ID string
	}
	// ArchiveWritten settles an optimistic edit. Code is empty on success.
	// Remote push failures never show up here; they are retried by the
	// next server sync.
	ArchiveWritten struct {
		ID   string
		Code apperrors.Code
	}
	// ArchiveWriteFailed reports a rejected delete.
	ArchiveWriteFailed struct {
		ID   string
		Code apperrors.Code
	}
)

func (LoadArchives) action()       {}
func (ArchivesLoaded) action()     {}
func (ArchivesFailed) action()     {}
func (UpdateProgress) action()     {}
func (UpdateMetadata) action()     {}
func (ClearNew) action()           {}
func (DeleteArchive) action()      {}
func (ArchiveDeleted) action()     {}
func (ArchiveWritten) action()     {}
func (ArchiveWriteFailed) action() {}

func (LoadArchives) archiveListAction()       {}
func (ArchivesLoaded) archiveListAction()     {}
func (ArchivesFailed) archiveListAction()     {}
func (UpdateProgress) archiveListAction()     {}
func (UpdateMetadata) archiveListAction()     {}
func (ClearNew) archiveListAction()           {}
func (DeleteArchive) archiveListAction()      {}
func (ArchiveDeleted) archiveListAction()     {}
func (ArchiveWritten) archiveListAction()     {}
func (ArchiveWriteFailed) archiveListAction() {}

func reduceArchiveList(s ArchiveListState, a ArchiveListAction, env *Env) (ArchiveListState, []Effect) {
	switch a := a.(type) {
	case LoadArchives:
		if s.Loading {
			return s, nil
		}
		s.Loading = true
		s.Generation++
		return s, []Effect{loadArchives(env, s.Generation, a.FromServer)}

	case ArchivesLoaded:
		if a.Generation != s.Generation {
			return s, nil
		}
		s.Loading = false
		s.Archives, s.writes = s.merge(a.Generation, a.Archives)
		s.Error = ""
		return s, nil

	case ArchivesFailed:
		if a.Generation != s.Generation {
			return s, nil
		}
		s.Loading = false
		s.Error = a.Code
		return s, nil

	case UpdateProgress:
		if a.Page < 0 {
			s.Error = apperrors.CodeValidation
			return s, nil
		}
		if i := s.index(a.ID); i >= 0 {
			s.Archives = s.replace(i, func(ar *domain.Archive) { ar.Progress = a.Page })
		}
		s.writes = s.track(a.ID, func(w *localWrite) { w.inFlight++ })
		return s, []Effect{archiveWrite(a.ID, func(ctx context.Context) error {
			return env.Archives.UpdateProgress(ctx, a.ID, a.Page)
		})}

	case UpdateMetadata:
		if i := s.index(a.ID); i >= 0 {
			s.Archives = s.replace(i, func(ar *domain.Archive) {
				ar.Title = a.Update.Title
				ar.Tags = domain.JoinTags(domain.SplitTags(a.Update.Tags))
			})
		}
		s.writes = s.track(a.ID, func(w *localWrite) { w.inFlight++ })
		return s, []Effect{archiveWrite(a.ID, func(ctx context.Context) error {
			return env.Archives.UpdateMetadata(ctx, a.ID, a.Update)
		})}

	case ClearNew:
		if i := s.index(a.ID); i >= 0 && s.Archives[i].IsNew {
			s.Archives = s.replace(i, func(ar *domain.Archive) { ar.IsNew = false })
		}
		s.writes = s.track(a.ID, func(w *localWrite) { w.inFlight++ })
		return s, []Effect{archiveWrite(a.ID, func(ctx context.Context) error {
			return env.Archives.ClearNew(ctx, a.ID)
		})}

	case DeleteArchive:
		id := a.ID
		return s, []Effect{func(ctx context.Context, send func(Action)) {
			if err := env.Archives.DeleteArchive(ctx, id); err != nil {
				send(ArchiveWriteFailed{ID: id, Code: apperrors.CodeOf(err)})
				return
			}
			send(ArchiveDeleted{ID: id})
			send(ArchiveChanged{ID: id})
		}}

	case ArchiveDeleted:
		if i := s.index(a.ID); i >= 0 {
			s.Archives = slices.Delete(slices.Clone(s.Archives), i, i+1)
		}
		return s, nil

	case ArchiveWritten:
		gen := s.Generation
		s.writes = s.track(a.ID, func(w *localWrite) {
			w.inFlight = max(w.inFlight-1, 0)
			if a.Code == "" {
				w.settled = gen
			}
		})
		if a.Code != "" {
			s.Error = a.Code
		}
		return s, nil

	case ArchiveWriteFailed:
		s.Error = a.Code
		return s, nil

	default:
		panic("state: unhandled archive list action")
	}
}

// merge applies a completed load, keeping listed copies of archives whose
// local edits the load may not have seen. Settled entries are dropped: the
// next load starts after them and reads their committed values.
func (s ArchiveListState) merge(gen uint64, loaded []*domain.Archive) ([]*domain.Archive, map[string]localWrite) {
	if len(s.writes) == 0 {
		return loaded, nil
	}
	out := slices.Clone(loaded)
	for i, ar := range out {
		if w, ok := s.writes[ar.ID]; ok && w.overrides(gen) {
			if cur := s.Archive(ar.ID); cur != nil {
				out[i] = cur
			}
		}
	}

	var writes map[string]localWrite
	for id, w := range s.writes {
		if w.inFlight > 0 {
			if writes == nil {
				writes = make(map[string]localWrite)
			}
			writes[id] = w
		}
	}
	return out, writes
}

func loadArchives(env *Env, gen uint64, fromServer bool) Effect {
	return func(ctx context.Context, send func(Action)) {
		archives, err := env.Archives.LoadArchives(ctx, fromServer)
		if err != nil {
			send(ArchivesFailed{Generation: gen, Code: apperrors.CodeOf(err)})
			return
		}
		send(ArchivesLoaded{Generation: gen, Archives: archives})
	}
}

// archiveWrite runs an optimistic write and reports its outcome. The list
// keeps the optimistic value either way.
func archiveWrite(id string, write func(ctx context.Context) error) Effect {
	return func(ctx context.Context, send func(Action)) {
		if err := write(ctx); err != nil {
			send(ArchiveWritten{ID: id, Code: apperrors.CodeOf(err)})
			return
		}
		send(ArchiveWritten{ID: id})
		send(ArchiveChanged{ID: id})
	}
}
