// Package state holds the application state container: a root State built
// from per-feature slices, pure reducers over sealed action sets, and a Store
// that applies actions in dispatch order and runs the effects they produce.
//
// Reducers never mutate the state they are given. Slices and maps inside a
// State are replaced, not edited, so snapshots handed to subscribers stay
// valid after later actions.
package state

import (
	"context"
	"fmt"
)

// State is the root of the application state.
type State struct {
	Archives   ArchiveListState
	Search     SearchState
	Categories CategoriesState
	Reader     ReaderState
	Downloads  DownloadsState
	Triggers   TriggersState
}

// Action is anything that can be dispatched to the Store. Every concrete
// action also belongs to exactly one slice action set.
type Action interface {
	action()
}

// Effect is asynchronous work started by a reduction. Effects only influence
// state by sending further actions.
type Effect func(ctx context.Context, send func(Action))

// Slice names a part of the root state.
type Slice string

// State slices.
const (
	SliceArchives   Slice = "archives"
	SliceSearch     Slice = "search"
	SliceCategories Slice = "categories"
	SliceReader     Slice = "reader"
	SliceDownloads  Slice = "downloads"
)

// ResetError clears the error code of one slice.
type ResetError struct {
	Slice Slice
}

func (ResetError) action() {}

// Reduce applies an action to the state and returns the next state along
// with the effects to start. It never blocks and performs no I/O.
func Reduce(s State, a Action, env *Env) (State, []Effect) {
	var effects []Effect

	switch a := a.(type) {
	case ResetError:
		s = resetError(s, a.Slice)
	case ArchiveListAction:
		s.Archives, effects = reduceArchiveList(s.Archives, a, env)
	case SearchAction:
		s.Search, effects = reduceSearch(s.Search, a, env)
	case CategoriesAction:
		s.Categories, effects = reduceCategories(s.Categories, a, env)
	case ReaderAction:
		s.Reader, effects = reduceReader(s.Reader, a, env)
	case DownloadsAction:
		s.Downloads, effects = reduceDownloads(s.Downloads, a, env)
	case TriggersAction:
		s.Triggers, effects = reduceTriggers(s.Triggers, a, env)
	default:
		panic(fmt.Sprintf("state: unhandled action %T", a))
	}

	return s, effects
}

func resetError(s State, slice Slice) State {
	switch slice {
	case SliceArchives:
		s.Archives.Error = ""
	case SliceSearch:
		s.Search.Error = ""
	case SliceCategories:
		s.Categories.Error = ""
	case SliceReader:
		s.Reader.Error = ""
	case SliceDownloads:
		s.Downloads.Error = ""
	}
	return s
}

// actionName is the log label for an action.
func actionName(a Action) string {
	return fmt.Sprintf("%T", a)
}
