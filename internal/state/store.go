package state

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/lanreader/lanreader/internal/id"
)

const (
	actionBuffer       = 256
	subscriptionBuffer = 16
)

// Subscription receives a snapshot after every reduction.
type Subscription struct {
	ID     string
	States chan State
}

// Store owns the root state. A single goroutine applies actions in the
// order they were dispatched; effects run concurrently and feed their
// results back through Dispatch.
type Store struct {
	env    *Env
	logger *slog.Logger

	actions chan Action
	done    chan struct{}
	stop    sync.Once

	mu    sync.RWMutex
	state State

	subsMu sync.RWMutex
	subs   map[string]*Subscription

	loop    sync.WaitGroup
	effects sync.WaitGroup
	cancel  context.CancelFunc

	// busy counts queued actions plus running effects.
	busy atomic.Int64
}

// NewStore creates a store holding initial.
func NewStore(env *Env, initial State, logger *slog.Logger) *Store {
	return &Store{
		env:     env,
		logger:  logger,
		actions: make(chan Action, actionBuffer),
		done:    make(chan struct{}),
		state:   initial,
		subs:    make(map[string]*Subscription),
	}
}

// Start runs the dispatch loop until ctx is cancelled or Shutdown is
// called. Call it once, in its own goroutine.
func (s *Store) Start(ctx context.Context) {
	s.loop.Add(1)
	defer s.loop.Done()

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.logger.Info("state store starting")
	for {
		select {
		case a := <-s.actions:
			s.apply(ctx, a)
		case <-ctx.Done():
			s.logger.Info("state store stopping")
			s.stop.Do(func() { close(s.done) })
			return
		case <-s.done:
			s.logger.Info("state store stopping")
			return
		}
	}
}

// Dispatch enqueues an action. It is safe from any goroutine and is a
// no-op once the store has stopped. Actions dispatched before Start wait in
// a bounded buffer.
func (s *Store) Dispatch(a Action) {
	select {
	case <-s.done:
		return
	default:
	}

	s.busy.Add(1)
	select {
	case s.actions <- a:
	case <-s.done:
		s.busy.Add(-1)
	}
}

// Idle reports whether no action is queued or being applied and no effect
// is running.
func (s *Store) Idle() bool {
	return s.busy.Load() == 0
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe registers a subscriber. The current snapshot is delivered
// immediately. A subscriber that falls behind loses intermediate
// snapshots, never the latest one.
func (s *Store) Subscribe() *Subscription {
	sub := &Subscription{
		ID:     id.MustGenerate("sub"),
		States: make(chan State, subscriptionBuffer),
	}

	s.subsMu.Lock()
	sub.States <- s.State()
	s.subs[sub.ID] = sub
	s.subsMu.Unlock()

	s.logger.Debug("state subscriber added", slog.String("subscriber_id", sub.ID))
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (s *Store) Unsubscribe(subID string) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	if sub, ok := s.subs[subID]; ok {
		delete(s.subs, subID)
		close(sub.States)
		s.logger.Debug("state subscriber removed", slog.String("subscriber_id", subID))
	}
}

// Shutdown stops the dispatch loop, waits for running effects until ctx
// expires, then cancels the rest and closes every subscription.
func (s *Store) Shutdown(ctx context.Context) error {
	s.stop.Do(func() { close(s.done) })
	s.loop.Wait()

	finished := make(chan struct{})
	go func() {
		s.effects.Wait()
		close(finished)
	}()

	var err error
	select {
	case <-finished:
	case <-ctx.Done():
		s.logger.Warn("state effects still running at shutdown, cancelling")
		err = ctx.Err()
	}

	s.mu.RLock()
	cancel := s.cancel
	s.mu.RUnlock()
	if cancel != nil {
		cancel()
	}

	s.subsMu.Lock()
	for subID, sub := range s.subs {
		delete(s.subs, subID)
		close(sub.States)
	}
	s.subsMu.Unlock()

	return err
}

func (s *Store) apply(ctx context.Context, a Action) {
	next, effects := Reduce(s.State(), a, s.env)

	s.mu.Lock()
	s.state = next
	s.mu.Unlock()

	s.publish(next)

	for _, fx := range effects {
		s.run(ctx, a, fx)
	}
	s.busy.Add(-1)
}

// publish delivers a snapshot to every subscriber without blocking. When a
// subscriber's buffer is full its oldest pending snapshot is dropped.
func (s *Store) publish(snapshot State) {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()

	for _, sub := range s.subs {
		select {
		case sub.States <- snapshot:
			continue
		default:
		}

		select {
		case <-sub.States:
		default:
		}
		select {
		case sub.States <- snapshot:
		default:
		}
		s.logger.Debug("dropped state snapshot for slow subscriber", slog.String("subscriber_id", sub.ID))
	}
}

func (s *Store) run(ctx context.Context, a Action, fx Effect) {
	runID := uuid.NewString()
	name := actionName(a)

	s.busy.Add(1)
	s.effects.Go(func() {
		defer s.busy.Add(-1)
		start := time.Now()
		s.logger.Debug("effect started", slog.String("effect_id", runID), slog.String("action", name))
		fx(ctx, s.Dispatch)
		s.logger.Debug("effect finished",
			slog.String("effect_id", runID),
			slog.String("action", name),
			slog.Duration("elapsed", time.Since(start)))
	})
}
