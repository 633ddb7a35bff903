package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/lanreader/lanreader/internal/debounce"
	"github.com/lanreader/lanreader/internal/domain"
	apperrors "github.com/lanreader/lanreader/internal/errors"
	"github.com/lanreader/lanreader/internal/search"
	"github.com/lanreader/lanreader/internal/store"
)

const (
	// DefaultTagRebuildDelay coalesces bursts of archive writes into one rebuild.
	DefaultTagRebuildDelay = 10 * time.Second

	// TagSuggestLimit caps autocomplete results.
	TagSuggestLimit = 10
)

// TagService maintains the derived tag table and the offline search index.
type TagService struct {
	store     store.Store
	index     *search.ArchiveIndex
	logger    *slog.Logger
	debouncer *debounce.Debouncer

	mu sync.Mutex // serializes rebuilds
}

// NewTagService creates a tag service. index may be nil.
func NewTagService(store store.Store, index *search.ArchiveIndex, delay time.Duration, logger *slog.Logger) *TagService {
	if delay <= 0 {
		delay = DefaultTagRebuildDelay
	}
	s := &TagService{
		store:  store,
		index:  index,
		logger: logger,
	}
	s.debouncer = debounce.New(delay, s.rebuildInBackground)
	return s
}

// ScheduleRebuild queues a rebuild after the debounce delay. Calling it again
// before the delay expires restarts the wait; only one rebuild runs.
func (s *TagService) ScheduleRebuild() {
	s.debouncer.Trigger()
}

// RebuildPending reports whether a scheduled rebuild has not run yet.
func (s *TagService) RebuildPending() bool {
	return s.debouncer.Pending()
}

// Flush runs a pending rebuild now. It returns false when nothing was queued.
func (s *TagService) Flush() bool {
	return s.debouncer.Flush()
}

// Close cancels any pending rebuild.
func (s *TagService) Close() {
	s.debouncer.Stop()
}

func (s *TagService) rebuildInBackground() {
	if err := s.Rebuild(context.Background()); err != nil {
		s.logger.Warn("tag rebuild failed", "error", err)
	}
}

// Rebuild replaces every TagItem with counts recomputed from the cached
// archives, then rebuilds the search index from the same set.
func (s *TagService) Rebuild(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()

	archives, err := s.store.ListArchives(ctx)
	if err != nil {
		return apperrors.Persistence("list archives for tag rebuild", err)
	}

	items := domain.CountTags(archives, NormalizeTag)
	if err := s.store.ReplaceTagItems(ctx, items); err != nil {
		return apperrors.Persistence("replace tags", err)
	}

	if s.index != nil {
		if err := s.index.Replace(archives); err != nil {
			s.logger.Warn("search index rebuild failed", "error", err)
		}
	}

	s.logger.Info("tags rebuilt",
		"archives", len(archives),
		"tags", len(items),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Suggest returns up to TagSuggestLimit tags containing text, most used first.
func (s *TagService) Suggest(ctx context.Context, text string) ([]domain.TagItem, error) {
	text = NormalizeTag(text)
	if text == "" {
		return []domain.TagItem{}, nil
	}
	items, err := s.store.SearchTags(ctx, text, TagSuggestLimit)
	if err != nil {
		return nil, apperrors.Persistence("search tags", err)
	}
	return items, nil
}

// NormalizeTag trims a tag and puts it in Unicode NFC so composed and
// decomposed spellings count as one tag.
func NormalizeTag(tag string) string {
	return norm.NFC.String(strings.TrimSpace(tag))
}
