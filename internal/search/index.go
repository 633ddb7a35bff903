package search

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/lanreader/lanreader/internal/domain"
)

const batchSize = 500

// ArchiveIndex wraps an in-memory Bleve index of cached archives.
//
// Thread safety: all public methods are safe for concurrent use. Replace
// builds the new index off to the side and swaps it in under the write lock,
// so searches never observe a half-built index.
type ArchiveIndex struct {
	index  bleve.Index
	logger *slog.Logger
	mu     sync.RWMutex
}

// NewArchiveIndex creates an empty index.
func NewArchiveIndex(logger *slog.Logger) (*ArchiveIndex, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	return &ArchiveIndex{index: index, logger: logger}, nil
}

// Close releases the index.
func (s *ArchiveIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// Replace rebuilds the index from archives.
func (s *ArchiveIndex) Replace(archives []*domain.Archive) error {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	for i := 0; i < len(archives); i += batchSize {
		end := min(i+batchSize, len(archives))

		batch := index.NewBatch()
		for _, a := range archives[i:end] {
			if err := batch.Index(a.ID, NewArchiveDocument(a).ToMap()); err != nil {
				index.Close()
				return fmt.Errorf("batch index %s: %w", a.ID, err)
			}
		}
		if err := index.Batch(batch); err != nil {
			index.Close()
			return fmt.Errorf("commit batch %d-%d: %w", i, end, err)
		}
	}

	s.mu.Lock()
	old := s.index
	s.index = index
	s.mu.Unlock()

	if err := old.Close(); err != nil {
		s.logger.Warn("failed to close previous search index", "error", err)
	}
	s.logger.Debug("rebuilt search index", "documents", len(archives))
	return nil
}

// Index adds or replaces one archive.
func (s *ArchiveIndex) Index(a *domain.Archive) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Index(a.ID, NewArchiveDocument(a).ToMap())
}

// Delete removes one archive.
func (s *ArchiveIndex) Delete(id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Delete(id)
}

// Count returns the number of indexed archives.
func (s *ArchiveIndex) Count() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}
