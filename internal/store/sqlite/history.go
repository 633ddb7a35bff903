package sqlite

import (
	"context"

	"github.com/lanreader/lanreader/internal/domain"
	"github.com/lanreader/lanreader/internal/store"
)

// SaveHistory records a view, overwriting any earlier entry for the archive.
func (s *Store) SaveHistory(ctx context.Context, h *domain.History) error {
	_, err := s.exec(ctx, `
		INSERT INTO history (archive_id, updated_at) VALUES (?, ?)
		ON CONFLICT(archive_id) DO UPDATE SET updated_at = excluded.updated_at`,
		h.ArchiveID, formatTime(h.UpdatedAt))
	return store.Wrap("save history", err)
}

// ListHistory returns the most recently viewed archives first.
// A non-positive limit returns everything.
func (s *Store) ListHistory(ctx context.Context, limit int) ([]*domain.History, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT archive_id, updated_at FROM history ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, store.Wrap("list history", err)
	}
	defer rows.Close()

	entries := []*domain.History{}
	for rows.Next() {
		var (
			h         domain.History
			updatedAt string
		)
		if err := rows.Scan(&h.ArchiveID, &updatedAt); err != nil {
			return nil, store.Wrap("list history", err)
		}
		if h.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, store.Wrap("list history", err)
		}
		entries = append(entries, &h)
	}
	return entries, store.Wrap("list history", rows.Err())
}

// DeleteHistory forgets one archive.
func (s *Store) DeleteHistory(ctx context.Context, archiveID string) error {
	_, err := s.exec(ctx, `DELETE FROM history WHERE archive_id = ?`, archiveID)
	return store.Wrap("delete history", err)
}

// DeleteAllHistory clears the view log.
func (s *Store) DeleteAllHistory(ctx context.Context) (int, error) {
	n, err := s.exec(ctx, `DELETE FROM history`)
	return n, store.Wrap("delete all history", err)
}
