package sqlite

import (
	"context"
	"database/sql"

	"github.com/lanreader/lanreader/internal/domain"
	"github.com/lanreader/lanreader/internal/store"
)

// SaveThumbnail upserts a cover image.
func (s *Store) SaveThumbnail(ctx context.Context, t *domain.ArchiveThumbnail) error {
	_, err := s.exec(ctx, `
		INSERT INTO archive_thumbnails (id, data, blur_hash, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			data = excluded.data,
			blur_hash = excluded.blur_hash,
			updated_at = excluded.updated_at`,
		t.ID, t.Data, t.BlurHash, formatTime(t.UpdatedAt))
	return store.Wrap("save thumbnail", err)
}

// GetThumbnail returns store.ErrNotFound on a cache miss.
func (s *Store) GetThumbnail(ctx context.Context, id string) (*domain.ArchiveThumbnail, error) {
	var (
		t         domain.ArchiveThumbnail
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, data, blur_hash, updated_at FROM archive_thumbnails WHERE id = ?`, id).
		Scan(&t.ID, &t.Data, &t.BlurHash, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, store.Wrap("get thumbnail", err)
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, store.Wrap("get thumbnail", err)
	}
	return &t, nil
}

// ThumbnailExists reports whether a cover is cached for id.
func (s *Store) ThumbnailExists(ctx context.Context, id string) (bool, error) {
	ok, err := s.exists(ctx, `SELECT 1 FROM archive_thumbnails WHERE id = ? LIMIT 1`, id)
	return ok, store.Wrap("thumbnail exists", err)
}

// DeleteAllThumbnails evicts every cached cover.
func (s *Store) DeleteAllThumbnails(ctx context.Context) (int, error) {
	n, err := s.exec(ctx, `DELETE FROM archive_thumbnails`)
	return n, store.Wrap("delete all thumbnails", err)
}
