package sqlite

import (
	"context"
	"database/sql"

	"github.com/lanreader/lanreader/internal/domain"
	"github.com/lanreader/lanreader/internal/store"
)

const imageColumns = `id, archive_id, path, compressed, updated_at`

func scanArchiveImage(scanner interface{ Scan(dest ...any) error }) (*domain.ArchiveImage, error) {
	var (
		img        domain.ArchiveImage
		compressed int
		updatedAt  string
	)
	if err := scanner.Scan(&img.ID, &img.ArchiveID, &img.Path, &compressed, &updatedAt); err != nil {
		return nil, err
	}
	img.Compressed = compressed != 0

	var err error
	if img.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &img, nil
}

// SaveArchiveImage upserts a prefetched page.
func (s *Store) SaveArchiveImage(ctx context.Context, img *domain.ArchiveImage) error {
	_, err := s.exec(ctx, `
		INSERT INTO archive_images (`+imageColumns+`)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			archive_id = excluded.archive_id,
			path = excluded.path,
			compressed = excluded.compressed,
			updated_at = excluded.updated_at`,
		img.ID, img.ArchiveID, img.Path, boolToInt(img.Compressed), formatTime(img.UpdatedAt))
	return store.Wrap("save archive image", err)
}

// GetArchiveImage returns store.ErrNotFound when the page is not prefetched.
func (s *Store) GetArchiveImage(ctx context.Context, id string) (*domain.ArchiveImage, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+imageColumns+` FROM archive_images WHERE id = ?`, id)
	img, err := scanArchiveImage(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, store.Wrap("get archive image", err)
	}
	return img, nil
}

// ArchiveImageExists reports whether page id is prefetched.
func (s *Store) ArchiveImageExists(ctx context.Context, id string) (bool, error) {
	ok, err := s.exists(ctx, `SELECT 1 FROM archive_images WHERE id = ? LIMIT 1`, id)
	return ok, store.Wrap("archive image exists", err)
}

// ListArchiveImages returns the prefetched pages of one archive.
func (s *Store) ListArchiveImages(ctx context.Context, archiveID string) ([]*domain.ArchiveImage, error) {
	return s.listImages(ctx, "list archive images",
		`SELECT `+imageColumns+` FROM archive_images WHERE archive_id = ? ORDER BY id`, archiveID)
}

// ListAllArchiveImages returns every prefetched page.
func (s *Store) ListAllArchiveImages(ctx context.Context) ([]*domain.ArchiveImage, error) {
	return s.listImages(ctx, "list all archive images",
		`SELECT `+imageColumns+` FROM archive_images ORDER BY archive_id, id`)
}

func (s *Store) listImages(ctx context.Context, op, query string, args ...any) ([]*domain.ArchiveImage, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.Wrap(op, err)
	}
	defer rows.Close()

	images := []*domain.ArchiveImage{}
	for rows.Next() {
		img, err := scanArchiveImage(rows)
		if err != nil {
			return nil, store.Wrap(op, err)
		}
		images = append(images, img)
	}
	return images, store.Wrap(op, rows.Err())
}

// DeleteArchiveImageByPath drops rows pointing at a file that no longer exists.
func (s *Store) DeleteArchiveImageByPath(ctx context.Context, path string) (int, error) {
	n, err := s.exec(ctx, `DELETE FROM archive_images WHERE path = ?`, path)
	return n, store.Wrap("delete archive image", err)
}

// DeleteArchiveImages drops every page row of one archive.
func (s *Store) DeleteArchiveImages(ctx context.Context, archiveID string) (int, error) {
	n, err := s.exec(ctx, `DELETE FROM archive_images WHERE archive_id = ?`, archiveID)
	return n, store.Wrap("delete archive images", err)
}

// ResetPageCache empties the page cache table and marks every offline copy
// as incomplete, since its pages are gone with it.
func (s *Store) ResetPageCache(ctx context.Context) (int, error) {
	var n int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM archive_images`)
		if err != nil {
			return err
		}
		if n, err = res.RowsAffected(); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE archive_caches SET cached = 0`)
		return err
	})
	return int(n), store.Wrap("reset page cache", err)
}

// DeleteAllArchiveImages empties the page cache table.
func (s *Store) DeleteAllArchiveImages(ctx context.Context) (int, error) {
	n, err := s.exec(ctx, `DELETE FROM archive_images`)
	return n, store.Wrap("delete all archive images", err)
}
