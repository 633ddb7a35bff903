package sqlite

import (
	"context"
	"database/sql"

	"github.com/lanreader/lanreader/internal/domain"
	"github.com/lanreader/lanreader/internal/store"
)

const cacheColumns = `id, title, tags, thumbnail, cached, total_pages, updated_at`

func scanArchiveCache(scanner interface{ Scan(dest ...any) error }) (*domain.ArchiveCache, error) {
	var (
		c         domain.ArchiveCache
		cached    int
		updatedAt string
	)
	err := scanner.Scan(&c.ID, &c.Title, &c.Tags, &c.Thumbnail, &cached, &c.TotalPages, &updatedAt)
	if err != nil {
		return nil, err
	}
	c.Cached = cached != 0
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// SaveArchiveCache upserts the offline download state of an archive.
func (s *Store) SaveArchiveCache(ctx context.Context, c *domain.ArchiveCache) error {
	_, err := s.exec(ctx, `
		INSERT INTO archive_caches (`+cacheColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			tags = excluded.tags,
			thumbnail = excluded.thumbnail,
			cached = excluded.cached,
			total_pages = excluded.total_pages,
			updated_at = excluded.updated_at`,
		c.ID, c.Title, c.Tags, c.Thumbnail, boolToInt(c.Cached), c.TotalPages, formatTime(c.UpdatedAt))
	return store.Wrap("save archive cache", err)
}

// GetArchiveCache returns store.ErrNotFound when no download was started.
func (s *Store) GetArchiveCache(ctx context.Context, id string) (*domain.ArchiveCache, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+cacheColumns+` FROM archive_caches WHERE id = ?`, id)
	c, err := scanArchiveCache(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, store.Wrap("get archive cache", err)
	}
	return c, nil
}

// ListArchiveCaches returns every offline download, most recent first.
func (s *Store) ListArchiveCaches(ctx context.Context) ([]*domain.ArchiveCache, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+cacheColumns+` FROM archive_caches ORDER BY updated_at DESC`)
	if err != nil {
		return nil, store.Wrap("list archive caches", err)
	}
	defer rows.Close()

	caches := []*domain.ArchiveCache{}
	for rows.Next() {
		c, err := scanArchiveCache(rows)
		if err != nil {
			return nil, store.Wrap("list archive caches", err)
		}
		caches = append(caches, c)
	}
	return caches, store.Wrap("list archive caches", rows.Err())
}

// DeleteArchiveCache removes one download record.
func (s *Store) DeleteArchiveCache(ctx context.Context, id string) error {
	_, err := s.exec(ctx, `DELETE FROM archive_caches WHERE id = ?`, id)
	return store.Wrap("delete archive cache", err)
}

// DeleteAllArchiveCaches removes every download record.
func (s *Store) DeleteAllArchiveCaches(ctx context.Context) (int, error) {
	n, err := s.exec(ctx, `DELETE FROM archive_caches`)
	return n, store.Wrap("delete all archive caches", err)
}
