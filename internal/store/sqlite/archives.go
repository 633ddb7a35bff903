package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lanreader/lanreader/internal/domain"
	"github.com/lanreader/lanreader/internal/store"
)

// archiveColumns must match the scan order in scanArchive.
const archiveColumns = `id, title, tags, page_count, progress, is_new, extension, last_read_time, updated_at, pending`

// upsertArchiveSQL overwrites a cached archive with server data, except for
// fields whose local edit is still waiting to be pushed. The pending set
// itself is only changed by local edits and acknowledged pushes.
var upsertArchiveSQL = `
	INSERT INTO archives (` + archiveColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		` + keepPending("title", domain.PendingMetadata) + `,
		` + keepPending("tags", domain.PendingMetadata) + `,
		page_count = excluded.page_count,
		` + keepPending("progress", domain.PendingProgress) + `,
		` + keepPending("is_new", domain.PendingNew) + `,
		extension = excluded.extension,
		` + keepPending("last_read_time", domain.PendingProgress) + `,
		updated_at = excluded.updated_at`

func keepPending(column string, flag domain.Pending) string {
	return fmt.Sprintf("%[1]s = CASE WHEN archives.pending & %[2]d != 0 THEN archives.%[1]s ELSE excluded.%[1]s END",
		column, flag)
}

func scanArchive(scanner interface{ Scan(dest ...any) error }) (*domain.Archive, error) {
	var (
		a         domain.Archive
		isNew     int
		updatedAt string
	)

	err := scanner.Scan(
		&a.ID,
		&a.Title,
		&a.Tags,
		&a.PageCount,
		&a.Progress,
		&isNew,
		&a.Extension,
		&a.LastReadTime,
		&updatedAt,
		&a.Pending,
	)
	if err != nil {
		return nil, err
	}

	a.IsNew = isNew != 0
	if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func archiveArgs(a *domain.Archive) []any {
	return []any{
		a.ID,
		a.Title,
		a.Tags,
		a.PageCount,
		a.Progress,
		boolToInt(a.IsNew),
		a.Extension,
		a.LastReadTime,
		formatTime(a.UpdatedAt),
		int(a.Pending),
	}
}

// SaveArchive upserts a single archive.
func (s *Store) SaveArchive(ctx context.Context, a *domain.Archive) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, upsertArchiveSQL, archiveArgs(a)...)
		return err
	})
	return store.Wrap("save archive", err)
}

// SaveArchives upserts every archive in one transaction.
func (s *Store) SaveArchives(ctx context.Context, archives []*domain.Archive) error {
	if len(archives) == 0 {
		return nil
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertArchiveSQL)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, a := range archives {
			if _, err := stmt.ExecContext(ctx, archiveArgs(a)...); err != nil {
				return err
			}
		}
		return nil
	})
	return store.Wrap("save archives", err)
}

// GetArchive returns store.ErrNotFound on a cache miss.
func (s *Store) GetArchive(ctx context.Context, id string) (*domain.Archive, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+archiveColumns+` FROM archives WHERE id = ?`, id)

	a, err := scanArchive(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, store.Wrap("get archive", err)
	}
	return a, nil
}

// ListArchives returns every cached archive ordered by title.
func (s *Store) ListArchives(ctx context.Context) ([]*domain.Archive, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+archiveColumns+` FROM archives ORDER BY title COLLATE NOCASE ASC, id ASC`)
	if err != nil {
		return nil, store.Wrap("list archives", err)
	}
	defer rows.Close()

	archives := []*domain.Archive{}
	for rows.Next() {
		a, err := scanArchive(rows)
		if err != nil {
			return nil, store.Wrap("list archives", err)
		}
		archives = append(archives, a)
	}
	return archives, store.Wrap("list archives", rows.Err())
}

// ArchiveExists reports whether id is cached.
func (s *Store) ArchiveExists(ctx context.Context, id string) (bool, error) {
	ok, err := s.exists(ctx, `SELECT 1 FROM archives WHERE id = ? LIMIT 1`, id)
	return ok, store.Wrap("archive exists", err)
}

// CountArchives returns the number of cached archives.
func (s *Store) CountArchives(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM archives`).Scan(&n)
	return n, store.Wrap("count archives", err)
}

// UpdateArchiveProgress sets the read progress and last read time and marks
// them pending. Returns store.ErrNotFound if the archive is not cached.
func (s *Store) UpdateArchiveProgress(ctx context.Context, id string, progress int) error {
	now := time.Now()
	n, err := s.exec(ctx, `
		UPDATE archives SET progress = ?, last_read_time = ?, updated_at = ?, pending = pending | ?
		WHERE id = ?`,
		progress, now.Unix(), formatTime(now), int(domain.PendingProgress), id)
	if err != nil {
		return store.Wrap("update progress", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// UpdateArchiveMetadata replaces title and tags and marks them pending.
func (s *Store) UpdateArchiveMetadata(ctx context.Context, id, title, tags string) error {
	n, err := s.exec(ctx, `
		UPDATE archives SET title = ?, tags = ?, updated_at = ?, pending = pending | ?
		WHERE id = ?`,
		title, tags, formatTime(time.Now()), int(domain.PendingMetadata), id)
	if err != nil {
		return store.Wrap("update metadata", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ClearArchiveNew drops the "new" flag and marks the change pending.
func (s *Store) ClearArchiveNew(ctx context.Context, id string) error {
	n, err := s.exec(ctx, `
		UPDATE archives SET is_new = 0, updated_at = ?, pending = pending | ? WHERE id = ?`,
		formatTime(time.Now()), int(domain.PendingNew), id)
	if err != nil {
		return store.Wrap("clear new", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListPendingArchives returns archives with local edits not yet pushed.
func (s *Store) ListPendingArchives(ctx context.Context) ([]*domain.Archive, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+archiveColumns+` FROM archives WHERE pending != 0 ORDER BY id`)
	if err != nil {
		return nil, store.Wrap("list pending archives", err)
	}
	defer rows.Close()

	archives := []*domain.Archive{}
	for rows.Next() {
		a, err := scanArchive(rows)
		if err != nil {
			return nil, store.Wrap("list pending archives", err)
		}
		archives = append(archives, a)
	}
	return archives, store.Wrap("list pending archives", rows.Err())
}

// ClearArchivePending acknowledges a push of flag. The mark stays when the
// local value has changed since pushed was read, so a newer edit is pushed
// again later.
func (s *Store) ClearArchivePending(ctx context.Context, pushed *domain.Archive, flag domain.Pending) error {
	var (
		cond string
		args []any
	)
	switch flag {
	case domain.PendingProgress:
		cond, args = "progress = ?", []any{pushed.Progress}
	case domain.PendingMetadata:
		cond, args = "title = ? AND tags = ?", []any{pushed.Title, pushed.Tags}
	case domain.PendingNew:
		cond = "is_new = 0"
	default:
		return store.Wrap("clear pending", fmt.Errorf("unknown pending flag %d", flag))
	}

	args = append([]any{int(flag), pushed.ID}, args...)
	_, err := s.exec(ctx,
		`UPDATE archives SET pending = pending & ~? WHERE id = ? AND `+cond, args...)
	return store.Wrap("clear pending", err)
}

// DeleteArchive removes an archive and everything keyed by its id.
func (s *Store) DeleteArchive(ctx context.Context, id string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, q := range []string{
			`DELETE FROM archives WHERE id = ?`,
			`DELETE FROM archive_thumbnails WHERE id = ?`,
			`DELETE FROM archive_images WHERE archive_id = ?`,
			`DELETE FROM archive_caches WHERE id = ?`,
			`DELETE FROM history WHERE archive_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return err
			}
		}
		return nil
	})
	return store.Wrap("delete archive", err)
}

// DeleteAllArchives empties the archive table.
func (s *Store) DeleteAllArchives(ctx context.Context) (int, error) {
	n, err := s.exec(ctx, `DELETE FROM archives`)
	return n, store.Wrap("delete all archives", err)
}
