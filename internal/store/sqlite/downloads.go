package sqlite

import (
	"context"
	"database/sql"

	"github.com/lanreader/lanreader/internal/domain"
	"github.com/lanreader/lanreader/internal/store"
)

const downloadJobColumns = `id, url, title, archive_id, is_active, is_success, is_error, message, updated_at`

func scanDownloadJob(scanner interface{ Scan(dest ...any) error }) (*domain.DownloadJob, error) {
	var (
		j                          domain.DownloadJob
		active, success, errorFlag int
		updatedAt                  string
	)
	err := scanner.Scan(&j.ID, &j.URL, &j.Title, &j.ArchiveID, &active, &success, &errorFlag, &j.Message, &updatedAt)
	if err != nil {
		return nil, err
	}
	j.IsActive = active != 0
	j.IsSuccess = success != 0
	j.IsError = errorFlag != 0
	if j.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &j, nil
}

// SaveDownloadJob upserts a job by its server-assigned id.
func (s *Store) SaveDownloadJob(ctx context.Context, j *domain.DownloadJob) error {
	_, err := s.exec(ctx, `
		INSERT INTO download_jobs (`+downloadJobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			url = excluded.url,
			title = excluded.title,
			archive_id = excluded.archive_id,
			is_active = excluded.is_active,
			is_success = excluded.is_success,
			is_error = excluded.is_error,
			message = excluded.message,
			updated_at = excluded.updated_at`,
		j.ID, j.URL, j.Title, j.ArchiveID,
		boolToInt(j.IsActive), boolToInt(j.IsSuccess), boolToInt(j.IsError),
		j.Message, formatTime(j.UpdatedAt))
	return store.Wrap("save download job", err)
}

// GetDownloadJob returns store.ErrNotFound for unknown ids.
func (s *Store) GetDownloadJob(ctx context.Context, id int) (*domain.DownloadJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+downloadJobColumns+` FROM download_jobs WHERE id = ?`, id)
	j, err := scanDownloadJob(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, store.Wrap("get download job", err)
	}
	return j, nil
}

// ListDownloadJobs returns every job, newest first.
func (s *Store) ListDownloadJobs(ctx context.Context) ([]*domain.DownloadJob, error) {
	return s.listDownloadJobs(ctx, "list download jobs",
		`SELECT `+downloadJobColumns+` FROM download_jobs ORDER BY id DESC`)
}

// ListActiveDownloadJobs returns jobs still running on the server.
func (s *Store) ListActiveDownloadJobs(ctx context.Context) ([]*domain.DownloadJob, error) {
	return s.listDownloadJobs(ctx, "list active download jobs",
		`SELECT `+downloadJobColumns+` FROM download_jobs WHERE is_active = 1 ORDER BY id ASC`)
}

func (s *Store) listDownloadJobs(ctx context.Context, op, query string) ([]*domain.DownloadJob, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, store.Wrap(op, err)
	}
	defer rows.Close()

	jobs := []*domain.DownloadJob{}
	for rows.Next() {
		j, err := scanDownloadJob(rows)
		if err != nil {
			return nil, store.Wrap(op, err)
		}
		jobs = append(jobs, j)
	}
	return jobs, store.Wrap(op, rows.Err())
}

// DeleteDownloadJob removes one job.
func (s *Store) DeleteDownloadJob(ctx context.Context, id int) error {
	_, err := s.exec(ctx, `DELETE FROM download_jobs WHERE id = ?`, id)
	return store.Wrap("delete download job", err)
}

// DeleteAllDownloadJobs removes every job.
func (s *Store) DeleteAllDownloadJobs(ctx context.Context) (int, error) {
	n, err := s.exec(ctx, `DELETE FROM download_jobs`)
	return n, store.Wrap("delete all download jobs", err)
}
