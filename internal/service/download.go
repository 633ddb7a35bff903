package service

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/lanreader/lanreader/internal/domain"
	apperrors "github.com/lanreader/lanreader/internal/errors"
	"github.com/lanreader/lanreader/internal/store"
	"github.com/lanreader/lanreader/internal/validation"
)

// DefaultJobPollInterval is used by RunPoller when no interval is given.
const DefaultJobPollInterval = 5 * time.Second

// DownloadService queues URL downloads on the server and tracks their jobs.
type DownloadService struct {
	store     store.Store
	remote    Remote
	archives  *ArchiveService
	validator *validation.Validator
	logger    *slog.Logger
}

// NewDownloadService creates a download service. archives, when set, is used
// to pull finished downloads into the cache.
func NewDownloadService(store store.Store, remote Remote, archives *ArchiveService, validator *validation.Validator, logger *slog.Logger) *DownloadService {
	return &DownloadService{
		store:     store,
		remote:    remote,
		archives:  archives,
		validator: validator,
		logger:    logger,
	}
}

// Queue submits sourceURL and records the new job as active.
func (s *DownloadService) Queue(ctx context.Context, sourceURL string) (*domain.DownloadJob, error) {
	sourceURL = strings.TrimSpace(sourceURL)
	if err := s.validator.Var(sourceURL, "required,http_url"); err != nil {
		return nil, err
	}

	jobID, err := s.remote.QueueDownload(ctx, sourceURL)
	if err != nil {
		return nil, apperrors.FromRemote("queue download", err)
	}

	job := &domain.DownloadJob{
		ID:        jobID,
		URL:       sourceURL,
		IsActive:  true,
		UpdatedAt: time.Now(),
	}
	if err := s.store.SaveDownloadJob(ctx, job); err != nil {
		return nil, apperrors.Persistence("save download job", err)
	}

	s.logger.Info("download queued", "job", jobID, "url", sourceURL)
	return job, nil
}

// Poll refreshes one job from the server.
func (s *DownloadService) Poll(ctx context.Context, jobID int) (*domain.DownloadJob, error) {
	job, err := s.store.GetDownloadJob(ctx, jobID)
	if err != nil {
		return nil, mapStoreError("get download job", strconv.Itoa(jobID), err)
	}

	status, err := s.remote.JobStatus(ctx, jobID)
	if err != nil {
		return nil, apperrors.FromRemote("poll download job", err)
	}

	wasActive := !job.Finished()
	status.Apply(job)
	if err := s.store.SaveDownloadJob(ctx, job); err != nil {
		return nil, apperrors.Persistence("save download job", err)
	}

	if wasActive && job.Finished() {
		s.logger.Info("download finished",
			"job", job.ID,
			"success", job.IsSuccess,
			"archive_id", job.ArchiveID,
			"message", job.Message,
		)
		if job.IsSuccess && job.ArchiveID != "" && s.archives != nil {
			if _, err := s.archives.RefreshArchive(ctx, job.ArchiveID); err != nil {
				s.logger.Warn("failed to cache downloaded archive", "archive_id", job.ArchiveID, "error", err)
			}
		}
	}
	return job, nil
}

// PollActive refreshes every unfinished job. A job that fails to poll keeps
// its previous state and is still returned.
func (s *DownloadService) PollActive(ctx context.Context) ([]*domain.DownloadJob, error) {
	active, err := s.store.ListActiveDownloadJobs(ctx)
	if err != nil {
		return nil, apperrors.Persistence("list active jobs", err)
	}

	out := make([]*domain.DownloadJob, 0, len(active))
	for _, job := range active {
		updated, err := s.Poll(ctx, job.ID)
		if err != nil {
			s.logger.Warn("job poll failed", "job", job.ID, "error", err)
			out = append(out, job)
			continue
		}
		out = append(out, updated)
	}
	return out, nil
}

// Jobs lists every tracked job, newest first.
func (s *DownloadService) Jobs(ctx context.Context) ([]*domain.DownloadJob, error) {
	jobs, err := s.store.ListDownloadJobs(ctx)
	if err != nil {
		return nil, apperrors.Persistence("list download jobs", err)
	}
	return jobs, nil
}

// Dismiss forgets a job locally.
func (s *DownloadService) Dismiss(ctx context.Context, jobID int) error {
	if err := s.store.DeleteDownloadJob(ctx, jobID); err != nil {
		return apperrors.Persistence("delete download job", err)
	}
	return nil
}

// RunPoller polls active jobs every interval until ctx is done. onUpdate,
// if set, receives each non-empty batch.
func (s *DownloadService) RunPoller(ctx context.Context, interval time.Duration, onUpdate func([]*domain.DownloadJob)) {
	if interval <= 0 {
		interval = DefaultJobPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("download poller started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("download poller stopped")
			return
		case <-ticker.C:
			jobs, err := s.PollActive(ctx)
			if err != nil {
				s.logger.Warn("download poll failed", "error", err)
				continue
			}
			if len(jobs) > 0 && onUpdate != nil {
				onUpdate(jobs)
			}
		}
	}
}
