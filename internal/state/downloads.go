package state

import (
	"context"
	"slices"

	"github.com/lanreader/lanreader/internal/domain"
	apperrors "github.com/lanreader/lanreader/internal/errors"
)

// DownloadsState lists server-side download jobs, newest first.
type DownloadsState struct {
	Jobs    []*domain.DownloadJob
	Loading bool
	Error   apperrors.Code
}

// Active returns the jobs still running on the server.
func (s DownloadsState) Active() []*domain.DownloadJob {
	var out []*domain.DownloadJob
	for _, j := range s.Jobs {
		if !j.Finished() {
			out = append(out, j)
		}
	}
	return out
}

// DownloadsAction is the sealed action set of the download list.
type DownloadsAction interface {
	Action
	downloadsAction()
}

type (
	// LoadDownloads reads the job list from the cache.
	LoadDownloads struct{}
	// DownloadsLoaded completes LoadDownloads.
	DownloadsLoaded struct {
		Jobs []*domain.DownloadJob
	}
	// DownloadsFailed reports a failed job operation.
	DownloadsFailed struct {
		Code apperrors.Code
	}
	// QueueDownload asks the server to download a URL.
	QueueDownload struct {
		URL string
	}
	// DownloadQueued adds a freshly queued job.
	DownloadQueued struct {
		Job *domain.DownloadJob
	}
	// PollDownloads refreshes the active jobs.
	PollDownloads struct{}
	// DownloadsUpdated merges refreshed jobs into the list.
	DownloadsUpdated struct {
		Jobs []*domain.DownloadJob
	}
	// DismissDownload removes a job from the list.
	DismissDownload struct {
		ID int
	}
)

func (LoadDownloads) action()    {}
func (DownloadsLoaded) action()  {}
func (DownloadsFailed) action()  {}
func (QueueDownload) action()    {}
func (DownloadQueued) action()   {}
func (PollDownloads) action()    {}
func (DownloadsUpdated) action() {}
func (DismissDownload) action()  {}

func (LoadDownloads) downloadsAction()    {}
func (DownloadsLoaded) downloadsAction()  {}
func (DownloadsFailed) downloadsAction()  {}
func (QueueDownload) downloadsAction()    {}
func (DownloadQueued) downloadsAction()   {}
func (PollDownloads) downloadsAction()    {}
func (DownloadsUpdated) downloadsAction() {}
func (DismissDownload) downloadsAction()  {}

func reduceDownloads(s DownloadsState, a DownloadsAction, env *Env) (DownloadsState, []Effect) {
	switch a := a.(type) {
	case LoadDownloads:
		if s.Loading {
			return s, nil
		}
		s.Loading = true
		return s, []Effect{func(ctx context.Context, send func(Action)) {
			jobs, err := env.Downloads.Jobs(ctx)
			if err != nil {
				send(DownloadsFailed{Code: apperrors.CodeOf(err)})
				return
			}
			send(DownloadsLoaded{Jobs: jobs})
		}}

	case DownloadsLoaded:
		s.Loading = false
		s.Jobs = a.Jobs
		s.Error = ""
		return s, nil

	case DownloadsFailed:
		s.Loading = false
		s.Error = a.Code
		return s, nil

	case QueueDownload:
		url := a.URL
		return s, []Effect{func(ctx context.Context, send func(Action)) {
			job, err := env.Downloads.Queue(ctx, url)
			if err != nil {
				send(DownloadsFailed{Code: apperrors.CodeOf(err)})
				return
			}
			send(DownloadQueued{Job: job})
		}}

	case DownloadQueued:
		s.Jobs = append([]*domain.DownloadJob{a.Job}, s.Jobs...)
		return s, nil

	case PollDownloads:
		if len(s.Active()) == 0 {
			return s, nil
		}
		return s, []Effect{func(ctx context.Context, send func(Action)) {
			jobs, err := env.Downloads.PollActive(ctx)
			if err != nil {
				send(DownloadsFailed{Code: apperrors.CodeOf(err)})
				return
			}
			send(DownloadsUpdated{Jobs: jobs})
		}}

	case DownloadsUpdated:
		return mergeJobs(s, a.Jobs)

	case DismissDownload:
		id := a.ID
		s.Jobs = slices.DeleteFunc(slices.Clone(s.Jobs), func(j *domain.DownloadJob) bool { return j.ID == id })
		return s, []Effect{func(ctx context.Context, send func(Action)) {
			if err := env.Downloads.Dismiss(ctx, id); err != nil {
				send(DownloadsFailed{Code: apperrors.CodeOf(err)})
			}
		}}

	default:
		panic("state: unhandled downloads action")
	}
}

// mergeJobs replaces listed jobs by id. Jobs that just finished with an
// archive refresh the library, which the download service has already
// pulled into the cache.
func mergeJobs(s DownloadsState, updated []*domain.DownloadJob) (DownloadsState, []Effect) {
	jobs := slices.Clone(s.Jobs)
	var landed []string
	for _, u := range updated {
		i := slices.IndexFunc(jobs, func(j *domain.DownloadJob) bool { return j.ID == u.ID })
		if i < 0 {
			continue
		}
		if !jobs[i].Finished() && u.IsSuccess && u.ArchiveID != "" {
			landed = append(landed, u.ArchiveID)
		}
		jobs[i] = u
	}
	s.Jobs = jobs
	if len(landed) == 0 {
		return s, nil
	}

	return s, []Effect{func(_ context.Context, send func(Action)) {
		for _, id := range landed {
			send(ArchiveChanged{ID: id})
		}
		send(LoadArchives{})
	}}
}
