package domain

import "time"

// DownloadJob mirrors a server-side URL download job. It is polled, never pushed.
type DownloadJob struct {
	ID        int       `json:"id"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	ArchiveID string    `json:"archive_id,omitempty"`
	IsActive  bool      `json:"is_active"`
	IsSuccess bool      `json:"is_success"`
	IsError   bool      `json:"is_error"`
	Message   string    `json:"message"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Finished reports whether the job reached a terminal state.
func (j *DownloadJob) Finished() bool {
	return !j.IsActive && (j.IsSuccess || j.IsError)
}
