package domain

import "time"

// History records the last time an archive was opened. One row per archive.
type History struct {
	ArchiveID string    `json:"archive_id"`
	UpdatedAt time.Time `json:"updated_at"`
}
