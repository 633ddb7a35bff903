// Package domain holds the cached entities mirrored from the archive server.
package domain

import (
	"slices"
	"strings"
	"time"
)

// Reserved tag namespaces that never become TagItems.
const (
	TagKeyDateAdded = "date_added"
	TagKeySource    = "source"
)

// Archive is the canonical cached copy of one server archive.
// ID is the join key for thumbnails, page images, cache state and history.
type Archive struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Tags         string    `json:"tags"` // Comma separated, as served
	PageCount    int       `json:"page_count"`
	Progress     int       `json:"progress"` // Last read page, last write wins
	IsNew        bool      `json:"is_new"`
	Extension    string    `json:"extension"`
	LastReadTime int64     `json:"last_read_time"` // Unix seconds, 0 when never read
	UpdatedAt    time.Time `json:"updated_at"`

	// Pending lists local edits the server has not acknowledged. A server
	// sync leaves those fields alone until they are pushed.
	Pending Pending `json:"pending,omitempty"`
}

// Pending is a set of unpushed local edits.
type Pending uint8

// Pending edit kinds.
const (
	PendingProgress Pending = 1 << iota // Progress and LastReadTime
	PendingMetadata                     // Title and Tags
	PendingNew                          // IsNew cleared
)

// Has reports whether every edit in f is pending.
func (p Pending) Has(f Pending) bool {
	return p&f == f
}

// Touch updates the UpdatedAt timestamp.
func (a *Archive) Touch() {
	a.UpdatedAt = time.Now()
}

// TagList splits the tag string into trimmed, non-empty tags.
func (a *Archive) TagList() []string {
	return SplitTags(a.Tags)
}

// HasTag reports whether the archive carries tag exactly.
func (a *Archive) HasTag(tag string) bool {
	return slices.Contains(a.TagList(), tag)
}

// SplitTags splits a comma separated tag string.
func SplitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}

// JoinTags is the inverse of SplitTags.
func JoinTags(tags []string) string {
	return strings.Join(tags, ",")
}

// TagKey returns the namespace of a tag ("artist" for "artist:foo"), or "" when it has none.
func TagKey(tag string) string {
	key, _, ok := strings.Cut(tag, ":")
	if !ok {
		return ""
	}
	return strings.TrimSpace(key)
}

// IsReservedTag reports whether tag belongs to a namespace excluded from the tag index.
func IsReservedTag(tag string) bool {
	switch TagKey(tag) {
	case TagKeyDateAdded, TagKeySource:
		return true
	default:
		return false
	}
}

// ArchiveThumbnail is a cached cover image. 1:1 with Archive.
type ArchiveThumbnail struct {
	ID        string    `json:"id"`
	Data      []byte    `json:"-"`
	BlurHash  string    `json:"blur_hash,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ArchiveImage is a prefetched page stored on disk.
// ID is the normalized page path returned by extraction.
type ArchiveImage struct {
	ID         string    `json:"id"`
	ArchiveID  string    `json:"archive_id"`
	Path       string    `json:"path"`
	Compressed bool      `json:"compressed"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ArchiveCache tracks a full offline download of an archive.
type ArchiveCache struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Tags       string    `json:"tags"`
	Thumbnail  []byte    `json:"-"`
	Cached     bool      `json:"cached"`
	TotalPages int       `json:"total_pages"`
	UpdatedAt  time.Time `json:"updated_at"`
}
