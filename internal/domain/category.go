package domain

import (
	"slices"
	"time"
)

// Category groups archives either by explicit membership (static) or by a
// saved search (dynamic).
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Archives  []string  `json:"archives"`
	Search    string    `json:"search"`
	Pinned    bool      `json:"pinned"`
	UpdatedAt time.Time `json:"updated_at"`

	// Pending is set by a local edit until the server accepts it.
	Pending bool `json:"pending,omitempty"`
}

// IsDynamic returns true when membership is defined by the saved search.
func (c *Category) IsDynamic() bool {
	return c.Search != ""
}

// Contains reports whether a static category lists archiveID.
func (c *Category) Contains(archiveID string) bool {
	return slices.Contains(c.Archives, archiveID)
}
