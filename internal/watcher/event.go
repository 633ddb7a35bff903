package watcher

import "time"

// EventType represents the type of cache directory change.
type EventType int

const (
	// EventAdded is emitted when a file appears and stops changing.
	EventAdded EventType = iota
	// EventRemoved is emitted when a file is deleted or renamed away.
	EventRemoved
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventAdded:
		return "added"
	case EventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is a single change to a watched cache file.
type Event struct {
	Type EventType
	Path string

	// Size and ModTime are only set for EventAdded.
	Size    int64
	ModTime time.Time
}
