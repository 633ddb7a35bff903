package providers

import "time"

const (
	// shutdownTimeout bounds how long in-flight effects and pushes may run after shutdown starts.
	shutdownTimeout = 30 * time.Second
)

// Args are the command-line arguments configuration is loaded from.
type Args []string
