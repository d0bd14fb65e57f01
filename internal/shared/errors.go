package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Provider errors
	ErrProviderUnavailable = fmt.Errorf("provider unavailable")
	ErrProviderUnknown     = fmt.Errorf("unknown provider")
	ErrTimeout             = fmt.Errorf("operation timed out")
	ErrRateLimited         = fmt.Errorf("rate limited")

	// Playback errors
	ErrStreamUnresolvable = fmt.Errorf("stream unresolvable")
	ErrNoPlayableSource   = fmt.Errorf("no playable source")

	// Library errors
	ErrEntityNotFound = fmt.Errorf("entity not found")
	ErrMergeConflict  = fmt.Errorf("merge conflict")

	// Sync errors
	ErrSyncInProgress = fmt.Errorf("sync already in progress")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
)
