package types

import "errors"

// Error taxonomy. Every failure a component reports wraps one of these
// sentinels, so callers branch with errors.Is instead of string matching.
var (
	// Plugin registration
	ErrDuplicateID     = errors.New("plugin id already registered")
	ErrInvalidManifest = errors.New("invalid plugin manifest")

	// Widget lifecycle
	ErrUnknownPlugin   = errors.New("unknown plugin")
	ErrUnknownWidget   = errors.New("unknown widget instance")
	ErrAlreadyDisposed = errors.New("widget already disposed")

	// Ingestion. These surface to subscribers as status events and drive
	// backoff; they never terminate the application.
	ErrFetchFailed = errors.New("fetch failed")
	ErrParseFailed = errors.New("parse failed")
	ErrDegraded    = errors.New("source degraded")

	// Layout persistence
	ErrCorruptSnapshot    = errors.New("corrupt layout snapshot")
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")
	ErrIOFailure          = errors.New("layout io failure")
)
