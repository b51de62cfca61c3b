package cache

import "errors"

// Sentinel errors for artifact storage.
var (
	// ErrNotFound is returned when a requested artifact does not exist.
	ErrNotFound = errors.New("artifact not found")

	// ErrEmptyArtifact is returned when asked to store zero bytes.
	// A zero-length file in the store is never a valid artifact.
	ErrEmptyArtifact = errors.New("empty artifact")
)
