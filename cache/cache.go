// Package cache holds detection results between the moment a job completes
// and the moment a game session claims them.
//
// Entries are claimed exactly once with Take, both when a game starts and
// when creation is cancelled; cancellation takes then discards so no entry
// can leak.
package cache

import (
	"context"
	"errors"

	"github.com/pixelhunt/pixelhunt/diff"
)

// ErrDuplicateJob is returned when storing a job ID that is already cached.
var ErrDuplicateJob = errors.New("detection job already cached")

// ErrNotFound is returned when taking a job ID that is not cached.
var ErrNotFound = errors.New("detection job not found")

// ErrInvalidID is returned when an empty job ID is provided.
var ErrInvalidID = errors.New("invalid job ID")

// Store defines the difference cache interface.
type Store interface {
	// Store caches the detection result under its job ID.
	// Returns ErrDuplicateJob if the ID is already present.
	Store(ctx context.Context, jobID string, info *diff.Info) error

	// Take atomically retrieves and removes the detection result.
	// Returns ErrNotFound if the ID is not present.
	Take(ctx context.Context, jobID string) (*diff.Info, error)
}
