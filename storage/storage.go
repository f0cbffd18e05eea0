// Package storage defines the persistence boundary of the engine: the game
// catalog, saved detection results, and image assets.
//
// The core never touches a filesystem directly; it calls these interfaces as
// opaque operations. Implementations should be safe for concurrent use by
// multiple goroutines.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/pixelhunt/pixelhunt/diff"
)

// StorageError wraps any I/O failure from a persistence implementation so
// callers can treat the whole boundary as one failure class.
type StorageError struct {
	// Op names the failed operation (e.g. "save catalog").
	Op  string
	Err error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Score is one leaderboard entry for a game.
type Score struct {
	PlayerName string `json:"playerName"`
	Seconds    int    `json:"seconds"`
}

// Game is one catalog entry: a playable pair of images plus detection
// metadata and leaderboards.
type Game struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Difficulty     string    `json:"difficulty"`
	RegionCount    int       `json:"regionCount"`
	OriginalURL    string    `json:"originalUrl"`
	ModifiedURL    string    `json:"modifiedUrl"`
	DifferenceURL  string    `json:"differenceUrl"`
	ThumbnailURL   string    `json:"thumbnailUrl"`
	CreatedAt      time.Time `json:"createdAt"`
	SoloHighScores []Score   `json:"soloHighScores,omitempty"`
	DuoHighScores  []Score   `json:"duoHighScores,omitempty"`
}

// CatalogStore persists the list of playable games.
type CatalogStore interface {
	// LoadCatalog returns every game in the catalog.
	LoadCatalog(ctx context.Context) ([]Game, error)

	// SaveCatalog replaces the catalog with the given games.
	SaveCatalog(ctx context.Context, games []Game) error
}

// DifferenceStore persists detection results keyed by game ID so sessions
// can be started long after the detection job ran.
type DifferenceStore interface {
	// LoadDifferences returns the saved detection result for a game.
	LoadDifferences(ctx context.Context, id string) (*diff.Info, error)

	// SaveDifferences persists the detection result for a game.
	SaveDifferences(ctx context.Context, id string, info *diff.Info) error

	// DeleteDifferences removes the saved detection result for a game.
	DeleteDifferences(ctx context.Context, id string) error
}

// AssetStore persists image assets and serves them back by URL path.
type AssetStore interface {
	// SaveAsset stores the data under the given file name and returns the
	// URL path the asset is reachable at.
	SaveAsset(ctx context.Context, name string, data []byte) (string, error)

	// DeleteAssets removes the assets at the given URL paths. Missing
	// assets are not an error; cleanup must be idempotent.
	DeleteAssets(ctx context.Context, urls ...string) error
}
