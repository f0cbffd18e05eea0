package diff

import (
	"errors"
	"fmt"

	"github.com/pixelhunt/pixelhunt/raster"
)

// Difficulty labels reported to the catalog.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// ErrRegionCount is returned when a detection job produces a region count
// outside the acceptable range for a playable game.
var ErrRegionCount = errors.New("region count outside playable range")

// Thresholds configures how a clustering result is classified and which
// region counts are accepted at all.
type Thresholds struct {
	// MinRegions and MaxRegions bound the acceptable number of difference
	// regions for a playable game.
	MinRegions int `yaml:"min_regions"`
	MaxRegions int `yaml:"max_regions"`

	// HardMinRegions is the region count at which a game is classified hard,
	// provided the marked surface stays under HardMaxRatio of the image.
	HardMinRegions int     `yaml:"hard_min_regions"`
	HardMaxRatio   float64 `yaml:"hard_max_ratio"`

	// EasyMaxRegions is the region count up to which a game is classified easy.
	EasyMaxRegions int `yaml:"easy_max_regions"`
}

// DefaultThresholds returns the standard difficulty policy.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinRegions:     3,
		MaxRegions:     9,
		HardMinRegions: 7,
		HardMaxRatio:   0.15,
		EasyMaxRegions: 4,
	}
}

// Classify validates the region count against the playable range and returns
// the difficulty label for a clustering result.
func (t Thresholds) Classify(markedPixels int, regions int) (string, error) {
	if regions < t.MinRegions || regions > t.MaxRegions {
		return "", fmt.Errorf("%w: got %d regions, want between %d and %d",
			ErrRegionCount, regions, t.MinRegions, t.MaxRegions)
	}

	ratio := float64(markedPixels) / float64(raster.Width*raster.Height)
	switch {
	case regions >= t.HardMinRegions && ratio <= t.HardMaxRatio:
		return DifficultyHard, nil
	case regions <= t.EasyMaxRegions:
		return DifficultyEasy, nil
	default:
		return DifficultyMedium, nil
	}
}
