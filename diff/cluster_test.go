package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelhunt/pixelhunt/raster"
)

func setOf(coords ...raster.Coordinate) PixelSet {
	s := make(PixelSet)
	for _, c := range coords {
		s.Add(c)
	}
	return s
}

func TestCluster_EmptySet(t *testing.T) {
	assert.Nil(t, Cluster(make(PixelSet)))
}

func TestCluster_DiagonalPixelsAreOneRegion(t *testing.T) {
	marked := setOf(
		raster.Coordinate{X: 10, Y: 10},
		raster.Coordinate{X: 11, Y: 11},
		raster.Coordinate{X: 12, Y: 12},
	)

	groups := Cluster(marked)

	require.Len(t, groups, 1)
	assert.Len(t, groups[0], 3)
}

func TestCluster_SeparatedPixelsAreDistinctRegions(t *testing.T) {
	marked := setOf(
		raster.Coordinate{X: 10, Y: 10},
		raster.Coordinate{X: 12, Y: 10}, // two columns away, not adjacent
		raster.Coordinate{X: 100, Y: 100},
	)

	groups := Cluster(marked)
	assert.Len(t, groups, 3)
}

func TestCluster_GroupsPartitionInput(t *testing.T) {
	marked := setOf(square(50, 50, 10, 10)...)
	for _, c := range square(200, 300, 5, 8) {
		marked.Add(c)
	}

	groups := Cluster(marked)
	require.Len(t, groups, 2)

	seen := make(PixelSet)
	for _, group := range groups {
		for _, c := range group {
			assert.False(t, seen.Has(c), "pixel %v appears in two groups", c)
			seen.Add(c)
			assert.True(t, marked.Has(c), "pixel %v not in the input set", c)
		}
	}
	assert.Equal(t, len(marked), len(seen), "union of groups must equal the input set")
}

func TestCluster_Idempotent(t *testing.T) {
	marked := setOf(square(0, 0, 3, 3)...)
	for _, c := range square(630, 470, 10, 10) {
		marked.Add(c)
	}

	first := Cluster(marked)
	second := Cluster(marked)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.ElementsMatch(t, first[i], second[i])
	}
}

func TestCluster_LargeRegionDoesNotOverflow(t *testing.T) {
	// A full-width band exercises the worklist with a region of ~60k pixels.
	marked := setOf(square(0, 100, raster.Width, 100)...)

	groups := Cluster(marked)

	require.Len(t, groups, 1)
	assert.Len(t, groups[0], raster.Width*100)
}

func TestThresholds_Classify(t *testing.T) {
	thresholds := DefaultThresholds()

	tests := []struct {
		name    string
		pixels  int
		regions int
		want    string
		wantErr error
	}{
		{name: "too few regions", pixels: 100, regions: 2, wantErr: ErrRegionCount},
		{name: "too many regions", pixels: 100, regions: 10, wantErr: ErrRegionCount},
		{name: "easy", pixels: 2000, regions: 3, want: DifficultyEasy},
		{name: "medium", pixels: 2000, regions: 5, want: DifficultyMedium},
		{name: "hard", pixels: 2000, regions: 7, want: DifficultyHard},
		{name: "many regions but huge surface is medium", pixels: raster.Width * raster.Height / 2, regions: 7, want: DifficultyMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := thresholds.Classify(tt.pixels, tt.regions)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
