// Package diff implements the pixel-difference engine: exact RGB comparison
// of two fixed-format rasters, radius expansion of the raw differences, and
// clustering of the expanded set into 8-connected regions.
package diff

import (
	"github.com/pixelhunt/pixelhunt/raster"
)

// PixelSet is a set of marked pixel coordinates.
type PixelSet map[raster.Coordinate]struct{}

// Add inserts a coordinate into the set.
func (s PixelSet) Add(c raster.Coordinate) {
	s[c] = struct{}{}
}

// Has reports whether the coordinate is in the set.
func (s PixelSet) Has(c raster.Coordinate) bool {
	_, ok := s[c]
	return ok
}

// diskOffsets returns every (dx, dy) within Euclidean distance radius of the
// origin, including the origin itself.
func diskOffsets(radius int) []raster.Coordinate {
	var offsets []raster.Coordinate
	r2 := radius * radius
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= r2 {
				offsets = append(offsets, raster.Coordinate{X: dx, Y: dy})
			}
		}
	}
	return offsets
}

// Diff compares two rasters pixel by pixel and returns the set of marked
// coordinates: every raw-differing pixel plus a disk of the given radius
// around it. Disks are clamped to the image bounds; overlapping disks merge
// because the result is a set.
func Diff(a, b *raster.Raster, radius int) PixelSet {
	if radius < 0 {
		radius = 0
	}
	offsets := diskOffsets(radius)
	marked := make(PixelSet)

	for y := 0; y < raster.Height; y++ {
		for x := 0; x < raster.Width; x++ {
			if a.At(x, y) == b.At(x, y) {
				continue
			}
			for _, off := range offsets {
				c := raster.Coordinate{X: x + off.X, Y: y + off.Y}
				if c.InBounds() {
					marked.Add(c)
				}
			}
		}
	}

	return marked
}

// Difference rendering colors. Marked pixels are painted black on a white
// background, matching the exported difference sheet players see.
var (
	DifferenceColor = raster.Pixel{R: 0, G: 0, B: 0}
	BackgroundColor = raster.Pixel{R: 255, G: 255, B: 255}
)

// Render produces the visualization raster for a marked pixel set. It is a
// derived artifact for export, not authoritative state.
func Render(marked PixelSet) *raster.Raster {
	coords := make([]raster.Coordinate, 0, len(marked))
	for c := range marked {
		coords = append(coords, c)
	}
	return raster.New(BackgroundColor).WithPixels(coords, DifferenceColor)
}
