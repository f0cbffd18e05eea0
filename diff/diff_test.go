package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelhunt/pixelhunt/raster"
)

var (
	white = raster.Pixel{R: 255, G: 255, B: 255}
	black = raster.Pixel{R: 0, G: 0, B: 0}
)

// square returns the coordinates of a filled w x h rectangle at (x, y).
func square(x, y, w, h int) []raster.Coordinate {
	coords := make([]raster.Coordinate, 0, w*h)
	for dy := 0; dy < h; dy++ {
		for dx := 0; dx < w; dx++ {
			coords = append(coords, raster.Coordinate{X: x + dx, Y: y + dy})
		}
	}
	return coords
}

func TestDiff_IdenticalImagesProduceEmptySet(t *testing.T) {
	a := raster.New(white)
	b := raster.New(white)

	marked := Diff(a, b, 0)

	assert.Empty(t, marked)
	assert.Nil(t, Cluster(marked))
}

func TestDiff_SingleSquareWithRadius(t *testing.T) {
	a := raster.New(white)
	b := a.WithPixels(square(100, 100, 20, 20), black)

	marked := Diff(a, b, 3)

	groups := Cluster(marked)
	require.Len(t, groups, 1)
	assert.GreaterOrEqual(t, len(groups[0]), 400,
		"expanded region must contain at least the raw 20x20 square")
	assert.Equal(t, len(marked), len(groups[0]))
}

func TestDiff_RadiusZeroMarksExactPixels(t *testing.T) {
	a := raster.New(white)
	b := a.WithPixels([]raster.Coordinate{{X: 5, Y: 5}, {X: 300, Y: 200}}, black)

	marked := Diff(a, b, 0)

	assert.Len(t, marked, 2)
	assert.True(t, marked.Has(raster.Coordinate{X: 5, Y: 5}))
	assert.True(t, marked.Has(raster.Coordinate{X: 300, Y: 200}))
}

func TestDiff_RadiusExpansionCoversDisk(t *testing.T) {
	a := raster.New(white)
	center := raster.Coordinate{X: 320, Y: 240}
	b := a.WithPixels([]raster.Coordinate{center}, black)

	radius := 5
	marked := Diff(a, b, radius)

	// Every pixel within Euclidean distance r is marked, nothing else is.
	for dy := -radius - 2; dy <= radius+2; dy++ {
		for dx := -radius - 2; dx <= radius+2; dx++ {
			c := raster.Coordinate{X: center.X + dx, Y: center.Y + dy}
			inside := dx*dx+dy*dy <= radius*radius
			assert.Equal(t, inside, marked.Has(c), "offset (%d,%d)", dx, dy)
		}
	}
}

func TestDiff_RadiusClampsAtImageBounds(t *testing.T) {
	a := raster.New(white)
	corner := raster.Coordinate{X: 0, Y: 0}
	b := a.WithPixels([]raster.Coordinate{corner}, black)

	marked := Diff(a, b, 4)

	for c := range marked {
		assert.True(t, c.InBounds(), "marked pixel %v is out of bounds", c)
	}
	assert.True(t, marked.Has(corner))
}

func TestRender_PaintsMarkedPixelsOnly(t *testing.T) {
	marked := make(PixelSet)
	marked.Add(raster.Coordinate{X: 1, Y: 2})
	marked.Add(raster.Coordinate{X: 600, Y: 400})

	rendered := Render(marked)

	assert.Equal(t, DifferenceColor, rendered.At(1, 2))
	assert.Equal(t, DifferenceColor, rendered.At(600, 400))
	assert.Equal(t, BackgroundColor, rendered.At(0, 0))
	assert.Equal(t, BackgroundColor, rendered.At(320, 240))
}
