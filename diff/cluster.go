package diff

import (
	"github.com/pixelhunt/pixelhunt/raster"
)

// Group is one 8-connected region of marked pixels.
type Group []raster.Coordinate

// neighborOffsets is the 8-neighborhood. Diagonals count as adjacent because
// radius-expanded disks may touch only corner to corner.
var neighborOffsets = [8]raster.Coordinate{
	{X: -1, Y: -1}, {X: 0, Y: -1}, {X: 1, Y: -1},
	{X: -1, Y: 0}, {X: 1, Y: 0},
	{X: -1, Y: 1}, {X: 0, Y: 1}, {X: 1, Y: 1},
}

// Cluster partitions the marked pixel set into its 8-connected components.
//
// The fill walks an explicit worklist over a visited arena indexed by
// coordinate, so stack depth stays bounded regardless of region size. Pixels
// are scanned in row-major order, which makes index assignment deterministic
// for a given set. An empty input yields an empty group list.
func Cluster(marked PixelSet) []Group {
	if len(marked) == 0 {
		return nil
	}

	visited := make([]bool, raster.Width*raster.Height)
	var groups []Group

	for y := 0; y < raster.Height; y++ {
		for x := 0; x < raster.Width; x++ {
			seed := raster.Coordinate{X: x, Y: y}
			if visited[y*raster.Width+x] || !marked.Has(seed) {
				continue
			}

			group := Group{seed}
			visited[y*raster.Width+x] = true
			queue := []raster.Coordinate{seed}

			for len(queue) > 0 {
				cur := queue[0]
				queue = queue[1:]

				for _, off := range neighborOffsets {
					next := raster.Coordinate{X: cur.X + off.X, Y: cur.Y + off.Y}
					if !next.InBounds() {
						continue
					}
					idx := next.Y*raster.Width + next.X
					if visited[idx] || !marked.Has(next) {
						continue
					}
					visited[idx] = true
					group = append(group, next)
					queue = append(queue, next)
				}
			}

			groups = append(groups, group)
		}
	}

	return groups
}
