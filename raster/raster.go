// Package raster implements the fixed-format bitmap codec used by the
// difference-detection engine.
//
// The only supported format is an uncompressed 24-bit BMP at exactly
// 640x480. Decoded rasters are normalized to a top-left-origin, row-major
// RGB pixel buffer regardless of the row order stored on disk.
package raster

import "fmt"

// Fixed raster geometry. Every image accepted by the engine has exactly
// these dimensions and bit depth.
const (
	Width         = 640
	Height        = 480
	Depth         = 24
	bytesPerPixel = 3
)

// Coordinate is an integer pixel position with the origin at the top-left
// corner of the image.
type Coordinate struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// InBounds reports whether the coordinate addresses a pixel of the fixed
// raster geometry.
func (c Coordinate) InBounds() bool {
	return c.X >= 0 && c.X < Width && c.Y >= 0 && c.Y < Height
}

// Pixel is one RGB triple. The stored format carries no alpha channel.
type Pixel struct {
	R, G, B uint8
}

// Raster is a decoded image. It is immutable once created; mutating
// operations return a new Raster and leave the receiver untouched.
type Raster struct {
	pix []uint8 // row-major RGB, top-left origin, len == Width*Height*3
}

// New returns a raster with every pixel set to the given fill color.
func New(fill Pixel) *Raster {
	pix := make([]uint8, Width*Height*bytesPerPixel)
	for i := 0; i < len(pix); i += bytesPerPixel {
		pix[i] = fill.R
		pix[i+1] = fill.G
		pix[i+2] = fill.B
	}
	return &Raster{pix: pix}
}

// fromBuffer wraps an existing normalized pixel buffer. The buffer must be
// exactly Width*Height*3 bytes; ownership transfers to the raster.
func fromBuffer(pix []uint8) (*Raster, error) {
	if len(pix) != Width*Height*bytesPerPixel {
		return nil, fmt.Errorf("pixel buffer is %d bytes, want %d", len(pix), Width*Height*bytesPerPixel)
	}
	return &Raster{pix: pix}, nil
}

// At returns the pixel at (x, y). Callers must ensure the coordinate is in
// bounds; out-of-range access panics like a slice access would.
func (r *Raster) At(x, y int) Pixel {
	i := (y*Width + x) * bytesPerPixel
	return Pixel{R: r.pix[i], G: r.pix[i+1], B: r.pix[i+2]}
}

// WithPixels returns a copy of the raster with the given coordinates painted
// in the given color. Coordinates outside the image are skipped.
func (r *Raster) WithPixels(coords []Coordinate, color Pixel) *Raster {
	pix := make([]uint8, len(r.pix))
	copy(pix, r.pix)
	for _, c := range coords {
		if !c.InBounds() {
			continue
		}
		i := (c.Y*Width + c.X) * bytesPerPixel
		pix[i] = color.R
		pix[i+1] = color.G
		pix[i+2] = color.B
	}
	return &Raster{pix: pix}
}

// Equal reports whether both rasters hold identical pixel data.
func (r *Raster) Equal(other *Raster) bool {
	if other == nil {
		return false
	}
	if len(r.pix) != len(other.pix) {
		return false
	}
	for i := range r.pix {
		if r.pix[i] != other.pix[i] {
			return false
		}
	}
	return true
}
