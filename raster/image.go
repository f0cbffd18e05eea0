package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// Thumbnail geometry for catalog previews.
const (
	ThumbnailWidth  = 160
	ThumbnailHeight = 120
)

// ToImage converts the raster to a standard library RGBA image.
func (r *Raster) ToImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			i := (y*Width + x) * bytesPerPixel
			o := img.PixOffset(x, y)
			img.Pix[o] = r.pix[i]
			img.Pix[o+1] = r.pix[i+1]
			img.Pix[o+2] = r.pix[i+2]
			img.Pix[o+3] = 0xff
		}
	}
	return img
}

// FromImage converts a standard library image into a Raster. The image must
// be exactly 640x480; alpha is discarded.
func FromImage(img image.Image) (*Raster, error) {
	bounds := img.Bounds()
	if bounds.Dx() != Width || bounds.Dy() != Height {
		return nil, fmt.Errorf("image is %dx%d, want %dx%d", bounds.Dx(), bounds.Dy(), Width, Height)
	}
	pix := make([]uint8, Width*Height*bytesPerPixel)
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			cr, cg, cb, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			i := (y*Width + x) * bytesPerPixel
			pix[i] = uint8(cr >> 8)
			pix[i+1] = uint8(cg >> 8)
			pix[i+2] = uint8(cb >> 8)
		}
	}
	return fromBuffer(pix)
}

// EncodeThumbnailPNG scales the raster down to the catalog preview size and
// returns it PNG-encoded.
func EncodeThumbnailPNG(r *Raster) ([]byte, error) {
	src := r.ToImage()
	dst := image.NewRGBA(image.Rect(0, 0, ThumbnailWidth, ThumbnailHeight))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
