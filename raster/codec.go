package raster

import (
	"encoding/binary"
	"fmt"
)

// BMP layout constants for the supported subset of the format.
const (
	fileHeaderSize = 14
	infoHeaderSize = 40
	headerSize     = fileHeaderSize + infoHeaderSize

	magicByte0 = 'B'
	magicByte1 = 'M'

	compressionNone = 0
)

// FormatError reports a header field that failed validation during decode.
type FormatError struct {
	// Field names the header field that failed validation
	// ("magic", "size", "bitDepth", "width", "height", "compression").
	Field string

	// Reason describes the mismatch.
	Reason string
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid bitmap %s: %s", e.Field, e.Reason)
}

// rowStride returns the padded byte length of one stored pixel row.
// BMP rows are padded to 4-byte boundaries.
func rowStride(width int) int {
	return (width*bytesPerPixel + 3) &^ 3
}

// Decode parses an uncompressed 24-bit 640x480 BMP into a Raster.
//
// A positive height field means the rows are stored bottom-up, a negative
// height top-down; both decode into the same top-left-origin buffer. The
// entire input is validated and read before any pixel is addressable.
func Decode(data []byte) (*Raster, error) {
	if len(data) < headerSize {
		return nil, &FormatError{Field: "size", Reason: fmt.Sprintf("%d bytes is too short for a bitmap header", len(data))}
	}
	if data[0] != magicByte0 || data[1] != magicByte1 {
		return nil, &FormatError{Field: "magic", Reason: fmt.Sprintf("got 0x%02x%02x, want \"BM\"", data[0], data[1])}
	}

	offset := binary.LittleEndian.Uint32(data[10:14])
	width := int(int32(binary.LittleEndian.Uint32(data[18:22])))
	rawHeight := int(int32(binary.LittleEndian.Uint32(data[22:26])))
	bitCount := int(binary.LittleEndian.Uint16(data[28:30]))
	compression := binary.LittleEndian.Uint32(data[30:34])

	if compression != compressionNone {
		return nil, &FormatError{Field: "compression", Reason: fmt.Sprintf("got %d, only uncompressed bitmaps are supported", compression)}
	}
	if bitCount != Depth {
		return nil, &FormatError{Field: "bitDepth", Reason: fmt.Sprintf("got %d bits per pixel, want %d", bitCount, Depth)}
	}
	if width != Width {
		return nil, &FormatError{Field: "width", Reason: fmt.Sprintf("got %d, want %d", width, Width)}
	}

	topDown := rawHeight < 0
	height := rawHeight
	if topDown {
		height = -rawHeight
	}
	if height != Height {
		return nil, &FormatError{Field: "height", Reason: fmt.Sprintf("got %d, want %d", height, Height)}
	}

	stride := rowStride(width)
	need := int(offset) + stride*height
	if int(offset) < headerSize || len(data) < need {
		return nil, &FormatError{Field: "size", Reason: fmt.Sprintf("got %d bytes, need %d", len(data), need)}
	}

	pix := make([]uint8, Width*Height*bytesPerPixel)
	for y := 0; y < height; y++ {
		srcRow := y
		if !topDown {
			srcRow = height - 1 - y
		}
		src := data[int(offset)+srcRow*stride:]
		dst := pix[y*Width*bytesPerPixel:]
		for x := 0; x < width; x++ {
			// Stored order is BGR.
			dst[x*bytesPerPixel] = src[x*bytesPerPixel+2]
			dst[x*bytesPerPixel+1] = src[x*bytesPerPixel+1]
			dst[x*bytesPerPixel+2] = src[x*bytesPerPixel]
		}
	}

	return &Raster{pix: pix}, nil
}

// Encode serializes the raster as an uncompressed 24-bit BMP with bottom-up
// row order. Decode(Encode(r)) yields a raster equal to r.
func Encode(r *Raster) []byte {
	stride := rowStride(Width)
	total := headerSize + stride*Height
	out := make([]byte, total)

	out[0] = magicByte0
	out[1] = magicByte1
	binary.LittleEndian.PutUint32(out[2:6], uint32(total))
	binary.LittleEndian.PutUint32(out[10:14], headerSize)
	binary.LittleEndian.PutUint32(out[14:18], infoHeaderSize)
	binary.LittleEndian.PutUint32(out[18:22], uint32(Width))
	binary.LittleEndian.PutUint32(out[22:26], uint32(Height))
	binary.LittleEndian.PutUint16(out[26:28], 1) // planes
	binary.LittleEndian.PutUint16(out[28:30], Depth)
	binary.LittleEndian.PutUint32(out[30:34], compressionNone)
	binary.LittleEndian.PutUint32(out[34:38], uint32(stride*Height))

	for y := 0; y < Height; y++ {
		dst := out[headerSize+(Height-1-y)*stride:]
		src := r.pix[y*Width*bytesPerPixel:]
		for x := 0; x < Width; x++ {
			dst[x*bytesPerPixel] = src[x*bytesPerPixel+2]
			dst[x*bytesPerPixel+1] = src[x*bytesPerPixel+1]
			dst[x*bytesPerPixel+2] = src[x*bytesPerPixel]
		}
	}

	return out
}
