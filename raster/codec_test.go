package raster

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRaster builds a raster with a deterministic gradient so every pixel
// value is distinct enough to catch channel or row-order mixups.
func testRaster() *Raster {
	pix := make([]uint8, Width*Height*bytesPerPixel)
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			i := (y*Width + x) * bytesPerPixel
			pix[i] = uint8(x)
			pix[i+1] = uint8(y)
			pix[i+2] = uint8(x + y)
		}
	}
	r, _ := fromBuffer(pix)
	return r
}

func TestDecode_RoundTrip(t *testing.T) {
	original := testRaster()

	decoded, err := Decode(Encode(original))
	require.NoError(t, err)
	assert.True(t, original.Equal(decoded))
}

func TestDecode_TopDownAndBottomUpAgree(t *testing.T) {
	original := testRaster()
	bottomUp := Encode(original)

	// Rewrite the encoded image as top-down: negate the height field and
	// reverse the stored row order.
	topDown := make([]byte, len(bottomUp))
	copy(topDown, bottomUp)
	negHeight := int32(-Height)
	binary.LittleEndian.PutUint32(topDown[22:26], uint32(negHeight))
	stride := rowStride(Width)
	for y := 0; y < Height; y++ {
		src := bottomUp[headerSize+(Height-1-y)*stride : headerSize+(Height-y)*stride]
		copy(topDown[headerSize+y*stride:], src)
	}

	fromBottomUp, err := Decode(bottomUp)
	require.NoError(t, err)
	fromTopDown, err := Decode(topDown)
	require.NoError(t, err)

	assert.True(t, fromBottomUp.Equal(fromTopDown),
		"row order on disk must not leak into the decoded coordinate space")
}

func TestDecode_HeaderValidation(t *testing.T) {
	valid := Encode(testRaster())

	corrupt := func(mutate func(data []byte)) []byte {
		data := make([]byte, len(valid))
		copy(data, valid)
		mutate(data)
		return data
	}

	tests := []struct {
		name      string
		data      []byte
		wantField string
	}{
		{
			name:      "truncated header",
			data:      valid[:10],
			wantField: "size",
		},
		{
			name:      "bad magic",
			data:      corrupt(func(d []byte) { d[0] = 'P' }),
			wantField: "magic",
		},
		{
			name:      "wrong bit depth",
			data:      corrupt(func(d []byte) { binary.LittleEndian.PutUint16(d[28:30], 32) }),
			wantField: "bitDepth",
		},
		{
			name:      "wrong width",
			data:      corrupt(func(d []byte) { binary.LittleEndian.PutUint32(d[18:22], 800) }),
			wantField: "width",
		},
		{
			name:      "wrong height",
			data:      corrupt(func(d []byte) { binary.LittleEndian.PutUint32(d[22:26], 600) }),
			wantField: "height",
		},
		{
			name:      "compressed",
			data:      corrupt(func(d []byte) { binary.LittleEndian.PutUint32(d[30:34], 1) }),
			wantField: "compression",
		},
		{
			name:      "truncated pixel data",
			data:      valid[:len(valid)-100],
			wantField: "size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			require.Error(t, err)

			var formatErr *FormatError
			require.ErrorAs(t, err, &formatErr)
			assert.Equal(t, tt.wantField, formatErr.Field)
		})
	}
}

func TestRaster_WithPixelsDoesNotMutateReceiver(t *testing.T) {
	original := New(Pixel{R: 255, G: 255, B: 255})

	painted := original.WithPixels([]Coordinate{{X: 10, Y: 20}}, Pixel{})

	assert.Equal(t, Pixel{R: 255, G: 255, B: 255}, original.At(10, 20))
	assert.Equal(t, Pixel{}, painted.At(10, 20))
}

func TestRaster_WithPixelsSkipsOutOfBounds(t *testing.T) {
	original := New(Pixel{R: 255, G: 255, B: 255})

	painted := original.WithPixels([]Coordinate{
		{X: -1, Y: 0},
		{X: Width, Y: 0},
		{X: 0, Y: Height},
		{X: 5, Y: 5},
	}, Pixel{})

	assert.Equal(t, Pixel{}, painted.At(5, 5))
}

func TestCoordinate_InBounds(t *testing.T) {
	assert.True(t, Coordinate{X: 0, Y: 0}.InBounds())
	assert.True(t, Coordinate{X: Width - 1, Y: Height - 1}.InBounds())
	assert.False(t, Coordinate{X: -1, Y: 0}.InBounds())
	assert.False(t, Coordinate{X: Width, Y: 0}.InBounds())
	assert.False(t, Coordinate{X: 0, Y: Height}.InBounds())
}
