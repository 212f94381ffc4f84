package imaging

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func stripes(w, h, period int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		v := uint8(0)
		if (y/period)%2 == 0 {
			v = 255
		}
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

func diagonal(w, h, period int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(0)
			if ((x+y)/period)%2 == 0 {
				v = 255
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

func uniform(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func TestDecodeRoundTripsPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, stripes(40, 30, 4)))

	img, format, err := Decode(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, "png", format)
	require.Equal(t, 40, img.Bounds().Dx())

	cfg, format, err := DecodeConfig(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, "png", format)
	require.Equal(t, 30, cfg.Height)

	_, _, err = Decode([]byte("not an image"))
	require.Error(t, err)
}

// pngHeader returns a PNG signature and IHDR chunk declaring a w x h
// grayscale image with no pixel data behind it.
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 17)
	copy(ihdr, "IHDR")
	binary.BigEndian.PutUint32(ihdr[4:], w)
	binary.BigEndian.PutUint32(ihdr[8:], h)
	ihdr[12] = 8 // bit depth

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(13))
	buf.Write(ihdr)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(ihdr))
	return buf.Bytes()
}

func TestDecodeLimitedChecksHeaderFirst(t *testing.T) {
	bomb := pngHeader(100000, 100000)

	cfg, _, err := DecodeConfig(bomb)
	require.NoError(t, err)
	require.True(t, ExceedsPixels(cfg, 4_000_000))

	_, _, err = DecodeLimited(bomb, 4_000_000)
	require.ErrorIs(t, err, ErrTooManyPixels)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, stripes(40, 30, 4)))

	_, _, err = DecodeLimited(buf.Bytes(), 1000)
	require.ErrorIs(t, err, ErrTooManyPixels)

	img, format, err := DecodeLimited(buf.Bytes(), 1200)
	require.NoError(t, err)
	require.Equal(t, "png", format)
	require.Equal(t, 40, img.Bounds().Dx())

	_, _, err = DecodeLimited([]byte("not an image"), 1200)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrTooManyPixels)

	require.False(t, ExceedsPixels(cfg, 0))
}

func TestToGrayUsesLuminanceWeights(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	img.Set(1, 0, color.RGBA{G: 255, A: 255})

	g := ToGray(img)
	require.Equal(t, 2, g.Width)
	require.InDelta(t, 76, int(g.Pix[0]), 1)
	require.InDelta(t, 150, int(g.Pix[1]), 1)
}

func TestLaplacianVariance(t *testing.T) {
	require.Equal(t, 0.0, LaplacianVariance(ToGray(uniform(50, 50, 128))))
	require.Greater(t, LaplacianVariance(ToGray(stripes(50, 50, 4))), 1000.0)
	require.Equal(t, 0.0, LaplacianVariance(&Gray{Width: 2, Height: 2, Pix: make([]uint8, 4)}))
}

func TestBrightRatio(t *testing.T) {
	g := ToGray(stripes(10, 10, 5))
	require.InDelta(t, 0.5, BrightRatio(g, 245), 1e-9)
	require.Equal(t, 0.0, BrightRatio(g, 255))
}

func TestCannyFindsStripeBoundaries(t *testing.T) {
	edges := Canny(ToGray(stripes(64, 64, 8)), 50, 150)
	require.Greater(t, edges.Density(), 0.05)

	for x := 0; x < edges.Width; x++ {
		require.False(t, edges.Pix[3*edges.Width+x], "no edges inside a stripe")
	}

	flat := Canny(ToGray(uniform(64, 64, 200)), 50, 150)
	require.Equal(t, 0.0, flat.Density())
}

func TestHoughLinesOrientation(t *testing.T) {
	horizontal := HoughLines(Canny(ToGray(stripes(200, 160, 8)), 50, 150), 100)
	require.NotEmpty(t, horizontal)
	for _, line := range horizontal[:5] {
		require.InDelta(t, 90, line.ThetaDegrees(), 1)
	}

	tilted := HoughLines(Canny(ToGray(diagonal(200, 160, 8)), 50, 150), 100)
	require.NotEmpty(t, tilted)
	require.InDelta(t, 45, tilted[0].ThetaDegrees(), 2)

	for i := 1; i < len(tilted); i++ {
		require.GreaterOrEqual(t, tilted[i-1].Votes, tilted[i].Votes)
	}
}

func TestDownscale(t *testing.T) {
	small := stripes(100, 50, 4)
	require.Same(t, image.Image(small), Downscale(small, 640))

	large := stripes(1280, 960, 4)
	out := Downscale(large, 640)
	require.Equal(t, 640, out.Bounds().Dx())
	require.Equal(t, 480, out.Bounds().Dy())
	require.False(t, math.IsNaN(LaplacianVariance(ToGray(out))))
}
