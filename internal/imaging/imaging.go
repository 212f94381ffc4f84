// Package imaging holds the pixel level primitives used by the enrollment
// quality checks and the liveness heuristics: grayscale conversion,
// Laplacian variance, Canny edges and a standard Hough line transform.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder

	"golang.org/x/image/draw"
)

// Gray is a row-major 8-bit luminance buffer.
type Gray struct {
	Pix    []uint8
	Width  int
	Height int
}

func (g *Gray) at(x, y int) int {
	return int(g.Pix[y*g.Width+x])
}

// Decode decodes a JPEG or PNG payload and returns the format name.
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("imaging: decode: %w", err)
	}
	return img, format, nil
}

// DecodeConfig reads only the header of a JPEG or PNG payload.
func DecodeConfig(data []byte) (image.Config, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, "", fmt.Errorf("imaging: decode config: %w", err)
	}
	return cfg, format, nil
}

// ErrTooManyPixels reports a header that declares more pixels than the
// caller allows.
var ErrTooManyPixels = errors.New("imaging: image exceeds pixel limit")

// ExceedsPixels reports whether cfg declares more than maxPixels pixels.
// A non-positive limit never trips.
func ExceedsPixels(cfg image.Config, maxPixels int) bool {
	if maxPixels <= 0 {
		return false
	}
	return int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels)
}

// DecodeLimited reads the header first and only decodes the pixel data when
// the declared area fits within maxPixels.
func DecodeLimited(data []byte, maxPixels int) (image.Image, string, error) {
	cfg, _, err := DecodeConfig(data)
	if err != nil {
		return nil, "", err
	}
	if ExceedsPixels(cfg, maxPixels) {
		return nil, "", fmt.Errorf("%w: %dx%d", ErrTooManyPixels, cfg.Width, cfg.Height)
	}
	return Decode(data)
}

// ToGray converts img to luminance using the ITU-R 601 weights.
func ToGray(img image.Image) *Gray {
	b := img.Bounds()
	g := &Gray{
		Pix:    make([]uint8, b.Dx()*b.Dy()),
		Width:  b.Dx(),
		Height: b.Dy(),
	}

	if src, ok := img.(*image.Gray); ok {
		for y := 0; y < g.Height; y++ {
			row := src.Pix[(y)*src.Stride : (y)*src.Stride+g.Width]
			copy(g.Pix[y*g.Width:], row)
		}
		return g
	}

	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			c := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			g.Pix[y*g.Width+x] = c.Y
		}
	}
	return g
}

// Downscale shrinks img to maxWidth preserving the aspect ratio. Images that
// are already narrow enough are returned unchanged.
func Downscale(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	if maxWidth <= 0 || b.Dx() <= maxWidth {
		return img
	}
	height := b.Dy() * maxWidth / b.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// LaplacianVariance returns the variance of the 4-neighbour Laplacian over
// the image interior. Low values indicate blur or a flat surface.
func LaplacianVariance(g *Gray) float64 {
	if g == nil || g.Width < 3 || g.Height < 3 {
		return 0
	}

	var sum, sumSq float64
	n := 0
	for y := 1; y < g.Height-1; y++ {
		for x := 1; x < g.Width-1; x++ {
			v := float64(g.at(x, y-1) + g.at(x, y+1) + g.at(x-1, y) + g.at(x+1, y) - 4*g.at(x, y))
			sum += v
			sumSq += v * v
			n++
		}
	}
	mean := sum / float64(n)
	return sumSq/float64(n) - mean*mean
}

// BrightRatio is the fraction of pixels strictly brighter than level.
func BrightRatio(g *Gray, level uint8) float64 {
	if g == nil || len(g.Pix) == 0 {
		return 0
	}
	count := 0
	for _, p := range g.Pix {
		if p > level {
			count++
		}
	}
	return float64(count) / float64(len(g.Pix))
}
