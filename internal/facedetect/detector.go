// Package facedetect locates frontal faces with a pigo pixel-intensity
// cascade. It backs the face check of the enrollment quality gate.
package facedetect

import (
	_ "embed"
	"errors"
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"

	"github.com/charlesng35/votegate/internal/imaging"
	"github.com/charlesng35/votegate/internal/quality"
)

// Config tunes the cascade scan.
type Config struct {
	MinSize      int
	MaxSize      int
	ShiftFactor  float64
	ScaleFactor  float64
	IoUThreshold float64
	MinQuality   float32
}

// DefaultConfig returns scan parameters suited to passport style photos.
func DefaultConfig() Config {
	return Config{
		MinSize:      40,
		MaxSize:      1000,
		ShiftFactor:  0.1,
		ScaleFactor:  1.1,
		IoUThreshold: 0.2,
		MinQuality:   5,
	}
}

// minCascadeSize is the smallest payload holding a cascade header.
const minCascadeSize = 16

// Detector runs an unpacked cascade. It is safe for concurrent use.
type Detector struct {
	cfg        Config
	classifier *pigo.Pigo
}

var _ quality.FaceDetector = (*Detector)(nil)

// facefinder is the frontal face cascade distributed with pigo.
//
//go:embed cascade/facefinder
var facefinder []byte

// Default returns a detector backed by the bundled facefinder cascade.
func Default(cfg Config) (*Detector, error) {
	return New(facefinder, cfg)
}

// Load reads a cascade file from disk.
func Load(path string, cfg Config) (*Detector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("facedetect: read cascade: %w", err)
	}
	return New(data, cfg)
}

// New unpacks cascade and returns a detector.
func New(cascade []byte, cfg Config) (*Detector, error) {
	if len(cascade) < minCascadeSize {
		return nil, errors.New("facedetect: cascade payload is empty or truncated")
	}
	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("facedetect: unpack cascade: %w", err)
	}
	return &Detector{cfg: withDefaults(cfg), classifier: classifier}, nil
}

// Detect returns one rectangle per face found in img.
func (d *Detector) Detect(img image.Image) ([]image.Rectangle, error) {
	gray := imaging.ToGray(img)
	if gray.Width == 0 || gray.Height == 0 {
		return nil, errors.New("facedetect: empty image")
	}

	maxSize := d.cfg.MaxSize
	if side := min(gray.Width, gray.Height); side < maxSize {
		maxSize = side
	}

	params := pigo.CascadeParams{
		MinSize:     d.cfg.MinSize,
		MaxSize:     maxSize,
		ShiftFactor: d.cfg.ShiftFactor,
		ScaleFactor: d.cfg.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: gray.Pix,
			Rows:   gray.Height,
			Cols:   gray.Width,
			Dim:    gray.Width,
		},
	}

	dets := d.classifier.RunCascade(params, 0)
	dets = d.classifier.ClusterDetections(dets, d.cfg.IoUThreshold)

	origin := img.Bounds().Min
	faces := make([]image.Rectangle, 0, len(dets))
	for _, det := range dets {
		if det.Q < d.cfg.MinQuality {
			continue
		}
		half := det.Scale / 2
		faces = append(faces, image.Rect(
			det.Col-half, det.Row-half,
			det.Col+half, det.Row+half,
		).Add(origin))
	}
	return faces, nil
}

func withDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.MinSize <= 0 {
		cfg.MinSize = def.MinSize
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = def.MaxSize
	}
	if cfg.ShiftFactor <= 0 {
		cfg.ShiftFactor = def.ShiftFactor
	}
	if cfg.ScaleFactor <= 1 {
		cfg.ScaleFactor = def.ScaleFactor
	}
	if cfg.IoUThreshold <= 0 {
		cfg.IoUThreshold = def.IoUThreshold
	}
	if cfg.MinQuality <= 0 {
		cfg.MinQuality = def.MinQuality
	}
	return cfg
}
