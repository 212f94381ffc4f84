package facedetect

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/votegate/internal/imaging"
)

func TestLoadMissingCascade(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "facefinder"), DefaultConfig())
	require.Error(t, err)
	require.Contains(t, err.Error(), "read cascade")
}

func TestLoadReadsCascadeFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facefinder")
	require.NoError(t, os.WriteFile(path, facefinder, 0o600))

	d, err := Load(path, DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, d)
}

func TestNewRejectsTruncatedCascade(t *testing.T) {
	_, err := New([]byte{1, 2, 3}, Config{})
	require.Error(t, err)
}

func TestDefaultDetectsPortraitFace(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "portrait.jpg"))
	require.NoError(t, err)
	img, _, err := imaging.Decode(data)
	require.NoError(t, err)

	d, err := Default(DefaultConfig())
	require.NoError(t, err)

	faces, err := d.Detect(img)
	require.NoError(t, err)
	require.NotEmpty(t, faces)

	centre := image.Pt(img.Bounds().Dx()/2, img.Bounds().Dy()/2)
	found := false
	for _, f := range faces {
		if centre.In(f) {
			found = true
		}
	}
	require.True(t, found, "no detection covers the face at %v: %v", centre, faces)
}

func TestDefaultFindsNothingOnBlankFrame(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 320, 400))
	for i := range img.Pix {
		img.Pix[i] = 200
	}

	d, err := Default(DefaultConfig())
	require.NoError(t, err)

	faces, err := d.Detect(img)
	require.NoError(t, err)
	require.Empty(t, faces)
}

func TestWithDefaults(t *testing.T) {
	cfg := withDefaults(Config{MinSize: 60, ScaleFactor: 0.5})
	require.Equal(t, 60, cfg.MinSize)
	require.Equal(t, 1000, cfg.MaxSize)
	require.Equal(t, 1.1, cfg.ScaleFactor)
	require.Equal(t, float32(5), cfg.MinQuality)
}
