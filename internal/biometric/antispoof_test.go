package biometric

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAnalyzeTexturedFrameIsLive(t *testing.T) {
	res := NewAnalyzer(DefaultAntiSpoofConfig()).Analyze(checkerboard(320, 240, 4, 60, 180))

	require.True(t, res.Live)
	require.Equal(t, 100.0, res.Confidence)
	require.Empty(t, res.Indicators)
	require.Equal(t, 0.0, res.GlareRatio)
	require.Greater(t, res.TextureVariance, 50.0)
	require.Greater(t, res.EdgeDensity, 0.05)
}

func TestAnalyzeGlarePenalty(t *testing.T) {
	res := NewAnalyzer(DefaultAntiSpoofConfig()).Analyze(checkerboard(320, 240, 4, 60, 250))

	require.InDelta(t, 0.5, res.GlareRatio, 0.01)
	require.Equal(t, []string{IndicatorGlare}, res.Indicators)
	require.Equal(t, 70.0, res.Confidence)
	require.True(t, res.Live)
}

func TestAnalyzeFlatBrightFrameIsSpoof(t *testing.T) {
	res := NewAnalyzer(DefaultAntiSpoofConfig()).Analyze(solid(320, 240, 255))

	require.False(t, res.Live)
	require.Equal(t, 15.0, res.Confidence)
	require.Equal(t, []string{IndicatorGlare, IndicatorTexture, IndicatorEdges}, res.Indicators)
}

func TestAnalyzeSmallFrameSkipsHeuristics(t *testing.T) {
	res := NewAnalyzer(DefaultAntiSpoofConfig()).Analyze(solid(80, 60, 255))

	require.True(t, res.Live)
	require.True(t, res.Skipped)
	require.Equal(t, 75.0, res.Confidence)
}

func TestAnalyzeDownscalesLargeFrames(t *testing.T) {
	res := NewAnalyzer(DefaultAntiSpoofConfig()).Analyze(checkerboard(1280, 960, 16, 60, 180))

	require.True(t, res.Live)
	require.NotContains(t, res.Indicators, IndicatorEdges)
}

func TestAnalyzeThresholdsAreConfigurable(t *testing.T) {
	cfg := DefaultAntiSpoofConfig()
	cfg.GlareRatio = 0.6

	res := NewAnalyzer(cfg).Analyze(checkerboard(320, 240, 4, 60, 250))
	require.Empty(t, res.Indicators)
	require.Equal(t, 100.0, res.Confidence)
}
