package biometric

import (
	"image"

	"github.com/charlesng35/votegate/internal/imaging"
)

// Liveness indicator labels.
const (
	IndicatorGlare    = "Screen glare detected"
	IndicatorTexture  = "Low texture - possible flat photo"
	IndicatorEdges    = "Unnatural edge distribution"
	IndicatorSkipped  = "Frame too small for liveness analysis"
	maxLivenessScore  = 100.0
	defaultFrameWidth = 640
)

// AntiSpoofConfig tunes the liveness heuristics.
type AntiSpoofConfig struct {
	MaxWidth             int
	MinWidth             int
	MinHeight            int
	SmallFrameConfidence float64
	GlareLevel           uint8
	GlareRatio           float64
	GlarePenalty         float64
	TextureThreshold     float64
	TexturePenalty       float64
	EdgeDensityThreshold float64
	EdgePenalty          float64
	CannyLow             float64
	CannyHigh            float64
	PassConfidence       float64
}

// DefaultAntiSpoofConfig returns the tuned defaults.
func DefaultAntiSpoofConfig() AntiSpoofConfig {
	return AntiSpoofConfig{
		MaxWidth:             defaultFrameWidth,
		MinWidth:             100,
		MinHeight:            100,
		SmallFrameConfidence: 75,
		GlareLevel:           245,
		GlareRatio:           0.08,
		GlarePenalty:         30,
		TextureThreshold:     50,
		TexturePenalty:       35,
		EdgeDensityThreshold: 0.05,
		EdgePenalty:          20,
		CannyLow:             50,
		CannyHigh:            150,
		PassConfidence:       50,
	}
}

// LivenessResult is the anti-spoof verdict for one frame.
type LivenessResult struct {
	Live            bool     `json:"live"`
	Confidence      float64  `json:"confidence"`
	Indicators      []string `json:"indicators"`
	GlareRatio      float64  `json:"glare_ratio"`
	TextureVariance float64  `json:"texture_variance"`
	EdgeDensity     float64  `json:"edge_density"`
	Skipped         bool     `json:"skipped,omitempty"`
}

// Analyzer scores how likely a frame shows a live face rather than a
// printed photo or a screen.
type Analyzer struct {
	cfg AntiSpoofConfig
}

// NewAnalyzer constructs an Analyzer, filling zero fields from the defaults.
func NewAnalyzer(cfg AntiSpoofConfig) *Analyzer {
	def := DefaultAntiSpoofConfig()
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = def.MaxWidth
	}
	if cfg.MinWidth <= 0 {
		cfg.MinWidth = def.MinWidth
	}
	if cfg.MinHeight <= 0 {
		cfg.MinHeight = def.MinHeight
	}
	if cfg.SmallFrameConfidence <= 0 {
		cfg.SmallFrameConfidence = def.SmallFrameConfidence
	}
	if cfg.GlareLevel == 0 {
		cfg.GlareLevel = def.GlareLevel
	}
	if cfg.GlareRatio <= 0 {
		cfg.GlareRatio = def.GlareRatio
	}
	if cfg.GlarePenalty <= 0 {
		cfg.GlarePenalty = def.GlarePenalty
	}
	if cfg.TextureThreshold <= 0 {
		cfg.TextureThreshold = def.TextureThreshold
	}
	if cfg.TexturePenalty <= 0 {
		cfg.TexturePenalty = def.TexturePenalty
	}
	if cfg.EdgeDensityThreshold <= 0 {
		cfg.EdgeDensityThreshold = def.EdgeDensityThreshold
	}
	if cfg.EdgePenalty <= 0 {
		cfg.EdgePenalty = def.EdgePenalty
	}
	if cfg.CannyLow <= 0 {
		cfg.CannyLow = def.CannyLow
	}
	if cfg.CannyHigh <= 0 {
		cfg.CannyHigh = def.CannyHigh
	}
	if cfg.PassConfidence <= 0 {
		cfg.PassConfidence = def.PassConfidence
	}
	return &Analyzer{cfg: cfg}
}

// Analyze scores img. Frames below the minimum size are not analysed and
// pass with reduced confidence.
func (a *Analyzer) Analyze(img image.Image) LivenessResult {
	b := img.Bounds()
	if b.Dx() < a.cfg.MinWidth || b.Dy() < a.cfg.MinHeight {
		return LivenessResult{
			Live:       true,
			Confidence: a.cfg.SmallFrameConfidence,
			Indicators: []string{IndicatorSkipped},
			Skipped:    true,
		}
	}

	gray := imaging.ToGray(imaging.Downscale(img, a.cfg.MaxWidth))

	res := LivenessResult{
		GlareRatio:      imaging.BrightRatio(gray, a.cfg.GlareLevel),
		TextureVariance: imaging.LaplacianVariance(gray),
		EdgeDensity:     imaging.Canny(gray, a.cfg.CannyLow, a.cfg.CannyHigh).Density(),
		Indicators:      []string{},
	}

	confidence := maxLivenessScore
	if res.GlareRatio > a.cfg.GlareRatio {
		res.Indicators = append(res.Indicators, IndicatorGlare)
		confidence -= a.cfg.GlarePenalty
	}
	if res.TextureVariance < a.cfg.TextureThreshold {
		res.Indicators = append(res.Indicators, IndicatorTexture)
		confidence -= a.cfg.TexturePenalty
	}
	if res.EdgeDensity < a.cfg.EdgeDensityThreshold {
		res.Indicators = append(res.Indicators, IndicatorEdges)
		confidence -= a.cfg.EdgePenalty
	}
	if confidence < 0 {
		confidence = 0
	}

	res.Confidence = confidence
	res.Live = confidence > a.cfg.PassConfidence
	return res
}
