// Package biometric decides whether a live capture shows the same person as
// the enrollment photo. A liveness heuristic runs first; only live frames are
// sent to the similarity oracle, whose verdict is fused with face geometry
// and the liveness score.
package biometric

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/votegate/internal/imaging"
	"github.com/charlesng35/votegate/internal/outcome"
	"github.com/charlesng35/votegate/pkg/metrics"
)

// Config holds the fusion weights and oracle limits.
type Config struct {
	EmbeddingWeight      float64
	GeometryWeight       float64
	AntiSpoofWeight      float64
	MinConfidence        float64
	DefaultGeometryScore float64
	GeometryPenaltyScale float64
	OracleTimeout        time.Duration
	MaxFramePixels       int
	AntiSpoof            AntiSpoofConfig
}

// DefaultConfig returns the production weights (0.70 / 0.10 / 0.20).
func DefaultConfig() Config {
	return Config{
		EmbeddingWeight:      0.70,
		GeometryWeight:       0.10,
		AntiSpoofWeight:      0.20,
		MinConfidence:        70,
		DefaultGeometryScore: 88,
		GeometryPenaltyScale: 100,
		OracleTimeout:        10 * time.Second,
		MaxFramePixels:       8_000_000,
		AntiSpoof:            DefaultAntiSpoofConfig(),
	}
}

// Decision is the full scoring breakdown of one comparison.
type Decision struct {
	Match          bool           `json:"match"`
	Confidence     float64        `json:"confidence"`
	FinalScore     float64        `json:"final_score"`
	EmbeddingScore float64        `json:"embedding_score"`
	GeometryScore  float64        `json:"geometry_score"`
	Verified       bool           `json:"verified"`
	Distance       float64        `json:"distance"`
	Threshold      float64        `json:"threshold"`
	Model          string         `json:"model,omitempty"`
	Liveness       LivenessResult `json:"liveness"`
	Reason         string         `json:"reason"`
}

// Option customises the Gate.
type Option func(*Gate)

// WithLogger overrides the gate logger.
func WithLogger(log *zap.Logger) Option {
	return func(g *Gate) {
		if log != nil {
			g.log = log
		}
	}
}

// Gate runs liveness and similarity checks.
type Gate struct {
	cfg      Config
	oracle   Oracle
	analyzer *Analyzer
	log      *zap.Logger
}

// NewGate validates cfg and constructs a Gate.
func NewGate(oracle Oracle, cfg Config, opts ...Option) (*Gate, error) {
	if oracle == nil {
		return nil, errors.New("biometric: oracle is required")
	}
	sum := cfg.EmbeddingWeight + cfg.GeometryWeight + cfg.AntiSpoofWeight
	if math.Abs(sum-1) > 1e-6 {
		return nil, fmt.Errorf("biometric: fusion weights must sum to 1, got %.3f", sum)
	}
	if cfg.OracleTimeout <= 0 {
		cfg.OracleTimeout = DefaultConfig().OracleTimeout
	}
	if cfg.GeometryPenaltyScale <= 0 {
		cfg.GeometryPenaltyScale = DefaultConfig().GeometryPenaltyScale
	}
	if cfg.MaxFramePixels <= 0 {
		cfg.MaxFramePixels = DefaultConfig().MaxFramePixels
	}

	g := &Gate{
		cfg:      cfg,
		oracle:   oracle,
		analyzer: NewAnalyzer(cfg.AntiSpoof),
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Verify compares reference with live. The decision is returned alongside
// biometric rejections so callers can audit the breakdown; it is nil for
// input and transient failures.
func (g *Gate) Verify(ctx context.Context, reference, live []byte) (*Decision, error) {
	img, _, err := imaging.DecodeLimited(live, g.cfg.MaxFramePixels)
	if err != nil {
		reason := "Live image could not be decoded"
		if errors.Is(err, imaging.ErrTooManyPixels) {
			reason = "Live image resolution too large"
		}
		g.record(outcome.KindInvalidInput)
		return nil, &outcome.Rejection{Kind: outcome.KindInvalidInput, Reason: reason, Err: err}
	}

	liveness := g.analyzer.Analyze(img)
	if !liveness.Live {
		reason := "Spoofing detected: " + strings.Join(liveness.Indicators, ", ")
		g.record(outcome.KindSpoofDetected)
		return &Decision{Liveness: liveness, Reason: reason},
			outcome.RejectAll(outcome.KindSpoofDetected, reason, liveness.Indicators)
	}

	result, err := g.compare(ctx, reference, live)
	if err != nil {
		if errors.Is(err, ErrFaceNotDetected) {
			g.record(outcome.KindFaceNotDetected)
			return nil, &outcome.Rejection{
				Kind:   outcome.KindFaceNotDetected,
				Reason: "Face not detected. Please face the camera directly.",
				Err:    err,
			}
		}
		g.log.Warn("face comparison failed", zap.Error(err))
		g.record(outcome.KindOracleUnavailable)
		return nil, outcome.Unavailable(outcome.KindOracleUnavailable, "Face comparison service unavailable", err)
	}

	decision := g.fuse(result, liveness)
	if !decision.Match {
		g.record(outcome.KindFaceMismatch)
		return decision, outcome.Reject(outcome.KindFaceMismatch, decision.Reason)
	}

	g.record("")
	return decision, nil
}

func (g *Gate) compare(ctx context.Context, reference, live []byte) (*OracleResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.OracleTimeout)
	defer cancel()

	start := time.Now()
	result, err := g.oracle.Verify(ctx, reference, live)
	label := "ok"
	if err != nil {
		label = "error"
	}
	metrics.OracleLatency.WithLabelValues(label).Observe(time.Since(start).Seconds())

	if err != nil {
		return nil, err
	}
	if result == nil || result.Threshold <= 0 {
		return nil, errors.New("biometric: oracle returned no usable threshold")
	}
	return result, nil
}

func (g *Gate) fuse(result *OracleResult, liveness LivenessResult) *Decision {
	embedding := math.Max(0, 1-result.Distance/result.Threshold) * 100
	if embedding > 100 {
		embedding = 100
	}
	geometry := g.geometryScore(result.ReferenceFace, result.LiveFace)

	final := g.cfg.EmbeddingWeight*embedding +
		g.cfg.GeometryWeight*geometry +
		g.cfg.AntiSpoofWeight*liveness.Confidence

	match := result.Verified && final >= g.cfg.MinConfidence
	reason := "Verification successful - All checks passed"
	if !match {
		reason = "Low confidence match"
	}

	return &Decision{
		Match:          match,
		Confidence:     final / 100,
		FinalScore:     final,
		EmbeddingScore: embedding,
		GeometryScore:  geometry,
		Verified:       result.Verified,
		Distance:       result.Distance,
		Threshold:      result.Threshold,
		Model:          result.Model,
		Liveness:       liveness,
		Reason:         reason,
	}
}

// geometryScore compares face box aspect ratios; without both boxes the
// configured default applies.
func (g *Gate) geometryScore(ref, live *FaceBox) float64 {
	if ref == nil || live == nil || ref.H <= 0 || live.H <= 0 || ref.W <= 0 || live.W <= 0 {
		return g.cfg.DefaultGeometryScore
	}
	refAspect := float64(ref.W) / float64(ref.H)
	liveAspect := float64(live.W) / float64(live.H)
	score := 100 - g.cfg.GeometryPenaltyScale*math.Abs(refAspect-liveAspect)
	return math.Max(0, math.Min(100, score))
}

func (g *Gate) record(kind outcome.Kind) {
	label := "passed"
	if kind != "" {
		label = string(kind)
	}
	metrics.GateOutcomes.WithLabelValues("biometric", label).Inc()
}
