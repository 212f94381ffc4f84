package biometric

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/votegate/internal/imaging"
	"github.com/charlesng35/votegate/internal/outcome"
)

type fakeOracle struct {
	result *OracleResult
	err    error
	block  bool
	calls  atomic.Int32
}

func (f *fakeOracle) Verify(ctx context.Context, _, _ []byte) (*OracleResult, error) {
	f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.result, f.err
}

func newTestGate(t *testing.T, oracle Oracle) *Gate {
	t.Helper()
	cfg := DefaultConfig()
	cfg.OracleTimeout = 50 * time.Millisecond
	gate, err := NewGate(oracle, cfg)
	require.NoError(t, err)
	return gate
}

func liveFrame(t *testing.T) []byte {
	return encodePNG(t, checkerboard(320, 240, 4, 60, 180))
}

func TestNewGateRejectsBadWeights(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EmbeddingWeight = 0.9
	_, err := NewGate(&fakeOracle{}, cfg)
	require.Error(t, err)

	_, err = NewGate(nil, DefaultConfig())
	require.Error(t, err)
}

func TestVerifyMatch(t *testing.T) {
	box := &FaceBox{X: 10, Y: 10, W: 100, H: 120}
	oracle := &fakeOracle{result: &OracleResult{
		Verified:      true,
		Distance:      0.1,
		Threshold:     0.4,
		Model:         "Facenet",
		ReferenceFace: box,
		LiveFace:      box,
	}}

	decision, err := newTestGate(t, oracle).Verify(context.Background(), []byte("ref"), liveFrame(t))
	require.NoError(t, err)
	require.True(t, decision.Match)
	require.InDelta(t, 75, decision.EmbeddingScore, 1e-9)
	require.InDelta(t, 100, decision.GeometryScore, 1e-9)
	require.InDelta(t, 82.5, decision.FinalScore, 1e-9)
	require.InDelta(t, 0.825, decision.Confidence, 1e-9)
	require.Equal(t, 100.0, decision.Liveness.Confidence)
}

func TestVerifyDefaultGeometryWithoutBoxes(t *testing.T) {
	oracle := &fakeOracle{result: &OracleResult{Verified: true, Distance: 0, Threshold: 0.4}}

	decision, err := newTestGate(t, oracle).Verify(context.Background(), []byte("ref"), liveFrame(t))
	require.NoError(t, err)
	require.InDelta(t, 88, decision.GeometryScore, 1e-9)
	require.InDelta(t, 98.8, decision.FinalScore, 1e-9)
}

func TestVerifyLowConfidenceIsMismatch(t *testing.T) {
	box := &FaceBox{W: 100, H: 100}
	oracle := &fakeOracle{result: &OracleResult{Verified: true, Distance: 0.2, Threshold: 0.4, ReferenceFace: box, LiveFace: box}}

	decision, err := newTestGate(t, oracle).Verify(context.Background(), []byte("ref"), liveFrame(t))
	require.Equal(t, outcome.KindFaceMismatch, outcome.KindOf(err))
	require.NotNil(t, decision)
	require.False(t, decision.Match)
	require.InDelta(t, 65, decision.FinalScore, 1e-9)
}

func TestVerifyUnverifiedIsMismatchEvenWithHighScore(t *testing.T) {
	oracle := &fakeOracle{result: &OracleResult{Verified: false, Distance: 0, Threshold: 0.4}}

	_, err := newTestGate(t, oracle).Verify(context.Background(), []byte("ref"), liveFrame(t))
	require.Equal(t, outcome.KindFaceMismatch, outcome.KindOf(err))
}

func TestVerifySpoofSkipsOracle(t *testing.T) {
	oracle := &fakeOracle{result: &OracleResult{Verified: true, Threshold: 0.4}}

	decision, err := newTestGate(t, oracle).Verify(context.Background(), []byte("ref"), encodePNG(t, solid(320, 240, 255)))
	require.Equal(t, outcome.KindSpoofDetected, outcome.KindOf(err))
	require.NotNil(t, decision)
	require.Equal(t, 0.0, decision.Confidence)
	require.Contains(t, decision.Reason, IndicatorGlare)
	require.EqualValues(t, 0, oracle.calls.Load())

	rej, ok := outcome.As(err)
	require.True(t, ok)
	require.Len(t, rej.Reasons, 3)
}

func TestVerifyFaceNotDetected(t *testing.T) {
	oracle := &fakeOracle{err: ErrFaceNotDetected}

	_, err := newTestGate(t, oracle).Verify(context.Background(), []byte("ref"), liveFrame(t))
	require.Equal(t, outcome.KindFaceNotDetected, outcome.KindOf(err))
}

func TestVerifyOracleFailureIsRetryable(t *testing.T) {
	oracle := &fakeOracle{err: errors.New("connection refused")}

	_, err := newTestGate(t, oracle).Verify(context.Background(), []byte("ref"), liveFrame(t))
	rej, ok := outcome.As(err)
	require.True(t, ok)
	require.Equal(t, outcome.KindOracleUnavailable, rej.Kind)
	require.True(t, rej.Retryable())
}

func TestVerifyOracleTimeout(t *testing.T) {
	oracle := &fakeOracle{block: true}

	start := time.Now()
	_, err := newTestGate(t, oracle).Verify(context.Background(), []byte("ref"), liveFrame(t))
	require.Equal(t, outcome.KindOracleUnavailable, outcome.KindOf(err))
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestVerifyRejectsUndecodableLiveImage(t *testing.T) {
	_, err := newTestGate(t, &fakeOracle{}).Verify(context.Background(), []byte("ref"), []byte("garbage"))
	require.Equal(t, outcome.KindInvalidInput, outcome.KindOf(err))
}

func TestVerifyRefusesOversizedLiveFrame(t *testing.T) {
	oracle := &fakeOracle{result: &OracleResult{Verified: true, Threshold: 0.4}}
	cfg := DefaultConfig()
	cfg.MaxFramePixels = 320 * 200
	gate, err := NewGate(oracle, cfg)
	require.NoError(t, err)

	decision, err := gate.Verify(context.Background(), []byte("ref"), liveFrame(t))
	require.Nil(t, decision)
	require.ErrorIs(t, err, imaging.ErrTooManyPixels)

	rej, ok := outcome.As(err)
	require.True(t, ok)
	require.Equal(t, outcome.KindInvalidInput, rej.Kind)
	require.Equal(t, "Live image resolution too large", rej.Reason)
	require.EqualValues(t, 0, oracle.calls.Load())
}

func TestGeometryScoreClamps(t *testing.T) {
	gate := newTestGate(t, &fakeOracle{})

	require.InDelta(t, 90, gate.geometryScore(&FaceBox{W: 100, H: 100}, &FaceBox{W: 90, H: 100}), 1e-9)
	require.InDelta(t, 0, gate.geometryScore(&FaceBox{W: 300, H: 100}, &FaceBox{W: 100, H: 100}), 1e-9)
	require.InDelta(t, 88, gate.geometryScore(nil, &FaceBox{W: 1, H: 1}), 1e-9)
}
