package biometric

import (
	"context"
	"errors"
)

// ErrFaceNotDetected is returned by an Oracle when either image has no
// detectable face.
var ErrFaceNotDetected = errors.New("biometric: face could not be detected")

// FaceBox is a detected face region in pixels.
type FaceBox struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// OracleResult is the similarity verdict of the external face model.
// ReferenceFace and LiveFace are nil when the oracle does not report them.
type OracleResult struct {
	Verified      bool     `json:"verified"`
	Distance      float64  `json:"distance"`
	Threshold     float64  `json:"threshold"`
	Model         string   `json:"model,omitempty"`
	ReferenceFace *FaceBox `json:"reference_face,omitempty"`
	LiveFace      *FaceBox `json:"live_face,omitempty"`
}

// Oracle compares a reference image with a live capture.
type Oracle interface {
	Verify(ctx context.Context, reference, live []byte) (*OracleResult, error)
}
