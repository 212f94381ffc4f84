package biometric

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// HTTPOracleConfig describes a DeepFace compatible REST endpoint.
type HTTPOracleConfig struct {
	BaseURL         string
	Model           string
	DetectorBackend string
	Timeout         time.Duration
}

// HTTPOracle calls POST {BaseURL}/verify with both images as data URLs.
type HTTPOracle struct {
	cfg    HTTPOracleConfig
	client *http.Client
}

// NewHTTPOracle validates cfg and returns an oracle client.
func NewHTTPOracle(cfg HTTPOracleConfig) (*HTTPOracle, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, errors.New("biometric: oracle base url is required")
	}
	if cfg.Model == "" {
		cfg.Model = "Facenet"
	}
	if cfg.DetectorBackend == "" {
		cfg.DetectorBackend = "opencv"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &HTTPOracle{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}, nil
}

type verifyRequest struct {
	Img1             string `json:"img1"`
	Img2             string `json:"img2"`
	ModelName        string `json:"model_name"`
	DetectorBackend  string `json:"detector_backend"`
	EnforceDetection bool   `json:"enforce_detection"`
}

type verifyResponse struct {
	Verified    *bool   `json:"verified"`
	Distance    float64 `json:"distance"`
	Threshold   float64 `json:"threshold"`
	Model       string  `json:"model"`
	FacialAreas struct {
		Img1 *FaceBox `json:"img1"`
		Img2 *FaceBox `json:"img2"`
	} `json:"facial_areas"`
	Error string `json:"error"`
}

func (o *HTTPOracle) Verify(ctx context.Context, reference, live []byte) (*OracleResult, error) {
	body, err := json.Marshal(verifyRequest{
		Img1:             dataURL(reference),
		Img2:             dataURL(live),
		ModelName:        o.cfg.Model,
		DetectorBackend:  o.cfg.DetectorBackend,
		EnforceDetection: true,
	})
	if err != nil {
		return nil, fmt.Errorf("biometric: encode oracle request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.BaseURL+"/verify", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("biometric: build oracle request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("biometric: oracle request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("biometric: read oracle response: %w", err)
	}

	var payload verifyResponse
	decodeErr := json.Unmarshal(raw, &payload)

	if resp.StatusCode != http.StatusOK {
		if strings.Contains(strings.ToLower(payload.Error), "could not be detected") {
			return nil, ErrFaceNotDetected
		}
		return nil, fmt.Errorf("biometric: oracle returned status %d: %s", resp.StatusCode, strings.TrimSpace(payload.Error))
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("biometric: decode oracle response: %w", decodeErr)
	}
	if payload.Verified == nil {
		return nil, errors.New("biometric: oracle response missing verdict")
	}

	return &OracleResult{
		Verified:      *payload.Verified,
		Distance:      payload.Distance,
		Threshold:     payload.Threshold,
		Model:         payload.Model,
		ReferenceFace: payload.FacialAreas.Img1,
		LiveFace:      payload.FacialAreas.Img2,
	}, nil
}

func dataURL(data []byte) string {
	return "data:" + mimetype.Detect(data).String() + ";base64," + base64.StdEncoding.EncodeToString(data)
}
