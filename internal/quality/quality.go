// Package quality validates enrollment photographs. Every check runs and the
// report lists each failure, so a registrant can fix all problems at once.
package quality

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/charlesng35/votegate/internal/imaging"
)

// Check names one validation step.
type Check string

const (
	CheckFormat      Check = "format"
	CheckSize        Check = "size"
	CheckDimensions  Check = "dimensions"
	CheckOrientation Check = "orientation"
	CheckSharpness   Check = "sharpness"
	CheckFace        Check = "face"
)

// Config carries every threshold used by the validator.
type Config struct {
	MinSizeKB          float64
	MaxSizeKB          float64
	WidthCM            float64
	HeightCM           float64
	DPI                float64
	DimensionTolerance float64
	AllowedTypes       []string
	SharpnessThreshold float64
	TiltTolerance      float64
	CannyLow           float64
	CannyHigh          float64
	HoughThreshold     int
	HoughLines         int
	MinFaceRatio       float64
	MaxFaceRatio       float64
	MaxPixels          int // headers declaring more are never decoded
}

// DefaultConfig returns the passport style defaults: 4.5cm × 3.5cm at 300
// dpi, 50–100 KB, JPEG or PNG.
func DefaultConfig() Config {
	return Config{
		MinSizeKB:          50,
		MaxSizeKB:          100,
		WidthCM:            4.5,
		HeightCM:           3.5,
		DPI:                300,
		DimensionTolerance: 0.10,
		AllowedTypes:       []string{"image/jpeg", "image/png"},
		SharpnessThreshold: 100,
		TiltTolerance:      15,
		CannyLow:           50,
		CannyHigh:          150,
		HoughThreshold:     100,
		HoughLines:         10,
		MinFaceRatio:       0.30,
		MaxFaceRatio:       0.70,
		MaxPixels:          4_000_000,
	}
}

// RequiredWidth is the target width in pixels.
func (c Config) RequiredWidth() int {
	return int(c.WidthCM * c.DPI / 2.54)
}

// RequiredHeight is the target height in pixels.
func (c Config) RequiredHeight() int {
	return int(c.HeightCM * c.DPI / 2.54)
}

// FaceDetector locates faces in an image.
type FaceDetector interface {
	Detect(img image.Image) ([]image.Rectangle, error)
}

// CheckResult is the outcome of a single check.
type CheckResult struct {
	Check  Check  `json:"check"`
	Passed bool   `json:"passed"`
	Reason string `json:"reason,omitempty"`
}

// Report is the ordered result of all checks.
type Report struct {
	Accepted    bool          `json:"accepted"`
	ContentType string        `json:"content_type"`
	SizeBytes   int           `json:"size_bytes"`
	Width       int           `json:"width"`
	Height      int           `json:"height"`
	Checks      []CheckResult `json:"checks"`
}

// Reasons lists the failure reasons in check order.
func (r *Report) Reasons() []string {
	if r == nil {
		return nil
	}
	var out []string
	for _, c := range r.Checks {
		if !c.Passed {
			out = append(out, c.Reason)
		}
	}
	return out
}

// Option customises the Validator.
type Option func(*Validator)

// WithFaceDetector enables the face check.
func WithFaceDetector(d FaceDetector) Option {
	return func(v *Validator) {
		v.detector = d
	}
}

// WithLogger overrides the validator logger.
func WithLogger(log *zap.Logger) Option {
	return func(v *Validator) {
		if log != nil {
			v.log = log
		}
	}
}

// Validator runs the enrollment photo checks.
type Validator struct {
	cfg      Config
	detector FaceDetector
	log      *zap.Logger
}

// NewValidator constructs a Validator. Zero valued thresholds fall back to
// DefaultConfig.
func NewValidator(cfg Config, opts ...Option) *Validator {
	cfg = withDefaults(cfg)
	v := &Validator{cfg: cfg, log: zap.NewNop()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Config returns the effective configuration.
func (v *Validator) Config() Config {
	return v.cfg
}

// Validate runs all checks against data. declared is the content type the
// client claims, and may be empty.
func (v *Validator) Validate(data []byte, declared string) *Report {
	report := &Report{SizeBytes: len(data)}

	report.ContentType = mimetype.Detect(data).String()
	if i := strings.Index(report.ContentType, ";"); i >= 0 {
		report.ContentType = report.ContentType[:i]
	}

	report.add(CheckFormat, v.checkFormat(report.ContentType, declared))
	report.add(CheckSize, v.checkSize(len(data)))

	cfg, _, cfgErr := imaging.DecodeConfig(data)
	if cfgErr == nil {
		report.Width, report.Height = cfg.Width, cfg.Height
	}
	report.add(CheckDimensions, v.checkDimensions(cfg, cfgErr))

	var img image.Image
	if cfgErr == nil && !imaging.ExceedsPixels(cfg, v.cfg.MaxPixels) {
		decoded, _, err := imaging.Decode(data)
		if err != nil {
			v.log.Debug("image decode failed, skipping best effort checks", zap.Error(err))
		}
		img = decoded
	}
	report.add(CheckOrientation, v.checkOrientation(img))
	report.add(CheckSharpness, v.checkSharpness(img))
	report.add(CheckFace, v.checkFace(img))

	report.Accepted = len(report.Reasons()) == 0
	return report
}

func (r *Report) add(check Check, reason string) {
	r.Checks = append(r.Checks, CheckResult{Check: check, Passed: reason == "", Reason: reason})
}

func (v *Validator) checkFormat(detected, declared string) string {
	allowed := false
	for _, t := range v.cfg.AllowedTypes {
		if strings.EqualFold(t, detected) {
			allowed = true
			break
		}
	}
	if !allowed {
		return "Invalid format. Only JPEG, JPG, PNG allowed."
	}

	if declared = normaliseType(declared); declared != "" && declared != detected {
		return fmt.Sprintf("Declared format %s does not match image content (%s).", declared, detected)
	}
	return ""
}

func (v *Validator) checkSize(size int) string {
	kb := float64(size) / 1024
	if kb < v.cfg.MinSizeKB {
		return fmt.Sprintf("Image too small. Minimum %sKB required.", trimFloat(v.cfg.MinSizeKB))
	}
	if kb > v.cfg.MaxSizeKB {
		return fmt.Sprintf("Image too large. Maximum %sKB allowed.", trimFloat(v.cfg.MaxSizeKB))
	}
	return ""
}

func (v *Validator) checkDimensions(cfg image.Config, err error) string {
	if err != nil {
		return "Image could not be decoded. Please upload a valid JPEG or PNG file."
	}
	if imaging.ExceedsPixels(cfg, v.cfg.MaxPixels) {
		return fmt.Sprintf("Image resolution too large. Maximum %d pixels allowed.", v.cfg.MaxPixels)
	}

	width, height := v.cfg.RequiredWidth(), v.cfg.RequiredHeight()
	if math.Abs(float64(cfg.Width-width)) > float64(width)*v.cfg.DimensionTolerance {
		return fmt.Sprintf("Invalid width. Required: %scm (%dpx)", trimFloat(v.cfg.WidthCM), width)
	}
	if math.Abs(float64(cfg.Height-height)) > float64(height)*v.cfg.DimensionTolerance {
		return fmt.Sprintf("Invalid height. Required: %scm (%dpx)", trimFloat(v.cfg.HeightCM), height)
	}
	return ""
}

// checkOrientation averages how far the strongest lines sit from the
// nearest axis. Images without enough structure to judge pass.
func (v *Validator) checkOrientation(img image.Image) string {
	if img == nil {
		return ""
	}

	gray := imaging.ToGray(img)
	lines := imaging.HoughLines(imaging.Canny(gray, v.cfg.CannyLow, v.cfg.CannyHigh), v.cfg.HoughThreshold)
	if len(lines) == 0 {
		return ""
	}
	if len(lines) > v.cfg.HoughLines {
		lines = lines[:v.cfg.HoughLines]
	}

	var total float64
	for _, line := range lines {
		total += axisDeviation(line.ThetaDegrees())
	}
	if total/float64(len(lines)) > v.cfg.TiltTolerance {
		return "Image appears to be tilted. Please upload a straight image."
	}
	return ""
}

func (v *Validator) checkSharpness(img image.Image) string {
	if img == nil {
		return ""
	}
	if imaging.LaplacianVariance(imaging.ToGray(img)) < v.cfg.SharpnessThreshold {
		return "Image appears blurred. Please upload a clear, sharp image."
	}
	return ""
}

func (v *Validator) checkFace(img image.Image) string {
	if img == nil || v.detector == nil {
		return ""
	}

	faces, err := v.detector.Detect(img)
	if err != nil {
		v.log.Warn("face detection failed, skipping face check", zap.Error(err))
		return ""
	}

	switch {
	case len(faces) == 0:
		return "No face detected. Please ensure the photo shows a clear frontal face."
	case len(faces) > 1:
		return "Multiple faces detected. Please upload a photo with only one person."
	}

	height := img.Bounds().Dy()
	if height == 0 {
		return ""
	}
	ratio := float64(faces[0].Dy()) / float64(height)
	if ratio < v.cfg.MinFaceRatio || ratio > v.cfg.MaxFaceRatio {
		return fmt.Sprintf("Face size inappropriate. Face should be %.0f-%.0f%% of image height.",
			v.cfg.MinFaceRatio*100, v.cfg.MaxFaceRatio*100)
	}
	return ""
}

// axisDeviation is the angular distance in degrees from theta to the
// closest of 0°, 90° and 180°.
func axisDeviation(theta float64) float64 {
	theta = math.Mod(theta, 180)
	if theta < 0 {
		theta += 180
	}
	return math.Min(math.Min(theta, math.Abs(theta-90)), 180-theta)
}

// ErrUnsupportedType is returned by ParseDeclaredType for unknown labels.
var ErrUnsupportedType = errors.New("quality: unsupported declared type")

// ParseDeclaredType maps loose labels ("jpg", "PNG", "image/jpg") to a MIME
// type.
func ParseDeclaredType(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	if t := normaliseType(value); t == "image/jpeg" || t == "image/png" {
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedType, value)
}

func normaliseType(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.TrimPrefix(value, "image/")
	switch value {
	case "":
		return ""
	case "jpg", "jpeg", "pjpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	default:
		return "image/" + value
	}
}

func trimFloat(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}

func withDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.MinSizeKB <= 0 {
		cfg.MinSizeKB = def.MinSizeKB
	}
	if cfg.MaxSizeKB <= 0 {
		cfg.MaxSizeKB = def.MaxSizeKB
	}
	if cfg.WidthCM <= 0 {
		cfg.WidthCM = def.WidthCM
	}
	if cfg.HeightCM <= 0 {
		cfg.HeightCM = def.HeightCM
	}
	if cfg.DPI <= 0 {
		cfg.DPI = def.DPI
	}
	if cfg.DimensionTolerance <= 0 {
		cfg.DimensionTolerance = def.DimensionTolerance
	}
	if len(cfg.AllowedTypes) == 0 {
		cfg.AllowedTypes = def.AllowedTypes
	}
	if cfg.SharpnessThreshold <= 0 {
		cfg.SharpnessThreshold = def.SharpnessThreshold
	}
	if cfg.TiltTolerance <= 0 {
		cfg.TiltTolerance = def.TiltTolerance
	}
	if cfg.CannyLow <= 0 {
		cfg.CannyLow = def.CannyLow
	}
	if cfg.CannyHigh <= 0 {
		cfg.CannyHigh = def.CannyHigh
	}
	if cfg.HoughThreshold <= 0 {
		cfg.HoughThreshold = def.HoughThreshold
	}
	if cfg.HoughLines <= 0 {
		cfg.HoughLines = def.HoughLines
	}
	if cfg.MinFaceRatio <= 0 {
		cfg.MinFaceRatio = def.MinFaceRatio
	}
	if cfg.MaxFaceRatio <= 0 {
		cfg.MaxFaceRatio = def.MaxFaceRatio
	}
	if cfg.MaxPixels <= 0 {
		cfg.MaxPixels = def.MaxPixels
	}
	return cfg
}
