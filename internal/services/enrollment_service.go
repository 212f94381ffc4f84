package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/charlesng35/votegate/internal/models"
	"github.com/charlesng35/votegate/internal/outcome"
	"github.com/charlesng35/votegate/internal/quality"
	"github.com/charlesng35/votegate/internal/registry"
)

// RegistrantFinder resolves registrants by id.
type RegistrantFinder interface {
	FindByID(ctx context.Context, id string) (*models.Registrant, error)
}

// PhotoUpload is the outcome of a photo upload. Report is always set;
// Photo only when the image was accepted and stored.
type PhotoUpload struct {
	Report *quality.Report
	Photo  *models.EnrollmentPhoto
}

// EnrollmentService validates and stores enrollment reference photos.
type EnrollmentService struct {
	registrants RegistrantFinder
	photos      registry.PhotoStore
	validator   *quality.Validator
	audit       *AuditService
	log         *zap.Logger
}

// NewEnrollmentService constructs the service. audit may be nil.
func NewEnrollmentService(registrants RegistrantFinder, photos registry.PhotoStore, validator *quality.Validator, audit *AuditService, log *zap.Logger) (*EnrollmentService, error) {
	if registrants == nil || photos == nil {
		return nil, errors.New("enrollment service: registry is required")
	}
	if validator == nil {
		return nil, errors.New("enrollment service: validator is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &EnrollmentService{
		registrants: registrants,
		photos:      photos,
		validator:   validator,
		audit:       audit,
		log:         log,
	}, nil
}

// ValidateImage runs the quality checks without storing anything.
func (s *EnrollmentService) ValidateImage(data []byte, declared string) *quality.Report {
	return s.validator.Validate(data, declared)
}

// UploadPhoto validates data and, when accepted, stores it as the
// registrant's reference photo, replacing any previous one.
func (s *EnrollmentService) UploadPhoto(ctx context.Context, registrantID string, data []byte, declared string) (*PhotoUpload, error) {
	registrantID = strings.TrimSpace(registrantID)
	if _, err := s.registrants.FindByID(ctx, registrantID); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return nil, outcome.Reject(outcome.KindNotFound, "Registrant not found.")
		}
		return nil, outcome.Unavailable(outcome.KindRegistryUnavailable, "Voter registry is temporarily unavailable", err)
	}

	report := s.validator.Validate(data, declared)
	upload := &PhotoUpload{Report: report}
	if !report.Accepted {
		reasons := report.Reasons()
		err := outcome.RejectAll(outcome.KindInvalidInput, "Image failed quality checks.", reasons)
		s.auditUpload(ctx, registrantID, report, err)
		return upload, err
	}

	photo, err := s.photos.SavePhoto(ctx, &models.EnrollmentPhoto{
		RegistrantID: registrantID,
		ContentType:  report.ContentType,
		Width:        report.Width,
		Height:       report.Height,
		Data:         data,
	})
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return nil, outcome.Reject(outcome.KindNotFound, "Registrant not found.")
		}
		s.log.Error("store enrollment photo", zap.String("registrant_id", registrantID), zap.Error(err))
		return nil, outcome.Unavailable(outcome.KindRegistryUnavailable, "Photo could not be stored. Please retry.", err)
	}

	upload.Photo = photo
	s.auditUpload(ctx, registrantID, report, nil)
	return upload, nil
}

// ReferencePhoto returns the stored reference photo for a registrant.
func (s *EnrollmentService) ReferencePhoto(ctx context.Context, registrantID string) (*models.EnrollmentPhoto, error) {
	photo, err := s.photos.LoadPhoto(ctx, strings.TrimSpace(registrantID))
	if err != nil {
		if errors.Is(err, registry.ErrPhotoNotFound) {
			return nil, outcome.Reject(outcome.KindNotFound, "No enrollment photo on file for this voter.")
		}
		return nil, outcome.Unavailable(outcome.KindRegistryUnavailable, "Voter registry is temporarily unavailable", err)
	}
	return photo, nil
}

func (s *EnrollmentService) auditUpload(ctx context.Context, registrantID string, report *quality.Report, err error) {
	entry := AuditEntry{
		RegistrantID: stringPtr(registrantID),
		Action:       AuditActionPhotoUpload,
		Result:       "success",
		Metadata: map[string]any{
			"content_type": report.ContentType,
			"size_bytes":   report.SizeBytes,
			"checks":       report.Checks,
		},
	}
	if err != nil {
		entry.Result = "rejected"
		entry.Reason = err.Error()
	}
	recordAudit(s.audit, s.log, ctx, entry)
}
