package handlers

import (
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/votegate/internal/outcome"
	"github.com/charlesng35/votegate/internal/quality"
	"github.com/charlesng35/votegate/internal/services"
	"github.com/charlesng35/votegate/pkg/response"
)

// EnrollmentHandler exposes the operator endpoints for reference photos.
type EnrollmentHandler struct {
	svc *services.EnrollmentService
}

// NewEnrollmentHandler constructs an EnrollmentHandler.
func NewEnrollmentHandler(svc *services.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{svc: svc}
}

type imageRequest struct {
	Image       string `json:"image" validate:"required"`
	ContentType string `json:"content_type"`
}

// decode returns the image bytes and the declared type, preferring an
// explicit content_type over the data URL prefix.
func (r imageRequest) decode() ([]byte, string, error) {
	data, declared, err := decodeImagePayload(r.Image)
	if err != nil {
		return nil, "", err
	}
	if r.ContentType != "" {
		declared = r.ContentType
	}
	if _, err := quality.ParseDeclaredType(declared); err != nil {
		return nil, "", err
	}
	return data, declared, nil
}

// ValidateImage handles POST /api/enrollment/validate-image. Nothing is stored.
func (h *EnrollmentHandler) ValidateImage(c *gin.Context) {
	var req imageRequest
	if !bindAndValidate(c, &req) {
		return
	}

	data, declared, err := req.decode()
	if err != nil {
		writeError(c, outcome.Reject(outcome.KindInvalidInput, err.Error()))
		return
	}

	report := h.svc.ValidateImage(data, declared)
	if !report.Accepted {
		writeError(c, outcome.RejectAll(outcome.KindInvalidInput, "Image failed quality checks.", report.Reasons()))
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"valid":   true,
		"message": "Image meets all requirements.",
		"report":  report,
	})
}

// UploadPhoto handles PUT /api/enrollment/registrants/:id/photo.
func (h *EnrollmentHandler) UploadPhoto(c *gin.Context) {
	var req imageRequest
	if !bindAndValidate(c, &req) {
		return
	}

	data, declared, err := req.decode()
	if err != nil {
		writeError(c, outcome.Reject(outcome.KindInvalidInput, err.Error()))
		return
	}

	upload, err := h.svc.UploadPhoto(requestContext(c), c.Param("id"), data, declared)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"photo_id":     upload.Photo.ID,
		"content_type": upload.Photo.ContentType,
		"size_bytes":   upload.Photo.SizeBytes,
		"sha256":       upload.Photo.SHA256,
		"message":      "Image uploaded and validated successfully",
		"report":       upload.Report,
	})
}

// GetPhoto handles GET /api/enrollment/registrants/:id/photo and returns the
// reference photo as a data URL.
func (h *EnrollmentHandler) GetPhoto(c *gin.Context) {
	photo, err := h.svc.ReferencePhoto(requestContext(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"photo_id":   photo.ID,
		"image_data": "data:" + photo.ContentType + ";base64," + base64.StdEncoding.EncodeToString(photo.Data),
		"updated_at": photo.UpdatedAt,
	})
}
