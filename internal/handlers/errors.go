package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/votegate/internal/outcome"
	"github.com/charlesng35/votegate/pkg/errors"
	"github.com/charlesng35/votegate/pkg/logger"
	"github.com/charlesng35/votegate/pkg/response"
)

var kindStatus = map[outcome.Kind]int{
	outcome.KindInvalidInput:        http.StatusBadRequest,
	outcome.KindNotFound:            http.StatusNotFound,
	outcome.KindIneligible:          http.StatusForbidden,
	outcome.KindAlreadyCast:         http.StatusConflict,
	outcome.KindNoActiveCode:        http.StatusBadRequest,
	outcome.KindExpired:             http.StatusGone,
	outcome.KindMismatch:            http.StatusBadRequest,
	outcome.KindSpoofDetected:       http.StatusUnprocessableEntity,
	outcome.KindFaceMismatch:        http.StatusUnprocessableEntity,
	outcome.KindFaceNotDetected:     http.StatusUnprocessableEntity,
	outcome.KindOracleUnavailable:   http.StatusServiceUnavailable,
	outcome.KindRegistryUnavailable: http.StatusServiceUnavailable,
}

// rejectionError renders a gate rejection as an AppError. The rejection's
// reason becomes the message and its collected reasons the details.
func rejectionError(rej *outcome.Rejection) *errors.AppError {
	status, ok := kindStatus[rej.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	message := rej.Reason
	if message == "" {
		message = string(rej.Kind)
	}
	return &errors.AppError{
		Code:       string(rej.Kind),
		Message:    message,
		Details:    append([]string(nil), rej.Reasons...),
		Retryable:  rej.Retryable(),
		StatusCode: status,
		Internal:   rej.Err,
	}
}

// writeError maps service errors onto the response envelope. Anything that
// is neither a rejection nor an AppError is logged and hidden behind a 500.
func writeError(c *gin.Context, err error) {
	if rej, ok := outcome.As(err); ok {
		appErr := rejectionError(rej)
		if rej.Err != nil {
			logger.WithModule("handlers").Warn("dependency failure",
				zap.String("path", c.FullPath()),
				zap.String("kind", string(rej.Kind)),
				zap.Error(rej.Err),
			)
		}
		response.Error(c, appErr)
		return
	}

	appErr := errors.FromError(err)
	if appErr.StatusCode >= http.StatusInternalServerError {
		logger.WithModule("handlers").Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	response.Error(c, appErr)
}
