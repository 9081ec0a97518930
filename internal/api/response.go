package api

import (
	"errors"

	apperrors "github.com/gmsas95/recovery-tracker/internal/errors"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// statusFor maps an error to its HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrNotEnrolled),
		errors.Is(err, apperrors.ErrUnknownTask),
		errors.Is(err, apperrors.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, apperrors.ErrAlreadyEnrolled):
		return fiber.StatusConflict
	case errors.Is(err, apperrors.ErrInvalidSurgeryType),
		errors.Is(err, apperrors.ErrStartDateInFuture),
		errors.Is(err, apperrors.ErrInvalidDay),
		errors.Is(err, apperrors.ErrBadRequest):
		return fiber.StatusBadRequest
	case errors.Is(err, apperrors.ErrUnauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, apperrors.ErrRateLimited):
		return fiber.StatusTooManyRequests
	case errors.Is(err, apperrors.ErrTransientStore):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// fail writes err as a JSON error body. Server-side failures are logged and
// their causes kept out of the response.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	status := statusFor(err)

	if !apperrors.IsAppError(err) {
		err = apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Message)
	}
	body := errorResponse{Error: "internal error", Code: apperrors.GetCode(err)}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		body.Error = appErr.Message
	}

	if status >= fiber.StatusInternalServerError {
		s.logger.Error("Request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("patient_id", patientID(c)),
			zap.Error(err),
		)
	}

	return c.Status(status).JSON(body)
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(errorResponse{Error: fe.Message, Code: "HTTP"})
	}
	return s.fail(c, err)
}
