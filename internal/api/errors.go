package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/NguyenNhat4/Speak-english-with-AI/domain"
	"github.com/NguyenNhat4/Speak-english-with-AI/domain/repositories"
)

// statusFor maps a use case error to an HTTP status and error code
func statusFor(err error) (int, string) {
	var synthErr *repositories.SynthesisError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &synthErr) && synthErr.Retryable:
		return http.StatusServiceUnavailable, "synthesis_unavailable"
	case errors.As(err, &synthErr):
		return http.StatusBadGateway, "synthesis_failed"
	case errors.Is(err, domain.ErrProcessing):
		return http.StatusInternalServerError, "processing_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (h *Handler) respondError(c echo.Context, err error) error {
	status, code := statusFor(err)

	message := err.Error()
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Error(err))
		switch code {
		case "synthesis_failed":
			message = "Speech provider failed to synthesize audio"
		case "synthesis_unavailable":
			message = "Speech provider is temporarily unavailable. Please try again."
		case "processing_failed":
			message = "Failed to process the request. Please try again."
		default:
			message = "Internal server error"
		}
	}

	return c.JSON(status, ErrorResponse{Error: code, Message: message})
}
