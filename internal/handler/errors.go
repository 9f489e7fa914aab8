package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/field-booking/internal/booking"
	"github.com/iliyamo/field-booking/internal/logger"
	"github.com/iliyamo/field-booking/internal/repository"
)

type errorResponse struct {
	Error    string            `json:"error"`
	Code     string            `json:"code"`
	Conflict *booking.Conflict `json:"conflict,omitempty"`
	Details  map[string]string `json:"details,omitempty"`
}

func statusForKind(k booking.Kind) int {
	switch k {
	case booking.KindNotFound:
		return http.StatusNotFound
	case booking.KindForbidden:
		return http.StatusForbidden
	case booking.KindInactive, booking.KindInvalidInput, booking.KindInvalidRange, booking.KindInvalidDuration:
		return http.StatusBadRequest
	case booking.KindSlotConflict, booking.KindImmutable, booking.KindAlreadyCancelled:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError renders err as JSON. Expected failures carry their own message;
// anything else is logged and reported as a generic 500.
func writeError(c echo.Context, log *logger.Logger, err error) error {
	var be *booking.Error
	if errors.As(err, &be) {
		return c.JSON(statusForKind(be.Kind), errorResponse{Error: be.Message, Code: be.Kind.String(), Conflict: be.Conflict})
	}
	var ve *validationError
	if errors.As(err, &ve) {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: ve.msg, Code: "invalid_input", Details: ve.details})
	}

	switch {
	case errors.Is(err, repository.ErrFieldNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: "field not found", Code: "not_found"})
	case errors.Is(err, repository.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: "booking not found", Code: "not_found"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, errorResponse{Error: "resource is still referenced", Code: "conflict"})
	case errors.Is(err, repository.ErrPhoneExists):
		return c.JSON(http.StatusConflict, errorResponse{Error: "phone already registered", Code: "conflict"})
	case errors.Is(err, repository.ErrSlotLockTimeout):
		log.Warn(c.Request().Context(), "slot lock timed out", err)
		c.Response().Header().Set("Retry-After", "1")
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "field is busy, try again", Code: "busy"})
	}

	log.Error(c.Request().Context(), "request failed", err)
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal server error", Code: "internal"})
}
