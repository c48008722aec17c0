package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/m4a/m4a/internal/protocol"
)

// HTTPError maps an engine error onto an echo HTTP error. Handlers call it
// on every service failure so the taxonomy surfaces with consistent codes.
func HTTPError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, protocol.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, protocol.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, protocol.ErrAlreadyExists),
		errors.Is(err, protocol.ErrDuplicateClaim),
		errors.Is(err, protocol.ErrAlreadyAssigned),
		errors.Is(err, protocol.ErrSameFlagState):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, protocol.ErrInvalidState),
		errors.Is(err, protocol.ErrPreconditionUnmet),
		errors.Is(err, protocol.ErrQueueDisabled),
		errors.Is(err, protocol.ErrQueueFull):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, protocol.ErrFieldTooLong):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
