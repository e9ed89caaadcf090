package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"NewsPipeline/internal/domain"
)

// mapDomainError converts a use case error into an echo.HTTPError.
// Client errors keep their message so callers see the offending ids.
func mapDomainError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalid):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
	}
}
