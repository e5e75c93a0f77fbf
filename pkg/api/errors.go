package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/afrodite/datingcore/pkg/apperrors"
)

// mapErr translates the pkg/apperrors taxonomy to an HTTP status per
// spec.md §7: Unauthorized→401, NotAllowed→403, NotFound→404,
// Conflict→409, DataError/Time/External→500, FeatureDisabled→503.
func mapErr(err error) *echo.HTTPError {
	var validErr *apperrors.ValidationError
	if errors.As(err, &validErr) {
		return echo.NewHTTPError(http.StatusBadRequest, validErr.Error())
	}

	switch {
	case errors.Is(err, apperrors.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, apperrors.ErrNotAllowed):
		return echo.NewHTTPError(http.StatusForbidden, "not allowed")
	case errors.Is(err, apperrors.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, apperrors.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, "conflict")
	case errors.Is(err, apperrors.ErrFeatureDisabled):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "feature disabled")
	}

	// DataError, Time, External, and anything unrecognized: internal.
	slog.Error("unexpected internal error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}

// errorResponse is spec.md §7's error envelope. In debug mode it
// includes Message; in release mode only Status is populated.
type errorResponse struct {
	Status        int    `json:"status"`
	StatusMessage string `json:"status_message,omitempty"`
	Message       string `json:"message,omitempty"`
}

// HTTPErrorHandler is installed as the Echo error handler so every
// handler can just `return err` and get the envelope of spec.md §7.
func (s *Server) HTTPErrorHandler(err error, c *echo.Context) {
	he, ok := err.(*echo.HTTPError)
	if !ok {
		he = mapErr(err)
	}

	resp := errorResponse{Status: he.Code}
	if s.cfg.HTTP.Debug {
		resp.StatusMessage = http.StatusText(he.Code)
		if msg, ok := he.Message.(string); ok {
			resp.Message = msg
		}
	}
	if !c.Response().Committed {
		_ = c.JSON(he.Code, resp)
	}
}
