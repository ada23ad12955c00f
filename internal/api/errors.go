package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/accio/accio/internal/backend/types"
	"github.com/accio/accio/internal/session"
)

// errorResponse is the body of every failed submission.
type errorResponse struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Field    string `json:"field,omitempty"`
}

// toHTTPError maps a submission failure onto a status code. The message is
// what the banner shows.
func toHTTPError(err error) *echo.HTTPError {
	var (
		invalid  *types.InvalidInputError
		rejected *types.RemoteRejectionError
		network  *types.NetworkError
	)

	switch {
	case errors.As(err, &invalid):
		return echo.NewHTTPError(http.StatusBadRequest, errorResponse{
			Message:  err.Error(),
			Severity: "input",
			Field:    invalid.Field,
		})
	case errors.Is(err, session.ErrBusy), errors.Is(err, types.ErrSuperseded):
		return echo.NewHTTPError(http.StatusConflict, errorResponse{Message: err.Error(), Severity: "none"})
	case errors.As(err, &rejected):
		return echo.NewHTTPError(http.StatusBadGateway, errorResponse{Message: rejected.Error(), Severity: "action"})
	case errors.As(err, &network):
		return echo.NewHTTPError(http.StatusServiceUnavailable, errorResponse{Message: err.Error(), Severity: "action"})
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, errorResponse{Message: err.Error(), Severity: "action"})
	}
}
