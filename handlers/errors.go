package handlers

import (
	"errors"
	"net/http"

	"github.com/pocketbase/pocketbase/apis"

	"charge-queue/internal/status"
)

// mapServiceError translates coordinator errors into distinguishable API
// errors so the front-end can offer a corrective action.
func mapServiceError(err error) error {
	switch {
	case errors.Is(err, status.ErrStationUnavailable):
		return apis.NewBadRequestError("Station is inactive or closed", err)
	case errors.Is(err, status.ErrQueueFull):
		return apis.NewApiError(http.StatusConflict, "Queue is at capacity", err)
	case errors.Is(err, status.ErrNoActiveReservation):
		return apis.NewBadRequestError("Join the queue before starting a session", err)
	case errors.Is(err, status.ErrSessionInProgress):
		return apis.NewApiError(http.StatusConflict, "Stop the charging session before leaving", err)
	case errors.Is(err, status.ErrNotFound):
		return apis.NewNotFoundError("No active entry found", err)
	case errors.Is(err, status.ErrConcurrencyConflict):
		return apis.NewApiError(http.StatusConflict, "Station is busy, please retry", err)
	default:
		return apis.NewBadRequestError("Request failed", err)
	}
}
