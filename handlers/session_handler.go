package handlers

import (
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"

	"charge-queue/services"
)

type SessionHandler struct {
	app      *pocketbase.PocketBase
	sessions *services.SessionService
}

func NewSessionHandler(app *pocketbase.PocketBase, sessionService *services.SessionService) *SessionHandler {
	return &SessionHandler{
		app:      app,
		sessions: sessionService,
	}
}

// Start - begin charging against a waiting or reserved entry. The meter
// reading is carried through verbatim.
func (h *SessionHandler) Start(e *core.RequestEvent) error {
	var req struct {
		StationID  string          `json:"station_id"`
		UserID     string          `json:"user_id"`
		MeterStart decimal.Decimal `json:"meter_start"`
	}

	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.StationID == "" || req.UserID == "" {
		return apis.NewBadRequestError("station_id and user_id are required", nil)
	}

	session, err := h.sessions.StartSession(e.Request.Context(), req.StationID, req.UserID, req.MeterStart)
	if err != nil {
		return mapServiceError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"session_id": session.ID})
}

// Stop - close the open session; the caller computes display metrics from the
// returned timestamps.
func (h *SessionHandler) Stop(e *core.RequestEvent) error {
	var req struct {
		StationID string          `json:"station_id"`
		UserID    string          `json:"user_id"`
		MeterStop decimal.Decimal `json:"meter_stop"`
	}

	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.StationID == "" || req.UserID == "" {
		return apis.NewBadRequestError("station_id and user_id are required", nil)
	}

	session, err := h.sessions.StopSession(e.Request.Context(), req.StationID, req.UserID, req.MeterStop)
	if err != nil {
		return mapServiceError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"started_at": session.StartedAt.UTC().Format(time.RFC3339),
		"ended_at":   session.EndedAt.UTC().Format(time.RFC3339),
	})
}
