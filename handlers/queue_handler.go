package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"charge-queue/internal/status"
	"charge-queue/services"
)

type QueueHandler struct {
	app   *pocketbase.PocketBase
	queue *services.QueueService
}

func NewQueueHandler(app *pocketbase.PocketBase, queueService *services.QueueService) *QueueHandler {
	return &QueueHandler{
		app:   app,
		queue: queueService,
	}
}

// Join - enter the station's queue
func (h *QueueHandler) Join(e *core.RequestEvent) error {
	var req struct {
		StationID string `json:"station_id"`
		UserID    string `json:"user_id"`
	}

	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.StationID == "" || req.UserID == "" {
		return apis.NewBadRequestError("station_id and user_id are required", nil)
	}

	entry, err := h.queue.Join(e.Request.Context(), req.StationID, req.UserID)
	if err != nil {
		return mapServiceError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"position":               entry.Position,
		"estimated_wait_minutes": entry.EstimatedWaitMinutes,
	})
}

// Leave - give up the queue spot. Leaving without an active entry is treated
// as already resolved, not an error.
func (h *QueueHandler) Leave(e *core.RequestEvent) error {
	var req struct {
		StationID string `json:"station_id"`
		UserID    string `json:"user_id"`
		Reason    string `json:"reason"`
	}

	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.StationID == "" || req.UserID == "" {
		return apis.NewBadRequestError("station_id and user_id are required", nil)
	}

	err := h.queue.Leave(e.Request.Context(), req.StationID, req.UserID, req.Reason)
	if errors.Is(err, status.ErrNotFound) {
		return e.JSON(http.StatusOK, map[string]any{"left": false})
	}
	if err != nil {
		return mapServiceError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"left": true})
}

// Reserve - manual reservation for the holder of position 1
func (h *QueueHandler) Reserve(e *core.RequestEvent) error {
	var req struct {
		StationID  string `json:"station_id"`
		UserID     string `json:"user_id"`
		TTLMinutes int    `json:"ttl_minutes"`
	}

	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.StationID == "" || req.UserID == "" {
		return apis.NewBadRequestError("station_id and user_id are required", nil)
	}

	reserved, err := h.queue.Reserve(
		e.Request.Context(),
		req.StationID,
		req.UserID,
		time.Duration(req.TTLMinutes)*time.Minute,
	)
	if err != nil {
		return mapServiceError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"reserved": reserved})
}

// Status - current queue entry for the pair, null when none is active
func (h *QueueHandler) Status(e *core.RequestEvent) error {
	stationID := e.Request.URL.Query().Get("station_id")
	userID := e.Request.URL.Query().Get("user_id")
	if stationID == "" || userID == "" {
		return apis.NewBadRequestError("station_id and user_id are required", nil)
	}

	entry, err := h.queue.Status(e.Request.Context(), stationID, userID)
	if err != nil {
		return mapServiceError(err)
	}

	return e.JSON(http.StatusOK, entry)
}
