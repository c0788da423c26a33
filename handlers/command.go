package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"

	"charge-queue/internal/status"
	"charge-queue/models"
	"charge-queue/services"
)

// CommandHandler is the chat front-end boundary. Button callbacks arrive as
// "<verb>:<station-id>" action strings and are decoded exactly once into the
// closed command type before dispatch; no handler re-parses them.
type CommandHandler struct {
	app      *pocketbase.PocketBase
	queue    *services.QueueService
	sessions *services.SessionService
}

func NewCommandHandler(app *pocketbase.PocketBase, queueService *services.QueueService, sessionService *services.SessionService) *CommandHandler {
	return &CommandHandler{
		app:      app,
		queue:    queueService,
		sessions: sessionService,
	}
}

// ParseAction decodes a button action string into a command kind and station
// id.
func ParseAction(action string) (models.CommandKind, string, error) {
	verb, stationID, ok := strings.Cut(action, ":")
	if !ok || stationID == "" {
		return models.CommandUnknown, "", fmt.Errorf("malformed action %q", action)
	}

	switch verb {
	case "join":
		return models.CommandJoin, stationID, nil
	case "leave":
		return models.CommandLeave, stationID, nil
	case "reserve":
		return models.CommandReserve, stationID, nil
	case "start":
		return models.CommandStartSession, stationID, nil
	case "stop":
		return models.CommandStopSession, stationID, nil
	case "status":
		return models.CommandStatus, stationID, nil
	default:
		return models.CommandUnknown, "", fmt.Errorf("unknown action verb %q", verb)
	}
}

func (h *CommandHandler) Dispatch(e *core.RequestEvent) error {
	var req struct {
		Action     string          `json:"action"`
		UserID     string          `json:"user_id"`
		TTLMinutes int             `json:"ttl_minutes"`
		Reason     string          `json:"reason"`
		MeterValue decimal.Decimal `json:"meter_value"`
	}

	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.UserID == "" {
		return apis.NewBadRequestError("user_id is required", nil)
	}

	kind, stationID, err := ParseAction(req.Action)
	if err != nil {
		return apis.NewBadRequestError("Unrecognized action", err)
	}

	cmd := models.Command{
		Kind:       kind,
		UserID:     req.UserID,
		StationID:  stationID,
		TTLMinutes: req.TTLMinutes,
		Reason:     req.Reason,
		MeterValue: req.MeterValue,
	}

	return h.run(e, cmd)
}

func (h *CommandHandler) run(e *core.RequestEvent, cmd models.Command) error {
	ctx := e.Request.Context()

	switch cmd.Kind {
	case models.CommandJoin:
		entry, err := h.queue.Join(ctx, cmd.StationID, cmd.UserID)
		if err != nil {
			return mapServiceError(err)
		}
		return e.JSON(http.StatusOK, map[string]any{
			"position":               entry.Position,
			"estimated_wait_minutes": entry.EstimatedWaitMinutes,
		})

	case models.CommandLeave:
		err := h.queue.Leave(ctx, cmd.StationID, cmd.UserID, cmd.Reason)
		if errors.Is(err, status.ErrNotFound) {
			return e.JSON(http.StatusOK, map[string]any{"left": false})
		}
		if err != nil {
			return mapServiceError(err)
		}
		return e.JSON(http.StatusOK, map[string]any{"left": true})

	case models.CommandReserve:
		reserved, err := h.queue.Reserve(ctx, cmd.StationID, cmd.UserID, time.Duration(cmd.TTLMinutes)*time.Minute)
		if err != nil {
			return mapServiceError(err)
		}
		return e.JSON(http.StatusOK, map[string]any{"reserved": reserved})

	case models.CommandStartSession:
		session, err := h.sessions.StartSession(ctx, cmd.StationID, cmd.UserID, cmd.MeterValue)
		if err != nil {
			return mapServiceError(err)
		}
		return e.JSON(http.StatusOK, map[string]any{"session_id": session.ID})

	case models.CommandStopSession:
		session, err := h.sessions.StopSession(ctx, cmd.StationID, cmd.UserID, cmd.MeterValue)
		if err != nil {
			return mapServiceError(err)
		}
		return e.JSON(http.StatusOK, map[string]any{
			"started_at": session.StartedAt.UTC().Format(time.RFC3339),
			"ended_at":   session.EndedAt.UTC().Format(time.RFC3339),
		})

	case models.CommandStatus:
		entry, err := h.queue.Status(ctx, cmd.StationID, cmd.UserID)
		if err != nil {
			return mapServiceError(err)
		}
		return e.JSON(http.StatusOK, entry)

	default:
		return apis.NewBadRequestError("Unrecognized action", nil)
	}
}
