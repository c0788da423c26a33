package models

import (
	"time"
)

// Queue entry statuses. An entry is active while waiting, reserved or
// charging; completed and cancelled are terminal.
const (
	StatusWaiting   = "waiting"
	StatusReserved  = "reserved"
	StatusCharging  = "charging"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

type QueueEntry struct {
	ID                   string     `json:"id"`
	UserID               string     `json:"user_id"`
	StationID            string     `json:"station_id"`
	Position             int        `json:"position"`
	Status               string     `json:"status"`
	EstimatedWaitMinutes int        `json:"estimated_wait_minutes"`
	ReservationExpiry    *time.Time `json:"reservation_expiry,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// IsActive reports whether the entry still belongs to the user's current
// attempt. At most one active entry may exist per (user, station) pair.
func (e *QueueEntry) IsActive() bool {
	return e.Status == StatusWaiting || e.Status == StatusReserved || e.Status == StatusCharging
}

// IsQueued reports whether the entry occupies a queue position. A charging
// entry has already left the line and holds no position.
func (e *QueueEntry) IsQueued() bool {
	return e.Status == StatusWaiting || e.Status == StatusReserved
}

func IsTerminalStatus(status string) bool {
	return status == StatusCompleted || status == StatusCancelled
}
