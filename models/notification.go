package models

// Notification intent types emitted by the coordinator. Delivery is
// fire-and-forget; a failed publish never rolls back queue state.
const (
	EventJoined             = "joined"
	EventLeft               = "left"
	EventPromoted           = "promoted"
	EventReservationWarning = "reservation_warning"
	EventExpired            = "expired"
	EventSessionStarted     = "session_started"
	EventSessionCompleted   = "session_completed"
)

type QueueEvent struct {
	Type      string         `json:"type"`
	UserID    string         `json:"user_id"`
	StationID string         `json:"station_id"`
	Payload   map[string]any `json:"payload,omitempty"`
}
