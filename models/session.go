package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ChargingSession is opened when a queue entry transitions to charging and
// closed when the holder stops. Meter readings are carried through for the
// caller; the coordinator never interprets them.
type ChargingSession struct {
	ID           string          `json:"id"`
	QueueEntryID string          `json:"queue_entry_id"`
	UserID       string          `json:"user_id"`
	StationID    string          `json:"station_id"`
	StartedAt    time.Time       `json:"started_at"`
	EndedAt      *time.Time      `json:"ended_at,omitempty"`
	MeterStart   decimal.Decimal `json:"meter_start"`
	MeterStop    decimal.Decimal `json:"meter_stop"`
}

// Open reports whether the session has not been closed yet. Exactly one open
// session may exist per active queue entry.
func (s *ChargingSession) Open() bool {
	return s.EndedAt == nil
}
