package services

import (
	"context"
	"time"

	"charge-queue/models"
)

// QueueStore is the single source of truth for queue entries and charging
// sessions. No component caches occupancy across operations; counts are
// re-derived from current rows on every call.
type QueueStore interface {
	// QueuedEntries returns the entries occupying a position for the
	// station (waiting or reserved), ordered by position.
	QueuedEntries(ctx context.Context, stationID string) ([]*models.QueueEntry, error)

	// ActiveEntry returns the user's non-terminal entry for the station,
	// or nil when none exists.
	ActiveEntry(ctx context.Context, stationID, userID string) (*models.QueueEntry, error)

	// LatestEntry returns the most recent entry for the pair regardless of
	// status, or nil. Terminal rows are reused on re-join.
	LatestEntry(ctx context.Context, stationID, userID string) (*models.QueueEntry, error)

	// ReservedEntries returns every reserved entry across all stations.
	// Used to re-arm timers after a restart.
	ReservedEntries(ctx context.Context) ([]*models.QueueEntry, error)

	EntryByID(ctx context.Context, id string) (*models.QueueEntry, error)
	CreateEntry(ctx context.Context, entry *models.QueueEntry) error
	UpdateEntry(ctx context.Context, entry *models.QueueEntry) error

	CreateSession(ctx context.Context, session *models.ChargingSession) error
	// OpenSession returns the user's open session at the station, or nil.
	OpenSession(ctx context.Context, stationID, userID string) (*models.ChargingSession, error)
	UpdateSession(ctx context.Context, session *models.ChargingSession) error
}

// CapacityOracle supplies a station's slowly-changing attributes. The
// coordinator consumes but does not own this data.
type CapacityOracle interface {
	// Capacity returns nil when the station is unknown.
	Capacity(ctx context.Context, stationID string) (*models.StationCapacity, error)
}

// Notifier delivers notification intents to an outside channel.
// Fire-and-forget: delivery failures must not affect coordinator state.
type Notifier interface {
	Emit(event models.QueueEvent)
}

// StationLocker serializes all read-then-write operations for a station.
type StationLocker interface {
	Acquire(ctx context.Context, stationID string) (func(), error)
}

// ReservationScheduler is the durable keyed timer registry. Arming an entry
// replaces any previously armed deadlines for it.
type ReservationScheduler interface {
	Arm(ctx context.Context, entryID string, expiry time.Time) error
	Disarm(ctx context.Context, entryID string) error
}
