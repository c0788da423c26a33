package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"charge-queue/config"
	"charge-queue/internal/status"
	"charge-queue/models"
	"charge-queue/monitoring"
)

// QueueService is the queue & reservation coordinator. Every operation that
// reads then writes queue occupancy runs under the station's lock, so
// capacity checks, position allocation and state writes are atomic per
// station.
type QueueService struct {
	store   QueueStore
	oracle  CapacityOracle
	notify  Notifier
	locks   StationLocker
	sched   ReservationScheduler
	monitor *monitoring.Monitor
	cfg     *config.Config

	now func() time.Time
}

func NewQueueService(
	store QueueStore,
	oracle CapacityOracle,
	notifier Notifier,
	locks StationLocker,
	sched ReservationScheduler,
	monitor *monitoring.Monitor,
	cfg *config.Config,
) *QueueService {
	return &QueueService{
		store:   store,
		oracle:  oracle,
		notify:  notifier,
		locks:   locks,
		sched:   sched,
		monitor: monitor,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Join places the user at the back of the station's queue. Re-joining while
// already holding an active entry returns that entry unchanged. A terminal
// row for the same pair is reused instead of inserting a new one.
func (s *QueueService) Join(ctx context.Context, stationID, userID string) (*models.QueueEntry, error) {
	capacity, err := s.oracle.Capacity(ctx, stationID)
	if err != nil {
		return nil, fmt.Errorf("query station capacity: %w", err)
	}
	if capacity == nil || !capacity.Available() {
		s.monitor.TrackOperation("join", stationID, "unavailable")
		return nil, status.ErrStationUnavailable
	}

	release, err := s.locks.Acquire(ctx, stationID)
	if err != nil {
		return nil, err
	}
	defer release()

	existing, err := s.store.ActiveEntry(ctx, stationID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	queued, err := s.store.QueuedEntries(ctx, stationID)
	if err != nil {
		return nil, err
	}
	if len(queued) >= capacity.MaxQueueLength {
		s.monitor.TrackOperation("join", stationID, "queue_full")
		return nil, status.ErrQueueFull
	}

	position := NextPosition(queued)
	wait := EstimateWait(position, capacity.AvgChargingMinutes, s.cfg.FixedMinimumWaitMinutes)

	entry, err := s.store.LatestEntry(ctx, stationID, userID)
	if err != nil {
		return nil, err
	}

	if entry != nil {
		entry.Status = models.StatusWaiting
		entry.Position = position
		entry.EstimatedWaitMinutes = wait
		entry.ReservationExpiry = nil
		if err := s.store.UpdateEntry(ctx, entry); err != nil {
			return nil, err
		}
	} else {
		entry = &models.QueueEntry{
			UserID:               userID,
			StationID:            stationID,
			Position:             position,
			Status:               models.StatusWaiting,
			EstimatedWaitMinutes: wait,
		}
		if err := s.store.CreateEntry(ctx, entry); err != nil {
			return nil, err
		}
	}

	s.monitor.TrackOperation("join", stationID, "success")
	s.monitor.SetQueueDepth(stationID, len(queued)+1)
	s.notify.Emit(models.QueueEvent{
		Type:      models.EventJoined,
		UserID:    userID,
		StationID: stationID,
		Payload: map[string]any{
			"position":               entry.Position,
			"estimated_wait_minutes": entry.EstimatedWaitMinutes,
		},
	})

	return entry, nil
}

// Leave removes the user's active entry from the queue. A reason of
// "completed" closes the entry as completed, anything else cancels it.
func (s *QueueService) Leave(ctx context.Context, stationID, userID, reason string) error {
	release, err := s.locks.Acquire(ctx, stationID)
	if err != nil {
		return err
	}
	defer release()

	entry, err := s.store.ActiveEntry(ctx, stationID, userID)
	if err != nil {
		return err
	}
	if entry == nil {
		return status.ErrNotFound
	}
	if entry.Status == models.StatusCharging {
		// A charging entry owns an open session; cancelling it here would
		// orphan that session. The session must be stopped instead.
		s.monitor.TrackOperation("leave", stationID, "rejected")
		return status.ErrSessionInProgress
	}

	if entry.Status == models.StatusReserved {
		if err := s.sched.Disarm(ctx, entry.ID); err != nil {
			slog.Warn("failed to disarm reservation timers", "entry", entry.ID, "error", err)
		}
	}

	vacated := entry.Position
	entry.Status = models.StatusCancelled
	if reason == "completed" {
		entry.Status = models.StatusCompleted
	}
	entry.Position = 0
	entry.EstimatedWaitMinutes = 0
	entry.ReservationExpiry = nil
	if err := s.store.UpdateEntry(ctx, entry); err != nil {
		return err
	}

	if err := s.departed(ctx, stationID, vacated); err != nil {
		return err
	}

	s.monitor.TrackOperation("leave", stationID, "success")
	s.notify.Emit(models.QueueEvent{
		Type:      models.EventLeft,
		UserID:    userID,
		StationID: stationID,
		Payload:   map[string]any{"reason": reason},
	})

	return nil
}

// Reserve is the manual reservation path for a user already at the head of
// the queue, e.g. immediate booking at a free station right after joining.
// Returns false when the caller is not an eligible head.
func (s *QueueService) Reserve(ctx context.Context, stationID, userID string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = s.cfg.DefaultReservationTTL
	}

	release, err := s.locks.Acquire(ctx, stationID)
	if err != nil {
		return false, err
	}
	defer release()

	entry, err := s.store.ActiveEntry(ctx, stationID, userID)
	if err != nil {
		return false, err
	}
	if entry == nil {
		return false, status.ErrNotFound
	}
	if entry.Position != 1 || entry.Status != models.StatusWaiting {
		return false, nil
	}

	if err := s.grantReservation(ctx, entry, ttl, "manual"); err != nil {
		return false, err
	}

	s.monitor.TrackOperation("reserve", stationID, "success")
	return true, nil
}

// Status returns the user's active entry for the station, or nil.
func (s *QueueService) Status(ctx context.Context, stationID, userID string) (*models.QueueEntry, error) {
	return s.store.ActiveEntry(ctx, stationID, userID)
}

// ExpireReservation is invoked by the scheduler when an entry's reservation
// deadline passes. Firing on an entry that already left the reserved state is
// a no-op, which makes duplicate firings harmless.
func (s *QueueService) ExpireReservation(ctx context.Context, entryID string) error {
	entry, err := s.store.EntryByID(ctx, entryID)
	if err != nil {
		return err
	}
	if entry == nil {
		return nil
	}

	release, err := s.locks.Acquire(ctx, entry.StationID)
	if err != nil {
		return err
	}
	defer release()

	// Re-read under the lock; a session start may have raced the sweep.
	entry, err = s.store.EntryByID(ctx, entryID)
	if err != nil {
		return err
	}
	if entry == nil || entry.Status != models.StatusReserved {
		return nil
	}
	if entry.ReservationExpiry != nil && entry.ReservationExpiry.After(s.now()) {
		// Re-armed with a later deadline since the sweep read it.
		return nil
	}

	vacated := entry.Position
	entry.Status = models.StatusCancelled
	entry.Position = 0
	entry.EstimatedWaitMinutes = 0
	entry.ReservationExpiry = nil
	if err := s.store.UpdateEntry(ctx, entry); err != nil {
		return err
	}

	if err := s.departed(ctx, entry.StationID, vacated); err != nil {
		return err
	}

	s.monitor.TrackExpiry(entry.StationID)
	s.monitor.TrackOperation("expire", entry.StationID, "success")
	s.notify.Emit(models.QueueEvent{
		Type:      models.EventExpired,
		UserID:    entry.UserID,
		StationID: entry.StationID,
	})

	slog.Info("reservation expired", "entry", entry.ID, "station", entry.StationID, "user", entry.UserID)
	return nil
}

// WarnReservation emits a pre-expiry warning if the entry is still reserved.
func (s *QueueService) WarnReservation(ctx context.Context, entryID string) error {
	entry, err := s.store.EntryByID(ctx, entryID)
	if err != nil {
		return err
	}
	if entry == nil || entry.Status != models.StatusReserved || entry.ReservationExpiry == nil {
		return nil
	}

	minutesLeft := int(entry.ReservationExpiry.Sub(s.now()).Minutes())
	if minutesLeft < 0 {
		minutesLeft = 0
	}

	s.notify.Emit(models.QueueEvent{
		Type:      models.EventReservationWarning,
		UserID:    entry.UserID,
		StationID: entry.StationID,
		Payload: map[string]any{
			"reservation_expiry": entry.ReservationExpiry.UTC().Format(time.RFC3339),
			"minutes_left":       minutesLeft,
		},
	})
	return nil
}

// departed re-packs positions after the entry holding the vacated position
// left the line, and promotes the new head when position 1 was vacated. Must
// run under the station lock.
func (s *QueueService) departed(ctx context.Context, stationID string, vacated int) error {
	if vacated == 0 {
		return nil
	}

	capacity, err := s.oracle.Capacity(ctx, stationID)
	if err != nil {
		return fmt.Errorf("query station capacity: %w", err)
	}
	avgMinutes := 0
	if capacity != nil {
		avgMinutes = capacity.AvgChargingMinutes
	}

	queued, err := s.store.QueuedEntries(ctx, stationID)
	if err != nil {
		return err
	}

	for _, e := range queued {
		if e.Position <= vacated {
			continue
		}
		e.Position--
		e.EstimatedWaitMinutes = EstimateWait(e.Position, avgMinutes, s.cfg.FixedMinimumWaitMinutes)
		if err := s.store.UpdateEntry(ctx, e); err != nil {
			return err
		}
	}

	s.monitor.SetQueueDepth(stationID, len(queued))

	if vacated == 1 {
		return s.promoteHead(ctx, stationID, queued)
	}
	return nil
}

// promoteHead grants a reservation to the post-compaction position-1 entry if
// it is still waiting. At most one entry per station is ever reserved because
// only the head is ever promoted.
func (s *QueueService) promoteHead(ctx context.Context, stationID string, queued []*models.QueueEntry) error {
	for _, e := range queued {
		if e.Position != 1 {
			continue
		}
		if e.Status != models.StatusWaiting {
			return nil
		}
		return s.grantReservation(ctx, e, s.cfg.DefaultReservationTTL, "promotion")
	}
	return nil
}

func (s *QueueService) grantReservation(ctx context.Context, entry *models.QueueEntry, ttl time.Duration, source string) error {
	// Arm before the status write so a reserved row never exists without an
	// armed deadline. A deadline armed for a write that then fails fires on a
	// non-reserved entry, which the expiry handler treats as a no-op, and the
	// sweep clears it.
	expiry := s.now().Add(ttl)
	if err := s.sched.Arm(ctx, entry.ID, expiry); err != nil {
		return fmt.Errorf("arm reservation timers: %w", err)
	}

	entry.Status = models.StatusReserved
	entry.ReservationExpiry = &expiry
	if err := s.store.UpdateEntry(ctx, entry); err != nil {
		if derr := s.sched.Disarm(ctx, entry.ID); derr != nil {
			slog.Warn("failed to disarm after reservation write failure", "entry", entry.ID, "error", derr)
		}
		return err
	}

	s.monitor.TrackReservation(entry.StationID, source)

	if source == "promotion" {
		s.notify.Emit(models.QueueEvent{
			Type:      models.EventPromoted,
			UserID:    entry.UserID,
			StationID: entry.StationID,
			Payload: map[string]any{
				"position":           1,
				"reservation_expiry": expiry.UTC().Format(time.RFC3339),
				"ttl_minutes":        int(ttl.Minutes()),
			},
		})
	}

	slog.Info("reservation granted",
		"entry", entry.ID,
		"station", entry.StationID,
		"user", entry.UserID,
		"expiry", expiry.UTC().Format(time.RFC3339),
		"source", source,
	)
	return nil
}
