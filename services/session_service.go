package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"charge-queue/internal/status"
	"charge-queue/models"
	"charge-queue/monitoring"
)

// SessionService gates charging sessions against the holder's queue state:
// only a waiting or reserved entry may start one.
type SessionService struct {
	store   QueueStore
	queue   *QueueService
	notify  Notifier
	locks   StationLocker
	sched   ReservationScheduler
	monitor *monitoring.Monitor

	now func() time.Time
}

func NewSessionService(
	store QueueStore,
	queue *QueueService,
	notifier Notifier,
	locks StationLocker,
	sched ReservationScheduler,
	monitor *monitoring.Monitor,
) *SessionService {
	return &SessionService{
		store:   store,
		queue:   queue,
		notify:  notifier,
		locks:   locks,
		sched:   sched,
		monitor: monitor,
		now:     time.Now,
	}
}

// StartSession moves the user's entry into charging and opens a session. The
// entry releases its queue position: a session holder has left the line, so
// the next waiting party is promoted immediately. The meter reading is stored
// untouched.
func (s *SessionService) StartSession(ctx context.Context, stationID, userID string, meterStart decimal.Decimal) (*models.ChargingSession, error) {
	release, err := s.locks.Acquire(ctx, stationID)
	if err != nil {
		return nil, err
	}
	defer release()

	entry, err := s.store.ActiveEntry(ctx, stationID, userID)
	if err != nil {
		return nil, err
	}
	if entry == nil || !entry.IsQueued() {
		s.monitor.TrackOperation("start_session", stationID, "rejected")
		return nil, status.ErrNoActiveReservation
	}

	if err := s.sched.Disarm(ctx, entry.ID); err != nil {
		slog.Warn("failed to disarm reservation timers", "entry", entry.ID, "error", err)
	}

	vacated := entry.Position
	entry.Status = models.StatusCharging
	entry.Position = 0
	entry.EstimatedWaitMinutes = 0
	entry.ReservationExpiry = nil
	if err := s.store.UpdateEntry(ctx, entry); err != nil {
		return nil, err
	}

	session := &models.ChargingSession{
		QueueEntryID: entry.ID,
		UserID:       userID,
		StationID:    stationID,
		StartedAt:    s.now(),
		MeterStart:   meterStart,
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	if err := s.queue.departed(ctx, stationID, vacated); err != nil {
		return nil, err
	}

	s.monitor.TrackOperation("start_session", stationID, "success")
	s.notify.Emit(models.QueueEvent{
		Type:      models.EventSessionStarted,
		UserID:    userID,
		StationID: stationID,
		Payload:   map[string]any{"session_id": session.ID},
	})

	return session, nil
}

// StopSession closes the user's open session and completes the owning entry.
// The entry stopped occupying a position when charging began, so there is
// nothing left to compact or promote.
func (s *SessionService) StopSession(ctx context.Context, stationID, userID string, meterStop decimal.Decimal) (*models.ChargingSession, error) {
	release, err := s.locks.Acquire(ctx, stationID)
	if err != nil {
		return nil, err
	}
	defer release()

	session, err := s.store.OpenSession(ctx, stationID, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, status.ErrNotFound
	}

	endedAt := s.now()
	session.EndedAt = &endedAt
	session.MeterStop = meterStop
	if err := s.store.UpdateSession(ctx, session); err != nil {
		return nil, err
	}

	entry, err := s.store.EntryByID(ctx, session.QueueEntryID)
	if err != nil {
		return nil, err
	}
	if entry != nil && entry.Status == models.StatusCharging {
		entry.Status = models.StatusCompleted
		if err := s.store.UpdateEntry(ctx, entry); err != nil {
			return nil, err
		}
	} else if entry != nil {
		// Leave rejects charging entries, so an open session owned by a
		// non-charging entry means the store was mutated out of band.
		slog.Warn("open session owned by a non-charging entry",
			"session", session.ID, "entry", entry.ID, "status", entry.Status)
	}

	s.monitor.TrackOperation("stop_session", stationID, "success")
	s.monitor.TrackSessionDuration(stationID, endedAt.Sub(session.StartedAt))
	s.notify.Emit(models.QueueEvent{
		Type:      models.EventSessionCompleted,
		UserID:    userID,
		StationID: stationID,
		Payload: map[string]any{
			"started_at": session.StartedAt.UTC().Format(time.RFC3339),
			"ended_at":   endedAt.UTC().Format(time.RFC3339),
		},
	})

	return session, nil
}
