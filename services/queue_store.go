package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"

	"charge-queue/models"
)

const (
	entriesCollection  = "queue_entries"
	sessionsCollection = "charging_sessions"
)

// PBQueueStore persists queue entries and charging sessions in PocketBase
// collections. Entries are never deleted; terminal rows stay for history and
// are excluded from active queries by status.
type PBQueueStore struct {
	app core.App
}

func NewPBQueueStore(app core.App) *PBQueueStore {
	return &PBQueueStore{app: app}
}

func (s *PBQueueStore) QueuedEntries(ctx context.Context, stationID string) ([]*models.QueueEntry, error) {
	records := []*core.Record{}
	err := s.app.RecordQuery(entriesCollection).
		AndWhere(dbx.HashExp{"station": stationID}).
		AndWhere(dbx.In("status", models.StatusWaiting, models.StatusReserved)).
		OrderBy("position ASC").
		All(&records)
	if err != nil {
		return nil, err
	}

	entries := make([]*models.QueueEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, entryFromRecord(record))
	}
	return entries, nil
}

func (s *PBQueueStore) ActiveEntry(ctx context.Context, stationID, userID string) (*models.QueueEntry, error) {
	record := &core.Record{}
	err := s.app.RecordQuery(entriesCollection).
		AndWhere(dbx.HashExp{"station": stationID, "user": userID}).
		AndWhere(dbx.In("status", models.StatusWaiting, models.StatusReserved, models.StatusCharging)).
		Limit(1).
		One(record)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return entryFromRecord(record), nil
}

func (s *PBQueueStore) LatestEntry(ctx context.Context, stationID, userID string) (*models.QueueEntry, error) {
	record := &core.Record{}
	err := s.app.RecordQuery(entriesCollection).
		AndWhere(dbx.HashExp{"station": stationID, "user": userID}).
		OrderBy("created DESC").
		Limit(1).
		One(record)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return entryFromRecord(record), nil
}

func (s *PBQueueStore) ReservedEntries(ctx context.Context) ([]*models.QueueEntry, error) {
	records := []*core.Record{}
	err := s.app.RecordQuery(entriesCollection).
		AndWhere(dbx.HashExp{"status": models.StatusReserved}).
		All(&records)
	if err != nil {
		return nil, err
	}

	entries := make([]*models.QueueEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, entryFromRecord(record))
	}
	return entries, nil
}

func (s *PBQueueStore) EntryByID(ctx context.Context, id string) (*models.QueueEntry, error) {
	record, err := s.app.FindRecordById(entriesCollection, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return entryFromRecord(record), nil
}

func (s *PBQueueStore) CreateEntry(ctx context.Context, entry *models.QueueEntry) error {
	collection, err := s.app.FindCollectionByNameOrId(entriesCollection)
	if err != nil {
		return err
	}

	record := core.NewRecord(collection)
	applyEntry(record, entry)
	if err := s.app.Save(record); err != nil {
		return err
	}

	entry.ID = record.Id
	entry.CreatedAt = record.GetDateTime("created").Time()
	entry.UpdatedAt = record.GetDateTime("updated").Time()
	return nil
}

func (s *PBQueueStore) UpdateEntry(ctx context.Context, entry *models.QueueEntry) error {
	record, err := s.app.FindRecordById(entriesCollection, entry.ID)
	if err != nil {
		return err
	}

	applyEntry(record, entry)
	if err := s.app.Save(record); err != nil {
		return err
	}

	entry.UpdatedAt = record.GetDateTime("updated").Time()
	return nil
}

func (s *PBQueueStore) CreateSession(ctx context.Context, session *models.ChargingSession) error {
	collection, err := s.app.FindCollectionByNameOrId(sessionsCollection)
	if err != nil {
		return err
	}

	record := core.NewRecord(collection)
	applySession(record, session)
	if err := s.app.Save(record); err != nil {
		return err
	}

	session.ID = record.Id
	return nil
}

func (s *PBQueueStore) OpenSession(ctx context.Context, stationID, userID string) (*models.ChargingSession, error) {
	record := &core.Record{}
	err := s.app.RecordQuery(sessionsCollection).
		AndWhere(dbx.HashExp{"station": stationID, "user": userID, "ended_at": ""}).
		OrderBy("started_at DESC").
		Limit(1).
		One(record)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return sessionFromRecord(record), nil
}

func (s *PBQueueStore) UpdateSession(ctx context.Context, session *models.ChargingSession) error {
	record, err := s.app.FindRecordById(sessionsCollection, session.ID)
	if err != nil {
		return err
	}

	applySession(record, session)
	return s.app.Save(record)
}

func entryFromRecord(record *core.Record) *models.QueueEntry {
	entry := &models.QueueEntry{
		ID:                   record.Id,
		UserID:               record.GetString("user"),
		StationID:            record.GetString("station"),
		Position:             record.GetInt("position"),
		Status:               record.GetString("status"),
		EstimatedWaitMinutes: record.GetInt("estimated_wait_minutes"),
		CreatedAt:            record.GetDateTime("created").Time(),
		UpdatedAt:            record.GetDateTime("updated").Time(),
	}

	if expiry := record.GetDateTime("reservation_expiry"); !expiry.IsZero() {
		t := expiry.Time()
		entry.ReservationExpiry = &t
	}

	return entry
}

func applyEntry(record *core.Record, entry *models.QueueEntry) {
	record.Set("user", entry.UserID)
	record.Set("station", entry.StationID)
	record.Set("position", entry.Position)
	record.Set("status", entry.Status)
	record.Set("estimated_wait_minutes", entry.EstimatedWaitMinutes)

	if entry.ReservationExpiry != nil {
		record.Set("reservation_expiry", entry.ReservationExpiry.UTC())
	} else {
		record.Set("reservation_expiry", "")
	}
}

func sessionFromRecord(record *core.Record) *models.ChargingSession {
	session := &models.ChargingSession{
		ID:           record.Id,
		QueueEntryID: record.GetString("queue_entry"),
		UserID:       record.GetString("user"),
		StationID:    record.GetString("station"),
		StartedAt:    record.GetDateTime("started_at").Time(),
		MeterStart:   decimalFromString(record.GetString("meter_start")),
		MeterStop:    decimalFromString(record.GetString("meter_stop")),
	}

	if endedAt := record.GetDateTime("ended_at"); !endedAt.IsZero() {
		t := endedAt.Time()
		session.EndedAt = &t
	}

	return session
}

func applySession(record *core.Record, session *models.ChargingSession) {
	record.Set("queue_entry", session.QueueEntryID)
	record.Set("user", session.UserID)
	record.Set("station", session.StationID)
	record.Set("started_at", session.StartedAt.UTC())
	record.Set("meter_start", session.MeterStart.String())
	record.Set("meter_stop", session.MeterStop.String())

	if session.EndedAt != nil {
		record.Set("ended_at", session.EndedAt.UTC())
	} else {
		record.Set("ended_at", "")
	}
}

// Meter readings are opaque pass-through values; an unparsable or empty
// stored value degrades to zero rather than failing the read.
func decimalFromString(raw string) decimal.Decimal {
	if raw == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}

var _ QueueStore = (*PBQueueStore)(nil)
