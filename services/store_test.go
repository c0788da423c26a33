package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"charge-queue/config"
	"charge-queue/models"
)

// memStore is an in-memory QueueStore used to exercise the coordinator's
// state machine without a database. It hands out copies so services must go
// through UpdateEntry/UpdateSession to persist changes, mirroring the real
// store.
type memStore struct {
	mu         sync.Mutex
	seq        int
	entryOrder []string
	entries    map[string]*models.QueueEntry
	sessions   map[string]*models.ChargingSession
}

func newMemStore() *memStore {
	return &memStore{
		entries:  make(map[string]*models.QueueEntry),
		sessions: make(map[string]*models.ChargingSession),
	}
}

func copyEntry(e *models.QueueEntry) *models.QueueEntry {
	cp := *e
	if e.ReservationExpiry != nil {
		t := *e.ReservationExpiry
		cp.ReservationExpiry = &t
	}
	return &cp
}

func copySession(s *models.ChargingSession) *models.ChargingSession {
	cp := *s
	if s.EndedAt != nil {
		t := *s.EndedAt
		cp.EndedAt = &t
	}
	return &cp
}

func (m *memStore) QueuedEntries(ctx context.Context, stationID string) ([]*models.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var queued []*models.QueueEntry
	for _, id := range m.entryOrder {
		e := m.entries[id]
		if e.StationID == stationID && e.IsQueued() {
			queued = append(queued, copyEntry(e))
		}
	}
	sort.Slice(queued, func(i, j int) bool { return queued[i].Position < queued[j].Position })
	return queued, nil
}

func (m *memStore) ActiveEntry(ctx context.Context, stationID, userID string) (*models.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.entryOrder {
		e := m.entries[id]
		if e.StationID == stationID && e.UserID == userID && e.IsActive() {
			return copyEntry(e), nil
		}
	}
	return nil, nil
}

func (m *memStore) LatestEntry(ctx context.Context, stationID, userID string) (*models.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.entryOrder) - 1; i >= 0; i-- {
		e := m.entries[m.entryOrder[i]]
		if e.StationID == stationID && e.UserID == userID {
			return copyEntry(e), nil
		}
	}
	return nil, nil
}

func (m *memStore) ReservedEntries(ctx context.Context) ([]*models.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var reserved []*models.QueueEntry
	for _, id := range m.entryOrder {
		e := m.entries[id]
		if e.Status == models.StatusReserved {
			reserved = append(reserved, copyEntry(e))
		}
	}
	return reserved, nil
}

func (m *memStore) EntryByID(ctx context.Context, id string) (*models.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return nil, nil
	}
	return copyEntry(e), nil
}

func (m *memStore) CreateEntry(ctx context.Context, entry *models.QueueEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	entry.ID = fmt.Sprintf("entry_%d", m.seq)
	entry.CreatedAt = time.Now()
	entry.UpdatedAt = entry.CreatedAt
	m.entries[entry.ID] = copyEntry(entry)
	m.entryOrder = append(m.entryOrder, entry.ID)
	return nil
}

func (m *memStore) UpdateEntry(ctx context.Context, entry *models.QueueEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[entry.ID]; !ok {
		return fmt.Errorf("entry %s not found", entry.ID)
	}
	entry.UpdatedAt = time.Now()
	m.entries[entry.ID] = copyEntry(entry)
	return nil
}

func (m *memStore) CreateSession(ctx context.Context, session *models.ChargingSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	session.ID = fmt.Sprintf("session_%d", m.seq)
	m.sessions[session.ID] = copySession(session)
	return nil
}

func (m *memStore) OpenSession(ctx context.Context, stationID, userID string) (*models.ChargingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.sessions {
		if s.StationID == stationID && s.UserID == userID && s.Open() {
			return copySession(s), nil
		}
	}
	return nil, nil
}

func (m *memStore) UpdateSession(ctx context.Context, session *models.ChargingSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[session.ID]; !ok {
		return fmt.Errorf("session %s not found", session.ID)
	}
	m.sessions[session.ID] = copySession(session)
	return nil
}

var _ QueueStore = (*memStore)(nil)

type fakeOracle struct {
	caps map[string]*models.StationCapacity
}

func (f *fakeOracle) Capacity(ctx context.Context, stationID string) (*models.StationCapacity, error) {
	return f.caps[stationID], nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []models.QueueEvent
}

func (f *fakeNotifier) Emit(event models.QueueEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeNotifier) eventsOfType(eventType string) []models.QueueEvent {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []models.QueueEvent
	for _, e := range f.events {
		if e.Type == eventType {
			matched = append(matched, e)
		}
	}
	return matched
}

type fakeLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{locks: make(map[string]*sync.Mutex)}
}

func (f *fakeLocker) Acquire(ctx context.Context, stationID string) (func(), error) {
	f.mu.Lock()
	lock, ok := f.locks[stationID]
	if !ok {
		lock = &sync.Mutex{}
		f.locks[stationID] = lock
	}
	f.mu.Unlock()

	lock.Lock()
	return lock.Unlock, nil
}

type fakeScheduler struct {
	mu       sync.Mutex
	armed    map[string]time.Time
	disarmed []string
	armErr   error
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{armed: make(map[string]time.Time)}
}

func (f *fakeScheduler) Arm(ctx context.Context, entryID string, expiry time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.armErr != nil {
		return f.armErr
	}
	f.armed[entryID] = expiry
	return nil
}

func (f *fakeScheduler) Disarm(ctx context.Context, entryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.armed, entryID)
	f.disarmed = append(f.disarmed, entryID)
	return nil
}

func (f *fakeScheduler) armedFor(entryID string) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	expiry, ok := f.armed[entryID]
	return expiry, ok
}

// coordinatorFixture wires a QueueService and SessionService against the
// in-memory store and fakes.
type coordinatorFixture struct {
	store    *memStore
	oracle   *fakeOracle
	notifier *fakeNotifier
	sched    *fakeScheduler
	queue    *QueueService
	sessions *SessionService
	cfg      *config.Config
}

func newCoordinatorFixture(caps map[string]*models.StationCapacity) *coordinatorFixture {
	cfg := &config.Config{
		FixedMinimumWaitMinutes: 5,
		DefaultReservationTTL:   15 * time.Minute,
		ReservationWarningLead:  5 * time.Minute,
	}

	store := newMemStore()
	oracle := &fakeOracle{caps: caps}
	notifier := &fakeNotifier{}
	locker := newFakeLocker()
	sched := newFakeScheduler()

	queue := NewQueueService(store, oracle, notifier, locker, sched, nil, cfg)
	sessions := NewSessionService(store, queue, notifier, locker, sched, nil)

	return &coordinatorFixture{
		store:    store,
		oracle:   oracle,
		notifier: notifier,
		sched:    sched,
		queue:    queue,
		sessions: sessions,
		cfg:      cfg,
	}
}

// assertDensePositions checks the core invariant: positions of queued entries
// are exactly 1..N with no gaps or duplicates.
func assertDensePositions(t *testing.T, store *memStore, stationID string) {
	t.Helper()

	queued, err := store.QueuedEntries(context.Background(), stationID)
	require.NoError(t, err)

	for i, e := range queued {
		require.Equalf(t, i+1, e.Position,
			"positions must be dense 1..N, got %d at index %d", e.Position, i)
	}
}

// assertSingleReservation checks that at most one entry per station is
// reserved.
func assertSingleReservation(t *testing.T, store *memStore, stationID string) {
	t.Helper()

	queued, err := store.QueuedEntries(context.Background(), stationID)
	require.NoError(t, err)

	reserved := 0
	for _, e := range queued {
		if e.Status == models.StatusReserved {
			reserved++
		}
	}
	require.LessOrEqual(t, reserved, 1, "at most one reserved entry per station")
}
