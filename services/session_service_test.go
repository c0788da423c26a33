package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"charge-queue/internal/status"
	"charge-queue/models"
)

func TestStartSession_FromReservedHead(t *testing.T) {
	fix := newCoordinatorFixture(twoSlotStation())
	ctx := context.Background()

	entry1, err := fix.queue.Join(ctx, testStation, "user1")
	require.NoError(t, err)
	_, err = fix.queue.Join(ctx, testStation, "user2")
	require.NoError(t, err)

	reserved, err := fix.queue.Reserve(ctx, testStation, "user1", 15*time.Minute)
	require.NoError(t, err)
	require.True(t, reserved)

	session, err := fix.sessions.StartSession(ctx, testStation, "user1", decimal.NewFromFloat(1204.5))
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, entry1.ID, session.QueueEntryID)
	assert.True(t, session.MeterStart.Equal(decimal.NewFromFloat(1204.5)))
	assert.True(t, session.Open())

	// The holder's timers are disarmed and the entry no longer holds a slot.
	_, armed := fix.sched.armedFor(entry1.ID)
	assert.False(t, armed)

	charging, err := fix.store.EntryByID(ctx, entry1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCharging, charging.Status)
	assert.Equal(t, 0, charging.Position)
	assert.Nil(t, charging.ReservationExpiry)

	// The vacated head slot promotes user2.
	next, err := fix.store.ActiveEntry(ctx, testStation, "user2")
	require.NoError(t, err)
	assert.Equal(t, 1, next.Position)
	assert.Equal(t, models.StatusReserved, next.Status)

	assertDensePositions(t, fix.store, testStation)
	assertSingleReservation(t, fix.store, testStation)
	assert.Len(t, fix.notifier.eventsOfType(models.EventSessionStarted), 1)
}

func TestStartSession_FromWaitingHead(t *testing.T) {
	fix := newCoordinatorFixture(twoSlotStation())
	ctx := context.Background()

	_, err := fix.queue.Join(ctx, testStation, "user1")
	require.NoError(t, err)

	// No reservation required: a waiting head may plug in directly.
	session, err := fix.sessions.StartSession(ctx, testStation, "user1", decimal.Zero)
	require.NoError(t, err)
	assert.True(t, session.Open())
}

func TestStartSession_RequiresQueuedEntry(t *testing.T) {
	fix := newCoordinatorFixture(twoSlotStation())
	ctx := context.Background()

	_, err := fix.sessions.StartSession(ctx, testStation, "ghost", decimal.Zero)
	assert.ErrorIs(t, err, status.ErrNoActiveReservation)

	_, err = fix.queue.Join(ctx, testStation, "user1")
	require.NoError(t, err)
	_, err = fix.sessions.StartSession(ctx, testStation, "user1", decimal.Zero)
	require.NoError(t, err)

	// Already charging: the entry is no longer queued.
	_, err = fix.sessions.StartSession(ctx, testStation, "user1", decimal.Zero)
	assert.ErrorIs(t, err, status.ErrNoActiveReservation)
}

// A charging entry must not count toward the queue length cap.
func TestStartSession_ChargingDoesNotOccupyQueue(t *testing.T) {
	caps := twoSlotStation()
	caps[testStation].MaxQueueLength = 1
	fix := newCoordinatorFixture(caps)
	ctx := context.Background()

	_, err := fix.queue.Join(ctx, testStation, "user1")
	require.NoError(t, err)

	// Queue is full while user1 waits.
	_, err = fix.queue.Join(ctx, testStation, "user2")
	require.ErrorIs(t, err, status.ErrQueueFull)

	_, err = fix.sessions.StartSession(ctx, testStation, "user1", decimal.Zero)
	require.NoError(t, err)

	// user1 charging frees the single slot for user2.
	entry2, err := fix.queue.Join(ctx, testStation, "user2")
	require.NoError(t, err)
	assert.Equal(t, 1, entry2.Position)
}

func TestStopSession_ClosesSessionAndCompletesEntry(t *testing.T) {
	fix := newCoordinatorFixture(twoSlotStation())
	ctx := context.Background()

	entry1, err := fix.queue.Join(ctx, testStation, "user1")
	require.NoError(t, err)
	started, err := fix.sessions.StartSession(ctx, testStation, "user1", decimal.NewFromInt(100))
	require.NoError(t, err)

	stopped, err := fix.sessions.StopSession(ctx, testStation, "user1", decimal.NewFromInt(142))
	require.NoError(t, err)
	assert.Equal(t, started.ID, stopped.ID)
	require.NotNil(t, stopped.EndedAt)
	assert.True(t, stopped.MeterStop.Equal(decimal.NewFromInt(142)))
	assert.False(t, stopped.Open())

	entry, err := fix.store.EntryByID(ctx, entry1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, entry.Status)

	assert.Len(t, fix.notifier.eventsOfType(models.EventSessionCompleted), 1)
}

// Stopping frees no queue position, so nobody is promoted by it.
func TestStopSession_DoesNotPromote(t *testing.T) {
	fix := newCoordinatorFixture(twoSlotStation())
	ctx := context.Background()

	_, err := fix.queue.Join(ctx, testStation, "user1")
	require.NoError(t, err)
	_, err = fix.sessions.StartSession(ctx, testStation, "user1", decimal.Zero)
	require.NoError(t, err)

	// user2 joins the line while user1 charges.
	_, err = fix.queue.Join(ctx, testStation, "user2")
	require.NoError(t, err)
	promotedBefore := len(fix.notifier.eventsOfType(models.EventPromoted))

	_, err = fix.sessions.StopSession(ctx, testStation, "user1", decimal.Zero)
	require.NoError(t, err)

	assert.Len(t, fix.notifier.eventsOfType(models.EventPromoted), promotedBefore)
	assertDensePositions(t, fix.store, testStation)
}

// An open session owned by a non-charging entry is a store mutated out of
// band; the stop still closes the session and leaves the entry alone.
func TestStopSession_LeavesNonChargingEntryUntouched(t *testing.T) {
	fix := newCoordinatorFixture(twoSlotStation())
	ctx := context.Background()

	entry1, err := fix.queue.Join(ctx, testStation, "user1")
	require.NoError(t, err)
	_, err = fix.sessions.StartSession(ctx, testStation, "user1", decimal.Zero)
	require.NoError(t, err)

	entry, err := fix.store.EntryByID(ctx, entry1.ID)
	require.NoError(t, err)
	entry.Status = models.StatusCancelled
	require.NoError(t, fix.store.UpdateEntry(ctx, entry))

	stopped, err := fix.sessions.StopSession(ctx, testStation, "user1", decimal.Zero)
	require.NoError(t, err)
	assert.False(t, stopped.Open())

	entry, err = fix.store.EntryByID(ctx, entry1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, entry.Status)
}

func TestStopSession_NoOpenSession(t *testing.T) {
	fix := newCoordinatorFixture(twoSlotStation())

	_, err := fix.sessions.StopSession(context.Background(), testStation, "user1", decimal.Zero)
	assert.ErrorIs(t, err, status.ErrNotFound)
}

// A sweep firing after the holder plugged in must not cancel anything.
func TestExpireReservation_NoOpAfterSessionStart(t *testing.T) {
	fix := newCoordinatorFixture(twoSlotStation())
	ctx := context.Background()

	entry1, err := fix.queue.Join(ctx, testStation, "user1")
	require.NoError(t, err)
	reserved, err := fix.queue.Reserve(ctx, testStation, "user1", 15*time.Minute)
	require.NoError(t, err)
	require.True(t, reserved)

	_, err = fix.sessions.StartSession(ctx, testStation, "user1", decimal.Zero)
	require.NoError(t, err)

	fix.queue.now = func() time.Time { return time.Now().Add(16 * time.Minute) }
	require.NoError(t, fix.queue.ExpireReservation(ctx, entry1.ID))

	entry, err := fix.store.EntryByID(ctx, entry1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCharging, entry.Status)
	assert.Empty(t, fix.notifier.eventsOfType(models.EventExpired))
}
