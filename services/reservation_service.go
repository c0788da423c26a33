package services

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"charge-queue/config"
)

// Deadline registry keys. Members are entry ids, scores are unix deadlines.
// ZADD overwrites the score for an existing member, which is what makes
// re-arming an entry's timers replace the previous pair.
const (
	expiryDeadlinesKey  = "reservation:deadlines"
	warningDeadlinesKey = "reservation:warnings"
)

// ReservationTimerService keeps reservation deadlines in Redis and sweeps
// them with a single background loop, so armed timers survive a process
// restart and no per-entry goroutines pile up. A handler error leaves the
// deadline in the registry; the next sweep retries it.
type ReservationTimerService struct {
	redis *redis.Client
	cfg   *config.Config

	expire func(ctx context.Context, entryID string) error
	warn   func(ctx context.Context, entryID string) error

	stopChan chan struct{}
	wg       sync.WaitGroup

	now func() time.Time
}

func NewReservationTimerService(redisClient *redis.Client, cfg *config.Config) *ReservationTimerService {
	return &ReservationTimerService{
		redis:    redisClient,
		cfg:      cfg,
		stopChan: make(chan struct{}),
		now:      time.Now,
	}
}

// SetHandlers wires the expiry and warning callbacks. Must be called before
// Start.
func (s *ReservationTimerService) SetHandlers(expire, warn func(ctx context.Context, entryID string) error) {
	s.expire = expire
	s.warn = warn
}

// Arm schedules the expiry and pre-expiry warning for an entry, replacing any
// previously armed deadlines for it.
func (s *ReservationTimerService) Arm(ctx context.Context, entryID string, expiry time.Time) error {
	warnAt := expiry.Add(-s.cfg.ReservationWarningLead)

	if err := s.redis.ZAdd(ctx, expiryDeadlinesKey, redis.Z{
		Score:  float64(expiry.Unix()),
		Member: entryID,
	}).Err(); err != nil {
		return err
	}

	return s.redis.ZAdd(ctx, warningDeadlinesKey, redis.Z{
		Score:  float64(warnAt.Unix()),
		Member: entryID,
	}).Err()
}

// Disarm removes both deadlines for an entry. Removing an entry that is not
// armed is a no-op.
func (s *ReservationTimerService) Disarm(ctx context.Context, entryID string) error {
	if err := s.redis.ZRem(ctx, expiryDeadlinesKey, entryID).Err(); err != nil {
		return err
	}
	return s.redis.ZRem(ctx, warningDeadlinesKey, entryID).Err()
}

// Start launches the sweeper loop.
func (s *ReservationTimerService) Start() {
	s.wg.Add(1)
	go s.sweeper()
	slog.Info("reservation sweeper started", "interval", s.cfg.SweepInterval)
}

func (s *ReservationTimerService) sweeper() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.SweepOnce(context.Background())
		case <-s.stopChan:
			slog.Info("reservation sweeper stopping")
			return
		}
	}
}

// SweepOnce fires every due warning and expiry. Exported so a boot-time sweep
// can process deadlines that passed while the process was down.
func (s *ReservationTimerService) SweepOnce(ctx context.Context) {
	now := strconv.FormatInt(s.now().Unix(), 10)

	s.fireDue(ctx, warningDeadlinesKey, now, s.warn)
	s.fireDue(ctx, expiryDeadlinesKey, now, s.expire)
}

func (s *ReservationTimerService) fireDue(ctx context.Context, key, max string, handler func(ctx context.Context, entryID string) error) {
	if handler == nil {
		return
	}

	due, err := s.redis.ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: "-inf", Max: max}).Result()
	if err != nil {
		slog.Error("failed to read deadline registry", "key", key, "error", err)
		return
	}

	for _, entryID := range due {
		if err := handler(ctx, entryID); err != nil {
			// Keep the deadline; a dropped expiry would hold the slot
			// forever. The next sweep retries.
			slog.Error("deadline handler failed, will retry", "key", key, "entry", entryID, "error", err)
			continue
		}
		if err := s.redis.ZRem(ctx, key, entryID).Err(); err != nil {
			slog.Warn("failed to clear fired deadline", "key", key, "entry", entryID, "error", err)
		}
	}
}

// Shutdown stops the sweeper and waits for it to drain.
func (s *ReservationTimerService) Shutdown() {
	close(s.stopChan)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("reservation sweeper stopped")
	case <-time.After(10 * time.Second):
		slog.Warn("timeout waiting for reservation sweeper to stop")
	}
}
