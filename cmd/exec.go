package cmd

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go"

	"charge-queue/config"
	"charge-queue/handlers"
	_ "charge-queue/migrations"
	"charge-queue/monitoring"
	"charge-queue/security"
	"charge-queue/services"
	"charge-queue/utils"
)

func Start() error {
	app := pocketbase.New()

	cfg := config.LoadConfig()

	redisClient, err := utils.NewRedisClient(cfg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	pnConfig := pubnub.NewConfig()
	pnConfig.PublishKey = cfg.PubNubPublishKey
	pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
	pnConfig.SecretKey = cfg.PubNubSecretKey
	pn := pubnub.NewPubNub(pnConfig)

	var monitor *monitoring.Monitor
	if cfg.EnableMetrics {
		monitor = monitoring.NewMonitor()
	}

	notifier := services.NewPubNubNotifier(pn)
	locker := utils.NewStationLock(redisClient, cfg.StationLockTTL, cfg.StationLockWait, cfg.StationLockRetryDelay)
	timers := services.NewReservationTimerService(redisClient, cfg)

	store := services.NewPBQueueStore(app)
	oracle := services.NewPBStationService(app)
	queueService := services.NewQueueService(store, oracle, notifier, locker, timers, monitor, cfg)
	sessionService := services.NewSessionService(store, queueService, notifier, locker, timers, monitor)

	timers.SetHandlers(queueService.ExpireReservation, queueService.WarnReservation)

	queueHandler := handlers.NewQueueHandler(app, queueService)
	sessionHandler := handlers.NewSessionHandler(app, sessionService)
	commandHandler := handlers.NewCommandHandler(app, queueService, sessionService)
	rateLimiter := security.NewRateLimiter(redisClient, cfg.JoinRateLimit, cfg.JoinRateWindow)

	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		// The store is only usable once the app has bootstrapped, so
		// timer recovery and the sweeper start here.
		restoreReservations(store, timers)
		timers.Start()

		if cfg.EnableMetrics {
			go serveMetrics(cfg.MetricsPort)
		}

		// Queue endpoints
		e.Router.POST("/api/queue/join", queueHandler.Join).BindFunc(rateLimiter.Middleware())
		e.Router.POST("/api/queue/leave", queueHandler.Leave)
		e.Router.POST("/api/queue/reserve", queueHandler.Reserve)
		e.Router.GET("/api/queue/status", queueHandler.Status)

		// Chat-button boundary
		e.Router.POST("/api/queue/action", commandHandler.Dispatch).BindFunc(rateLimiter.Middleware())

		// Session endpoints
		e.Router.POST("/api/sessions/start", sessionHandler.Start)
		e.Router.POST("/api/sessions/stop", sessionHandler.Stop)

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(http.StatusOK, map[string]string{"status": "healthy"})
		})

		slog.Info("server routes registered")

		return e.Next()
	})

	app.OnTerminate().BindFunc(func(e *core.TerminateEvent) error {
		timers.Shutdown()
		return e.Next()
	})

	return app.Start()
}

// restoreReservations re-arms the deadline registry from reserved rows so a
// restart never loses an armed reservation. Deadlines already in the past are
// processed by the first sweep.
func restoreReservations(store services.QueueStore, timers *services.ReservationTimerService) {
	ctx := context.Background()

	entries, err := store.ReservedEntries(ctx)
	if err != nil {
		slog.Error("failed to load reserved entries for timer recovery", "error", err)
		return
	}

	restored := 0
	for _, entry := range entries {
		if entry.ReservationExpiry == nil {
			continue
		}
		if err := timers.Arm(ctx, entry.ID, *entry.ReservationExpiry); err != nil {
			slog.Error("failed to re-arm reservation timers", "entry", entry.ID, "error", err)
			continue
		}
		restored++
	}

	if restored > 0 {
		slog.Info("re-armed reservation timers", "count", restored)
	}
}

func serveMetrics(port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	slog.Info("metrics server listening", "port", port)
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		slog.Error("metrics server stopped", "error", err)
	}
}
