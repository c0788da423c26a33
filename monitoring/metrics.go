package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_depth_total",
			Help: "Entries currently occupying a queue position per station",
		},
		[]string{"station_id"},
	)

	queueOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_operations_total",
			Help: "Total queue operations",
		},
		[]string{"operation", "station_id", "status"},
	)

	reservationsGranted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservations_granted_total",
			Help: "Reservations granted, by grant path",
		},
		[]string{"station_id", "source"},
	)

	reservationsExpired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservations_expired_total",
			Help: "Reservations cancelled by the expiry sweeper",
		},
		[]string{"station_id"},
	)

	sessionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "charging_session_duration_seconds",
			Help:    "Duration of completed charging sessions",
			Buckets: prometheus.ExponentialBuckets(60, 2, 10),
		},
		[]string{"station_id"},
	)
)

// Monitor records coordinator activity. All methods are safe on a nil
// receiver so tests can run without metrics wiring.
type Monitor struct{}

func NewMonitor() *Monitor {
	return &Monitor{}
}

func (m *Monitor) TrackOperation(operation, stationID, outcome string) {
	if m == nil {
		return
	}
	queueOperations.WithLabelValues(operation, stationID, outcome).Inc()
}

func (m *Monitor) SetQueueDepth(stationID string, depth int) {
	if m == nil {
		return
	}
	queueDepth.WithLabelValues(stationID).Set(float64(depth))
}

// TrackReservation counts a granted reservation; source is "promotion" or
// "manual".
func (m *Monitor) TrackReservation(stationID, source string) {
	if m == nil {
		return
	}
	reservationsGranted.WithLabelValues(stationID, source).Inc()
}

func (m *Monitor) TrackExpiry(stationID string) {
	if m == nil {
		return
	}
	reservationsExpired.WithLabelValues(stationID).Inc()
}

func (m *Monitor) TrackSessionDuration(stationID string, d time.Duration) {
	if m == nil {
		return
	}
	sessionDuration.WithLabelValues(stationID).Observe(d.Seconds())
}
