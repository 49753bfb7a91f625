package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	validationOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkin_validations_total",
			Help: "Total ticket validations by outcome",
		},
		[]string{"event_id", "outcome"},
	)

	validationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "checkin_validation_duration_seconds",
			Help:    "Duration of one validate call including store I/O",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		},
	)

	activeScanSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "checkin_scan_sessions_active",
			Help: "Currently running camera scan sessions",
		},
	)

	checkinCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "checkin_count_total",
			Help: "Live check-in count per event",
		},
		[]string{"event_id"},
	)
)

// TrackValidation records one validate call.
func TrackValidation(eventID, outcome string, duration time.Duration) {
	validationOutcomes.WithLabelValues(eventID, outcome).Inc()
	validationDuration.Observe(duration.Seconds())
}

func TrackScanSessionStart() {
	activeScanSessions.Inc()
}

func TrackScanSessionEnd() {
	activeScanSessions.Dec()
}

type Monitor struct {
	redis *redis.Client
}

func NewMonitor(redisClient *redis.Client) *Monitor {
	monitor := &Monitor{redis: redisClient}

	// Start metrics collection
	go monitor.collectMetrics()

	return monitor
}

func (m *Monitor) collectMetrics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		ctx := context.Background()
		m.collectCheckinCounts(ctx)
	}
}

func (m *Monitor) collectCheckinCounts(ctx context.Context) {
	keys, _ := m.redis.Keys(ctx, "checkin:count:*").Result()
	for _, key := range keys {
		eventID := key[len("checkin:count:"):]
		count, err := m.redis.Get(ctx, key).Int64()
		if err != nil {
			continue
		}
		checkinCount.WithLabelValues(eventID).Set(float64(count))
	}
}

// ResetEventGauge clears the live gauge when an event ends.
func (m *Monitor) ResetEventGauge(ctx context.Context, eventID string) {
	m.redis.Del(ctx, fmt.Sprintf("checkin:count:%s", eventID))
	checkinCount.DeleteLabelValues(eventID)
}
