package monitoring

import (
	"context"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_sessions_total",
			Help: "Current number of live sessions",
		},
	)

	sessionIntents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_intents_total",
			Help: "Total session intents by operation",
		},
		[]string{"operation", "status"},
	)

	votesCast = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "votes_cast_total",
			Help: "Total votes cast",
		},
		[]string{"decision"},
	)

	matchesFound = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matches_found_total",
			Help: "Total sessions that reached a unanimous match",
		},
	)

	providerFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "venue_provider_failures_total",
			Help: "Total failed venue search requests",
		},
	)

	venueRefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "venue_refresh_duration_seconds",
			Help:    "Duration of venue search refreshes",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)

	goroutineCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_goroutines_total",
			Help: "Current number of active goroutines",
		},
	)
)

// TrackIntent counts a session intent by operation name and outcome.
func TrackIntent(operation, status string) {
	sessionIntents.WithLabelValues(operation, status).Inc()
}

func TrackVote(approved bool) {
	decision := "reject"
	if approved {
		decision = "approve"
	}
	votesCast.WithLabelValues(decision).Inc()
}

func TrackMatch() {
	matchesFound.Inc()
}

func TrackProviderFailure() {
	providerFailures.Inc()
}

func ObserveVenueRefresh(duration time.Duration) {
	venueRefreshDuration.Observe(duration.Seconds())
}

type Monitor struct {
	redis *redis.Client
}

func NewMonitor(redisClient *redis.Client) *Monitor {
	monitor := &Monitor{redis: redisClient}

	go monitor.collectMetrics()

	return monitor
}

func (m *Monitor) collectMetrics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		ctx := context.Background()

		m.collectSessionMetrics(ctx)
		goroutineCount.Set(float64(runtime.NumGoroutine()))
	}
}

func (m *Monitor) collectSessionMetrics(ctx context.Context) {
	count, err := m.redis.SCard(ctx, "sessions:live").Result()
	if err != nil {
		return
	}
	activeSessions.Set(float64(count))
}
