// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	LoginsSucceeded    prometheus.Counter
	LoginsFailed       prometheus.Counter
	SessionCacheHits   prometheus.Counter
	SessionCacheMisses prometheus.Counter
	BotCommandsSent    prometheus.Counter
	BotCommandsFailed  prometheus.Counter

	// Histograms (seconds)
	LoginDuration prometheus.Observer

	// Gauges
	CachedUsersGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		LoginsSucceeded = promauto.NewCounter(prometheus.CounterOpts{Name: "guessio_logins_succeeded_total", Help: "Number of completed OAuth callback logins"})
		LoginsFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "guessio_logins_failed_total", Help: "Number of OAuth callback logins that failed"})
		SessionCacheHits = promauto.NewCounter(prometheus.CounterOpts{Name: "guessio_session_cache_hits_total", Help: "Session resolutions served from the user cache"})
		SessionCacheMisses = promauto.NewCounter(prometheus.CounterOpts{Name: "guessio_session_cache_misses_total", Help: "Session resolutions that fell back to the user store"})
		BotCommandsSent = promauto.NewCounter(prometheus.CounterOpts{Name: "guessio_bot_commands_sent_total", Help: "Commands relayed to the bot runner"})
		BotCommandsFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "guessio_bot_commands_failed_total", Help: "Bot runner commands that failed at the relay"})
		LoginDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "guessio_login_duration_seconds", Help: "OAuth callback duration seconds", Buckets: prometheus.DefBuckets})
		CachedUsersGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "guessio_cached_users", Help: "Current number of users held in the session cache"})
	})
}

// SetCachedUsers records the current user cache size.
func SetCachedUsers(n int) {
	if CachedUsersGauge != nil {
		CachedUsersGauge.Set(float64(n))
	}
}

// IncCounter increments c if registered; safe before Init in tests.
func IncCounter(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------

type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns the correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
