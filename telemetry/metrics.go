// Package telemetry provides Prometheus metrics, correlation-id aware logging
// helpers, and a bounded in-memory capture of recent log lines for /status.
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
	Cycles              prometheus.Counter
	CommentsSeen        prometheus.Counter
	CandidatesExtracted prometheus.Counter
	ScoresResolved      prometheus.Counter
	DuplicatesShorted   prometheus.Counter
	VodsMatched         prometheus.Counter
	TrackersEnqueued    prometheus.Counter
	TrackersResolved    prometheus.Counter
	TrackersExpired     prometheus.Counter
	PublishesSucceeded  prometheus.Counter
	PublishesFailed     prometheus.Counter
	LengthCacheMisses   prometheus.Counter

	// Histograms (seconds)
	CycleDuration prometheus.Observer

	// Gauges
	TrackerQueueDepth prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		Cycles = promauto.NewCounter(prometheus.CounterOpts{Name: "playmark_cycles_total", Help: "Number of pipeline poll cycles"})
		CommentsSeen = promauto.NewCounter(prometheus.CounterOpts{Name: "playmark_comments_seen_total", Help: "Raw comments inspected"})
		CandidatesExtracted = promauto.NewCounter(prometheus.CounterOpts{Name: "playmark_candidates_total", Help: "Play candidates extracted from comments"})
		ScoresResolved = promauto.NewCounter(prometheus.CounterOpts{Name: "playmark_scores_resolved_total", Help: "Candidates resolved to a concrete recent play"})
		DuplicatesShorted = promauto.NewCounter(prometheus.CounterOpts{Name: "playmark_duplicates_shorted_total", Help: "Candidates resolved by copying a batch duplicate"})
		VodsMatched = promauto.NewCounter(prometheus.CounterOpts{Name: "playmark_vods_matched_total", Help: "Plays located inside an archived broadcast"})
		TrackersEnqueued = promauto.NewCounter(prometheus.CounterOpts{Name: "playmark_trackers_enqueued_total", Help: "Plays deferred waiting for a broadcast archive"})
		TrackersResolved = promauto.NewCounter(prometheus.CounterOpts{Name: "playmark_trackers_resolved_total", Help: "Deferred plays resolved by reconciliation"})
		TrackersExpired = promauto.NewCounter(prometheus.CounterOpts{Name: "playmark_trackers_expired_total", Help: "Deferred plays dropped at expiry"})
		PublishesSucceeded = promauto.NewCounter(prometheus.CounterOpts{Name: "playmark_publishes_succeeded_total", Help: "Reply comments posted"})
		PublishesFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "playmark_publishes_failed_total", Help: "Reply comment posts that failed"})
		LengthCacheMisses = promauto.NewCounter(prometheus.CounterOpts{Name: "playmark_length_cache_misses_total", Help: "Beatmap length lookups that required a mapset download"})
		CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "playmark_cycle_duration_seconds", Help: "Pipeline cycle duration seconds", Buckets: prometheus.DefBuckets})
		TrackerQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{Name: "playmark_tracker_queue_depth", Help: "Current number of pending trackers"})
	})
}

// SetTrackerQueueDepth records the current pending tracker count.
func SetTrackerQueueDepth(n int) {
	if TrackerQueueDepth != nil {
		TrackerQueueDepth.Set(float64(n))
	}
}

// TimeFunc measures the duration of fn and records it in obs if non-nil.
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

// LoggerWithCorr returns a logger with the corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
