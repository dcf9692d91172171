// Package metrics exposes Prometheus instruments for sync runs.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rowboatdb/rowboat/internal/syncer"
)

// Set holds all Prometheus metrics for the sync engine.
type Set struct {
	SyncsTotal    *prometheus.CounterVec
	SyncDuration  *prometheus.HistogramVec
	TablesDiffed  *prometheus.CounterVec
	RowsApplied   *prometheus.CounterVec
	RowsPending   prometheus.Gauge
	ActiveRuns    prometheus.Gauge
	WatchTriggers *prometheus.CounterVec
}

// New registers the instrument set with reg. A nil reg falls back to
// the default registerer.
func New(reg prometheus.Registerer) *Set {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Set{
		SyncsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rowboat_syncs_total",
				Help: "Total number of sync runs",
			},
			[]string{"result"},
		),
		SyncDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rowboat_sync_duration_seconds",
				Help:    "Sync run duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		),
		TablesDiffed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rowboat_tables_diffed_total",
				Help: "Total number of tables with a non-empty diff",
			},
			[]string{"table"},
		),
		RowsApplied: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rowboat_rows_applied_total",
				Help: "Total number of rows written to the target",
			},
			[]string{"table"},
		),
		RowsPending: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "rowboat_rows_pending",
				Help: "Rows found missing from the target by the last diff",
			},
		),
		ActiveRuns: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "rowboat_active_runs",
				Help: "Number of sync runs currently in flight",
			},
		),
		WatchTriggers: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rowboat_watch_triggers_total",
				Help: "Total number of daemon sync triggers",
			},
			[]string{"reason"},
		),
	}
}

// RecordTrigger counts one daemon trigger. Reason is "change" for file
// events and "schedule" for cron fires.
func (m *Set) RecordTrigger(reason string) {
	if m == nil {
		return
	}
	m.WatchTriggers.WithLabelValues(reason).Inc()
}

// Sink adapts a Set to the sync engine's event stream.
type Sink struct {
	set *Set

	mu      sync.Mutex
	started map[string]time.Time
	pending int64
}

// NewSink wraps set in an event sink. Safe for concurrent runs.
func NewSink(set *Set) *Sink {
	return &Sink{
		set:     set,
		started: make(map[string]time.Time),
	}
}

func (s *Sink) SyncStarted(runID string) {
	s.mu.Lock()
	s.started[runID] = time.Now()
	s.pending = 0
	s.mu.Unlock()
	s.set.ActiveRuns.Inc()
}

func (s *Sink) TableDiffed(runID, table string, rows int64) {
	s.set.TablesDiffed.WithLabelValues(table).Inc()
	s.mu.Lock()
	s.pending += rows
	s.set.RowsPending.Set(float64(s.pending))
	s.mu.Unlock()
}

func (s *Sink) TableApplied(runID, table string, rows int64) {
	s.set.RowsApplied.WithLabelValues(table).Add(float64(rows))
}

func (s *Sink) SyncCompleted(runID string, report *syncer.Report) {
	s.finish(runID, "committed")
}

func (s *Sink) SyncFailed(runID string, err error) {
	s.finish(runID, "failed")
}

func (s *Sink) finish(runID, result string) {
	s.mu.Lock()
	started, ok := s.started[runID]
	delete(s.started, runID)
	s.mu.Unlock()

	s.set.ActiveRuns.Dec()
	s.set.SyncsTotal.WithLabelValues(result).Inc()
	if ok {
		s.set.SyncDuration.WithLabelValues(result).Observe(time.Since(started).Seconds())
	}
}
