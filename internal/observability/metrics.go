// Package observability exposes pipeline metrics and operational alerts.
package observability

import (
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"NewsPipeline/internal/ports"
)

const (
	namespace  = "newspipeline"
	datasource = "prometheus"
)

// DashboardStatus records when monitoring was last ensured for a workspace.
type DashboardStatus struct {
	Workspace  string    `json:"workspace"`
	Datasource string    `json:"datasource"`
	EnsuredAt  time.Time `json:"ensured_at"`
}

// Metrics records run outcomes per workspace.
type Metrics struct {
	runs       *prometheus.CounterVec
	published  *prometheus.CounterVec
	delivered  *prometheus.CounterVec
	moderated  *prometheus.CounterVec
	rejected   *prometheus.CounterVec
	duplicates *prometheus.CounterVec
	fakes      *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	lastRun    *prometheus.GaugeVec

	logger *slog.Logger
	now    func() time.Time

	mu         sync.Mutex
	dashboards map[string]DashboardStatus
}

var _ ports.Metrics = (*Metrics)(nil)

// NewMetrics registers the pipeline collectors with reg.
func NewMetrics(reg prometheus.Registerer, logger *slog.Logger) *Metrics {
	if logger == nil {
		logger = slog.Default()
	}
	factory := promauto.With(reg)
	counter := func(name, help string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, []string{"workspace"})
	}

	return &Metrics{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Total number of pipeline executions by workspace and outcome.",
		}, []string{"workspace", "status"}),
		published:  counter("pipeline_published_articles_total", "Number of articles published by the pipeline."),
		delivered:  counter("pipeline_delivered_messages_total", "Number of channel messages delivered."),
		moderated:  counter("pipeline_moderation_requests_total", "Number of items queued for moderation."),
		rejected:   counter("pipeline_rejected_items_total", "Number of items rejected by the router."),
		duplicates: counter("pipeline_duplicate_items_total", "Number of duplicate items detected."),
		fakes:      counter("pipeline_fake_detected_items_total", "Number of items flagged as fake."),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_run_duration_seconds",
			Help:      "Duration of pipeline executions in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"workspace"}),
		lastRun: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_last_run_timestamp",
			Help:      "Unix timestamp of the last pipeline execution.",
		}, []string{"workspace"}),
		logger:     logger,
		now:        time.Now,
		dashboards: map[string]DashboardStatus{},
	}
}

// EnsureWorkspace initialises the series of a workspace so dashboards see it before its first run.
func (m *Metrics) EnsureWorkspace(workspace string) {
	for _, status := range []string{"success", "failure"} {
		m.runs.WithLabelValues(workspace, status)
	}
	for _, vec := range []*prometheus.CounterVec{m.published, m.delivered, m.moderated, m.rejected, m.duplicates, m.fakes} {
		vec.WithLabelValues(workspace)
	}

	status := DashboardStatus{Workspace: workspace, Datasource: datasource, EnsuredAt: m.now().UTC()}
	m.mu.Lock()
	m.dashboards[workspace] = status
	m.mu.Unlock()

	m.logger.Info("ensured monitoring dashboard", "workspace", workspace, "datasource", datasource)
}

// Dashboards lists the ensured workspaces sorted by name.
func (m *Metrics) Dashboards() []DashboardStatus {
	m.mu.Lock()
	out := make([]DashboardStatus, 0, len(m.dashboards))
	for _, d := range m.dashboards {
		out = append(out, d)
	}
	m.mu.Unlock()

	slices.SortFunc(out, func(a, b DashboardStatus) int {
		return strings.Compare(a.Workspace, b.Workspace)
	})
	return out
}

// RecordSuccess records a successful run and its counters.
func (m *Metrics) RecordSuccess(workspace string, duration time.Duration, stats ports.RunStats) {
	m.runs.WithLabelValues(workspace, "success").Inc()
	m.published.WithLabelValues(workspace).Add(float64(stats.Published))
	m.delivered.WithLabelValues(workspace).Add(float64(stats.Delivered))
	m.moderated.WithLabelValues(workspace).Add(float64(stats.Moderated))
	m.rejected.WithLabelValues(workspace).Add(float64(stats.Rejected))
	m.duplicates.WithLabelValues(workspace).Add(float64(stats.Duplicates))
	m.fakes.WithLabelValues(workspace).Add(float64(stats.FakeDetected))
	m.observe(workspace, duration)
}

// RecordFailure records a failed run attempt.
func (m *Metrics) RecordFailure(workspace string, duration time.Duration) {
	m.runs.WithLabelValues(workspace, "failure").Inc()
	m.observe(workspace, duration)
}

func (m *Metrics) observe(workspace string, duration time.Duration) {
	m.duration.WithLabelValues(workspace).Observe(duration.Seconds())
	m.lastRun.WithLabelValues(workspace).Set(float64(m.now().Unix()))
}
