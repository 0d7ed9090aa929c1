package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CronJobMetrics tracks scheduled maintenance: cache sweeps, stale claim recovery, seat
// drift checks and outbox retention.
type CronJobMetrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	skipped  *prometheus.CounterVec
}

// NewCronJobMetrics registers the job metrics on reg. A nil registerer yields a no-op recorder.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	m := &CronJobMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_cron_job_runs_total",
			Help: "Scheduled job executions by job and result.",
		}, []string{"job", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "billing_cron_job_duration_seconds",
			Help:    "Duration of scheduled jobs.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_cron_cycles_skipped_total",
			Help: "Cycles skipped because another instance held the lock.",
		}, []string{"scheduler"}),
	}
	reg.MustRegister(m.runs, m.duration, m.skipped)
	return m
}

// RecordRun stores the result and duration of one job execution.
func (m *CronJobMetrics) RecordRun(job string, d time.Duration, err error) {
	if m == nil || m.runs == nil {
		return
	}
	job = normalizeLabel(job)
	m.duration.WithLabelValues(job).Observe(d.Seconds())
	m.runs.WithLabelValues(job, resultLabel(err)).Inc()
}

func (m *CronJobMetrics) IncSkipped(scheduler string) {
	if m == nil || m.skipped == nil {
		return
	}
	m.skipped.WithLabelValues(normalizeLabel(scheduler)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
