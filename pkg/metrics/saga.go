package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func (m *Manager) initRunMetrics(cfg Config) {
	m.runExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saga_runs_total",
			Help: "Total number of saga runs by terminal phase",
		},
		[]string{"phase"},
	)

	m.runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "saga_run_duration_seconds",
			Help:    "Saga run duration in seconds",
			Buckets: cfg.RunDurationBuckets,
		},
		[]string{"phase"},
	)

	m.runActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "saga_runs_active",
			Help: "Current number of in-flight saga runs",
		},
	)

	m.stageAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saga_stage_attempts_total",
			Help: "Total number of stage attempts by stage and outcome",
		},
		[]string{"stage", "outcome"},
	)

	m.stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "saga_stage_duration_seconds",
			Help:    "Stage attempt duration in seconds",
			Buckets: cfg.StageDurationBuckets,
		},
		[]string{"stage"},
	)

	m.compensations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "saga_compensations_total",
			Help: "Total number of compensation iterations",
		},
	)

	m.substitutions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "saga_substitutions_total",
			Help: "Total number of candidate substitutions",
		},
	)

	m.receipts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saga_receipts_total",
			Help: "Total number of checkout receipts by replay status",
		},
		[]string{"replayed"},
	)

	m.tokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saga_tokens_total",
			Help: "Total tokens charged against stage budgets",
		},
		[]string{"stage", "role"},
	)

	m.registry.MustRegister(m.runExecutions)
	m.registry.MustRegister(m.runDuration)
	m.registry.MustRegister(m.runActive)
	m.registry.MustRegister(m.stageAttempts)
	m.registry.MustRegister(m.stageDuration)
	m.registry.MustRegister(m.compensations)
	m.registry.MustRegister(m.substitutions)
	m.registry.MustRegister(m.receipts)
	m.registry.MustRegister(m.tokens)
}

// RecordRun records one run's terminal phase.
func (m *Manager) RecordRun(phase string) {
	if !m.enabled {
		return
	}
	m.runExecutions.WithLabelValues(phase).Inc()
}

// RecordRunDuration records run latency by terminal phase.
func (m *Manager) RecordRunDuration(phase string, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.runDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

// IncActiveRuns increments the in-flight run count.
func (m *Manager) IncActiveRuns() {
	if !m.enabled {
		return
	}
	m.runActive.Inc()
}

// DecActiveRuns decrements the in-flight run count.
func (m *Manager) DecActiveRuns() {
	if !m.enabled {
		return
	}
	m.runActive.Dec()
}

// RecordStageAttempt records one stage attempt outcome.
func (m *Manager) RecordStageAttempt(stage, outcome string) {
	if !m.enabled {
		return
	}
	m.stageAttempts.WithLabelValues(stage, outcome).Inc()
}

// RecordStageDuration records stage attempt latency.
func (m *Manager) RecordStageDuration(stage string, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordCompensation records one compensation iteration.
func (m *Manager) RecordCompensation() {
	if !m.enabled {
		return
	}
	m.compensations.Inc()
}

// RecordSubstitution records one candidate substitution.
func (m *Manager) RecordSubstitution() {
	if !m.enabled {
		return
	}
	m.substitutions.Inc()
}

// RecordReceipt records one settled checkout.
func (m *Manager) RecordReceipt(replayed bool) {
	if !m.enabled {
		return
	}
	m.receipts.WithLabelValues(strconv.FormatBool(replayed)).Inc()
}

// RecordTokens records tokens charged against a stage budget.
func (m *Manager) RecordTokens(stage, role string, count int) {
	if !m.enabled || count <= 0 {
		return
	}
	m.tokens.WithLabelValues(stage, role).Add(float64(count))
}
