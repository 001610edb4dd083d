/*
 * KubeSentinel - Autonomous Kubernetes Remediation Agent
 * Copyright (c) 2025 Edilson Freitas
 * License: MIT
 */
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/diillson/kubesentinel/sentinel"
)

// ControllerMetrics holds Prometheus metrics for the remediation control loop.
type ControllerMetrics struct {
	IncidentsTotal      *prometheus.CounterVec
	StateTransitions    *prometheus.CounterVec
	StageDuration       *prometheus.HistogramVec
	AttemptsPerIncident prometheus.Histogram
}

// NewControllerMetrics creates and registers control loop metrics.
func NewControllerMetrics() *ControllerMetrics {
	m := &ControllerMetrics{
		IncidentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "controller",
			Name:      "incidents_total",
			Help:      "Total incidents by terminal outcome.",
		}, []string{"outcome"}),

		StateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "controller",
			Name:      "state_transitions_total",
			Help:      "Total state machine transitions by edge.",
		}, []string{"from", "to"}),

		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "controller",
			Name:      "stage_duration_seconds",
			Help:      "Histogram of control loop stage durations in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"stage"}),

		AttemptsPerIncident: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "controller",
			Name:      "attempts_per_incident",
			Help:      "Histogram of diagnosis attempts per closed incident.",
			Buckets:   []float64{1, 2, 3, 4, 5},
		}),
	}

	Registry.MustRegister(
		m.IncidentsTotal,
		m.StateTransitions,
		m.StageDuration,
		m.AttemptsPerIncident,
	)

	return m
}

// Recorder returns an adapter satisfying the controller's MetricsRecorder
// interface.
func (m *ControllerMetrics) Recorder() *ControllerRecorder {
	return &ControllerRecorder{m: m}
}

// ControllerRecorder records control loop metrics.
type ControllerRecorder struct {
	m *ControllerMetrics
}

func (r *ControllerRecorder) RecordTransition(from, to sentinel.IncidentState) {
	r.m.StateTransitions.WithLabelValues(string(from), string(to)).Inc()
}

func (r *ControllerRecorder) RecordTerminal(state sentinel.IncidentState, attempts int) {
	r.m.IncidentsTotal.WithLabelValues(string(state)).Inc()
	r.m.AttemptsPerIncident.Observe(float64(attempts))
}

func (r *ControllerRecorder) RecordStageDuration(stage string, duration time.Duration) {
	r.m.StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}
