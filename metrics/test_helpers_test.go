/*
 * KubeSentinel - Autonomous Kubernetes Remediation Agent
 * Copyright (c) 2025 Edilson Freitas
 * License: MIT
 */
package metrics

import "github.com/prometheus/client_golang/prometheus"

// newTestRegistry creates a fresh Prometheus registry for test isolation.
func newTestRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// newLLMMetricsOn creates LLM metrics registered on the given registry.
func newLLMMetricsOn(reg *prometheus.Registry) *LLMMetrics {
	m := &LLMMetrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: "llm", Name: "requests_total",
			Help: "test",
		}, []string{"provider", "model", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace, Subsystem: "llm", Name: "request_duration_seconds",
			Help: "test", Buckets: prometheus.DefBuckets,
		}, []string{"provider", "model"}),
		TokensUsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: "llm", Name: "tokens_used_total",
			Help: "test",
		}, []string{"provider", "model", "type"}),
		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: "llm", Name: "errors_total",
			Help: "test",
		}, []string{"provider", "model", "error_type"}),
	}
	reg.MustRegister(m.RequestsTotal, m.RequestDuration, m.TokensUsed, m.ErrorsTotal)
	return m
}

// newControllerMetricsOn creates controller metrics registered on the given registry.
func newControllerMetricsOn(reg *prometheus.Registry) *ControllerMetrics {
	m := &ControllerMetrics{
		IncidentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: "controller", Name: "incidents_total",
			Help: "test",
		}, []string{"outcome"}),
		StateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: "controller", Name: "state_transitions_total",
			Help: "test",
		}, []string{"from", "to"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace, Subsystem: "controller", Name: "stage_duration_seconds",
			Help: "test", Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		AttemptsPerIncident: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace, Subsystem: "controller", Name: "attempts_per_incident",
			Help: "test", Buckets: []float64{1, 2, 3, 4, 5},
		}),
	}
	reg.MustRegister(m.IncidentsTotal, m.StateTransitions, m.StageDuration, m.AttemptsPerIncident)
	return m
}
