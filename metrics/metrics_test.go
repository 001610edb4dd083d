/*
 * KubeSentinel - Autonomous Kubernetes Remediation Agent
 * Copyright (c) 2025 Edilson Freitas
 * License: MIT
 */
package metrics

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/diillson/kubesentinel/sentinel"
)

func TestRegistryContainsGoAndProcessCollectors(t *testing.T) {
	families, err := Registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather: %v", err)
	}

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}

	if !names["go_goroutines"] {
		t.Error("expected go_goroutines metric from GoCollector")
	}
	if !names["process_cpu_seconds_total"] {
		t.Error("expected process_cpu_seconds_total from ProcessCollector")
	}
}

func TestLLMMetricsRegistered(t *testing.T) {
	reg := newTestRegistry()
	m := newLLMMetricsOn(reg)

	m.RequestsTotal.WithLabelValues("OPENAI", "gpt-4", "success").Inc()
	m.RequestDuration.WithLabelValues("OPENAI", "gpt-4").Observe(1.0)
	m.TokensUsed.WithLabelValues("OPENAI", "gpt-4", "prompt").Add(100)
	m.ErrorsTotal.WithLabelValues("OPENAI", "gpt-4", "rate_limit").Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather: %v", err)
	}

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}

	expected := []string{
		"kubesentinel_llm_requests_total",
		"kubesentinel_llm_request_duration_seconds",
		"kubesentinel_llm_tokens_used_total",
		"kubesentinel_llm_errors_total",
	}

	for _, name := range expected {
		if !names[name] {
			t.Errorf("expected metric %q not found", name)
		}
	}
}

func TestControllerRecorder(t *testing.T) {
	reg := newTestRegistry()
	m := newControllerMetricsOn(reg)
	rec := m.Recorder()

	rec.RecordTransition(sentinel.StateDetecting, sentinel.StateDiagnosing)
	rec.RecordTerminal(sentinel.StateSucceeded, 2)
	rec.RecordStageDuration("diagnosis", 3*time.Second)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather: %v", err)
	}

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}

	if !names["kubesentinel_controller_incidents_total"] {
		t.Error("expected kubesentinel_controller_incidents_total")
	}
	if !names["kubesentinel_controller_state_transitions_total"] {
		t.Error("expected kubesentinel_controller_state_transitions_total")
	}
	if !names["kubesentinel_controller_stage_duration_seconds"] {
		t.Error("expected kubesentinel_controller_stage_duration_seconds")
	}
	if !names["kubesentinel_controller_attempts_per_incident"] {
		t.Error("expected kubesentinel_controller_attempts_per_incident")
	}
}

func TestMetricsServerStartStop(t *testing.T) {
	logger := zap.NewNop()
	srv := NewServer(19876, logger)
	srv.Start()

	time.Sleep(100 * time.Millisecond)

	resp, err := http.Get("http://localhost:19876/healthz")
	if err != nil {
		t.Fatalf("failed to reach healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	resp2, err := http.Get("http://localhost:19876/metrics")
	if err != nil {
		t.Fatalf("failed to reach metrics: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp2.StatusCode)
	}

	body, _ := io.ReadAll(resp2.Body)
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("expected go_goroutines in metrics output")
	}

	srv.Stop()
}
