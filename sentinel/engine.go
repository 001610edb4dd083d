/*
 * KubeSentinel - Autonomous Kubernetes Remediation Agent
 * Copyright (c) 2025 Edilson Freitas
 * License: MIT
 */
package sentinel

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/diillson/kubesentinel/k8s"
	"github.com/diillson/kubesentinel/llm/client"
	"github.com/diillson/kubesentinel/models"
)

const diagnosisSystemPrompt = `You are KubeSentinel, an expert autonomous SRE agent.
You receive the observed state of a Kubernetes workload and must produce a diagnosis
with a proposed remediation.

Respond with a SINGLE JSON object and nothing else, matching this schema:
{
  "fault": "OOMKilled" | "CrashLoopBackOff" | "ImagePullFailure" | "PodNotReady" | "Unknown",
  "target": {"namespace": "...", "name": "...", "kind": "Deployment"},
  "root_cause": "technical cause",
  "evidence": "the log line or event that proves this conclusion",
  "confidence": 0.0-1.0,
  "risk": "low" | "medium" | "high" | "critical",
  "action": {
    "type": "patch_resources" | "set_image" | "restart_rollout" | "scale_replicas" | "create_workload",
    ... action-specific fields ...
  }
}

Action fields: patch_resources takes container, memory_limit/memory_request and/or
cpu_limit/cpu_request (Kubernetes quantities, e.g. "256Mi", "500m"); set_image takes
container and image; scale_replicas takes replicas; create_workload takes manifest
(a full apiVersion/kind/metadata/spec object).

If a previous fix failed validation or verification, the error is in the history.
Do NOT retry the exact same fix. Adjust your strategy based on the feedback.`

// DiagnosisEngine turns observed state plus a problem statement into a
// structured Diagnosis. The language-level reasoning is delegated to the
// external LLM; this component owns the schema and the retry-on-malformed
// policy.
type DiagnosisEngine struct {
	llm         client.LLMClient
	maxAttempts int // retry bound for malformed output, distinct from the incident ceiling
	timeout     time.Duration
	logger      *zap.Logger
}

// NewDiagnosisEngine creates an engine over the given LLM client.
func NewDiagnosisEngine(llmClient client.LLMClient, maxAttempts int, timeout time.Duration, logger *zap.Logger) *DiagnosisEngine {
	if maxAttempts <= 0 {
		maxAttempts = 2
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &DiagnosisEngine{
		llm:         llmClient,
		maxAttempts: maxAttempts,
		timeout:     timeout,
		logger:      logger,
	}
}

// Diagnose sends the problem statement and snapshot to the reasoning
// component and validates the response against the Diagnosis schema. On
// malformed output it retries with corrective feedback up to the configured
// bound, then fails with DiagnosisError. It returns the updated conversation
// history so rejection/verification feedback accumulates across attempts.
func (e *DiagnosisEngine) Diagnose(ctx context.Context, problem string, snap *k8s.InspectionSnapshot, history []models.Message) (*Diagnosis, []models.Message, error) {
	prompt := fmt.Sprintf("%s\n\n%s", problem, k8s.Summarize(snap))
	history = append(history, models.Message{Role: "user", Content: prompt})

	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		response, err := e.llm.SendPrompt(callCtx, prompt, history, 0)
		cancel()
		if err != nil {
			return nil, history, &DiagnosisError{Attempts: attempt, Err: err}
		}

		history = append(history, models.Message{Role: "assistant", Content: response})

		diag, err := parseDiagnosis(response)
		if err == nil {
			e.logger.Info("Diagnosis produced",
				zap.String("fault", string(diag.Fault)),
				zap.String("target", diag.Target.String()),
				zap.String("risk", string(diag.Risk)),
				zap.Float64("confidence", diag.Confidence),
				zap.String("action", string(diag.Action.Type)))
			return diag, history, nil
		}

		lastErr = err
		e.logger.Warn("Malformed diagnosis from reasoning component, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", e.maxAttempts),
			zap.Error(err))

		feedback := fmt.Sprintf("Your previous response was not a valid diagnosis: %v. "+
			"Respond with a single JSON object matching the schema, no prose.", err)
		history = append(history, models.Message{Role: "user", Content: feedback})
		prompt = feedback
	}

	return nil, history, &DiagnosisError{Attempts: e.maxAttempts, Err: lastErr}
}

// SystemPrompt returns the instruction block to seed a new conversation with.
func (e *DiagnosisEngine) SystemPrompt() string {
	return diagnosisSystemPrompt
}

// parseDiagnosis extracts and validates a Diagnosis from the model's raw
// response. The output is inherently untyped at the boundary; it is never
// trusted without this step.
func parseDiagnosis(response string) (*Diagnosis, error) {
	raw, err := extractJSON(response)
	if err != nil {
		return nil, err
	}

	var diag Diagnosis
	if err := json.Unmarshal([]byte(raw), &diag); err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w", err)
	}

	if !KnownFaultCategories[diag.Fault] {
		// An out-of-enumeration fault collapses to Unknown rather than
		// being rejected; the controller escalates Unknown.
		diag.Fault = FaultUnknown
	}
	if diag.Target.IsZero() {
		return nil, fmt.Errorf("diagnosis is missing target namespace/name")
	}
	if diag.Target.Kind == "" {
		diag.Target.Kind = "Deployment"
	}
	if !diag.Risk.IsValid() {
		return nil, fmt.Errorf("invalid risk level %q", diag.Risk)
	}
	if diag.Confidence < 0 || diag.Confidence > 1 {
		return nil, fmt.Errorf("confidence %v out of range [0,1]", diag.Confidence)
	}
	if diag.Action.Type == "" {
		return nil, fmt.Errorf("diagnosis has no proposed action")
	}
	if diag.RootCause == "" {
		return nil, fmt.Errorf("diagnosis has no root cause")
	}

	return &diag, nil
}

// extractJSON pulls the first JSON object out of a model response, tolerating
// markdown code fences and surrounding prose.
func extractJSON(response string) (string, error) {
	text := strings.TrimSpace(response)

	if idx := strings.Index(text, "```"); idx >= 0 {
		rest := text[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			text = strings.TrimSpace(rest[:end])
		}
	}

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", fmt.Errorf("no JSON object in response")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = inString
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1], nil
				}
			}
		}
	}

	return "", fmt.Errorf("unbalanced JSON object in response")
}
