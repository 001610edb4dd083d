/*
 * KubeSentinel - Autonomous Kubernetes Remediation Agent
 * Copyright (c) 2025 Edilson Freitas
 * License: MIT
 */
package sentinel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRenderReport(t *testing.T) {
	now := time.Now()
	inc := &Incident{
		ID:          "inc-7",
		Target:      TargetRef{Namespace: "default", Name: "myapp", Kind: "Deployment"},
		Fault:       FaultOOMKilled,
		CreatedAt:   now,
		State:       StateSucceeded,
		Attempts:    1,
		MaxAttempts: 3,
		FinalNote:   "fault resolved and verified",
		History: []AttemptRecord{
			{
				Number: 1,
				Diagnosis: &Diagnosis{
					Fault:      FaultOOMKilled,
					RootCause:  "memory limit too low",
					Evidence:   "OOMKilled exit code 137",
					Confidence: 0.9,
					Risk:       RiskLow,
				},
				Plan: &RemediationPlan{
					Description: "adjust resources of container \"myapp\"",
					Risk:        RiskLow,
					Validation:  ValidationAccepted,
				},
				Approval:     &ApprovalDecision{State: ApprovalApproved, DecidedAt: now},
				Execution:    &ExecutionResult{Success: true, AppliedAt: now},
				Verification: VerificationResolved,
			},
		},
	}

	out := RenderReport(inc)

	assert.Contains(t, out, "# Incident inc-7")
	assert.Contains(t, out, "**Target:** default/Deployment/myapp")
	assert.Contains(t, out, "**Outcome:** Succeeded")
	assert.Contains(t, out, "**Attempts:** 1/3")
	assert.Contains(t, out, "## Attempt 1\n")
	assert.Contains(t, out, "confidence 90%")
	assert.Contains(t, out, "**Evidence:** OOMKilled exit code 137")
	assert.Contains(t, out, "**Verification:** resolved")
	assert.NotContains(t, out, "proposal")
}

func TestRenderReport_RejectedProposalsNumbered(t *testing.T) {
	inc := &Incident{
		ID:          "inc-8",
		Target:      TargetRef{Namespace: "default", Name: "myapp", Kind: "Deployment"},
		Fault:       FaultOOMKilled,
		State:       StateEscalated,
		Attempts:    1,
		MaxAttempts: 3,
		FinalNote:   "validation retries exhausted",
		History: []AttemptRecord{
			{
				Number: 1,
				Plan: &RemediationPlan{
					Validation:      ValidationRejected,
					Rejection:       RejectSchemaInvalid,
					RejectionDetail: "invalid memory quantity",
				},
			},
			{
				Number: 1,
				Plan: &RemediationPlan{
					Validation:      ValidationRejected,
					Rejection:       RejectDryRunRejected,
					RejectionDetail: "server refused",
				},
			},
		},
	}

	out := RenderReport(inc)

	assert.Contains(t, out, "## Attempt 1 (proposal 1)")
	assert.Contains(t, out, "## Attempt 1 (proposal 2)")
	assert.Contains(t, out, "schema-invalid: invalid memory quantity")
	assert.Contains(t, out, "dry-run-rejected: server refused")
}
