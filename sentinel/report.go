/*
 * KubeSentinel - Autonomous Kubernetes Remediation Agent
 * Copyright (c) 2025 Edilson Freitas
 * License: MIT
 */
package sentinel

import (
	"fmt"
	"strings"
	"time"
)

// RenderReport produces a markdown incident report covering every attempt:
// diagnosis, plan, approval, execution and verification. Rendered to the
// terminal at the end of a run and suitable for pasting into a postmortem.
func RenderReport(inc *Incident) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Incident %s\n\n", inc.ID))
	sb.WriteString(fmt.Sprintf("- **Target:** %s\n", inc.Target))
	sb.WriteString(fmt.Sprintf("- **Fault:** %s\n", inc.Fault))
	sb.WriteString(fmt.Sprintf("- **Opened:** %s\n", inc.CreatedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("- **Outcome:** %s\n", inc.State))
	sb.WriteString(fmt.Sprintf("- **Attempts:** %d/%d\n", inc.Attempts, inc.MaxAttempts))
	if inc.FinalNote != "" {
		sb.WriteString(fmt.Sprintf("- **Note:** %s\n", inc.FinalNote))
	}

	for i, rec := range inc.History {
		sb.WriteString(fmt.Sprintf("\n## Attempt %d", rec.Number))
		if countRecords(inc.History, rec.Number) > 1 {
			sb.WriteString(fmt.Sprintf(" (proposal %d)", proposalIndex(inc.History, i)))
		}
		sb.WriteString("\n\n")

		if rec.Diagnosis != nil {
			sb.WriteString(fmt.Sprintf("- **Diagnosed fault:** %s (confidence %.0f%%)\n",
				rec.Diagnosis.Fault, rec.Diagnosis.Confidence*100))
			sb.WriteString(fmt.Sprintf("- **Root cause:** %s\n", rec.Diagnosis.RootCause))
			if rec.Diagnosis.Evidence != "" {
				sb.WriteString(fmt.Sprintf("- **Evidence:** %s\n", rec.Diagnosis.Evidence))
			}
		}

		if rec.Plan != nil {
			sb.WriteString(fmt.Sprintf("- **Plan:** %s (risk %s)\n", rec.Plan.Description, rec.Plan.Risk))
			sb.WriteString(fmt.Sprintf("- **Validation:** %s", rec.Plan.Validation))
			if rec.Plan.Validation == ValidationRejected {
				sb.WriteString(fmt.Sprintf(" (%s: %s)", rec.Plan.Rejection, rec.Plan.RejectionDetail))
			}
			sb.WriteString("\n")
		}

		if rec.Approval != nil {
			sb.WriteString(fmt.Sprintf("- **Approval:** %s", rec.Approval.State))
			if rec.Approval.Comment != "" {
				sb.WriteString(fmt.Sprintf(" (%q)", rec.Approval.Comment))
			}
			sb.WriteString("\n")
		}

		if rec.Execution != nil {
			if rec.Execution.Success {
				sb.WriteString(fmt.Sprintf("- **Execution:** applied at %s\n",
					rec.Execution.AppliedAt.Format(time.RFC3339)))
			} else {
				sb.WriteString(fmt.Sprintf("- **Execution:** failed: %s (%s)\n",
					rec.Execution.Reason, rec.Execution.Detail))
			}
		}

		if rec.Verification != "" {
			sb.WriteString(fmt.Sprintf("- **Verification:** %s\n", rec.Verification))
		}

		if rec.Note != "" {
			sb.WriteString(fmt.Sprintf("- **Note:** %s\n", rec.Note))
		}
	}

	return sb.String()
}

func countRecords(history []AttemptRecord, number int) int {
	n := 0
	for _, rec := range history {
		if rec.Number == number {
			n++
		}
	}
	return n
}

func proposalIndex(history []AttemptRecord, idx int) int {
	n := 0
	for i := 0; i <= idx; i++ {
		if history[i].Number == history[idx].Number {
			n++
		}
	}
	return n
}
