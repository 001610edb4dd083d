/*
 * KubeSentinel - Autonomous Kubernetes Remediation Agent
 * Copyright (c) 2025 Edilson Freitas
 * License: MIT
 */
package k8s

import (
	"fmt"
	"strings"
	"time"
)

const (
	maxSummaryEvents   = 10
	maxSummaryLogLines = 30
)

// Summarize renders a snapshot as a text block for LLM context injection.
// This gives the reasoning component full visibility into the observed state
// without handing it raw API objects.
func Summarize(snap *InspectionSnapshot) string {
	var b strings.Builder

	d := snap.Deployment
	b.WriteString(fmt.Sprintf("[K8s Context: deployment/%s in namespace/%s]\n", d.Name, d.Namespace))
	b.WriteString(fmt.Sprintf("Collected at: %s\n", snap.Timestamp.Format(time.RFC3339)))
	b.WriteString(fmt.Sprintf("Health: %s", snap.Health))
	if snap.FailureReason != "" {
		b.WriteString(fmt.Sprintf(" (reason: %s)", snap.FailureReason))
	}
	b.WriteString("\n\n")

	b.WriteString("## Deployment Status\n")
	b.WriteString(fmt.Sprintf("  Replicas: %d/%d ready, %d updated, %d available\n",
		d.ReadyReplicas, d.Replicas, d.UpdatedReplicas, d.AvailableReplicas))
	if d.Strategy != "" {
		b.WriteString(fmt.Sprintf("  Strategy: %s\n", d.Strategy))
	}
	if len(d.Conditions) > 0 {
		b.WriteString("  Conditions:\n")
		for _, c := range d.Conditions {
			b.WriteString(fmt.Sprintf("    - %s\n", c))
		}
	}

	b.WriteString(fmt.Sprintf("\n## Pods (%d total)\n", len(snap.Pods)))
	for _, pod := range snap.Pods {
		readyStr := "Ready"
		if !pod.Ready {
			readyStr = "NOT READY"
		}
		line := fmt.Sprintf("  - %s: %s [%s] restarts=%d", pod.Name, pod.Phase, readyStr, pod.RestartCount)
		if pod.WaitingReason != "" {
			line += fmt.Sprintf(" waiting=%s", pod.WaitingReason)
		}
		if pod.CPUUsage != "" {
			line += fmt.Sprintf(" cpu=%s mem=%s", pod.CPUUsage, pod.MemoryUsage)
		}
		b.WriteString(line + "\n")

		if pod.LastTerminated != nil {
			b.WriteString(fmt.Sprintf("    Last terminated: %s (exit code %d) at %s\n",
				pod.LastTerminated.Reason, pod.LastTerminated.ExitCode,
				pod.LastTerminated.EndedAt.Format(time.RFC3339)))
		}

		for _, cond := range pod.Conditions {
			b.WriteString(fmt.Sprintf("    Condition: %s\n", cond))
		}
	}

	if len(snap.Events) > 0 {
		b.WriteString(fmt.Sprintf("\n## Recent Events (%d)\n", len(snap.Events)))
		start := 0
		if len(snap.Events) > maxSummaryEvents {
			start = len(snap.Events) - maxSummaryEvents
		}
		for _, ev := range snap.Events[start:] {
			age := time.Since(ev.Timestamp).Truncate(time.Second)
			b.WriteString(fmt.Sprintf("  [%s] %s %s: %s (%s ago)\n",
				ev.Type, ev.Object, ev.Reason, ev.Message, age))
		}
	}

	if len(snap.Logs) > 0 {
		// Error lines first, then the most recent tail
		errorLines := make([]LogEntry, 0)
		for _, entry := range snap.Logs {
			if entry.IsError {
				errorLines = append(errorLines, entry)
			}
		}

		b.WriteString(fmt.Sprintf("\n## Pod Logs (%d lines collected, %d error-level)\n",
			len(snap.Logs), len(errorLines)))

		shown := errorLines
		if len(shown) > maxSummaryLogLines {
			shown = shown[len(shown)-maxSummaryLogLines:]
		}
		for _, entry := range shown {
			b.WriteString(fmt.Sprintf("  [%s/%s] %s\n", entry.PodName, entry.Container, entry.Line))
		}

		if len(errorLines) == 0 {
			tail := snap.Logs
			if len(tail) > maxSummaryLogLines {
				tail = tail[len(tail)-maxSummaryLogLines:]
			}
			for _, entry := range tail {
				b.WriteString(fmt.Sprintf("  [%s/%s] %s\n", entry.PodName, entry.Container, entry.Line))
			}
		}
	}

	return b.String()
}
