/*
 * KubeSentinel - Autonomous Kubernetes Remediation Agent
 * Copyright (c) 2025 Edilson Freitas
 * License: MIT
 */
package k8s

// Failure reason codes produced by classifyHealth. These feed the diagnosis
// prompt and the verification comparison, so they must stay stable.
const (
	ReasonOOMKilled        = "OOMKilled"
	ReasonCrashLoopBackOff = "CrashLoopBackOff"
	ReasonImagePullBackOff = "ImagePullBackOff"
	ReasonErrImagePull     = "ErrImagePull"
	ReasonPodNotReady      = "PodNotReady"
	ReasonReplicasShort    = "ReplicasUnavailable"
)

// classifyHealth computes the health signal and a specific failure reason for
// a snapshot. The reason is the first concrete fault found, pods over
// deployment-level symptoms.
func classifyHealth(snap *InspectionSnapshot) (HealthSignal, string) {
	failedReason := ""
	degradedReason := ""

	for _, pod := range snap.Pods {
		switch pod.WaitingReason {
		case ReasonCrashLoopBackOff:
			// OOM-driven crash loops surface as CrashLoopBackOff with an
			// OOMKilled last termination; report the root reason.
			if pod.LastTerminated != nil && pod.LastTerminated.Reason == ReasonOOMKilled {
				return HealthFailed, ReasonOOMKilled
			}
			failedReason = ReasonCrashLoopBackOff
		case ReasonImagePullBackOff, ReasonErrImagePull:
			failedReason = pod.WaitingReason
		}

		if failedReason != "" {
			continue
		}

		if pod.LastTerminated != nil && pod.LastTerminated.Reason == ReasonOOMKilled && !pod.Ready {
			failedReason = ReasonOOMKilled
		}

		if pod.Phase == "Running" && !pod.Ready {
			degradedReason = ReasonPodNotReady
		}
	}

	if failedReason != "" {
		return HealthFailed, failedReason
	}

	d := snap.Deployment
	if d.ReadyReplicas < d.Replicas {
		if d.ReadyReplicas == 0 && d.Replicas > 0 {
			return HealthFailed, ReasonReplicasShort
		}
		return HealthDegraded, ReasonReplicasShort
	}

	if degradedReason != "" {
		return HealthDegraded, degradedReason
	}

	return HealthHealthy, ""
}
