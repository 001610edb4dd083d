/*
 * KubeSentinel - Autonomous Kubernetes Remediation Agent
 * Copyright (c) 2025 Edilson Freitas
 * License: MIT
 */
package k8s

import "time"

// HealthSignal classifies the observed state of the target workload.
type HealthSignal string

const (
	HealthHealthy  HealthSignal = "healthy"
	HealthDegraded HealthSignal = "degraded"
	HealthFailed   HealthSignal = "failed"
)

// InspectionSnapshot is an immutable point-in-time observation of a target
// workload. Each Inspect call produces a fresh snapshot; it is never mutated
// after creation.
type InspectionSnapshot struct {
	Timestamp     time.Time
	Deployment    DeploymentStatus
	Pods          []PodStatus
	Events        []Event
	Logs          []LogEntry
	Health        HealthSignal
	FailureReason string // specific reason code when Health != healthy, e.g. "OOMKilled"
}

// DeploymentStatus holds deployment-level information.
type DeploymentStatus struct {
	Name              string
	Namespace         string
	Replicas          int32
	ReadyReplicas     int32
	UpdatedReplicas   int32
	AvailableReplicas int32
	Conditions        []string // human-readable condition summaries
	Strategy          string
}

// PodStatus holds pod-level information.
type PodStatus struct {
	Name           string
	Phase          string // Running, Pending, Failed, etc.
	Ready          bool
	RestartCount   int32
	ContainerCount int
	ReadyCount     int
	StartTime      *time.Time
	Conditions     []string
	WaitingReason  string // e.g. CrashLoopBackOff, ImagePullBackOff
	CPUUsage       string // e.g. "45m" (millicores)
	MemoryUsage    string // e.g. "120Mi"
	LastTerminated *TerminationInfo
}

// TerminationInfo holds info about the last container termination.
type TerminationInfo struct {
	Reason    string
	ExitCode  int32
	StartedAt time.Time
	EndedAt   time.Time
}

// Event represents a Kubernetes event related to the target workload.
type Event struct {
	Timestamp time.Time
	Type      string // Normal, Warning
	Reason    string
	Message   string
	Object    string // e.g. "Pod/myapp-xyz"
	Count     int32
}

// LogEntry holds a log line from a pod of the target workload.
type LogEntry struct {
	Timestamp time.Time
	PodName   string
	Container string
	Line      string
	IsError   bool
}
