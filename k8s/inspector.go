/*
 * KubeSentinel - Autonomous Kubernetes Remediation Agent
 * Copyright (c) 2025 Edilson Freitas
 * License: MIT
 */
package k8s

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	metricsv "k8s.io/metrics/pkg/client/clientset/versioned"
)

// ObservationError indicates the cluster could not be read. Always
// recoverable by retrying inspection, never fatal to the controller.
type ObservationError struct {
	Target   string
	NotFound bool
	Err      error
}

func (e *ObservationError) Error() string {
	if e.NotFound {
		return fmt.Sprintf("target %s not found: %v", e.Target, e.Err)
	}
	return fmt.Sprintf("failed to observe %s: %v", e.Target, e.Err)
}

func (e *ObservationError) Unwrap() error { return e.Err }

// Inspector provides read-only access to cluster state. The interface exposes
// no mutation capability at all.
type Inspector interface {
	Inspect(ctx context.Context, namespace, deployment string) (*InspectionSnapshot, error)
}

// ClusterInspector implements Inspector over the Kubernetes API, with a
// bounded local retry for transient read failures.
type ClusterInspector struct {
	clientset     kubernetes.Interface
	metricsClient metricsv.Interface
	maxLogLines   int
	maxAttempts   int
	backoff       time.Duration
	logger        *zap.Logger
}

// NewClusterInspector creates an inspector. maxAttempts and backoff bound the
// local retry for transient API errors before an ObservationError surfaces.
func NewClusterInspector(clientset kubernetes.Interface, metricsClient metricsv.Interface, maxLogLines, maxAttempts int, backoff time.Duration, logger *zap.Logger) *ClusterInspector {
	if maxLogLines <= 0 {
		maxLogLines = 50
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if backoff <= 0 {
		backoff = time.Second
	}
	return &ClusterInspector{
		clientset:     clientset,
		metricsClient: metricsClient,
		maxLogLines:   maxLogLines,
		maxAttempts:   maxAttempts,
		backoff:       backoff,
		logger:        logger,
	}
}

// Inspect produces a fresh snapshot of the deployment, its pods, recent
// events, logs, and the computed health signal.
func (c *ClusterInspector) Inspect(ctx context.Context, namespace, deployment string) (*InspectionSnapshot, error) {
	target := fmt.Sprintf("%s/deployment/%s", namespace, deployment)

	deploy, err := c.getDeploymentWithRetry(ctx, namespace, deployment)
	if err != nil {
		return nil, err
	}

	snap := &InspectionSnapshot{
		Timestamp:  time.Now(),
		Deployment: extractDeploymentStatus(deploy),
	}

	selector, err := metav1.LabelSelectorAsSelector(deploy.Spec.Selector)
	if err != nil {
		return nil, &ObservationError{Target: target, Err: fmt.Errorf("failed to parse deployment selector: %w", err)}
	}

	pods, err := c.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: selector.String(),
	})
	if err != nil {
		return nil, &ObservationError{Target: target, Err: fmt.Errorf("failed to list pods: %w", err)}
	}

	snap.Pods = make([]PodStatus, 0, len(pods.Items))
	for i := range pods.Items {
		snap.Pods = append(snap.Pods, extractPodStatus(&pods.Items[i]))
	}

	c.enrichWithMetrics(ctx, namespace, snap.Pods)

	// Events and logs are supporting context; their failure degrades the
	// snapshot but does not fail the inspection.
	events, err := c.collectEvents(ctx, namespace, deployment, pods.Items)
	if err != nil {
		c.logger.Warn("Event collection failed", zap.Error(err))
	} else {
		snap.Events = events
	}

	logs, err := c.collectLogs(ctx, namespace, pods.Items)
	if err != nil {
		c.logger.Warn("Log collection failed", zap.Error(err))
	} else {
		snap.Logs = logs
	}

	snap.Health, snap.FailureReason = classifyHealth(snap)

	c.logger.Debug("Inspection complete",
		zap.String("target", target),
		zap.String("health", string(snap.Health)),
		zap.String("reason", snap.FailureReason),
		zap.Int("pods", len(snap.Pods)),
		zap.Int("events", len(snap.Events)),
	)

	return snap, nil
}

// getDeploymentWithRetry reads the deployment, retrying transient errors up
// to the configured bound. Not-found is surfaced immediately.
func (c *ClusterInspector) getDeploymentWithRetry(ctx context.Context, namespace, deployment string) (*appsv1.Deployment, error) {
	target := fmt.Sprintf("%s/deployment/%s", namespace, deployment)
	backoff := c.backoff

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		deploy, err := c.clientset.AppsV1().Deployments(namespace).Get(ctx, deployment, metav1.GetOptions{})
		if err == nil {
			return deploy, nil
		}
		if apierrors.IsNotFound(err) {
			return nil, &ObservationError{Target: target, NotFound: true, Err: err}
		}
		lastErr = err

		c.logger.Warn("Transient error reading deployment, retrying",
			zap.String("target", target),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.maxAttempts),
			zap.Error(err))

		if attempt < c.maxAttempts {
			select {
			case <-ctx.Done():
				return nil, &ObservationError{Target: target, Err: ctx.Err()}
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}

	return nil, &ObservationError{Target: target, Err: fmt.Errorf("after %d attempts: %w", c.maxAttempts, lastErr)}
}

func extractDeploymentStatus(deploy *appsv1.Deployment) DeploymentStatus {
	status := DeploymentStatus{
		Name:              deploy.Name,
		Namespace:         deploy.Namespace,
		ReadyReplicas:     deploy.Status.ReadyReplicas,
		UpdatedReplicas:   deploy.Status.UpdatedReplicas,
		AvailableReplicas: deploy.Status.AvailableReplicas,
	}

	if deploy.Spec.Replicas != nil {
		status.Replicas = *deploy.Spec.Replicas
	}
	if deploy.Spec.Strategy.Type != "" {
		status.Strategy = string(deploy.Spec.Strategy.Type)
	}

	for _, cond := range deploy.Status.Conditions {
		status.Conditions = append(status.Conditions,
			fmt.Sprintf("%s=%s (%s)", cond.Type, cond.Status, cond.Reason))
	}

	return status
}

func extractPodStatus(pod *corev1.Pod) PodStatus {
	ps := PodStatus{
		Name:           pod.Name,
		Phase:          string(pod.Status.Phase),
		ContainerCount: len(pod.Spec.Containers),
	}

	if pod.Status.StartTime != nil {
		t := pod.Status.StartTime.Time
		ps.StartTime = &t
	}

	for _, cs := range pod.Status.ContainerStatuses {
		ps.RestartCount += cs.RestartCount
		if cs.Ready {
			ps.ReadyCount++
		}

		if cs.State.Waiting != nil && cs.State.Waiting.Reason != "" {
			ps.WaitingReason = cs.State.Waiting.Reason
		}

		if cs.LastTerminationState.Terminated != nil {
			term := cs.LastTerminationState.Terminated
			ps.LastTerminated = &TerminationInfo{
				Reason:    term.Reason,
				ExitCode:  term.ExitCode,
				StartedAt: term.StartedAt.Time,
				EndedAt:   term.FinishedAt.Time,
			}
		}
	}

	ps.Ready = ps.ContainerCount > 0 && ps.ReadyCount == ps.ContainerCount

	for _, cond := range pod.Status.Conditions {
		if cond.Status == corev1.ConditionFalse {
			ps.Conditions = append(ps.Conditions,
				fmt.Sprintf("%s=%s (%s: %s)", cond.Type, cond.Status, cond.Reason, cond.Message))
		}
	}

	return ps
}

// collectEvents gathers recent events for the deployment and its pods.
func (c *ClusterInspector) collectEvents(ctx context.Context, namespace, deployment string, pods []corev1.Pod) ([]Event, error) {
	allEvents, err := c.clientset.CoreV1().Events(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	podNames := make(map[string]bool, len(pods))
	for _, pod := range pods {
		podNames[pod.Name] = true
	}

	result := make([]Event, 0)
	for i := range allEvents.Items {
		ev := &allEvents.Items[i]
		if ev.InvolvedObject.Name != deployment && !podNames[ev.InvolvedObject.Name] {
			continue
		}
		ts := ev.LastTimestamp.Time
		if ts.IsZero() {
			ts = ev.CreationTimestamp.Time
		}
		result = append(result, Event{
			Timestamp: ts,
			Type:      ev.Type,
			Reason:    ev.Reason,
			Message:   ev.Message,
			Object:    fmt.Sprintf("%s/%s", ev.InvolvedObject.Kind, ev.InvolvedObject.Name),
			Count:     ev.Count,
		})
	}

	return result, nil
}

// collectLogs gathers recent logs from all containers of the given pods.
func (c *ClusterInspector) collectLogs(ctx context.Context, namespace string, pods []corev1.Pod) ([]LogEntry, error) {
	tailLines := int64(c.maxLogLines)
	result := make([]LogEntry, 0)

	for _, pod := range pods {
		for _, container := range pod.Spec.Containers {
			req := c.clientset.CoreV1().Pods(namespace).GetLogs(pod.Name, &corev1.PodLogOptions{
				Container:  container.Name,
				TailLines:  &tailLines,
				Timestamps: true,
			})

			stream, err := req.Stream(ctx)
			if err != nil {
				c.logger.Debug("Failed to get logs for pod/container",
					zap.String("pod", pod.Name),
					zap.String("container", container.Name),
					zap.Error(err))
				continue
			}

			entries := parseLogs(stream, pod.Name, container.Name)
			stream.Close()
			result = append(result, entries...)
		}
	}

	return result, nil
}

func parseLogs(reader io.Reader, podName, container string) []LogEntry {
	entries := make([]LogEntry, 0)
	scanner := bufio.NewScanner(reader)

	for scanner.Scan() {
		line := scanner.Text()
		entry := LogEntry{
			PodName:   podName,
			Container: container,
			Line:      line,
			Timestamp: time.Now(),
		}

		// Try to parse timestamp from log line (format: 2024-01-01T00:00:00.000Z log line)
		if idx := strings.IndexByte(line, ' '); idx > 0 {
			if ts, err := time.Parse(time.RFC3339Nano, line[:idx]); err == nil {
				entry.Timestamp = ts
				entry.Line = line[idx+1:]
			}
		}

		lower := strings.ToLower(entry.Line)
		entry.IsError = strings.Contains(lower, "error") ||
			strings.Contains(lower, "fatal") ||
			strings.Contains(lower, "panic") ||
			strings.Contains(lower, "exception") ||
			strings.Contains(lower, "oomkilled")

		entries = append(entries, entry)
	}

	return entries
}

// enrichWithMetrics adds CPU/memory usage from metrics-server when available.
func (c *ClusterInspector) enrichWithMetrics(ctx context.Context, namespace string, pods []PodStatus) {
	if c.metricsClient == nil {
		return
	}

	podMetrics, err := c.metricsClient.MetricsV1beta1().PodMetricses(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		c.logger.Debug("Metrics server not available", zap.Error(err))
		return
	}

	metricsMap := make(map[string]struct{ cpu, mem string })
	for _, pm := range podMetrics.Items {
		var totalCPU, totalMem int64
		for _, ct := range pm.Containers {
			totalCPU += ct.Usage.Cpu().MilliValue()
			totalMem += ct.Usage.Memory().Value() / (1024 * 1024) // to Mi
		}
		metricsMap[pm.Name] = struct{ cpu, mem string }{
			cpu: fmt.Sprintf("%dm", totalCPU),
			mem: fmt.Sprintf("%dMi", totalMem),
		}
	}

	for i := range pods {
		if m, ok := metricsMap[pods[i].Name]; ok {
			pods[i].CPUUsage = m.cpu
			pods[i].MemoryUsage = m.mem
		}
	}
}
