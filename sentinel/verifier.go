/*
 * KubeSentinel - Autonomous Kubernetes Remediation Agent
 * Copyright (c) 2025 Edilson Freitas
 * License: MIT
 */
package sentinel

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/diillson/kubesentinel/k8s"
)

// VerificationLoop re-observes the target after a settling delay and decides
// whether the original fault is gone. The cluster is eventually consistent,
// so the delay grows exponentially with the attempt number, capped.
type VerificationLoop struct {
	inspector k8s.Inspector
	baseDelay time.Duration
	maxDelay  time.Duration
	logger    *zap.Logger
}

// NewVerificationLoop creates a verifier over the given inspector.
func NewVerificationLoop(inspector k8s.Inspector, baseDelay, maxDelay time.Duration, logger *zap.Logger) *VerificationLoop {
	if baseDelay <= 0 {
		baseDelay = 5 * time.Second
	}
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	return &VerificationLoop{
		inspector: inspector,
		baseDelay: baseDelay,
		maxDelay:  maxDelay,
		logger:    logger,
	}
}

// SettleDelay returns the wait before re-observing on the given attempt
// (1-based): base, 2*base, 4*base, ... capped at the maximum.
func (v *VerificationLoop) SettleDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := v.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= v.maxDelay {
			return v.maxDelay
		}
	}
	if delay > v.maxDelay {
		return v.maxDelay
	}
	return delay
}

// Verify waits out the settling delay, re-inspects the target, and compares
// the fresh snapshot against the incident's original fault:
//   - resolved: health is back to healthy
//   - unresolved: the same failure reason persists
//   - inconclusive: the target is missing, transitioning, or failing for a
//     different reason (a new-incident candidate, not a verified fix)
//
// The settling wait honors context cancellation. A cluster that stays
// unreachable surfaces the ObservationError to the caller.
func (v *VerificationLoop) Verify(ctx context.Context, incident *Incident, target TargetRef) (VerificationOutcome, *k8s.InspectionSnapshot, error) {
	delay := v.SettleDelay(incident.Attempts)

	v.logger.Info("Waiting for cluster to settle",
		zap.String("target", target.String()),
		zap.Duration("delay", delay),
		zap.Int("attempt", incident.Attempts))

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return VerificationInconclusive, nil, ctx.Err()
	case <-timer.C:
	}

	snap, err := v.inspector.Inspect(ctx, target.Namespace, target.Name)
	if err != nil {
		var obsErr *k8s.ObservationError
		if errors.As(err, &obsErr) && obsErr.NotFound {
			// The resource vanished after our mutation; a human should look.
			return VerificationInconclusive, nil, nil
		}
		return VerificationInconclusive, nil, err
	}

	outcome := compareAgainstFault(incident.Fault, snap)

	v.logger.Info("Verification complete",
		zap.String("target", target.String()),
		zap.String("outcome", string(outcome)),
		zap.String("health", string(snap.Health)),
		zap.String("reason", snap.FailureReason))

	return outcome, snap, nil
}

// compareAgainstFault maps the fresh health signal onto a verification
// outcome relative to the originally diagnosed fault.
func compareAgainstFault(fault FaultCategory, snap *k8s.InspectionSnapshot) VerificationOutcome {
	if snap.Health == k8s.HealthHealthy {
		return VerificationResolved
	}

	if reasonMatchesFault(fault, snap.FailureReason) {
		return VerificationUnresolved
	}

	return VerificationInconclusive
}

// reasonMatchesFault relates inspector reason codes to fault categories.
func reasonMatchesFault(fault FaultCategory, reason string) bool {
	switch fault {
	case FaultOOMKilled:
		return reason == k8s.ReasonOOMKilled
	case FaultCrashLoop:
		// An OOM kill shows up as a crash loop too; treat it as the same
		// persisting fault rather than a new incident.
		return reason == k8s.ReasonCrashLoopBackOff || reason == k8s.ReasonOOMKilled
	case FaultImagePull:
		return reason == k8s.ReasonImagePullBackOff || reason == k8s.ReasonErrImagePull
	case FaultPodNotReady:
		return reason == k8s.ReasonPodNotReady || reason == k8s.ReasonReplicasShort
	}
	return false
}
