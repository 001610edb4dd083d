/*
 * KubeSentinel - Autonomous Kubernetes Remediation Agent
 * Copyright (c) 2025 Edilson Freitas
 * License: MIT
 */
package sentinel

import (
	"context"
	"time"

	"go.uber.org/zap"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
)

// Remediator applies the validated, approved mutation for real. The
// controller enforces the dual gate; the Remediator re-checks it and fails
// closed anyway. Execution failures are reported, never retried here - retry
// policy lives in the outer loop.
type Remediator struct {
	clientset kubernetes.Interface
	logger    *zap.Logger
}

// NewRemediator creates a remediator over the cluster API.
func NewRemediator(clientset kubernetes.Interface, logger *zap.Logger) *Remediator {
	return &Remediator{clientset: clientset, logger: logger}
}

// Apply performs the real (non-dry-run) mutation. It returns a
// PreconditionError when invoked without an accepted plan and an approved
// decision; API failures come back inside the ExecutionResult.
func (r *Remediator) Apply(ctx context.Context, plan *RemediationPlan, decision ApprovalDecision) (*ExecutionResult, error) {
	if !plan.Accepted() {
		return nil, &PreconditionError{Reason: "plan was not accepted by validation"}
	}
	if !decision.Approved() {
		return nil, &PreconditionError{Reason: "operator approval is missing"}
	}

	r.logger.Info("Applying remediation",
		zap.String("target", plan.Target.String()),
		zap.String("action", string(plan.Action.Type)),
		zap.String("description", plan.Description))

	var err error
	if plan.Workload != nil {
		_, err = r.clientset.AppsV1().Deployments(plan.Target.Namespace).Create(ctx, plan.Workload, metav1.CreateOptions{})
	} else {
		_, err = r.clientset.AppsV1().Deployments(plan.Target.Namespace).Patch(ctx, plan.Target.Name,
			types.StrategicMergePatchType, plan.Patch, metav1.PatchOptions{})
	}

	result := &ExecutionResult{AppliedAt: time.Now()}
	if err != nil {
		result.Success = false
		result.Reason = "cluster API rejected the mutation"
		result.Detail = err.Error()
		r.logger.Error("Remediation apply failed",
			zap.String("target", plan.Target.String()),
			zap.Error(err))
		return result, nil
	}

	result.Success = true
	r.logger.Info("Remediation applied", zap.String("target", plan.Target.String()))
	return result, nil
}
