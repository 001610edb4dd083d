/*
 * KubeSentinel - Autonomous Kubernetes Remediation Agent
 * Copyright (c) 2025 Edilson Freitas
 * License: MIT
 */
package sentinel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func acceptedPlan() *RemediationPlan {
	return &RemediationPlan{
		Target:     TargetRef{Namespace: "default", Name: "myapp", Kind: "Deployment"},
		Action:     RemediationAction{Type: ActionScaleReplicas, Replicas: int32Ptr(3)},
		Patch:      []byte(`{"spec":{"replicas":3}}`),
		Validation: ValidationAccepted,
	}
}

func approved() ApprovalDecision {
	return ApprovalDecision{State: ApprovalApproved, DecidedAt: time.Now()}
}

func TestApply_RefusesUnvalidatedPlan(t *testing.T) {
	r := NewRemediator(fake.NewSimpleClientset(testDeployment()), zap.NewNop())

	plan := acceptedPlan()
	plan.Validation = ValidationRejected

	result, err := r.Apply(context.Background(), plan, approved())

	assert.Nil(t, result)
	var preErr *PreconditionError
	assert.ErrorAs(t, err, &preErr)
	assert.Contains(t, preErr.Reason, "not accepted")
}

func TestApply_RefusesWithoutApproval(t *testing.T) {
	r := NewRemediator(fake.NewSimpleClientset(testDeployment()), zap.NewNop())

	result, err := r.Apply(context.Background(), acceptedPlan(), ApprovalDecision{State: ApprovalDenied})

	assert.Nil(t, result)
	var preErr *PreconditionError
	assert.ErrorAs(t, err, &preErr)
	assert.Contains(t, preErr.Reason, "approval")
}

func TestApply_PatchSuccess(t *testing.T) {
	clientset := fake.NewSimpleClientset(testDeployment())
	r := NewRemediator(clientset, zap.NewNop())

	result, err := r.Apply(context.Background(), acceptedPlan(), approved())

	assert.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.AppliedAt.IsZero())

	deploy, err := clientset.AppsV1().Deployments("default").Get(context.Background(), "myapp", metav1.GetOptions{})
	assert.NoError(t, err)
	assert.Equal(t, int32(3), *deploy.Spec.Replicas)
}

func TestApply_PatchFailureInResult(t *testing.T) {
	// No deployment exists: the API rejects the patch, which surfaces inside
	// the result rather than as an error.
	r := NewRemediator(fake.NewSimpleClientset(), zap.NewNop())

	result, err := r.Apply(context.Background(), acceptedPlan(), approved())

	assert.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "cluster API rejected the mutation", result.Reason)
	assert.NotEmpty(t, result.Detail)
}

func TestApply_CreateWorkload(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	r := NewRemediator(clientset, zap.NewNop())

	plan := &RemediationPlan{
		Target:     TargetRef{Namespace: "default", Name: "myapp", Kind: "Deployment"},
		Action:     RemediationAction{Type: ActionCreateWorkload},
		Workload:   testDeployment(),
		Validation: ValidationAccepted,
	}

	result, err := r.Apply(context.Background(), plan, approved())

	assert.NoError(t, err)
	assert.True(t, result.Success)

	_, err = clientset.AppsV1().Deployments("default").Get(context.Background(), "myapp", metav1.GetOptions{})
	assert.NoError(t, err)
}
