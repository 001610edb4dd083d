/*
 * KubeSentinel - Autonomous Kubernetes Remediation Agent
 * Copyright (c) 2025 Edilson Freitas
 * License: MIT
 */
package sentinel

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/diillson/kubesentinel/k8s"
	"github.com/diillson/kubesentinel/llm/client"
)

var testTarget = TargetRef{Namespace: "default", Name: "myapp", Kind: "Deployment"}

func approveGate() ApprovalGate {
	return GateFunc(func(ctx context.Context, req ApprovalRequest) (ApprovalDecision, error) {
		return ApprovalDecision{State: ApprovalApproved, DecidedAt: time.Now()}, nil
	})
}

func denyGate(comment string) ApprovalGate {
	return GateFunc(func(ctx context.Context, req ApprovalRequest) (ApprovalDecision, error) {
		return ApprovalDecision{State: ApprovalDenied, Comment: comment, DecidedAt: time.Now()}, nil
	})
}

func diagnosisJSON(risk, memoryLimit string) string {
	return fmt.Sprintf(`{
		"fault": "OOMKilled",
		"target": {"namespace": "default", "name": "myapp", "kind": "Deployment"},
		"root_cause": "memory limit too low",
		"evidence": "OOMKilled exit code 137",
		"confidence": 0.9,
		"risk": %q,
		"action": {"type": "patch_resources", "container": "myapp", "memory_limit": %q}
	}`, risk, memoryLimit)
}

func newTestController(inspector k8s.Inspector, llm client.LLMClient, gate ApprovalGate, clientset kubernetes.Interface, cfg ControllerConfig) *RemediationController {
	logger := zap.NewNop()
	return NewRemediationController(
		inspector,
		NewDiagnosisEngine(llm, 2, time.Minute, logger),
		NewRemediationValidator(clientset, logger),
		gate,
		NewRemediator(clientset, logger),
		NewVerificationLoop(inspector, time.Millisecond, 2*time.Millisecond, logger),
		cfg,
		nil,
		logger,
	)
}

func TestRun_HappyPath(t *testing.T) {
	// Detection sees an OOM-killed deployment, the first plan is accepted and
	// approved, and verification finds the target healthy again.
	inspector := &stubInspector{snapshots: []*k8s.InspectionSnapshot{
		snapWith(k8s.HealthFailed, k8s.ReasonOOMKilled),
		snapWith(k8s.HealthHealthy, ""),
	}}
	llm := &client.MockLLMClient{Response: diagnosisJSON("low", "256Mi")}
	clientset := fake.NewSimpleClientset(testDeployment())

	c := newTestController(inspector, llm, approveGate(), clientset, ControllerConfig{})
	inc, err := c.Run(context.Background(), testTarget, "pods restarting")

	assert.NoError(t, err)
	assert.Equal(t, StateSucceeded, inc.State)
	assert.Equal(t, 1, inc.Attempts)
	assert.Equal(t, FaultOOMKilled, inc.Fault)
	assert.Len(t, inc.History, 1)

	rec := inc.History[0]
	assert.NotNil(t, rec.Diagnosis)
	assert.True(t, rec.Plan.Accepted())
	assert.True(t, rec.Approval.Approved())
	assert.True(t, rec.Execution.Success)
	assert.Equal(t, VerificationResolved, rec.Verification)
}

func TestRun_HealthyTargetShortCircuits(t *testing.T) {
	inspector := &stubInspector{snapshots: []*k8s.InspectionSnapshot{
		snapWith(k8s.HealthHealthy, ""),
	}}
	llm := &client.MockLLMClient{Response: diagnosisJSON("low", "256Mi")}

	c := newTestController(inspector, llm, approveGate(), fake.NewSimpleClientset(), ControllerConfig{})
	inc, err := c.Run(context.Background(), testTarget, "suspected problem")

	assert.NoError(t, err)
	assert.Equal(t, StateSucceeded, inc.State)
	assert.Equal(t, 0, inc.Attempts)
	assert.Contains(t, inc.FinalNote, "nothing to remediate")
	assert.Equal(t, 0, llm.Calls)
}

func TestRun_ObservationFailureFails(t *testing.T) {
	obsErr := &k8s.ObservationError{Target: "default/deployment/myapp", Err: errors.New("connection refused")}
	inspector := &stubInspector{
		snapshots: []*k8s.InspectionSnapshot{nil},
		errs:      []error{obsErr},
	}

	c := newTestController(inspector, &client.MockLLMClient{}, approveGate(), fake.NewSimpleClientset(), ControllerConfig{})
	inc, err := c.Run(context.Background(), testTarget, "problem")

	assert.Error(t, err)
	assert.Equal(t, StateFailed, inc.State)
	assert.Contains(t, inc.FinalNote, "observation failed")
}

func TestRun_OperatorDenialIsTerminal(t *testing.T) {
	inspector := &stubInspector{snapshots: []*k8s.InspectionSnapshot{
		snapWith(k8s.HealthFailed, k8s.ReasonOOMKilled),
	}}
	llm := &client.MockLLMClient{Response: diagnosisJSON("low", "256Mi")}
	clientset := fake.NewSimpleClientset(testDeployment())

	c := newTestController(inspector, llm, denyGate("too risky for a Friday"), clientset, ControllerConfig{})
	inc, err := c.Run(context.Background(), testTarget, "pods restarting")

	assert.NoError(t, err)
	assert.Equal(t, StateDenied, inc.State)
	assert.Equal(t, 1, inc.Attempts)
	assert.Contains(t, inc.FinalNote, "too risky for a Friday")

	// Nothing was applied.
	assert.Nil(t, inc.History[0].Execution)
}

func TestRun_ValidationRejectionLoopsBackWithoutNewAttempt(t *testing.T) {
	// First proposal has an unparseable quantity, the corrected second one
	// passes. Both cycles happen inside attempt 1.
	inspector := &stubInspector{snapshots: []*k8s.InspectionSnapshot{
		snapWith(k8s.HealthFailed, k8s.ReasonOOMKilled),
		snapWith(k8s.HealthHealthy, ""),
	}}
	llm := &client.MockLLMClient{Responses: []string{
		diagnosisJSON("low", "256 megabytes"),
		diagnosisJSON("low", "256Mi"),
	}}
	clientset := fake.NewSimpleClientset(testDeployment())

	c := newTestController(inspector, llm, approveGate(), clientset, ControllerConfig{})
	inc, err := c.Run(context.Background(), testTarget, "pods restarting")

	assert.NoError(t, err)
	assert.Equal(t, StateSucceeded, inc.State)
	assert.Equal(t, 1, inc.Attempts)
	assert.Len(t, inc.History, 2)
	assert.Equal(t, 1, inc.History[0].Number)
	assert.Equal(t, 1, inc.History[1].Number)
	assert.Equal(t, ValidationRejected, inc.History[0].Plan.Validation)
	assert.True(t, inc.History[1].Plan.Accepted())
}

func TestRun_ValidationRetriesExhaustedEscalates(t *testing.T) {
	inspector := &stubInspector{snapshots: []*k8s.InspectionSnapshot{
		snapWith(k8s.HealthFailed, k8s.ReasonOOMKilled),
	}}
	llm := &client.MockLLMClient{Response: diagnosisJSON("low", "not-a-quantity")}
	clientset := fake.NewSimpleClientset(testDeployment())

	c := newTestController(inspector, llm, approveGate(), clientset, ControllerConfig{MaxValidationRetries: 1})
	inc, err := c.Run(context.Background(), testTarget, "pods restarting")

	assert.NoError(t, err)
	assert.Equal(t, StateEscalated, inc.State)
	assert.Contains(t, inc.FinalNote, "validation retries exhausted")
}

func TestRun_AttemptCeilingEscalates(t *testing.T) {
	// Every remediation applies cleanly but the fault never goes away. The
	// circuit breaker must stop the loop after exactly MaxAttempts cycles.
	inspector := &stubInspector{snapshots: []*k8s.InspectionSnapshot{
		snapWith(k8s.HealthFailed, k8s.ReasonOOMKilled),
	}}
	llm := &client.MockLLMClient{Response: diagnosisJSON("low", "256Mi")}
	clientset := fake.NewSimpleClientset(testDeployment())

	c := newTestController(inspector, llm, approveGate(), clientset, ControllerConfig{MaxAttempts: 3})
	inc, err := c.Run(context.Background(), testTarget, "pods restarting")

	assert.NoError(t, err)
	assert.Equal(t, StateEscalated, inc.State)
	assert.Equal(t, 3, inc.Attempts)
	assert.Contains(t, inc.FinalNote, "attempt ceiling reached")
	assert.Len(t, inc.History, 3)
	for i, rec := range inc.History {
		assert.Equal(t, i+1, rec.Number)
		assert.Equal(t, VerificationUnresolved, rec.Verification)
	}
}

func TestRun_UnknownFaultEscalates(t *testing.T) {
	inspector := &stubInspector{snapshots: []*k8s.InspectionSnapshot{
		snapWith(k8s.HealthFailed, k8s.ReasonOOMKilled),
	}}
	unknownDiag := `{
		"fault": "SolarFlare",
		"target": {"namespace": "default", "name": "myapp"},
		"root_cause": "cosmic rays",
		"confidence": 0.3,
		"risk": "low",
		"action": {"type": "restart_rollout"}
	}`
	llm := &client.MockLLMClient{Response: unknownDiag}

	c := newTestController(inspector, llm, approveGate(), fake.NewSimpleClientset(testDeployment()), ControllerConfig{})
	inc, err := c.Run(context.Background(), testTarget, "problem")

	assert.NoError(t, err)
	assert.Equal(t, StateEscalated, inc.State)
	assert.Contains(t, inc.FinalNote, "supported category")
}

func TestRun_DiagnosisFailureEscalates(t *testing.T) {
	inspector := &stubInspector{snapshots: []*k8s.InspectionSnapshot{
		snapWith(k8s.HealthFailed, k8s.ReasonOOMKilled),
	}}
	llm := &client.MockLLMClient{Err: errors.New("provider is down")}

	c := newTestController(inspector, llm, approveGate(), fake.NewSimpleClientset(), ControllerConfig{})
	inc, err := c.Run(context.Background(), testTarget, "problem")

	assert.NoError(t, err)
	assert.Equal(t, StateEscalated, inc.State)
	assert.Contains(t, inc.FinalNote, "diagnosis failed")
}

func TestRun_ApprovalTimeoutEscalates(t *testing.T) {
	inspector := &stubInspector{snapshots: []*k8s.InspectionSnapshot{
		snapWith(k8s.HealthFailed, k8s.ReasonOOMKilled),
	}}
	llm := &client.MockLLMClient{Response: diagnosisJSON("low", "256Mi")}
	gate := GateFunc(func(ctx context.Context, req ApprovalRequest) (ApprovalDecision, error) {
		return ApprovalDecision{State: ApprovalPending}, &ApprovalTimeoutError{Waited: time.Minute}
	})

	c := newTestController(inspector, llm, gate, fake.NewSimpleClientset(testDeployment()), ControllerConfig{})
	inc, err := c.Run(context.Background(), testTarget, "problem")

	assert.NoError(t, err)
	assert.Equal(t, StateEscalated, inc.State)
	assert.Contains(t, inc.FinalNote, "approval timed out")
	assert.Equal(t, ApprovalPending, inc.History[0].Approval.State)
}

func TestRun_HighRiskAutoEscalates(t *testing.T) {
	inspector := &stubInspector{snapshots: []*k8s.InspectionSnapshot{
		snapWith(k8s.HealthFailed, k8s.ReasonOOMKilled),
	}}
	llm := &client.MockLLMClient{Response: diagnosisJSON("high", "256Mi")}
	gateCalled := false
	gate := GateFunc(func(ctx context.Context, req ApprovalRequest) (ApprovalDecision, error) {
		gateCalled = true
		return ApprovalDecision{State: ApprovalApproved}, nil
	})

	c := newTestController(inspector, llm, gate, fake.NewSimpleClientset(testDeployment()),
		ControllerConfig{AutoEscalateRisk: RiskHigh})
	inc, err := c.Run(context.Background(), testTarget, "problem")

	assert.NoError(t, err)
	assert.Equal(t, StateEscalated, inc.State)
	assert.Contains(t, inc.FinalNote, "auto-escalation threshold")
	assert.False(t, gateCalled)
}

func TestRun_ExecutionFailureEscalates(t *testing.T) {
	inspector := &stubInspector{snapshots: []*k8s.InspectionSnapshot{
		snapWith(k8s.HealthFailed, k8s.ReasonOOMKilled),
	}}
	llm := &client.MockLLMClient{Response: diagnosisJSON("low", "256Mi")}

	// First patch (the dry-run) passes; the real one fails.
	clientset := fake.NewSimpleClientset(testDeployment())
	patches := 0
	clientset.PrependReactor("patch", "deployments",
		func(action k8stesting.Action) (bool, runtime.Object, error) {
			patches++
			if patches > 1 {
				return true, nil, errors.New("admission webhook denied the request")
			}
			return false, nil, nil
		})

	c := newTestController(inspector, llm, approveGate(), clientset, ControllerConfig{})
	inc, err := c.Run(context.Background(), testTarget, "problem")

	assert.NoError(t, err)
	assert.Equal(t, StateEscalated, inc.State)
	assert.Contains(t, inc.FinalNote, "execution failed")
	assert.False(t, inc.History[0].Execution.Success)
}

func TestRun_ForbiddenActionLoopsThenEscalates(t *testing.T) {
	// Policy only permits rollout restarts; the model keeps proposing a
	// resource patch, so every proposal is rejected without touching the
	// cluster and the incident escalates once the retries run out.
	inspector := &stubInspector{snapshots: []*k8s.InspectionSnapshot{
		snapWith(k8s.HealthFailed, k8s.ReasonOOMKilled),
	}}
	llm := &client.MockLLMClient{Response: diagnosisJSON("low", "256Mi")}
	clientset := fake.NewSimpleClientset(testDeployment())

	cfg := ControllerConfig{
		MaxValidationRetries: 1,
		AllowedActions:       []ActionType{ActionRestartRollout},
	}
	c := newTestController(inspector, llm, approveGate(), clientset, cfg)
	inc, err := c.Run(context.Background(), testTarget, "pods restarting")

	assert.NoError(t, err)
	assert.Equal(t, StateEscalated, inc.State)
	assert.Equal(t, 1, inc.Attempts)
	assert.Contains(t, inc.FinalNote, "action-forbidden-by-policy")
	assert.Equal(t, 2, llm.Calls)

	rec := inc.History[0]
	assert.Equal(t, RejectActionForbidden, rec.Plan.Rejection)
	assert.Contains(t, rec.Plan.RejectionDetail, "patch_resources")

	// The rejected proposal never produced a dry-run or a mutation.
	assert.Empty(t, clientset.Actions())
}

func TestFaultFromReason(t *testing.T) {
	testCases := []struct {
		reason   string
		expected FaultCategory
	}{
		{k8s.ReasonOOMKilled, FaultOOMKilled},
		{k8s.ReasonCrashLoopBackOff, FaultCrashLoop},
		{k8s.ReasonImagePullBackOff, FaultImagePull},
		{k8s.ReasonErrImagePull, FaultImagePull},
		{k8s.ReasonPodNotReady, FaultPodNotReady},
		{k8s.ReasonReplicasShort, FaultPodNotReady},
		{"SomethingElse", FaultUnknown},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, faultFromReason(tc.reason), tc.reason)
	}
}
