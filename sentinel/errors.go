/*
 * KubeSentinel - Autonomous Kubernetes Remediation Agent
 * Copyright (c) 2025 Edilson Freitas
 * License: MIT
 */
package sentinel

import (
	"fmt"
	"time"
)

// DiagnosisError indicates the reasoning component failed or kept returning
// output that does not conform to the Diagnosis schema. The controller treats
// it as an escalation trigger.
type DiagnosisError struct {
	Attempts int
	Err      error
}

func (e *DiagnosisError) Error() string {
	return fmt.Sprintf("diagnosis failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *DiagnosisError) Unwrap() error { return e.Err }

// ApprovalTimeoutError indicates no operator decision arrived within the
// configured window. Terminal for the attempt.
type ApprovalTimeoutError struct {
	Waited time.Duration
}

func (e *ApprovalTimeoutError) Error() string {
	return fmt.Sprintf("no approval decision after %s", e.Waited)
}

// PreconditionError is the Remediator's fail-closed refusal: apply was called
// without an accepted plan or an approved decision.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("remediation precondition violated: %s", e.Reason)
}

// ExecutionError indicates the real mutation failed. The cluster state may
// already have changed, so the controller never retries it blindly.
type ExecutionError struct {
	Target TargetRef
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("remediation of %s failed: %v", e.Target, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// CircuitBreakerError indicates the attempt ceiling was reached. It overrides
// any other in-flight recoverable state and always escalates.
type CircuitBreakerError struct {
	Attempts int
	Ceiling  int
}

func (e *CircuitBreakerError) Error() string {
	return fmt.Sprintf("attempt ceiling reached (%d/%d), escalating", e.Attempts, e.Ceiling)
}
