/*
 * KubeSentinel - Autonomous Kubernetes Remediation Agent
 * Copyright (c) 2025 Edilson Freitas
 * License: MIT
 */
package sentinel

import (
	"fmt"
	"time"

	appsv1 "k8s.io/api/apps/v1"
)

// TargetRef identifies the workload an incident is about.
type TargetRef struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	Kind      string `json:"kind"` // e.g. "Deployment"
}

func (t TargetRef) String() string {
	return fmt.Sprintf("%s/%s/%s", t.Namespace, t.Kind, t.Name)
}

// IsZero reports whether the reference is missing its required fields.
func (t TargetRef) IsZero() bool {
	return t.Namespace == "" || t.Name == ""
}

// FaultCategory is the closed enumeration of failure classes the engine can
// diagnose. Anything the model cannot map into this set becomes FaultUnknown.
type FaultCategory string

const (
	FaultOOMKilled   FaultCategory = "OOMKilled"
	FaultCrashLoop   FaultCategory = "CrashLoopBackOff"
	FaultImagePull   FaultCategory = "ImagePullFailure"
	FaultPodNotReady FaultCategory = "PodNotReady"
	FaultUnknown     FaultCategory = "Unknown"
)

// KnownFaultCategories lists the categories the validator can act on.
var KnownFaultCategories = map[FaultCategory]bool{
	FaultOOMKilled:   true,
	FaultCrashLoop:   true,
	FaultImagePull:   true,
	FaultPodNotReady: true,
	FaultUnknown:     true,
}

// RiskLevel declares how dangerous applying a remediation is.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Rank orders risk levels for threshold comparisons. Unknown levels rank
// highest so a malformed risk is never treated as safe.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	case RiskCritical:
		return 3
	}
	return 4
}

// IsValid reports whether the level is one of the declared values.
func (r RiskLevel) IsValid() bool {
	return r.Rank() <= 3
}

// ActionType enumerates the remediation actions the validator knows how to
// render into a concrete mutation.
type ActionType string

const (
	ActionPatchResources ActionType = "patch_resources"
	ActionSetImage       ActionType = "set_image"
	ActionRestartRollout ActionType = "restart_rollout"
	ActionScaleReplicas  ActionType = "scale_replicas"
	ActionCreateWorkload ActionType = "create_workload"
)

// RemediationAction is the typed action a diagnosis proposes. Only the fields
// relevant to the action type are set.
type RemediationAction struct {
	Type ActionType `json:"type"`

	// patch_resources
	Container     string `json:"container,omitempty"`
	CPULimit      string `json:"cpu_limit,omitempty"`
	CPURequest    string `json:"cpu_request,omitempty"`
	MemoryLimit   string `json:"memory_limit,omitempty"`
	MemoryRequest string `json:"memory_request,omitempty"`

	// set_image
	Image string `json:"image,omitempty"`

	// scale_replicas
	Replicas *int32 `json:"replicas,omitempty"`

	// create_workload: a full manifest (apiVersion/kind/metadata/spec)
	Manifest map[string]interface{} `json:"manifest,omitempty"`
}

// Diagnosis is the engine's structured conclusion for one attempt. A new
// Diagnosis is produced per attempt; it is never mutated after creation.
type Diagnosis struct {
	Fault      FaultCategory     `json:"fault"`
	Target     TargetRef         `json:"target"`
	RootCause  string            `json:"root_cause"`
	Evidence   string            `json:"evidence"`
	Confidence float64           `json:"confidence"`
	Action     RemediationAction `json:"action"`
	Risk       RiskLevel         `json:"risk"`
}

// ValidationState tracks whether a plan has passed the dry-run gate.
type ValidationState string

const (
	ValidationPending  ValidationState = "pending"
	ValidationAccepted ValidationState = "accepted"
	ValidationRejected ValidationState = "rejected"
)

// RejectionReason categorizes why the validator refused a plan.
type RejectionReason string

const (
	RejectSchemaInvalid    RejectionReason = "schema-invalid"
	RejectDryRunRejected   RejectionReason = "dry-run-rejected"
	RejectUnsupportedFault RejectionReason = "unsupported-fault-category"
	RejectActionForbidden  RejectionReason = "action-forbidden-by-policy"
)

// RemediationPlan is the concrete mutation derived from a Diagnosis.
// Immutable once accepted; an incident holds at most one active plan.
type RemediationPlan struct {
	Target      TargetRef
	Action      RemediationAction
	Description string
	Risk        RiskLevel

	// Patch holds the strategic merge patch for mutation actions.
	// Workload holds the decoded manifest for create_workload actions.
	// Exactly one of the two is set on an accepted plan.
	Patch    []byte
	Workload *appsv1.Deployment

	Validation      ValidationState
	Rejection       RejectionReason
	RejectionDetail string
}

// Accepted reports whether the plan passed both structural validation and the
// server-side dry-run.
func (p *RemediationPlan) Accepted() bool {
	return p != nil && p.Validation == ValidationAccepted
}

// ApprovalState is the operator's decision status.
type ApprovalState string

const (
	ApprovalPending  ApprovalState = "pending"
	ApprovalApproved ApprovalState = "approved"
	ApprovalDenied   ApprovalState = "denied"
)

// ApprovalDecision records the operator's answer for one plan. Resolved
// exactly once, then frozen.
type ApprovalDecision struct {
	State     ApprovalState
	Comment   string
	DecidedAt time.Time
}

// Approved reports whether the operator explicitly authorized the plan.
func (d ApprovalDecision) Approved() bool {
	return d.State == ApprovalApproved
}

// ApprovalRequest is the presentation payload handed to the operator
// transport: target, rendered action, risk, and supporting context.
type ApprovalRequest struct {
	IncidentID  string
	Attempt     int
	Target      TargetRef
	Description string
	Action      RemediationAction
	Risk        RiskLevel
	RootCause   string
	Evidence    string
	Payload     []byte // rendered patch or manifest JSON, display only
}

// ExecutionResult is the outcome of applying a plan. Detail carries raw
// transport-level diagnostics for operator display; it is not authoritative.
type ExecutionResult struct {
	Success   bool
	Reason    string
	Detail    string
	AppliedAt time.Time
}

// VerificationOutcome is the verdict of the post-remediation check.
type VerificationOutcome string

const (
	VerificationResolved     VerificationOutcome = "resolved"
	VerificationUnresolved   VerificationOutcome = "unresolved"
	VerificationInconclusive VerificationOutcome = "inconclusive"
)

// IncidentState is the controller's state machine position.
type IncidentState string

const (
	StateDetecting        IncidentState = "Detecting"
	StateDiagnosing       IncidentState = "Diagnosing"
	StateValidating       IncidentState = "Validating"
	StateAwaitingApproval IncidentState = "AwaitingApproval"
	StateRemediating      IncidentState = "Remediating"
	StateVerifying        IncidentState = "Verifying"
	StateSucceeded        IncidentState = "Succeeded"
	StateDenied           IncidentState = "Denied"
	StateFailed           IncidentState = "Failed"
	StateEscalated        IncidentState = "Escalated"
)

// Terminal reports whether the state ends the incident.
func (s IncidentState) Terminal() bool {
	switch s {
	case StateSucceeded, StateDenied, StateFailed, StateEscalated:
		return true
	}
	return false
}

// AttemptRecord captures everything that happened in one diagnosis cycle so
// terminal states can report the full history.
type AttemptRecord struct {
	Number       int
	Diagnosis    *Diagnosis
	Plan         *RemediationPlan
	Approval     *ApprovalDecision
	Execution    *ExecutionResult
	Verification VerificationOutcome
	Note         string
}

// Incident tracks one remediation attempt for one detected fault. It is owned
// exclusively by the RemediationController, which is the only mutator.
type Incident struct {
	ID          string
	Target      TargetRef
	Fault       FaultCategory
	CreatedAt   time.Time
	State       IncidentState
	Attempts    int
	MaxAttempts int
	History     []AttemptRecord
	FinalNote   string
}

// CurrentAttempt returns the record being built for the active cycle, or nil
// if no cycle has started.
func (i *Incident) CurrentAttempt() *AttemptRecord {
	if len(i.History) == 0 {
		return nil
	}
	return &i.History[len(i.History)-1]
}
