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
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/diillson/kubesentinel/k8s"
	"github.com/diillson/kubesentinel/models"
)

// MetricsRecorder is the interface for recording controller metrics.
// Implemented by the metrics package adapter to avoid importing it here.
type MetricsRecorder interface {
	RecordTransition(from, to IncidentState)
	RecordTerminal(state IncidentState, attempts int)
	RecordStageDuration(stage string, duration time.Duration)
}

// ControllerConfig bounds the control loop.
type ControllerConfig struct {
	// MaxAttempts is the circuit breaker: once the attempt count reaches it,
	// no further back-edge into Diagnosing is taken.
	MaxAttempts int

	// MaxValidationRetries bounds rejected-plan re-diagnosis cycles,
	// separately from the attempt ceiling.
	MaxValidationRetries int

	// ApprovalTimeout caps the AwaitingApproval suspension.
	ApprovalTimeout time.Duration

	// AutoEscalateRisk forces plans at or above this risk level straight to
	// Escalated instead of prompting. Empty disables the policy.
	AutoEscalateRisk RiskLevel

	// AllowedActions restricts which action types the diagnosis may propose.
	// Empty allows all of them.
	AllowedActions []ActionType
}

func (c *ControllerConfig) actionAllowed(action ActionType) bool {
	if len(c.AllowedActions) == 0 {
		return true
	}
	for _, a := range c.AllowedActions {
		if a == action {
			return true
		}
	}
	return false
}

func (c *ControllerConfig) applyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.MaxValidationRetries <= 0 {
		c.MaxValidationRetries = 2
	}
	if c.ApprovalTimeout <= 0 {
		c.ApprovalTimeout = 10 * time.Minute
	}
}

// RemediationController sequences inspect -> diagnose -> validate -> approve
// -> remediate -> verify for one incident at a time. It is the sole owner and
// mutator of the Incident.
type RemediationController struct {
	inspector  k8s.Inspector
	engine     *DiagnosisEngine
	validator  *RemediationValidator
	gate       ApprovalGate
	remediator *Remediator
	verifier   *VerificationLoop
	cfg        ControllerConfig
	metrics    MetricsRecorder // optional
	logger     *zap.Logger
}

// NewRemediationController wires the loop components together.
func NewRemediationController(
	inspector k8s.Inspector,
	engine *DiagnosisEngine,
	validator *RemediationValidator,
	gate ApprovalGate,
	remediator *Remediator,
	verifier *VerificationLoop,
	cfg ControllerConfig,
	metrics MetricsRecorder,
	logger *zap.Logger,
) *RemediationController {
	cfg.applyDefaults()
	return &RemediationController{
		inspector:  inspector,
		engine:     engine,
		validator:  validator,
		gate:       gate,
		remediator: remediator,
		verifier:   verifier,
		cfg:        cfg,
		metrics:    metrics,
		logger:     logger,
	}
}

// Run drives one incident for the given target from detection to a terminal
// state. The returned Incident carries the full attempt history regardless of
// outcome. The error is non-nil only for Failed terminations (infrastructure
// failures); remediation-domain outcomes are expressed in the state.
func (c *RemediationController) Run(ctx context.Context, target TargetRef, problem string) (*Incident, error) {
	inc := &Incident{
		ID:          uuid.NewString(),
		Target:      target,
		CreatedAt:   time.Now(),
		State:       StateDetecting,
		MaxAttempts: c.cfg.MaxAttempts,
	}

	c.logger.Info("Incident opened",
		zap.String("incident", inc.ID),
		zap.String("target", target.String()))

	// Detecting
	snap, err := c.inspector.Inspect(ctx, target.Namespace, target.Name)
	if err != nil {
		return c.fail(inc, fmt.Sprintf("cluster observation failed: %v", err)), err
	}

	if snap.Health == k8s.HealthHealthy {
		inc.FinalNote = "target is healthy, nothing to remediate"
		c.terminal(inc, StateSucceeded)
		return inc, nil
	}

	inc.Fault = faultFromReason(snap.FailureReason)

	history := []models.Message{
		{Role: "system", Content: c.engine.SystemPrompt()},
	}
	validationRetries := 0

	for {
		// Circuit breaker: evaluated before every entry into Diagnosing so
		// the ceiling cannot be overshot on any back-edge.
		if inc.Attempts >= c.cfg.MaxAttempts {
			breaker := &CircuitBreakerError{Attempts: inc.Attempts, Ceiling: c.cfg.MaxAttempts}
			return c.escalate(inc, breaker.Error()), nil
		}
		inc.Attempts++

		var diag *Diagnosis
		var plan *RemediationPlan

		// Diagnosing / Validating, looping on rejected plans.
		for {
			c.transition(inc, StateDiagnosing)

			start := time.Now()
			diag, history, err = c.engine.Diagnose(ctx, problem, snap, history)
			c.recordStage("diagnosis", start)
			if err != nil {
				return c.escalate(inc, fmt.Sprintf("diagnosis failed: %v", err)), nil
			}

			inc.History = append(inc.History, AttemptRecord{Number: inc.Attempts, Diagnosis: diag})

			if diag.Fault == FaultUnknown {
				return c.escalate(inc, "diagnosis could not map the fault to a supported category"), nil
			}

			// Policy gate on the action type, before any cluster round-trip.
			if !c.cfg.actionAllowed(diag.Action.Type) {
				detail := fmt.Sprintf("action %s is not permitted by the remediation policy (allowed: %v)",
					diag.Action.Type, c.cfg.AllowedActions)
				inc.CurrentAttempt().Plan = &RemediationPlan{
					Target:          diag.Target,
					Description:     fmt.Sprintf("proposed %s (blocked by policy)", diag.Action.Type),
					Action:          diag.Action,
					Risk:            diag.Risk,
					Validation:      ValidationRejected,
					Rejection:       RejectActionForbidden,
					RejectionDetail: detail,
				}

				c.logger.Warn("Plan rejected, routing back to diagnosis",
					zap.String("incident", inc.ID),
					zap.String("reason", string(RejectActionForbidden)),
					zap.String("detail", detail))

				validationRetries++
				if validationRetries > c.cfg.MaxValidationRetries {
					return c.escalate(inc, fmt.Sprintf("validation retries exhausted (%d), last rejection: %s: %s",
						c.cfg.MaxValidationRetries, RejectActionForbidden, detail)), nil
				}

				history = append(history, models.Message{
					Role: "user",
					Content: fmt.Sprintf("VALIDATION FAILED (%s): %s. Fix your proposal and respond with a corrected diagnosis JSON.",
						RejectActionForbidden, detail),
				})
				continue
			}

			c.transition(inc, StateValidating)

			start = time.Now()
			plan, err = c.validator.Validate(ctx, diag)
			c.recordStage("validation", start)
			if err != nil {
				return c.fail(inc, fmt.Sprintf("validation could not reach the cluster: %v", err)), err
			}

			inc.CurrentAttempt().Plan = plan
			if plan.Accepted() {
				break
			}

			c.logger.Warn("Plan rejected, routing back to diagnosis",
				zap.String("incident", inc.ID),
				zap.String("reason", string(plan.Rejection)),
				zap.String("detail", plan.RejectionDetail))

			validationRetries++
			if validationRetries > c.cfg.MaxValidationRetries {
				return c.escalate(inc, fmt.Sprintf("validation retries exhausted (%d), last rejection: %s: %s",
					c.cfg.MaxValidationRetries, plan.Rejection, plan.RejectionDetail)), nil
			}

			history = append(history, models.Message{
				Role: "user",
				Content: fmt.Sprintf("VALIDATION FAILED (%s): %s. Fix your proposal and respond with a corrected diagnosis JSON.",
					plan.Rejection, plan.RejectionDetail),
			})
		}

		// Risk policy: some plans are never auto-prompted.
		if c.cfg.AutoEscalateRisk != "" && diag.Risk.Rank() >= c.cfg.AutoEscalateRisk.Rank() {
			return c.escalate(inc, fmt.Sprintf("plan risk %s is at or above the %s auto-escalation threshold",
				diag.Risk, c.cfg.AutoEscalateRisk)), nil
		}

		// AwaitingApproval
		c.transition(inc, StateAwaitingApproval)

		payload, _ := plan.RenderedPayload()
		req := ApprovalRequest{
			IncidentID:  inc.ID,
			Attempt:     inc.Attempts,
			Target:      plan.Target,
			Description: plan.Description,
			Action:      plan.Action,
			Risk:        plan.Risk,
			RootCause:   diag.RootCause,
			Evidence:    diag.Evidence,
			Payload:     payload,
		}

		approvalCtx, cancel := context.WithTimeout(ctx, c.cfg.ApprovalTimeout)
		decision, err := c.gate.RequestApproval(approvalCtx, req)
		cancel()
		if err != nil {
			var timeoutErr *ApprovalTimeoutError
			if errors.As(err, &timeoutErr) || errors.Is(err, context.DeadlineExceeded) {
				inc.CurrentAttempt().Approval = &ApprovalDecision{State: ApprovalPending}
				return c.escalate(inc, fmt.Sprintf("approval timed out: %v", err)), nil
			}
			return c.fail(inc, fmt.Sprintf("approval transport failed: %v", err)), err
		}

		inc.CurrentAttempt().Approval = &decision

		if !decision.Approved() {
			inc.FinalNote = "operator denied the remediation"
			if decision.Comment != "" {
				inc.FinalNote += ": " + decision.Comment
			}
			c.terminal(inc, StateDenied)
			return inc, nil
		}

		// Remediating
		c.transition(inc, StateRemediating)

		start := time.Now()
		result, err := c.remediator.Apply(ctx, plan, decision)
		c.recordStage("remediation", start)
		if err != nil {
			// Fail-closed precondition violation: a controller bug, and a
			// case a human must see.
			return c.escalate(inc, fmt.Sprintf("remediator refused to apply: %v", err)), nil
		}

		inc.CurrentAttempt().Execution = result

		if !result.Success {
			// The mutation may have partially landed; never retried blindly.
			return c.escalate(inc, fmt.Sprintf("execution failed: %s (%s)", result.Reason, result.Detail)), nil
		}

		// Verifying
		c.transition(inc, StateVerifying)

		start = time.Now()
		outcome, newSnap, err := c.verifier.Verify(ctx, inc, target)
		c.recordStage("verification", start)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return c.escalate(inc, "aborted while verifying an applied remediation"), nil
			}
			return c.fail(inc, fmt.Sprintf("verification could not observe the cluster: %v", err)), err
		}

		inc.CurrentAttempt().Verification = outcome

		if outcome == VerificationResolved {
			inc.FinalNote = "fault resolved and verified"
			c.terminal(inc, StateSucceeded)
			return inc, nil
		}

		// unresolved or inconclusive: feed the observation back and loop.
		if newSnap != nil {
			snap = newSnap
		}
		history = append(history, models.Message{
			Role: "user",
			Content: fmt.Sprintf("VERIFICATION FAILED (%s) on attempt %d/%d. The fault persists or the state is unclear. "+
				"Do NOT retry the same fix. Analyze the new state below and try a different approach.\n\n%s",
				outcome, inc.Attempts, c.cfg.MaxAttempts, k8s.Summarize(snap)),
		})
	}
}

// transition advances the incident state and records it.
func (c *RemediationController) transition(inc *Incident, to IncidentState) {
	from := inc.State
	inc.State = to
	if c.metrics != nil {
		c.metrics.RecordTransition(from, to)
	}
	c.logger.Debug("State transition",
		zap.String("incident", inc.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
}

// terminal moves the incident into a terminal state and records the outcome.
func (c *RemediationController) terminal(inc *Incident, state IncidentState) {
	c.transition(inc, state)
	if c.metrics != nil {
		c.metrics.RecordTerminal(state, inc.Attempts)
	}
	c.logger.Info("Incident closed",
		zap.String("incident", inc.ID),
		zap.String("state", string(state)),
		zap.Int("attempts", inc.Attempts),
		zap.String("note", inc.FinalNote))
}

func (c *RemediationController) escalate(inc *Incident, note string) *Incident {
	inc.FinalNote = note
	c.terminal(inc, StateEscalated)
	return inc
}

func (c *RemediationController) fail(inc *Incident, note string) *Incident {
	inc.FinalNote = note
	c.terminal(inc, StateFailed)
	return inc
}

func (c *RemediationController) recordStage(stage string, start time.Time) {
	if c.metrics != nil {
		c.metrics.RecordStageDuration(stage, time.Since(start))
	}
}

// faultFromReason maps inspector failure reason codes onto the diagnosis
// fault enumeration.
func faultFromReason(reason string) FaultCategory {
	switch reason {
	case k8s.ReasonOOMKilled:
		return FaultOOMKilled
	case k8s.ReasonCrashLoopBackOff:
		return FaultCrashLoop
	case k8s.ReasonImagePullBackOff, k8s.ReasonErrImagePull:
		return FaultImagePull
	case k8s.ReasonPodNotReady, k8s.ReasonReplicasShort:
		return FaultPodNotReady
	}
	return FaultUnknown
}
