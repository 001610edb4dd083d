/*
 * KubeSentinel - Autonomous Kubernetes Remediation Agent
 * Copyright (c) 2025 Edilson Freitas
 * License: MIT
 */
package sentinel

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ApprovalGate blocks the control loop until an explicit operator decision
// arrives. This is the sole deliberate suspension point besides the LLM call
// and the verification settling delay; the transport (terminal, chat, ...)
// lives outside this package.
type ApprovalGate interface {
	RequestApproval(ctx context.Context, req ApprovalRequest) (ApprovalDecision, error)
}

// GateFunc adapts a function to the ApprovalGate interface.
type GateFunc func(ctx context.Context, req ApprovalRequest) (ApprovalDecision, error)

func (f GateFunc) RequestApproval(ctx context.Context, req ApprovalRequest) (ApprovalDecision, error) {
	return f(ctx, req)
}

// AsyncGate is a long-lived suspension resumable by an external event: the
// loop parks in RequestApproval while some other goroutine (a chat handler,
// an HTTP endpoint) delivers the decision through Resolve. Cancellation of
// the context counts as deny-by-abort; a deadline expiry counts as a timeout
// with no decision on record.
type AsyncGate struct {
	mu      sync.Mutex
	pending map[string]chan ApprovalDecision
	timeout time.Duration
}

// NewAsyncGate creates a gate with the given decision timeout.
func NewAsyncGate(timeout time.Duration) *AsyncGate {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &AsyncGate{
		pending: make(map[string]chan ApprovalDecision),
		timeout: timeout,
	}
}

// RequestApproval parks until Resolve delivers a decision for the incident,
// the timeout elapses, or the context is cancelled.
func (g *AsyncGate) RequestApproval(ctx context.Context, req ApprovalRequest) (ApprovalDecision, error) {
	ch := make(chan ApprovalDecision, 1)

	g.mu.Lock()
	g.pending[req.IncidentID] = ch
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.pending, req.IncidentID)
		g.mu.Unlock()
	}()

	start := time.Now()
	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	select {
	case decision := <-ch:
		if decision.DecidedAt.IsZero() {
			decision.DecidedAt = time.Now()
		}
		return decision, nil
	case <-timer.C:
		return ApprovalDecision{State: ApprovalPending}, &ApprovalTimeoutError{Waited: g.timeout}
	case <-ctx.Done():
		// A deadline expiring means nobody answered; only an actual abort is
		// recorded as an operator denial.
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ApprovalDecision{State: ApprovalPending}, &ApprovalTimeoutError{Waited: time.Since(start)}
		}
		return ApprovalDecision{
			State:     ApprovalDenied,
			Comment:   "aborted by operator",
			DecidedAt: time.Now(),
		}, nil
	}
}

// Resolve delivers the operator's decision for a waiting incident. It returns
// false when no request is parked under that incident id, or when the
// decision was already delivered.
func (g *AsyncGate) Resolve(incidentID string, decision ApprovalDecision) bool {
	g.mu.Lock()
	ch, ok := g.pending[incidentID]
	if ok {
		delete(g.pending, incidentID)
	}
	g.mu.Unlock()

	if !ok {
		return false
	}

	ch <- decision
	return true
}

// Pending lists the incident ids currently waiting for a decision.
func (g *AsyncGate) Pending() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ids := make([]string, 0, len(g.pending))
	for id := range g.pending {
		ids = append(ids, id)
	}
	return ids
}
