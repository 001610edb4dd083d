/*
 * KubeSentinel - Autonomous Kubernetes Remediation Agent
 * Copyright (c) 2025 Edilson Freitas
 * License: MIT
 */
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/diillson/kubesentinel/sentinel"
)

// TerminalGate asks the operator for approval on the terminal: it renders the
// plan as markdown, then reads y/N plus an optional comment. Anything other
// than an explicit yes is a denial.
type TerminalGate struct {
	in            io.Reader
	out           io.Writer
	terminalWidth int
	logger        *zap.Logger
}

// NewTerminalGate creates a gate over stdin/stdout.
func NewTerminalGate(logger *zap.Logger) *TerminalGate {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		width = 80
	}
	return &TerminalGate{
		in:            os.Stdin,
		out:           os.Stdout,
		terminalWidth: width,
		logger:        logger,
	}
}

// RequestApproval implements sentinel.ApprovalGate. Context cancellation while
// waiting for input counts as a denial; a deadline expiry counts as a timeout
// with no decision on record.
func (g *TerminalGate) RequestApproval(ctx context.Context, req sentinel.ApprovalRequest) (sentinel.ApprovalDecision, error) {
	start := time.Now()
	fmt.Fprint(g.out, g.renderMarkdown(formatRequest(req)))
	fmt.Fprintf(g.out, "\nApprove this remediation? [y/N]: ")

	type answer struct {
		text string
		err  error
	}
	answerCh := make(chan answer, 1)

	go func() {
		reader := bufio.NewReader(g.in)
		line, err := reader.ReadString('\n')
		answerCh <- answer{text: strings.TrimSpace(line), err: err}
	}()

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			fmt.Fprintln(g.out, "\nNo decision within the approval window.")
			return sentinel.ApprovalDecision{State: sentinel.ApprovalPending},
				&sentinel.ApprovalTimeoutError{Waited: time.Since(start)}
		}
		fmt.Fprintln(g.out, "\nAborted, treating as denial.")
		return sentinel.ApprovalDecision{
			State:     sentinel.ApprovalDenied,
			Comment:   "aborted by operator",
			DecidedAt: time.Now(),
		}, nil
	case a := <-answerCh:
		if a.err != nil && a.text == "" {
			// EOF with no input: fail closed.
			return sentinel.ApprovalDecision{
				State:     sentinel.ApprovalDenied,
				Comment:   "no operator input",
				DecidedAt: time.Now(),
			}, nil
		}

		response := strings.ToLower(a.text)
		if response == "y" || response == "yes" {
			g.logger.Info("Operator approved remediation",
				zap.String("incident", req.IncidentID),
				zap.String("target", req.Target.String()))
			return sentinel.ApprovalDecision{
				State:     sentinel.ApprovalApproved,
				DecidedAt: time.Now(),
			}, nil
		}

		fmt.Fprintf(g.out, "Denial reason (optional): ")
		comment := ""
		select {
		case <-ctx.Done():
		case a := <-readLine(g.in):
			comment = a
		}

		g.logger.Info("Operator denied remediation",
			zap.String("incident", req.IncidentID),
			zap.String("comment", comment))
		return sentinel.ApprovalDecision{
			State:     sentinel.ApprovalDenied,
			Comment:   comment,
			DecidedAt: time.Now(),
		}, nil
	}
}

func readLine(in io.Reader) <-chan string {
	ch := make(chan string, 1)
	go func() {
		reader := bufio.NewReader(in)
		line, _ := reader.ReadString('\n')
		ch <- strings.TrimSpace(line)
	}()
	return ch
}

// formatRequest renders the approval request as a markdown document.
func formatRequest(req sentinel.ApprovalRequest) string {
	var sb strings.Builder

	sb.WriteString("# Remediation approval required\n\n")
	sb.WriteString(fmt.Sprintf("**Incident:** %s (attempt %d)\n\n", req.IncidentID, req.Attempt))
	sb.WriteString(fmt.Sprintf("**Target:** `%s`\n\n", req.Target))
	sb.WriteString(fmt.Sprintf("**Action:** %s — %s\n\n", req.Action.Type, req.Description))
	sb.WriteString(fmt.Sprintf("**Risk:** %s\n\n", req.Risk))
	sb.WriteString(fmt.Sprintf("**Root cause:** %s\n\n", req.RootCause))

	if req.Evidence != "" {
		sb.WriteString(fmt.Sprintf("**Evidence:** %s\n\n", req.Evidence))
	}

	if len(req.Payload) > 0 {
		sb.WriteString("**Change to apply:**\n\n```json\n")
		sb.WriteString(indentJSON(req.Payload))
		sb.WriteString("\n```\n")
	}

	return sb.String()
}

func indentJSON(raw []byte) string {
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return string(raw)
	}
	pretty, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(pretty)
}

func (g *TerminalGate) renderMarkdown(input string) string {
	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(g.terminalWidth),
	)
	if renderer == nil {
		return input
	}
	out, err := renderer.Render(input)
	if err != nil {
		return input
	}
	return out
}
