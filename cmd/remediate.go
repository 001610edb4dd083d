/*
 * KubeSentinel - Autonomous Kubernetes Remediation Agent
 * Copyright (c) 2025 Edilson Freitas
 * License: MIT
 */
package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/diillson/kubesentinel/config"
	"github.com/diillson/kubesentinel/sentinel"
)

// RemediateOptions holds the flags for the 'remediate' subcommand.
type RemediateOptions struct {
	agentOptions
	Problem string
}

// RunRemediate executes the 'kubesentinel remediate' subcommand: one incident
// for one deployment, from detection to a terminal state.
func RunRemediate(ctx context.Context, args []string, logger *zap.Logger) error {
	fs := flag.NewFlagSet("remediate", flag.ContinueOnError)

	opts := &RemediateOptions{}
	fs.StringVar(&opts.Deployment, "deployment", os.Getenv("KUBESENTINEL_DEPLOYMENT"), "Kubernetes deployment name to remediate")
	fs.StringVar(&opts.Namespace, "namespace", getEnvOrDefault("KUBESENTINEL_NAMESPACE", "default"), "Kubernetes namespace")
	fs.StringVar(&opts.Kubeconfig, "kubeconfig", os.Getenv("KUBESENTINEL_KUBECONFIG"), "Path to kubeconfig (empty = in-cluster or default)")
	fs.StringVar(&opts.Provider, "provider", os.Getenv("LLM_PROVIDER"), "LLM provider override")
	fs.StringVar(&opts.Model, "model", "", "LLM model override")
	fs.StringVar(&opts.PolicyFile, "policy", os.Getenv("KUBESENTINEL_POLICY"), "Path to the remediation policy YAML")
	fs.StringVar(&opts.Problem, "problem", "", "Operator description of the observed problem")
	fs.BoolVar(&opts.AutoDeny, "no-input", false, "Non-interactive mode: deny every approval request")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if opts.Deployment == "" {
		PrintRemediateUsage()
		return fmt.Errorf("deployment name is required (use --deployment)")
	}

	policy, err := config.LoadPolicy(opts.PolicyFile)
	if err != nil {
		return err
	}

	controller, _, err := buildController(&opts.agentOptions, policy, logger)
	if err != nil {
		return err
	}

	stopMetrics := startMetricsServer(&opts.agentOptions, logger)
	defer stopMetrics()

	target := sentinel.TargetRef{
		Namespace: opts.Namespace,
		Name:      opts.Deployment,
		Kind:      "Deployment",
	}

	problem := opts.Problem
	if problem == "" {
		problem = fmt.Sprintf("deployment %s is unhealthy", target)
	}

	incident, runErr := controller.Run(ctx, target, problem)

	fmt.Println(sentinel.RenderReport(incident))

	if runErr != nil {
		return fmt.Errorf("incident %s failed: %w", incident.ID, runErr)
	}

	switch incident.State {
	case sentinel.StateSucceeded:
		return nil
	case sentinel.StateDenied:
		fmt.Println("Remediation denied by the operator.")
		return nil
	default:
		return fmt.Errorf("incident %s ended in %s: %s", incident.ID, incident.State, incident.FinalNote)
	}
}

// PrintRemediateUsage prints help for the remediate subcommand.
func PrintRemediateUsage() {
	fmt.Println(`Usage: kubesentinel remediate --deployment <name> [flags]

Run one autonomous remediation incident for a Kubernetes deployment.

The agent inspects the deployment, diagnoses the fault with an LLM, validates
the proposed fix with a server-side dry-run, asks for your approval, applies
the change and verifies the result. It retries with fresh diagnoses up to the
attempt ceiling and escalates to you when it cannot resolve the fault.

Required:
  --deployment <name>     Deployment name to remediate

Flags:
  --namespace <ns>        Kubernetes namespace (default: "default", env: KUBESENTINEL_NAMESPACE)
  --kubeconfig <path>     Path to kubeconfig (env: KUBESENTINEL_KUBECONFIG)
  --provider <name>       LLM provider: OPENAI or CLAUDEAI (env: LLM_PROVIDER)
  --model <name>          LLM model override
  --policy <path>         Remediation policy YAML (env: KUBESENTINEL_POLICY)
  --problem <text>        Describe the observed problem for the diagnosis
  --no-input              Non-interactive: deny every approval request

Environment Variables:
  KUBESENTINEL_DEPLOYMENT   Deployment name
  KUBESENTINEL_NAMESPACE    Namespace (default: "default")
  KUBESENTINEL_KUBECONFIG   Path to kubeconfig
  KUBESENTINEL_POLICY       Policy file path
  OPENAI_API_KEY            OpenAI credential
  CLAUDEAI_API_KEY          Anthropic credential
  METRICS_PORT              Serve Prometheus metrics on this port

Examples:
  # Remediate a crash-looping deployment
  kubesentinel remediate --deployment myapp --namespace production

  # With a problem description and a specific provider
  kubesentinel remediate --deployment myapp --problem "pods OOMKilled since 14:00" --provider CLAUDEAI`)
}
