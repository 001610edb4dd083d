/*
 * KubeSentinel - Autonomous Kubernetes Remediation Agent
 * Copyright (c) 2025 Edilson Freitas
 * License: MIT
 */
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/diillson/kubesentinel/config"
	"github.com/diillson/kubesentinel/k8s"
	"github.com/diillson/kubesentinel/sentinel"
)

// WatchOptions holds the flags for the 'watch' subcommand.
type WatchOptions struct {
	agentOptions
	Interval time.Duration
}

// RunWatch executes the 'kubesentinel watch' subcommand: poll the deployment
// on an interval and open a remediation incident whenever it is unhealthy.
// Runs until the context is cancelled.
func RunWatch(ctx context.Context, args []string, logger *zap.Logger) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)

	opts := &WatchOptions{}
	fs.StringVar(&opts.Deployment, "deployment", os.Getenv("KUBESENTINEL_DEPLOYMENT"), "Kubernetes deployment name to watch")
	fs.StringVar(&opts.Namespace, "namespace", getEnvOrDefault("KUBESENTINEL_NAMESPACE", "default"), "Kubernetes namespace")
	fs.StringVar(&opts.Kubeconfig, "kubeconfig", os.Getenv("KUBESENTINEL_KUBECONFIG"), "Path to kubeconfig (empty = in-cluster or default)")
	fs.StringVar(&opts.Provider, "provider", os.Getenv("LLM_PROVIDER"), "LLM provider override")
	fs.StringVar(&opts.Model, "model", "", "LLM model override")
	fs.StringVar(&opts.PolicyFile, "policy", os.Getenv("KUBESENTINEL_POLICY"), "Path to the remediation policy YAML")
	fs.BoolVar(&opts.AutoDeny, "no-input", false, "Non-interactive mode: deny every approval request")
	fs.DurationVar(&opts.Interval, "interval", 0, "Poll interval (overrides the policy file)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if opts.Deployment == "" {
		PrintWatchUsage()
		return fmt.Errorf("deployment name is required (use --deployment)")
	}

	policy, err := config.LoadPolicy(opts.PolicyFile)
	if err != nil {
		return err
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = policy.Watch.Interval
	}

	controller, inspector, err := buildController(&opts.agentOptions, policy, logger)
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

	logger.Info("Watching deployment",
		zap.String("target", target.String()),
		zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// First check happens immediately, not after the first tick.
	if err := watchOnce(ctx, controller, inspector, target, logger); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("Watch stopped", zap.String("target", target.String()))
			return nil
		case <-ticker.C:
			if err := watchOnce(ctx, controller, inspector, target, logger); err != nil {
				return err
			}
		}
	}
}

// watchOnce performs one poll cycle. Observation failures and unresolved
// incidents are logged and tolerated; the watch keeps running. Only an
// operator denial stops the loop, since re-prompting for a plan the operator
// already refused would be noise.
func watchOnce(ctx context.Context, controller *sentinel.RemediationController, inspector k8s.Inspector, target sentinel.TargetRef, logger *zap.Logger) error {
	if ctx.Err() != nil {
		return nil
	}

	snap, err := inspector.Inspect(ctx, target.Namespace, target.Name)
	if err != nil {
		var obsErr *k8s.ObservationError
		if errors.As(err, &obsErr) && obsErr.NotFound {
			logger.Warn("Deployment not found, will retry on next tick",
				zap.String("target", target.String()))
			return nil
		}
		logger.Error("Inspection failed, will retry on next tick",
			zap.String("target", target.String()),
			zap.Error(err))
		return nil
	}

	if snap.Health == k8s.HealthHealthy {
		logger.Debug("Deployment healthy",
			zap.String("target", target.String()),
			zap.Int32("ready_replicas", snap.Deployment.ReadyReplicas))
		return nil
	}

	logger.Warn("Deployment unhealthy, opening incident",
		zap.String("target", target.String()),
		zap.String("health", string(snap.Health)),
		zap.String("reason", snap.FailureReason))

	problem := fmt.Sprintf("watch detected %s: %s", snap.Health, snap.FailureReason)
	incident, runErr := controller.Run(ctx, target, problem)

	fmt.Println(sentinel.RenderReport(incident))

	if runErr != nil {
		logger.Error("Incident failed",
			zap.String("incident", incident.ID),
			zap.Error(runErr))
		return nil
	}

	switch incident.State {
	case sentinel.StateSucceeded:
		logger.Info("Incident resolved",
			zap.String("incident", incident.ID),
			zap.Int("attempts", incident.Attempts))
	case sentinel.StateDenied:
		logger.Info("Remediation denied by the operator, stopping watch",
			zap.String("incident", incident.ID))
		return fmt.Errorf("watch stopped: remediation for %s denied by the operator", target)
	default:
		logger.Error("Incident did not resolve the fault",
			zap.String("incident", incident.ID),
			zap.String("state", string(incident.State)),
			zap.String("note", incident.FinalNote))
	}

	return nil
}

// PrintWatchUsage prints help for the watch subcommand.
func PrintWatchUsage() {
	fmt.Println(`Usage: kubesentinel watch --deployment <name> [flags]

Continuously watch a Kubernetes deployment and open a remediation incident
whenever it becomes unhealthy.

Each incident runs the full loop: diagnose with an LLM, dry-run validate,
ask for approval, apply and verify. Observation failures and unresolved
incidents are logged and the watch keeps running; an operator denial stops it.

Required:
  --deployment <name>     Deployment name to watch

Flags:
  --namespace <ns>        Kubernetes namespace (default: "default", env: KUBESENTINEL_NAMESPACE)
  --kubeconfig <path>     Path to kubeconfig (env: KUBESENTINEL_KUBECONFIG)
  --provider <name>       LLM provider: OPENAI or CLAUDEAI (env: LLM_PROVIDER)
  --model <name>          LLM model override
  --policy <path>         Remediation policy YAML (env: KUBESENTINEL_POLICY)
  --interval <duration>   Poll interval, e.g. 30s, 2m (default from policy: 60s)
  --no-input              Non-interactive: deny every approval request

Examples:
  # Watch a deployment every minute
  kubesentinel watch --deployment myapp --namespace production

  # Faster polling with a custom policy
  kubesentinel watch --deployment myapp --interval 30s --policy ./policy.yaml`)
}
