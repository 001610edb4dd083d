/*
 * KubeSentinel - Autonomous Kubernetes Remediation Agent
 * Copyright (c) 2025 Edilson Freitas
 * License: MIT
 */
package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/diillson/kubesentinel/cli"
	"github.com/diillson/kubesentinel/config"
	"github.com/diillson/kubesentinel/k8s"
	"github.com/diillson/kubesentinel/llm/client"
	"github.com/diillson/kubesentinel/llm/manager"
	"github.com/diillson/kubesentinel/metrics"
	"github.com/diillson/kubesentinel/sentinel"
	"github.com/diillson/kubesentinel/utils"
	"github.com/diillson/kubesentinel/version"
)

// agentOptions are the flags shared by the remediate and watch subcommands.
type agentOptions struct {
	Deployment string
	Namespace  string
	Kubeconfig string
	Provider   string
	Model      string
	PolicyFile string
	AutoDeny   bool
}

// buildController wires the full remediation loop: cluster clients, the LLM
// provider, the metrics recorders and the terminal approval gate. The
// inspector is returned alongside so the watch loop can poll with it.
func buildController(opts *agentOptions, policy *config.Policy, logger *zap.Logger) (*sentinel.RemediationController, k8s.Inspector, error) {
	clients, err := k8s.NewClients(opts.Kubeconfig, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create cluster clients: %w", err)
	}

	inspector := k8s.NewClusterInspector(clients.Clientset, clients.MetricsClient,
		config.DefaultMaxLogLines, 3, time.Second, logger)

	llmMgr, err := manager.NewLLMManager(logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize LLM manager: %w", err)
	}

	provider := resolveProvider(opts, logger)

	llmClient, err := llmMgr.GetClient(provider, opts.Model)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	llmMetrics := metrics.NewLLMMetrics()
	instrumented := client.NewInstrumentedClient(llmClient, llmMetrics.Recorder(), provider)

	engine := sentinel.NewDiagnosisEngine(instrumented,
		config.DefaultLLMRetryAttempts, config.DefaultDiagnosisTimeout, logger)
	validator := sentinel.NewRemediationValidator(clients.Clientset, logger)
	remediator := sentinel.NewRemediator(clients.Clientset, logger)
	verifier := sentinel.NewVerificationLoop(inspector, policy.SettleDelay, policy.MaxSettleDelay, logger)

	var gate sentinel.ApprovalGate
	if opts.AutoDeny {
		// Non-interactive runs fail closed: every plan is denied.
		gate = sentinel.GateFunc(func(ctx context.Context, req sentinel.ApprovalRequest) (sentinel.ApprovalDecision, error) {
			return sentinel.ApprovalDecision{
				State:     sentinel.ApprovalDenied,
				Comment:   "non-interactive mode",
				DecidedAt: time.Now(),
			}, nil
		})
	} else {
		gate = cli.NewTerminalGate(logger)
	}

	allowed := make([]sentinel.ActionType, 0, len(policy.AllowedActions))
	for _, a := range policy.AllowedActions {
		allowed = append(allowed, sentinel.ActionType(a))
	}

	cfg := sentinel.ControllerConfig{
		MaxAttempts:          policy.MaxAttempts,
		MaxValidationRetries: policy.MaxValidationRetries,
		ApprovalTimeout:      policy.ApprovalTimeout,
		AutoEscalateRisk:     sentinel.RiskLevel(policy.AutoEscalateRisk),
		AllowedActions:       allowed,
	}

	controllerMetrics := metrics.NewControllerMetrics()

	return sentinel.NewRemediationController(inspector, engine, validator, gate,
		remediator, verifier, cfg, controllerMetrics.Recorder(), logger), inspector, nil
}

// resolveProvider picks the LLM provider from the flag or the environment.
func resolveProvider(opts *agentOptions, logger *zap.Logger) string {
	if opts.Provider != "" {
		return opts.Provider
	}
	provider, _ := utils.CheckAndNotifyEnv("LLM_PROVIDER", config.DefaultLLMProvider, logger)
	return provider
}

// startMetricsServer starts the Prometheus endpoint when METRICS_PORT is set.
// Returns a stop function, which is a no-op when disabled.
func startMetricsServer(opts *agentOptions, logger *zap.Logger) func() {
	port := getEnvInt("METRICS_PORT", 0)
	if port <= 0 {
		return func() {}
	}

	model := opts.Model
	if model == "" {
		model = "default"
	}
	metrics.NewServerMetrics(version.GetCurrentVersion().Version,
		resolveProvider(opts, logger), model, time.Now())

	srv := metrics.NewServer(port, logger)
	srv.Start()
	return srv.Stop
}

func getEnvOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}
