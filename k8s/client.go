/*
 * KubeSentinel - Autonomous Kubernetes Remediation Agent
 * Copyright (c) 2025 Edilson Freitas
 * License: MIT
 */
package k8s

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
	metricsv "k8s.io/metrics/pkg/client/clientset/versioned"
)

// Clients bundles the Kubernetes API clients the agent needs. The metrics
// client is nil when metrics-server is not available.
type Clients struct {
	Clientset     kubernetes.Interface
	MetricsClient metricsv.Interface
}

// NewClients builds the Kubernetes clients from kubeconfig or in-cluster
// credentials.
func NewClients(kubeconfigPath string, logger *zap.Logger) (*Clients, error) {
	restConfig, err := buildKubeConfig(kubeconfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to build kubeconfig: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes client: %w", err)
	}

	// Metrics client is optional - may not be available
	var metricsClient metricsv.Interface
	if mc, err := metricsv.NewForConfig(restConfig); err == nil {
		metricsClient = mc
	} else {
		logger.Info("Metrics server not available, resource usage will not be collected")
	}

	return &Clients{
		Clientset:     clientset,
		MetricsClient: metricsClient,
	}, nil
}

// buildKubeConfig creates a Kubernetes REST config from kubeconfig or in-cluster.
func buildKubeConfig(kubeconfigPath string) (*rest.Config, error) {
	// Try in-cluster config first
	if kubeconfigPath == "" {
		config, err := rest.InClusterConfig()
		if err == nil {
			return config, nil
		}
		// Fall back to default kubeconfig path
		if home := homedir.HomeDir(); home != "" {
			kubeconfigPath = filepath.Join(home, ".kube", "config")
		}
	}

	return clientcmd.BuildConfigFromFlags("", kubeconfigPath)
}
