/*
 * KubeSentinel - Autonomous Kubernetes Remediation Agent
 * Copyright (c) 2025 Edilson Freitas
 * License: MIT
 */
package manager

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/diillson/kubesentinel/config"
	"github.com/diillson/kubesentinel/llm/claudeai"
	"github.com/diillson/kubesentinel/llm/client"
	"github.com/diillson/kubesentinel/llm/openai"
)

// ConfigError is a configuration failure, such as a missing environment
// variable.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("ConfigError: %s", e.Message)
}

// LLMManager hands out configured LLM clients by provider name.
type LLMManager interface {
	GetClient(provider string, model string) (client.LLMClient, error)
	GetAvailableProviders() []string
}

// LLMManagerImpl manages the provider client factories.
type LLMManagerImpl struct {
	clients map[string]func(string) (client.LLMClient, error)
	logger  *zap.Logger
}

// NewLLMManager creates a manager with every provider whose credentials are
// present in the environment.
func NewLLMManager(logger *zap.Logger) (LLMManager, error) {
	manager := &LLMManagerImpl{
		clients: make(map[string]func(string) (client.LLMClient, error)),
		logger:  logger,
	}

	manager.configureOpenAIClient()
	manager.configureClaudeAIClient()

	return manager, nil
}

// configureOpenAIClient registers the OpenAI provider when OPENAI_API_KEY is
// set.
func (m *LLMManagerImpl) configureOpenAIClient() {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey != "" {
		m.clients["OPENAI"] = func(model string) (client.LLMClient, error) {
			if model == "" {
				model = config.DefaultOpenAIModel
			}
			return openai.NewOpenAIClient(apiKey, model, m.logger,
				config.OpenAIDefaultMaxAttempts, config.OpenAIDefaultBackoff), nil
		}
	} else {
		m.logger.Warn("OPENAI_API_KEY not set, the OPENAI provider will not be available")
	}
}

// configureClaudeAIClient registers the ClaudeAI provider when
// CLAUDEAI_API_KEY is set.
func (m *LLMManagerImpl) configureClaudeAIClient() {
	apiKey := os.Getenv("CLAUDEAI_API_KEY")
	if apiKey != "" {
		m.clients["CLAUDEAI"] = func(model string) (client.LLMClient, error) {
			if model == "" {
				model = config.DefaultClaudeAIModel
			}
			return claudeai.NewClaudeClient(apiKey, model, m.logger,
				config.ClaudeAIDefaultMaxAttempts, config.ClaudeAIDefaultBackoff), nil
		}
	} else {
		m.logger.Warn("CLAUDEAI_API_KEY not set, the CLAUDEAI provider will not be available")
	}
}

// GetAvailableProviders lists the configured provider names.
func (m *LLMManagerImpl) GetAvailableProviders() []string {
	var providers []string
	for provider := range m.clients {
		providers = append(providers, provider)
	}
	return providers
}

// GetClient returns a client for the given provider and model.
func (m *LLMManagerImpl) GetClient(provider string, model string) (client.LLMClient, error) {
	factoryFunc, ok := m.clients[provider]
	if !ok {
		return nil, fmt.Errorf("LLM provider '%s' is not supported or not configured", provider)
	}

	llmClient, err := factoryFunc(model)
	if err != nil {
		m.logger.Error("Failed to create LLM client", zap.String("provider", provider), zap.Error(err))
		return nil, err
	}

	return llmClient, nil
}
