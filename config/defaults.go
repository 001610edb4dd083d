/*
 * KubeSentinel - Autonomous Kubernetes Remediation Agent
 * Copyright (c) 2025 Edilson Freitas
 * License: MIT
 */
package config

import "time"

// Application-wide defaults.
const (
	// OpenAI defaults
	DefaultOpenAIModel       = "gpt-4o-mini"
	OpenAIAPIURL             = "https://api.openai.com/v1/chat/completions"
	OpenAIDefaultMaxAttempts = 3
	OpenAIDefaultBackoff     = time.Second

	// ClaudeAI defaults
	DefaultClaudeAIModel       = "claude-3-5-sonnet-20241022"
	ClaudeAIAPIURL             = "https://api.anthropic.com/v1/messages"
	ClaudeAIDefaultMaxAttempts = 3
	ClaudeAIDefaultBackoff     = time.Second
	ClaudeAIDefaultMaxTokens   = 8192
	ClaudeAIAPIVersionDefault  = "2023-06-01"

	// Default provider
	DefaultLLMProvider = "OPENAI"

	// Control loop defaults
	DefaultMaxAttempts          = 3
	DefaultMaxValidationRetries = 2
	DefaultApprovalTimeout      = 10 * time.Minute
	DefaultSettleDelay          = 5 * time.Second
	DefaultMaxSettleDelay       = 30 * time.Second
	DefaultDiagnosisTimeout     = 2 * time.Minute
	DefaultLLMRetryAttempts     = 3

	// Inspection defaults
	DefaultMaxLogLines   = 100
	DefaultWatchInterval = 60 * time.Second

	// Log rotation size ceiling, in megabytes
	DefaultMaxLogSize = 50

	DefaultLogFile = "$HOME/kubesentinel.log"
)
