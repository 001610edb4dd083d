/*
 * KubeSentinel - Autonomous Kubernetes Remediation Agent
 * Copyright (c) 2025 Edilson Freitas
 * License: MIT
 */
package client

import (
	"context"
	"fmt"

	"github.com/diillson/kubesentinel/models"
)

// LLMError is a provider error carrying the HTTP status code.
type LLMError struct {
	Code    int
	Message string
}

func (e *LLMError) Error() string {
	return fmt.Sprintf("LLMError: %d - %s", e.Code, e.Message)
}

// LLMClient is implemented by every language model provider.
type LLMClient interface {
	// GetModelName returns the model identifier used by this client.
	GetModelName() string

	// SendPrompt sends the prompt plus conversation history and returns the
	// model response. maxTokens <= 0 uses the provider default. The context
	// controls timeout and cancellation.
	SendPrompt(ctx context.Context, prompt string, history []models.Message, maxTokens int) (string, error)
}
