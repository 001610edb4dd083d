/*
 * KubeSentinel - Autonomous Kubernetes Remediation Agent
 * Copyright (c) 2025 Edilson Freitas
 * License: MIT
 */
package client

import (
	"context"

	"github.com/diillson/kubesentinel/models"
)

// MockLLMClient implements LLMClient with canned responses. Responses, when
// set, are returned one per call in order; otherwise Response repeats.
type MockLLMClient struct {
	Response  string
	Responses []string
	Err       error
	Calls     int
}

func (m *MockLLMClient) GetModelName() string {
	return "MockModel"
}

func (m *MockLLMClient) SendPrompt(ctx context.Context, prompt string, history []models.Message, maxTokens int) (string, error) {
	idx := m.Calls
	m.Calls++
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) > 0 {
		if idx >= len(m.Responses) {
			idx = len(m.Responses) - 1
		}
		return m.Responses[idx], nil
	}
	return m.Response, nil
}
