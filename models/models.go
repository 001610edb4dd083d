/*
 * KubeSentinel - Autonomous Kubernetes Remediation Agent
 * Copyright (c) 2025 Edilson Freitas
 * License: MIT
 */
package models

// Message is one turn of a conversation with the language model.
type Message struct {
	Role    string `json:"role"`    // "system", "user" or "assistant".
	Content string `json:"content"` // The message body.
}

// IsValid reports whether the message has a known role and a non-empty body.
func (m *Message) IsValid() bool {
	validRoles := map[string]bool{
		"system":    true,
		"user":      true,
		"assistant": true,
	}
	return validRoles[m.Role] && m.Content != ""
}

// UsageInfo carries the token accounting returned by provider APIs.
type UsageInfo struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
