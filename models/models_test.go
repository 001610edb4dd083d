/*
 * KubeSentinel - Autonomous Kubernetes Remediation Agent
 * Copyright (c) 2025 Edilson Freitas
 * License: MIT
 */
package models

import "testing"

func TestMessage_IsValid(t *testing.T) {
	msg := Message{Role: "user", Content: "pods are crash looping"}
	if !msg.IsValid() {
		t.Error("valid message was reported invalid")
	}

	msg = Message{Role: "system", Content: "you are a diagnostician"}
	if !msg.IsValid() {
		t.Error("system message was reported invalid")
	}

	msg.Role = "invalid"
	if msg.IsValid() {
		t.Error("invalid role was reported valid")
	}

	msg = Message{Role: "user"}
	if msg.IsValid() {
		t.Error("empty content was reported valid")
	}
}
