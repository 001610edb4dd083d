/*
 * KubeSentinel - Autonomous Kubernetes Remediation Agent
 * Copyright (c) 2025 Edilson Freitas
 * License: MIT
 */
package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/diillson/kubesentinel/models"
)

func TestOpenAIClient_SendPrompt_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))

		var reqBody map[string]interface{}
		err := json.NewDecoder(r.Body).Decode(&reqBody)
		assert.NoError(t, err)
		assert.Equal(t, "gpt-4o", reqBody["model"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		resp := `{"choices": [{"message": {"role": "assistant", "content": "Hello from OpenAI!"}}]}`
		_, _ = w.Write([]byte(resp))
	}))
	defer server.Close()

	os.Setenv("OPENAI_API_URL", server.URL)
	defer os.Unsetenv("OPENAI_API_URL")

	logger := zap.NewNop()
	client := NewOpenAIClient("test-api-key", "gpt-4o", logger, 1, 0)

	history := []models.Message{{Role: "user", Content: "Hi"}}
	resp, err := client.SendPrompt(context.Background(), "Hi", history, 0)

	assert.NoError(t, err)
	assert.Equal(t, "Hello from OpenAI!", resp)
}

func TestOpenAIClient_SendPrompt_PreservesSystemMessages(t *testing.T) {
	var receivedMessages []interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqBody map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&reqBody)
		receivedMessages = reqBody["messages"].([]interface{})

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "ok"}}]}`))
	}))
	defer server.Close()

	os.Setenv("OPENAI_API_URL", server.URL)
	defer os.Unsetenv("OPENAI_API_URL")

	client := NewOpenAIClient("key", "gpt-4o", zap.NewNop(), 1, 0)

	history := []models.Message{
		{Role: "system", Content: "You are a diagnostician."},
		{Role: "user", Content: "Analyze this."},
	}
	_, err := client.SendPrompt(context.Background(), "Analyze this.", history, 0)

	assert.NoError(t, err)
	assert.Len(t, receivedMessages, 2)
	first := receivedMessages[0].(map[string]interface{})
	assert.Equal(t, "system", first["role"])
}

func TestOpenAIClient_SendPrompt_RetryOnServerError(t *testing.T) {
	attempt := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempt++
		if attempt == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error": "overloaded"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "Recovered"}}]}`))
	}))
	defer server.Close()

	os.Setenv("OPENAI_API_URL", server.URL)
	defer os.Unsetenv("OPENAI_API_URL")

	client := NewOpenAIClient("key", "gpt-4o", zap.NewNop(), 2, 10*time.Millisecond)

	resp, err := client.SendPrompt(context.Background(), "Hi", []models.Message{{Role: "user", Content: "Hi"}}, 0)

	assert.NoError(t, err)
	assert.Equal(t, "Recovered", resp)
	assert.Equal(t, 2, attempt)
}
