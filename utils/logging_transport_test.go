/*
 * KubeSentinel - Autonomous Kubernetes Remediation Agent
 * Copyright (c) 2025 Edilson Freitas
 * License: MIT
 */
package utils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestLoggingTransport_RoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewHTTPClient(zap.NewNop(), 0)

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	assert.NoError(t, err)
	req.Header.Set("Authorization", "Bearer secret")

	resp, err := client.Do(req)
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHeadersToString_RedactsCredentials(t *testing.T) {
	headers := http.Header{}
	headers.Set("Authorization", "Bearer super-secret")
	headers.Set("X-Api-Key", "abc123")
	headers.Set("Content-Type", "application/json")

	rendered := headersToString(headers)

	assert.NotContains(t, rendered, "super-secret")
	assert.NotContains(t, rendered, "abc123")
	assert.Contains(t, rendered, "[REDACTED]")
	assert.Contains(t, rendered, "application/json")
}

func TestSanitizeBody_MasksJSONSecrets(t *testing.T) {
	transport := &LoggingTransport{Logger: zap.NewNop(), MaxBodySize: defaultMaxBodySize}

	body := []byte(`{"api_key":"secret","password":"hunter2","query":"status"}`)
	sanitized := string(transport.sanitizeBody("application/json", body))

	assert.NotContains(t, sanitized, "secret")
	assert.NotContains(t, sanitized, "hunter2")
	assert.Contains(t, sanitized, "[REDACTED]")
	assert.Contains(t, sanitized, "status")
}

func TestSanitizeBody_TruncatesLargeBodies(t *testing.T) {
	transport := &LoggingTransport{Logger: zap.NewNop(), MaxBodySize: 10}

	body := []byte(strings.Repeat("x", 100))
	sanitized := string(transport.sanitizeBody("text/plain", body))

	assert.Contains(t, sanitized, "too large")
}
