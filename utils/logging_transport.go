/*
 * KubeSentinel - Autonomous Kubernetes Remediation Agent
 * Copyright (c) 2025 Edilson Freitas
 * License: MIT
 */
package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultMaxBodySize = 3070

// LoggingTransport is an http.RoundTripper that logs requests and responses,
// redacting credentials in headers and bodies.
type LoggingTransport struct {
	Logger      *zap.Logger
	Transport   http.RoundTripper
	MaxBodySize int
}

// RoundTrip implements http.RoundTripper.
func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.Logger.Info("Sending request",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.String("headers", headersToString(req.Header)),
	)

	var reqBodyBytes []byte
	if req.Body != nil {
		var err error
		reqBodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			t.Logger.Error("Failed to read request body", zap.Error(err))
			return nil, err
		}
		req.Body = io.NopCloser(bytes.NewBuffer(reqBodyBytes))
		sanitizedBody := t.sanitizeBody(req.Header.Get("Content-Type"), reqBodyBytes)
		t.Logger.Debug("Request body", zap.ByteString("body", sanitizedBody))
	}

	start := time.Now()
	resp, err := t.Transport.RoundTrip(req)
	duration := time.Since(start)

	if err != nil {
		t.Logger.Error("Request failed",
			zap.String("method", req.Method),
			zap.String("url", req.URL.String()),
			zap.Error(err),
			zap.Duration("duration", duration),
		)
		return resp, err
	}

	t.Logger.Info("Received response",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", duration),
		zap.String("headers", headersToString(resp.Header)),
	)

	var respBodyBytes []byte
	if resp.Body != nil {
		var err error
		respBodyBytes, err = io.ReadAll(resp.Body)
		if err != nil {
			t.Logger.Error("Failed to read response body", zap.Error(err))
			return nil, err
		}
		resp.Body = io.NopCloser(bytes.NewBuffer(respBodyBytes))
		sanitizedBody := t.sanitizeBody(resp.Header.Get("Content-Type"), respBodyBytes)
		t.Logger.Debug("Response body", zap.ByteString("body", sanitizedBody))
	}

	return resp, nil
}

// headersToString renders headers for logging with credentials redacted.
func headersToString(headers http.Header) string {
	var buf strings.Builder
	for key, values := range headers {
		lowerKey := strings.ToLower(key)
		if lowerKey == "authorization" || lowerKey == "api-key" || lowerKey == "x-api-key" {
			buf.WriteString(fmt.Sprintf("%s: [REDACTED]; ", key))
			continue
		}
		for _, value := range values {
			buf.WriteString(fmt.Sprintf("%s: %s; ", key, value))
		}
	}
	return buf.String()
}

// sanitizeBody masks sensitive fields in request/response bodies.
func (t *LoggingTransport) sanitizeBody(contentType string, body []byte) []byte {
	if len(body) > t.MaxBodySize {
		return []byte(fmt.Sprintf("[body too large to log, size: %d bytes]", len(body)))
	}

	if strings.Contains(contentType, "application/json") {
		var data map[string]interface{}
		if err := json.Unmarshal(body, &data); err == nil {
			if _, exists := data["api_key"]; exists {
				data["api_key"] = "[REDACTED]"
			}
			if _, exists := data["password"]; exists {
				data["password"] = "[REDACTED]"
			}
			sanitized, _ := json.Marshal(data)
			return sanitized
		}
	}

	if strings.Contains(contentType, "application/x-www-form-urlencoded") {
		values, err := url.ParseQuery(string(body))
		if err == nil {
			if _, exists := values["password"]; exists {
				values.Set("password", "[REDACTED]")
			}
			if _, exists := values["api_key"]; exists {
				values.Set("api_key", "[REDACTED]")
			}
			return []byte(values.Encode())
		}
	}

	return body
}
