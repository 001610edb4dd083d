/*
 * KubeSentinel - Autonomous Kubernetes Remediation Agent
 * Copyright (c) 2025 Edilson Freitas
 * License: MIT
 */
package utils

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// GetEnvOrDefault returns the environment variable value or the default when
// unset.
func GetEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// CheckAndNotifyEnv returns the environment variable value, logging when the
// default kicked in. The boolean reports whether the default was used.
func CheckAndNotifyEnv(key, defaultValue string, logger *zap.Logger) (string, bool) {
	value := os.Getenv(key)
	if value == "" {
		logger.Info(fmt.Sprintf("%s not set, using default: %s", key, defaultValue))
		return defaultValue, true
	}
	return value, false
}

// NewJSONReader wraps a JSON payload in an io.Reader for HTTP requests.
func NewJSONReader(data []byte) io.Reader {
	return bytes.NewReader(data)
}

var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{10,}`),
	regexp.MustCompile(`sk-[A-Za-z0-9_-]{10,}`),
	regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._-]+`),
	regexp.MustCompile(`"access_token"\s*:\s*"[^"]*"`),
	regexp.MustCompile(`"client_secret"\s*:\s*"[^"]*"`),
	regexp.MustCompile(`(?m)^([A-Z0-9_]*(?:KEY|TOKEN|SECRET|PASSWORD)[A-Z0-9_]*)=.*$`),
}

var sensitiveReplacements = []string{
	"sk-ant-[REDACTED]",
	"sk-[REDACTED]",
	"Bearer [REDACTED]",
	`"access_token":"[REDACTED]"`,
	`"client_secret":"[REDACTED]"`,
	"$1=[REDACTED]",
}

// SanitizeSensitiveText masks API keys, tokens and secrets in free-form text
// so error messages and logs never leak credentials.
func SanitizeSensitiveText(text string) string {
	for i, pattern := range sensitivePatterns {
		text = pattern.ReplaceAllString(text, sensitiveReplacements[i])
	}
	return text
}

// isSensitiveEnvKey reports whether an environment variable name suggests a
// credential.
func isSensitiveEnvKey(key string) bool {
	upper := strings.ToUpper(key)
	for _, marker := range []string{"KEY", "TOKEN", "SECRET", "PASSWORD"} {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}

// GetEnvVariables returns the environment with credential values masked, for
// diagnostics output.
func GetEnvVariables() string {
	envVars := os.Environ()
	masked := make([]string, 0, len(envVars))
	for _, kv := range envVars {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) == 2 && isSensitiveEnvKey(parts[0]) {
			masked = append(masked, parts[0]+"=[REDACTED]")
			continue
		}
		masked = append(masked, kv)
	}
	return strings.Join(masked, "\n")
}
