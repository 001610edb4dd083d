/*
 * KubeSentinel - Autonomous Kubernetes Remediation Agent
 * Copyright (c) 2025 Edilson Freitas
 * License: MIT
 */
package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
)

// APIError is a structured error for HTTP responses carrying a status code.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: status %d - %s", e.StatusCode, e.Message)
}

// Retry runs fn with exponential backoff for temporary errors. Permanent
// errors return immediately.
func Retry[T any](ctx context.Context, logger *zap.Logger, maxAttempts int, initialBackoff time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var result T
	backoff := initialBackoff

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res, err := fn(ctx)
		if err == nil {
			logger.Debug("Request succeeded",
				zap.Int("attempt", attempt))
			return res, nil
		}

		if IsTemporaryError(err) {
			logger.Warn("Temporary error, retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", maxAttempts),
				zap.Error(err),
				zap.Duration("backoff", backoff))
			if attempt < maxAttempts {
				select {
				case <-ctx.Done():
					return result, ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
				continue
			}
		}

		logger.Error("Permanent error, aborting",
			zap.Int("attempt", attempt),
			zap.Error(err))
		return result, err
	}

	errMsg := fmt.Errorf("failed after %d attempts", maxAttempts)
	logger.Error("Max attempts exceeded", zap.Error(errMsg))
	return result, errMsg
}

// IsTemporaryError reports whether the error is worth retrying: network
// timeouts, rate limits (429) and server errors (5xx). Wrapped errors are
// unwrapped before checking.
func IsTemporaryError(err error) bool {
	for err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return true
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return apiErr.StatusCode == 429 || (apiErr.StatusCode >= 500 && apiErr.StatusCode < 600)
		}
		err = errors.Unwrap(err)
	}
	return false
}
