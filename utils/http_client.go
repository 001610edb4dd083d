/*
 * KubeSentinel - Autonomous Kubernetes Remediation Agent
 * Copyright (c) 2025 Edilson Freitas
 * License: MIT
 */
package utils

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// maxRedirects is the maximum number of HTTP redirects to follow.
const maxRedirects = 10

// NewHTTPClient creates an HTTP client with a LoggingTransport and the given
// timeout. Auth headers are stripped on cross-origin redirects.
func NewHTTPClient(logger *zap.Logger, timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &LoggingTransport{
			Logger:      logger,
			Transport:   http.DefaultTransport,
			MaxBodySize: 2048,
		},
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			if len(via) > 0 && req.URL.Host != via[0].URL.Host {
				req.Header.Del("Authorization")
				req.Header.Del("Api-Key")
				req.Header.Del("X-Api-Key")
			}
			return nil
		},
	}
}
