/*
 * KubeSentinel - Autonomous Kubernetes Remediation Agent
 * Copyright (c) 2025 Edilson Freitas
 * License: MIT
 */
package claudeai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/diillson/kubesentinel/config"
	"github.com/diillson/kubesentinel/models"
	"github.com/diillson/kubesentinel/utils"
)

// ClaudeClient talks to the Anthropic messages API.
type ClaudeClient struct {
	apiKey      string
	model       string
	logger      *zap.Logger
	client      *http.Client
	maxAttempts int
	backoff     time.Duration
}

// NewClaudeClient creates a new ClaudeClient.
func NewClaudeClient(apiKey string, model string, logger *zap.Logger, maxAttempts int, backoff time.Duration) *ClaudeClient {
	httpClient := utils.NewHTTPClient(logger, 900*time.Second)
	if maxAttempts <= 0 {
		maxAttempts = config.ClaudeAIDefaultMaxAttempts
	}
	if backoff <= 0 {
		backoff = config.ClaudeAIDefaultBackoff
	}

	return &ClaudeClient{
		apiKey:      apiKey,
		model:       model,
		logger:      logger,
		client:      httpClient,
		maxAttempts: maxAttempts,
		backoff:     backoff,
	}
}

// GetModelName returns the configured model identifier.
func (c *ClaudeClient) GetModelName() string {
	return c.model
}

// SendPrompt sends the prompt plus history with exponential backoff on
// temporary failures.
func (c *ClaudeClient) SendPrompt(ctx context.Context, prompt string, history []models.Message, maxTokens int) (string, error) {
	system, messages := c.buildMessages(prompt, history)

	effectiveMaxTokens := maxTokens
	if effectiveMaxTokens <= 0 {
		effectiveMaxTokens = config.ClaudeAIDefaultMaxTokens
		if tokenStr := os.Getenv("CLAUDEAI_MAX_TOKENS"); tokenStr != "" {
			if parsedTokens, err := strconv.Atoi(tokenStr); err == nil && parsedTokens > 0 {
				effectiveMaxTokens = parsedTokens
				c.logger.Debug("Using custom max_tokens", zap.Int("max_tokens", effectiveMaxTokens))
			}
		}
	}

	reqBody := map[string]interface{}{
		"model":      c.model,
		"max_tokens": effectiveMaxTokens,
		"messages":   messages,
	}
	if system != "" {
		reqBody["system"] = system
	}

	jsonValue, err := json.Marshal(reqBody)
	if err != nil {
		c.logger.Error("Failed to marshal payload", zap.Error(err))
		return "", fmt.Errorf("failed to prepare the request: %w", err)
	}

	var backoff = c.backoff

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		apiURL := utils.GetEnvOrDefault("CLAUDEAI_API_URL", config.ClaudeAIAPIURL)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(string(jsonValue)))
		if err != nil {
			c.logger.Error("Failed to create prompt request", zap.Error(err))
			return "", fmt.Errorf("failed to create the request: %w", err)
		}

		req.Header.Add("Content-Type", "application/json")
		req.Header.Add("x-api-key", c.apiKey)

		apiVersion := os.Getenv("CLAUDEAI_API_VERSION")
		if apiVersion == "" {
			apiVersion = config.ClaudeAIAPIVersionDefault
		}
		req.Header.Add("anthropic-version", apiVersion)

		resp, err := c.client.Do(req)

		if err != nil {
			if utils.IsTemporaryError(err) {
				c.logger.Warn("Temporary error calling Claude AI",
					zap.Int("attempt", attempt),
					zap.Error(err),
					zap.Duration("backoff", backoff),
				)

				if attempt < c.maxAttempts {
					time.Sleep(backoff)
					backoff *= 2
					continue
				}
			}

			c.logger.Error("Request to Claude AI failed", zap.Error(err))
			return "", fmt.Errorf("request to Claude AI failed: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()

			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				c.logger.Warn("Retryable status from Claude AI",
					zap.Int("attempt", attempt),
					zap.Int("status", resp.StatusCode),
					zap.String("body", utils.SanitizeSensitiveText(string(body))),
				)

				if attempt < c.maxAttempts {
					time.Sleep(backoff)
					backoff *= 2
					continue
				}
			}

			c.logger.Error("Claude AI returned an error",
				zap.Int("status", resp.StatusCode),
				zap.String("body", utils.SanitizeSensitiveText(string(body))))
			return "", &utils.APIError{StatusCode: resp.StatusCode, Message: utils.SanitizeSensitiveText(string(body))}
		}

		responseText, err := c.parseResponse(resp)
		if err != nil {
			c.logger.Error("Failed to process Claude AI response", zap.Error(err))
			return "", err
		}

		return responseText, nil
	}

	return "", fmt.Errorf("failed to get a response from Claude AI after %d attempts", c.maxAttempts)
}

// buildMessages converts the history into the messages API shape. System
// messages go into the top-level system field; the current prompt is appended
// as the final user turn when not already present.
func (c *ClaudeClient) buildMessages(prompt string, history []models.Message) (string, []map[string]string) {
	var system string
	messages := make([]map[string]string, 0, len(history)+1)

	for _, msg := range history {
		if msg.Role == "system" {
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
			continue
		}
		role := "user"
		if msg.Role == "assistant" {
			role = "assistant"
		}
		messages = append(messages, map[string]string{"role": role, "content": msg.Content})
	}

	if len(messages) == 0 || messages[len(messages)-1]["role"] != "user" || messages[len(messages)-1]["content"] != prompt {
		if strings.TrimSpace(prompt) != "" {
			messages = append(messages, map[string]string{"role": "user", "content": prompt})
		}
	}

	return system, messages
}

// parseResponse decodes the messages API response, concatenating the text
// content blocks.
func (c *ClaudeClient) parseResponse(resp *http.Response) (string, error) {
	defer func() { _ = resp.Body.Close() }()

	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.logger.Error("Failed to decode Claude AI response", zap.Error(err))
		return "", fmt.Errorf("failed to decode the response: %w", err)
	}

	var responseText string
	for _, content := range result.Content {
		if content.Type == "text" {
			responseText += content.Text
		}
	}

	if result.Usage.InputTokens > 0 || result.Usage.OutputTokens > 0 {
		usage := models.UsageInfo{
			PromptTokens:     result.Usage.InputTokens,
			CompletionTokens: result.Usage.OutputTokens,
			TotalTokens:      result.Usage.InputTokens + result.Usage.OutputTokens,
		}
		c.logger.Debug("Claude AI token usage",
			zap.String("model", c.model),
			zap.Int("prompt_tokens", usage.PromptTokens),
			zap.Int("completion_tokens", usage.CompletionTokens),
			zap.Int("total_tokens", usage.TotalTokens))
	}

	if responseText == "" {
		c.logger.Error("No text content found in Claude AI response")
		return "", fmt.Errorf("no text content in the Claude AI response")
	}

	return responseText, nil
}
