/*
 * KubeSentinel - Autonomous Kubernetes Remediation Agent
 * Copyright (c) 2025 Edilson Freitas
 * License: MIT
 */
package openai

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

// OpenAIClient talks to the OpenAI chat completions API.
type OpenAIClient struct {
	apiKey      string
	model       string
	logger      *zap.Logger
	client      *http.Client
	maxAttempts int
	backoff     time.Duration
}

// NewOpenAIClient creates a new OpenAIClient.
func NewOpenAIClient(apiKey, model string, logger *zap.Logger, maxAttempts int, backoff time.Duration) *OpenAIClient {
	httpClient := utils.NewHTTPClient(logger, 900*time.Second)
	if maxAttempts <= 0 {
		maxAttempts = config.OpenAIDefaultMaxAttempts
	}
	if backoff <= 0 {
		backoff = config.OpenAIDefaultBackoff
	}

	return &OpenAIClient{
		apiKey:      apiKey,
		model:       model,
		logger:      logger,
		client:      httpClient,
		maxAttempts: maxAttempts,
		backoff:     backoff,
	}
}

// GetModelName returns the configured model identifier.
func (c *OpenAIClient) GetModelName() string {
	return c.model
}

func (c *OpenAIClient) getMaxTokens() int {
	if tokenStr := os.Getenv("OPENAI_MAX_TOKENS"); tokenStr != "" {
		if parsedTokens, err := strconv.Atoi(tokenStr); err == nil && parsedTokens > 0 {
			c.logger.Debug("Using custom OPENAI_MAX_TOKENS", zap.Int("max_tokens", parsedTokens))
			return parsedTokens
		}
	}
	return 0
}

// SendPrompt sends the prompt plus history and returns the model response.
func (c *OpenAIClient) SendPrompt(ctx context.Context, prompt string, history []models.Message, maxTokens int) (string, error) {
	effectiveMaxTokens := maxTokens
	if effectiveMaxTokens <= 0 {
		effectiveMaxTokens = c.getMaxTokens()
	}

	messages := []map[string]string{}

	for _, msg := range history {
		role := strings.ToLower(strings.TrimSpace(msg.Role))
		switch role {
		case "system", "user", "assistant":
		default:
			role = "user"
		}
		messages = append(messages, map[string]string{
			"role":    role,
			"content": msg.Content,
		})
	}

	// When the history does not already end with the prompt, append it as the
	// final user message.
	if len(history) == 0 || history[len(history)-1].Role != "user" || history[len(history)-1].Content != prompt {
		if strings.TrimSpace(prompt) != "" {
			messages = append(messages, map[string]string{
				"role":    "user",
				"content": prompt,
			})
		}
	}

	payload := map[string]interface{}{
		"model":    c.model,
		"messages": messages,
	}
	if effectiveMaxTokens > 0 {
		payload["max_tokens"] = effectiveMaxTokens
	}

	jsonValue, err := json.Marshal(payload)
	if err != nil {
		c.logger.Error("Failed to marshal payload", zap.Error(err))
		return "", fmt.Errorf("failed to prepare the request: %w", err)
	}

	response, err := utils.Retry(ctx, c.logger, c.maxAttempts, c.backoff, func(ctx context.Context) (string, error) {
		resp, err := c.sendRequest(ctx, jsonValue)
		if err != nil {
			return "", err
		}
		return c.processResponse(resp)
	})

	return response, err
}

// sendRequest posts the payload to the OpenAI API.
func (c *OpenAIClient) sendRequest(ctx context.Context, jsonValue []byte) (*http.Response, error) {
	apiURL := utils.GetEnvOrDefault("OPENAI_API_URL", config.OpenAIAPIURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, utils.NewJSONReader(jsonValue))
	if err != nil {
		c.logger.Error("Failed to create request", zap.Error(err))
		return nil, fmt.Errorf("failed to create the request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// processResponse extracts the completion text from the API response.
func (c *OpenAIClient) processResponse(resp *http.Response) (string, error) {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("Failed to read OpenAI response", zap.Error(err))
		return "", fmt.Errorf("failed to read the OpenAI response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &utils.APIError{StatusCode: resp.StatusCode, Message: utils.SanitizeSensitiveText(string(bodyBytes))}
	}

	var result map[string]interface{}
	if err := json.Unmarshal(bodyBytes, &result); err != nil {
		c.logger.Error("Failed to decode OpenAI response", zap.Error(err))
		return "", fmt.Errorf("failed to decode the OpenAI response: %w", err)
	}

	choices, ok := result["choices"].([]interface{})
	if !ok || len(choices) == 0 {
		c.logger.Error("No response received from OpenAI", zap.Any("result", result))
		return "", fmt.Errorf("no response received from OpenAI")
	}

	firstChoice, ok := choices[0].(map[string]interface{})
	if !ok {
		c.logger.Error("Unexpected format in first choice", zap.Any("choice", choices[0]))
		return "", fmt.Errorf("unexpected format in the OpenAI response")
	}

	message, ok := firstChoice["message"].(map[string]interface{})
	if !ok {
		c.logger.Error("Missing 'message' field in response", zap.Any("choice", firstChoice))
		return "", fmt.Errorf("missing 'message' field in the OpenAI response")
	}

	content, ok := message["content"].(string)
	if !ok {
		c.logger.Error("Message content is not a string", zap.Any("content", message["content"]))
		return "", fmt.Errorf("message content is not valid")
	}

	if usage := extractUsage(result); usage.TotalTokens > 0 {
		c.logger.Debug("OpenAI token usage",
			zap.String("model", c.model),
			zap.Int("prompt_tokens", usage.PromptTokens),
			zap.Int("completion_tokens", usage.CompletionTokens),
			zap.Int("total_tokens", usage.TotalTokens))
	}

	return content, nil
}

// extractUsage reads the token accounting block of a completion response.
func extractUsage(result map[string]interface{}) models.UsageInfo {
	usage, ok := result["usage"].(map[string]interface{})
	if !ok {
		return models.UsageInfo{}
	}
	toInt := func(key string) int {
		if v, ok := usage[key].(float64); ok {
			return int(v)
		}
		return 0
	}
	return models.UsageInfo{
		PromptTokens:     toInt("prompt_tokens"),
		CompletionTokens: toInt("completion_tokens"),
		TotalTokens:      toInt("total_tokens"),
	}
}
