package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	ChatClientName     = "chat"
	DefaultChatBaseURL = "https://openrouter.ai/api/v1"
)

// ChatConfig holds configuration for the synchronous chat client.
type ChatConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
	// Rate limiting
	RPM        float64       // Requests per minute (default: 60)
	MaxRetries int           // Max retry attempts (default: 3)
	RetryDelay time.Duration // Base delay between retries (default: 1s)
}

// ChatClient implements LLMClient against any OpenAI-compatible
// /chat/completions endpoint. The audit and correction stages use it; the
// rewrite phase never does, which keeps the audit decision process apart
// from the generator.
type ChatClient struct {
	apiKey       string
	baseURL      string
	defaultModel string
	client       *http.Client
	limiter      *RateLimiter
	maxRetries   int
	retryDelay   time.Duration
}

// NewChatClient creates a new synchronous chat client.
func NewChatClient(cfg ChatConfig) *ChatClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultChatBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.RPM == 0 {
		cfg.RPM = 60.0
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}

	return &ChatClient{
		apiKey:       cfg.APIKey,
		baseURL:      cfg.BaseURL,
		defaultModel: cfg.DefaultModel,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter:    NewRateLimiter(int(cfg.RPM)),
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}
}

// Name returns the client identifier.
func (c *ChatClient) Name() string {
	return ChatClientName
}

// Chat sends a chat completion request, blocking on the client-side rate
// limiter first. Correction-stage workers share one client, so the limiter
// caps aggregate request rate regardless of worker count.
func (c *ChatClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	chatReq := chatAPIRequest{
		Model:          model,
		Messages:       req.Messages,
		Temperature:    req.Temperature,
		MaxTokens:      req.MaxTokens,
		ResponseFormat: req.ResponseFormat,
	}

	apiResp, err := c.doRequest(ctx, "/chat/completions", &chatReq)

	result := &ChatResult{
		RequestID: requestID,
		Provider:  ChatClientName,
		Attempts:  1,
	}

	if err != nil {
		result.Success = false
		result.ErrorType = "http_error"
		result.ErrorMessage = err.Error()
		result.ExecutionTime = time.Since(start)
		return result, &ProviderError{Provider: ChatClientName, Op: "chat", Err: err}
	}

	if len(apiResp.Choices) == 0 {
		result.Success = false
		result.ErrorType = "empty_response"
		result.ErrorMessage = "no choices in response"
		result.ExecutionTime = time.Since(start)
		return result, &ProviderError{Provider: ChatClientName, Op: "chat", Err: fmt.Errorf("no choices in response")}
	}

	result.Success = true
	result.Content = apiResp.Choices[0].Message.Content
	result.ModelUsed = apiResp.Model
	result.PromptTokens = apiResp.Usage.PromptTokens
	result.CompletionTokens = apiResp.Usage.CompletionTokens
	result.TotalTokens = apiResp.Usage.TotalTokens
	result.ExecutionTime = time.Since(start)

	// Parse JSON if structured output was requested
	if req.ResponseFormat != nil && result.Content != "" {
		var parsed json.RawMessage
		if err := json.Unmarshal([]byte(result.Content), &parsed); err == nil {
			result.ParsedJSON = parsed
		} else {
			result.Success = false
			result.ErrorType = "json_parse"
			result.ErrorMessage = fmt.Sprintf("failed to parse JSON response: %v", err)
		}
	}

	return result, nil
}

// doRequest makes an HTTP request with retry logic.
func (c *ChatClient) doRequest(ctx context.Context, path string, body *chatAPIRequest) (*chatAPIResponse, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(bodyBytes))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			c.sleepWithJitter(ctx, attempt)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			c.sleepWithJitter(ctx, attempt)
			continue
		}

		if c.shouldRetry(resp.StatusCode) {
			if resp.StatusCode == http.StatusTooManyRequests {
				c.limiter.Record429(c.retryDelay)
			}
			lastErr = fmt.Errorf("chat error (status %d): %s", resp.StatusCode, string(respBody))
			c.sleepWithJitter(ctx, attempt)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("chat error (status %d): %s", resp.StatusCode, string(respBody))
		}

		var apiResp chatAPIResponse
		if err := json.Unmarshal(respBody, &apiResp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response: %w", err)
		}

		return &apiResp, nil
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// shouldRetry returns true for status codes that should be retried.
func (c *ChatClient) shouldRetry(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests:
		return true
	default:
		return statusCode >= 500
	}
}

// sleepWithJitter sleeps with exponential backoff and jitter, respecting
// context cancellation.
func (c *ChatClient) sleepWithJitter(ctx context.Context, attempt int) {
	baseDelay := c.retryDelay * time.Duration(1<<attempt)
	if baseDelay > 10*time.Second {
		baseDelay = 10 * time.Second
	}

	// Jitter: -20% to +30%
	jitter := time.Duration(float64(baseDelay) * (0.8 + 0.5*float64(time.Now().UnixNano()%1000)/1000))

	select {
	case <-ctx.Done():
	case <-time.After(jitter):
	}
}

// Chat API wire types

type chatAPIRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

type chatAPIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Verify interface
var _ LLMClient = (*ChatClient)(nil)
