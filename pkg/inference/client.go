package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-mimi/internal/httpc"
)

const providerClient = "client"

// Client is an OpenAI-compatible HTTP provider.
type Client struct {
	baseURL string
	config  *Config
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a new client.
func NewClient(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		config:  cfg,
		http:    httpc.NewClient(cfg.Timeout),
		logger:  cfg.Logger.With("component", "inference.client"),
	}, nil
}

type apiMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatPayload struct {
	Model       string       `json:"model"`
	Messages    []apiMessage `json:"messages"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature float64      `json:"temperature,omitempty"`
	TopP        float64      `json:"top_p,omitempty"`
	Stop        []string     `json:"stop,omitempty"`
	Stream      bool         `json:"stream"`
}

type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// Chat generates a chat completion.
func (c *Client) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	payload := chatPayload{
		Model:       firstNonEmpty(req.Model, c.config.Model),
		MaxTokens:   firstPositive(req.MaxTokens, c.config.MaxTokens),
		Temperature: firstPositiveFloat(req.Temperature, c.config.Temperature),
		TopP:        firstPositiveFloat(req.TopP, c.config.TopP),
		Stop:        req.Stop,
	}
	for _, m := range req.Messages {
		payload.Messages = append(payload.Messages, apiMessage{Role: string(m.Role), Content: m.Content})
	}

	result, err := c.complete(ctx, payload)
	if err != nil {
		return nil, err
	}
	choice := result.Choices[0]

	c.logger.Debug("chat completed",
		"model", result.Model,
		"tokens", result.Usage.TotalTokens,
		"latency_ms", time.Since(start).Milliseconds())

	return &ChatResponse{
		Message:      NewAssistantMessage(choice.Message.Content),
		FinishReason: choice.FinishReason,
		Usage:        result.Usage,
		Model:        result.Model,
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

// Vision asks the vision model about an image.
func (c *Client) Vision(ctx context.Context, req *VisionRequest) (*VisionResponse, error) {
	if len(req.JPEG) == 0 {
		return nil, WrapError(providerClient, ErrNoImage)
	}
	start := time.Now()

	content := []map[string]any{
		{"type": "text", "text": req.Prompt},
		{"type": "image_url", "image_url": map[string]string{
			"url": "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(req.JPEG),
		}},
	}
	payload := chatPayload{
		Model:       firstNonEmpty(req.Model, c.config.VisionModel, c.config.Model),
		Messages:    []apiMessage{{Role: string(RoleUser), Content: content}},
		MaxTokens:   firstPositive(req.MaxTokens, 200),
		Temperature: req.Temperature,
	}

	result, err := c.complete(ctx, payload)
	if err != nil {
		return nil, err
	}

	return &VisionResponse{
		Content:   result.Choices[0].Message.Content,
		Usage:     result.Usage,
		Model:     result.Model,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// Health lists models to check connectivity.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return WrapError(providerClient, err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return WrapError(providerClient, fmt.Errorf("health check: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseError(resp)
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *Client) complete(ctx context.Context, payload chatPayload) (*chatCompletionResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, WrapError(providerClient, fmt.Errorf("marshal payload: %w", err))
	}

	resp, err := c.postWithRetry(ctx, "/chat/completions", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, WrapError(providerClient, fmt.Errorf("decode response: %w", err))
	}
	if len(result.Choices) == 0 {
		return nil, WrapError(providerClient, ErrNoChoices)
	}
	return &result, nil
}

// postWithRetry POSTs body and retries transport failures, 429 and 5xx.
func (c *Client) postWithRetry(ctx context.Context, path string, body []byte) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay * time.Duration(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, WrapError(providerClient, fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		c.authorize(req)

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = WrapError(providerClient, err)
			c.logger.Warn("request failed, retrying", "attempt", attempt+1, "error", err)
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}

		apiErr := c.parseError(resp)
		resp.Body.Close()

		var e *APIError
		if errors.As(apiErr, &e) && !e.IsRetryable() {
			return nil, apiErr
		}
		lastErr = apiErr
		c.logger.Warn("retrying request", "attempt", attempt+1, "status", resp.StatusCode)
	}

	return nil, lastErr
}

func (c *Client) authorize(req *http.Request) {
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
}

func (c *Client) parseError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	var body apiErrorBody
	if json.Unmarshal(data, &body) == nil && body.Error.Message != "" {
		apiErr.Message = body.Error.Message
		if body.Error.Code != nil {
			apiErr.Code = fmt.Sprint(body.Error.Code)
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return WrapError(providerClient, apiErr)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

func firstPositiveFloat(vals ...float64) float64 {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

var _ Provider = (*Client)(nil)
