package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultHTTPTimeout bounds one HTTP round trip to a provider.
const DefaultHTTPTimeout = 2 * time.Minute

// ChatClient implements the Translator interface against any
// OpenAI-compatible chat-completions endpoint. Doubao (Ark), Zhipu GLM,
// OpenAI and Ollama all speak this shape.
type ChatClient struct {
	engine     EngineType
	endpoint   string
	apiKey     string
	model      string
	temp       float64
	maxTokens  int
	prompt     string
	httpClient *http.Client
	retry      RetryConfig
	rl         *rateLimitState
	mapper     *LanguageMapper
	metrics    *MetricsCollector
	logger     *logrus.Logger
}

// NewChatClient creates a chat-completions client. cfg is completed from the
// engine preset first.
func NewChatClient(cfg Config, logger *logrus.Logger) *ChatClient {
	if logger == nil {
		logger = logrus.New()
	}
	cfg = cfg.WithDefaults()

	retry := DefaultRetryConfig()
	retry.MaxRetries = max(cfg.Retries, 0)

	return &ChatClient{
		engine:    cfg.Engine,
		endpoint:  chatEndpoint(cfg.BaseURL),
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		temp:      cfg.Temperature,
		maxTokens: cfg.MaxTokens,
		prompt:    cfg.Prompt,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		retry:   retry,
		rl:      &rateLimitState{},
		mapper:  NewLanguageMapper(),
		metrics: NewMetricsCollector(string(cfg.Engine)),
		logger:  logger,
	}
}

func chatEndpoint(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if strings.HasSuffix(base, "/chat/completions") {
		return base
	}
	return base + "/chat/completions"
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest represents a chat-completions request.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

// chatResponse represents a chat-completions response.
type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Name returns the engine name.
func (c *ChatClient) Name() string {
	return string(c.engine)
}

// Translate sends text as the user message with a system prompt naming the
// language pair and returns the first choice's content.
func (c *ChatClient) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	system := BuildSystemPrompt(c.prompt, c.mapper.DisplayName(sourceLang), c.mapper.DisplayName(targetLang))

	c.logger.WithFields(logrus.Fields{
		"engine":      c.engine,
		"source_lang": sourceLang,
		"target_lang": targetLang,
		"text_length": len(text),
	}).Debug("Translating text with chat provider")

	startTime := time.Now()
	out, err := c.complete(ctx, system, text, c.maxTokens)
	duration := time.Since(startTime)
	c.metrics.RecordTranslationRequest(duration, err == nil, len(text), len(out))
	if err != nil {
		return "", err
	}

	c.logger.WithFields(logrus.Fields{
		"engine":      c.engine,
		"duration_ms": duration.Milliseconds(),
	}).Debug("Translation request completed")
	return out, nil
}

// CheckHealth sends a one-token completion to verify the endpoint, model and
// credentials.
func (c *ChatClient) CheckHealth(ctx context.Context) error {
	c.logger.WithFields(logrus.Fields{
		"engine":   c.engine,
		"endpoint": c.endpoint,
	}).Debug("Checking chat provider health")

	if _, err := c.complete(ctx, "Reply with OK.", "ping", 1); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

func (c *ChatClient) complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens: maxTokens,
	}
	if c.temp != 0 {
		temp := c.temp
		payload.Temperature = &temp
	}

	body, err := json.Marshal(&payload)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	respBody, err := c.post(ctx, body)
	if err != nil {
		return "", err
	}

	var resp chatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if resp.Error != nil && resp.Error.Message != "" {
		return "", fmt.Errorf("provider error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("response has no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// post sends body to the endpoint, retrying throttled and 5xx responses and
// transport errors with exponential backoff.
func (c *ChatClient) post(ctx context.Context, body []byte) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if err := c.rl.waitIfPaused(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		backoff := calculateBackoff(attempt, c.retry)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			c.metrics.RecordRetry("transport")
		} else {
			respBody, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				return nil, fmt.Errorf("read response: %w", readErr)
			}

			if resp.StatusCode == http.StatusOK {
				return respBody, nil
			}

			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(respBody), 300))
			if !shouldRetry(resp.StatusCode) {
				c.logger.WithFields(logrus.Fields{
					"engine":      c.engine,
					"status_code": resp.StatusCode,
				}).Error("Chat provider returned non-retryable status")
				return nil, lastErr
			}

			if resp.StatusCode == http.StatusTooManyRequests {
				backoff = retryAfter(resp.Header, backoff, c.retry)
				c.rl.pause(backoff)
				c.metrics.RecordRetry("rate_limited")
			} else {
				c.metrics.RecordRetry("server_error")
			}
		}

		if attempt == c.retry.MaxRetries {
			break
		}

		c.logger.WithFields(logrus.Fields{
			"engine":  c.engine,
			"attempt": attempt + 1,
			"backoff": backoff.String(),
		}).WithError(lastErr).Warn("Chat request failed, retrying")

		if err := sleepCtx(ctx, backoff); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("request failed after %d retries: %w", c.retry.MaxRetries, lastErr)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
