// Package openrouter implements the chat-completion client against the
// OpenRouter API (an OpenAI-compatible endpoint).
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/passionapp/passionbot/internal/config"
	"github.com/passionapp/passionbot/internal/database"
)

var (
	// ErrRateLimited is returned when the provider reports HTTP 429.
	ErrRateLimited = errors.New("rate limited by completion provider")

	// ErrEmptyCompletion is returned when the provider reply carries no
	// completion choice.
	ErrEmptyCompletion = errors.New("completion provider returned no choices")
)

// ProviderError is any provider-reported failure other than rate limiting.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("completion provider error (status %d): %s", e.StatusCode, e.Message)
}

// Client defines the completion operation used by the conversation
// orchestrator. It is stateless: history comes from the caller.
type Client interface {
	// Complete issues one chat-completion request. history holds the prior
	// turns oldest first; userMessage is appended after them.
	Complete(ctx context.Context, systemPrompt string, history []database.HistoryEntry, userMessage string) (string, error)
}

type httpClient struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	referer     string
	title       string
	http        *http.Client
	log         *slog.Logger
}

// NewClient creates a new OpenRouter client from the AI section of the
// application configuration.
func NewClient(cfg *config.Config, log *slog.Logger) (Client, error) {
	if cfg.AIToken == "" {
		return nil, errors.New("openrouter API key is required")
	}

	logger := log.With("component", "openrouter_client")
	logger.Info("OpenRouter client initialized", "model", cfg.AIModel, "base_url", cfg.AIBaseURL)
	return &httpClient{
		apiKey:      cfg.AIToken,
		baseURL:     cfg.AIBaseURL,
		model:       cfg.AIModel,
		maxTokens:   cfg.AIMaxTokens,
		temperature: cfg.AITemperature,
		referer:     cfg.AIReferer,
		title:       cfg.AITitle,
		http:        &http.Client{Timeout: cfg.AITimeout},
		log:         logger,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete issues one chat-completion request, retrying exactly once on
// transient failures (network errors and provider 5xx). Rate limits and
// other 4xx responses are never retried.
func (c *httpClient) Complete(ctx context.Context, systemPrompt string, history []database.HistoryEntry, userMessage string) (string, error) {
	messages := make([]chatMessage, 0, len(history)+2)
	messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	for _, entry := range history {
		messages = append(messages, chatMessage{Role: string(entry.Role), Content: entry.Content})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userMessage})

	payload, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var text string
	var lastErr error
	for attempt := 0; attempt <= 1; attempt++ {
		if attempt > 0 {
			c.log.WarnContext(ctx, "Retrying completion request after transient failure", "error", lastErr)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		var retriable bool
		text, retriable, lastErr = c.doRequest(ctx, payload)
		if lastErr == nil {
			return text, nil
		}
		if !retriable {
			return "", lastErr
		}
	}
	return "", lastErr
}

// doRequest performs one HTTP round trip. The second return value reports
// whether the failure is transient and worth one retry.
func (c *httpClient) doRequest(ctx context.Context, payload []byte) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.referer != "" {
		req.Header.Set("HTTP-Referer", c.referer)
	}
	if c.title != "" {
		req.Header.Set("X-Title", c.title)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		return "", true, fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		c.log.WarnContext(ctx, "Completion request rate limited")
		return "", false, ErrRateLimited
	}
	if resp.StatusCode >= 500 {
		return "", true, &ProviderError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", false, fmt.Errorf("parse response: %w", err)
	}

	// OpenRouter reports some failures inside a 200 body.
	if chatResp.Error != nil {
		if chatResp.Error.Code == http.StatusTooManyRequests {
			c.log.WarnContext(ctx, "Completion request rate limited", "message", chatResp.Error.Message)
			return "", false, ErrRateLimited
		}
		c.log.ErrorContext(ctx, "Completion provider reported error", "code", chatResp.Error.Code, "message", chatResp.Error.Message)
		return "", false, &ProviderError{StatusCode: chatResp.Error.Code, Message: chatResp.Error.Message}
	}
	if resp.StatusCode != http.StatusOK {
		return "", false, &ProviderError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	if len(chatResp.Choices) == 0 {
		c.log.WarnContext(ctx, "Completion response carried no choices")
		return "", false, ErrEmptyCompletion
	}

	return chatResp.Choices[0].Message.Content, false, nil
}
