package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"council/internal/logger"
)

const defaultBaseURL = "https://api.openai.com/v1"

// StatusError is a non-2xx reply from a chat completion endpoint.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status=%d: %s", e.StatusCode, e.Message)
}

func (e *StatusError) retryable() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// OpenAIChatClient talks to any OpenAI-compatible /chat/completions endpoint
// (OpenAI, OpenRouter, DeepSeek, Qwen ...).
type OpenAIChatClient struct {
	BaseURL      string
	APIKey       string
	Model        string
	MaxRetries   int
	ExtraHeaders map[string]string
	Temperature  float64
	// HTTPClient is shared across all models; nil uses http.DefaultClient.
	HTTPClient *http.Client
	// sleep is swapped in tests to skip backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

func (c *OpenAIChatClient) endpoint() string {
	url := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if url == "" {
		url = defaultBaseURL
	}
	url = strings.TrimSuffix(url, "/chat/completions")
	return url + "/chat/completions"
}

func (c *OpenAIChatClient) Chat(ctx context.Context, messages []Message) (string, error) {
	body := map[string]any{"model": c.Model, "messages": messages}
	if c.Temperature > 0 {
		body["temperature"] = c.Temperature
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	url := c.endpoint()
	httpc := c.HTTPClient
	if httpc == nil {
		httpc = http.DefaultClient
	}
	sleep := c.sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	maxRetries := c.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	logger.Debugf("[model] POST %s headers=%v model=%s", url, c.maskedHeaders(), c.Model)

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.APIKey)
		}
		for k, v := range c.ExtraHeaders {
			req.Header.Set(k, v)
		}
		resp, err := httpc.Do(req)
		if err != nil {
			return "", err
		}
		if resp.StatusCode/100 == 2 {
			var r struct {
				Choices []struct {
					Message struct {
						Content string `json:"content"`
					} `json:"message"`
				} `json:"choices"`
			}
			derr := json.NewDecoder(resp.Body).Decode(&r)
			resp.Body.Close()
			if derr != nil {
				return "", fmt.Errorf("decode completion: %w", derr)
			}
			if len(r.Choices) == 0 {
				return "", errors.New("empty choices")
			}
			return r.Choices[0].Message.Content, nil
		}
		var eresp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&eresp)
		resp.Body.Close()
		msg := strings.TrimSpace(eresp.Error.Message)
		if msg == "" {
			msg = resp.Status
		}
		serr := &StatusError{StatusCode: resp.StatusCode, Message: msg}
		lastErr = serr
		if !serr.retryable() || attempt == maxRetries {
			break
		}
		if err := sleep(ctx, backoff(attempt, resp.Header.Get("Retry-After"))); err != nil {
			return "", err
		}
	}
	return "", lastErr
}

// backoff honors Retry-After seconds, else 0.8s doubling up to 8s.
func backoff(attempt int, retryAfter string) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(retryAfter)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	wait := (800 * time.Millisecond) << attempt
	if wait > 8*time.Second {
		wait = 8 * time.Second
	}
	return wait
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *OpenAIChatClient) maskedHeaders() map[string]string {
	h := map[string]string{"Content-Type": "application/json"}
	if c.APIKey != "" {
		h["Authorization"] = "Bearer " + mask(c.APIKey)
	}
	for k, v := range c.ExtraHeaders {
		lk := strings.ToLower(k)
		if strings.Contains(lk, "key") || strings.Contains(lk, "token") || strings.Contains(lk, "auth") {
			v = mask(v)
		}
		h[k] = v
	}
	return h
}

func mask(v string) string {
	if len(v) > 4 {
		return "****" + v[len(v)-4:]
	}
	return "****"
}

type chatClient interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// OpenAIModelProvider adapts a chat client to ModelProvider.
type OpenAIModelProvider struct {
	id      string
	enabled bool
	client  chatClient
}

func NewOpenAIModelProvider(id string, enabled bool, client chatClient) *OpenAIModelProvider {
	return &OpenAIModelProvider{id: id, enabled: enabled, client: client}
}

func (p *OpenAIModelProvider) ID() string    { return p.id }
func (p *OpenAIModelProvider) Enabled() bool { return p.enabled }
func (p *OpenAIModelProvider) Call(ctx context.Context, messages []Message) (string, error) {
	return p.client.Chat(ctx, messages)
}
