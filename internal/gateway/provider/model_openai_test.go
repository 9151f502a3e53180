package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(context.Context, time.Duration) error { return nil }

func TestChatSendsMessagesAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-1234", r.Header.Get("Authorization"))
		assert.Equal(t, "council", r.Header.Get("X-Title"))
		var body struct {
			Model    string    `json:"model"`
			Messages []Message `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "vendor/alpha", body.Model)
		require.Len(t, body.Messages, 1)
		assert.Equal(t, "user", body.Messages[0].Role)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"hello"}}]}`))
	}))
	defer srv.Close()

	c := &OpenAIChatClient{
		BaseURL:      srv.URL + "/v1/chat/completions/",
		APIKey:       "sk-1234",
		Model:        "vendor/alpha",
		ExtraHeaders: map[string]string{"X-Title": "council"},
		HTTPClient:   srv.Client(),
	}
	out, err := c.Chat(context.Background(), []Message{UserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestChatRetriesOnServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	c := &OpenAIChatClient{BaseURL: srv.URL, MaxRetries: 2, HTTPClient: srv.Client(), sleep: noSleep}
	out, err := c.Chat(context.Background(), []Message{UserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestChatDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	c := &OpenAIChatClient{BaseURL: srv.URL, MaxRetries: 3, HTTPClient: srv.Client(), sleep: noSleep}
	_, err := c.Chat(context.Background(), []Message{UserMessage("hi")})
	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusUnauthorized, serr.StatusCode)
	assert.Equal(t, "bad key", serr.Message)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 3*time.Second, backoff(0, "3"))
	assert.Equal(t, 800*time.Millisecond, backoff(0, ""))
	assert.Equal(t, 1600*time.Millisecond, backoff(1, "junk"))
	assert.Equal(t, 8*time.Second, backoff(6, ""))
}

func TestMaskedHeaders(t *testing.T) {
	c := &OpenAIChatClient{APIKey: "sk-abcdef", ExtraHeaders: map[string]string{"X-Api-Key": "secret-value", "X-Title": "council"}}
	h := c.maskedHeaders()
	assert.Equal(t, "Bearer ****cdef", h["Authorization"])
	assert.Equal(t, "****alue", h["X-Api-Key"])
	assert.Equal(t, "council", h["X-Title"])
}
