package completion_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/furrow/pkg/adapters/completion"
	"github.com/aretw0/furrow/pkg/domain"
)

func completionJSON(content string) string {
	return `{"choices": [{"message": {"role": "assistant", "content": ` + mustQuote(content) + `}}],
		"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}}`
}

func mustQuote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestClient_CompleteSendsChatRequest(t *testing.T) {
	var captured struct {
		path  string
		auth  string
		body  map[string]any
		calls int
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.calls++
		captured.path = r.URL.Path
		captured.auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured.body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionJSON("EXECUTE")))
	}))
	defer srv.Close()

	client := completion.NewClient(
		completion.WithBaseURL(srv.URL),
		completion.WithAPIKey("secret"),
		completion.WithModel("test-model"),
	)

	text, err := client.Complete(context.Background(), []domain.Message{
		domain.SystemMessage("You are a router."),
		domain.UserMessage("list my files"),
	})

	require.NoError(t, err)
	assert.Equal(t, "EXECUTE", text)
	assert.Equal(t, 1, captured.calls)
	assert.Equal(t, "/chat/completions", captured.path)
	assert.Equal(t, "Bearer secret", captured.auth)
	assert.Equal(t, "test-model", captured.body["model"])

	msgs, ok := captured.body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	first := msgs[0].(map[string]any)
	assert.Equal(t, "system", first["role"])
	assert.Equal(t, "You are a router.", first["content"])
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "upstream hiccup", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(completionJSON("recovered")))
	}))
	defer srv.Close()

	client := completion.NewClient(completion.WithBaseURL(srv.URL))

	text, err := client.Complete(context.Background(), []domain.Message{domain.UserMessage("hi")})

	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error": "bad model"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	client := completion.NewClient(completion.WithBaseURL(srv.URL))

	_, err := client.Complete(context.Background(), []domain.Message{domain.UserMessage("hi")})

	require.Error(t, err)
	var apiErr *completion.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "bad model")
	assert.Equal(t, int32(1), calls.Load(), "4xx answers are not retried")
}

func TestClient_GivesUpAfterRetryBudget(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := completion.NewClient(completion.WithBaseURL(srv.URL))

	_, err := client.Complete(context.Background(), []domain.Message{domain.UserMessage("hi")})

	require.Error(t, err)
	assert.ErrorContains(t, err, "completion failed after 3 attempts")
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_EmptyChoicesIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	client := completion.NewClient(completion.WithBaseURL(srv.URL))

	_, err := client.Complete(context.Background(), []domain.Message{domain.UserMessage("hi")})

	assert.ErrorContains(t, err, "no choices")
}
