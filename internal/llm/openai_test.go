package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChatServer(t *testing.T, reply string, inspect func(chatRequest)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if inspect != nil {
			inspect(req)
		}

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": reply}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestOpenAIClient_Complete(t *testing.T) {
	var seen chatRequest
	srv := newChatServer(t, "Metformin lowers hepatic glucose production.", func(req chatRequest) {
		seen = req
	})
	defer srv.Close()

	client := NewOpenAIClient(OpenAIConfig{BaseURL: srv.URL, Model: "test-model", APIKey: "key"})

	out, err := client.Complete(context.Background(), Request{
		System: "You are a medical research librarian.",
		Prompt: "How does metformin work?",
	})
	require.NoError(t, err)

	assert.Equal(t, "Metformin lowers hepatic glucose production.", out)
	require.Len(t, seen.Messages, 2)
	assert.Equal(t, "system", seen.Messages[0].Role)
	assert.Equal(t, "user", seen.Messages[1].Role)
	assert.Nil(t, seen.ResponseFormat)
}

func TestOpenAIClient_JSONModeSetsResponseFormat(t *testing.T) {
	var seen chatRequest
	srv := newChatServer(t, `{"ok": true}`, func(req chatRequest) { seen = req })
	defer srv.Close()

	client := NewOpenAIClient(OpenAIConfig{BaseURL: srv.URL, Model: "m"})

	_, err := client.Complete(context.Background(), Request{Prompt: "p", JSONMode: true})
	require.NoError(t, err)
	require.NotNil(t, seen.ResponseFormat)
	assert.Equal(t, "json_object", seen.ResponseFormat.Type)
}

func TestOpenAIClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewOpenAIClient(OpenAIConfig{BaseURL: srv.URL, Model: "m"})

	_, err := client.Complete(context.Background(), Request{Prompt: "p"})
	assert.Error(t, err)
}

func TestCompleteJSON(t *testing.T) {
	type filters struct {
		SectionType string `json:"sectionType"`
	}

	t.Run("plain JSON", func(t *testing.T) {
		srv := newChatServer(t, `{"sectionType": "results"}`, nil)
		defer srv.Close()
		client := NewOpenAIClient(OpenAIConfig{BaseURL: srv.URL, Model: "m"})

		got, err := CompleteJSON[filters](context.Background(), client, Request{Prompt: "p"})
		require.NoError(t, err)
		assert.Equal(t, "results", got.SectionType)
	})

	t.Run("fenced JSON", func(t *testing.T) {
		srv := newChatServer(t, "```json\n{\"sectionType\": \"methods\"}\n```", nil)
		defer srv.Close()
		client := NewOpenAIClient(OpenAIConfig{BaseURL: srv.URL, Model: "m"})

		got, err := CompleteJSON[filters](context.Background(), client, Request{Prompt: "p"})
		require.NoError(t, err)
		assert.Equal(t, "methods", got.SectionType)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		srv := newChatServer(t, "not json at all", nil)
		defer srv.Close()
		client := NewOpenAIClient(OpenAIConfig{BaseURL: srv.URL, Model: "m"})

		_, err := CompleteJSON[filters](context.Background(), client, Request{Prompt: "p"})
		assert.Error(t, err)
	})
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFences(`{"a":1}`))
}
