package openai_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/averba/model-relay/internal/httpclient"
	"github.com/averba/model-relay/internal/llm"
	"github.com/averba/model-relay/internal/llm/openai"
	"github.com/averba/model-relay/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdapter(t *testing.T, baseURL string) llm.Provider {
	t.Helper()
	p, err := openai.NewAdapter(llm.ProviderConfig{ID: "openai-test", BaseURL: baseURL, APIKey: "sk-test"})
	require.NoError(t, err)
	return p
}

func chatReq(prompt string) *llm.Request {
	return &llm.Request{
		Model:    "gpt-4o-mini",
		Messages: []api.ChatMessage{{Role: "user", Content: prompt}},
	}
}

func TestGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "Hi!"}, "finish_reason": "stop"},
			},
			"usage": map[string]int{"prompt_tokens": 5, "completion_tokens": 2, "total_tokens": 7},
		})
	}))
	defer server.Close()

	text, usage, err := newAdapter(t, server.URL).Generate(context.Background(), chatReq("Hello"))
	require.NoError(t, err)
	assert.Equal(t, "Hi!", text)
	require.NotNil(t, usage)
	assert.Equal(t, 7, usage.TotalTokens)
}

func TestGenerate_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"choices": []interface{}{}})
	}))
	defer server.Close()

	_, _, err := newAdapter(t, server.URL).Generate(context.Background(), chatReq("Hello"))
	assert.Error(t, err)
}

func TestStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, tok := range []string{"Hel", "lo"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", tok)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	ch, err := newAdapter(t, server.URL).Stream(context.Background(), chatReq("Hi"))
	require.NoError(t, err)

	var text string
	var sawFinal bool
	for res := range ch {
		require.NoError(t, res.Err)
		if res.Chunk.Final {
			sawFinal = true
			continue
		}
		text += res.Chunk.Text
	}

	assert.Equal(t, "Hello", text)
	assert.True(t, sawFinal)
}

func TestStream_IgnoresCommentsAndBlankLines(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, ": keepalive\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	ch, err := newAdapter(t, server.URL).Stream(context.Background(), chatReq("Hi"))
	require.NoError(t, err)

	var tokens []string
	for res := range ch {
		require.NoError(t, res.Err)
		if !res.Chunk.Final {
			tokens = append(tokens, res.Chunk.Text)
		}
	}
	assert.Equal(t, []string{"ok"}, tokens)
}

func TestStream_AuthFailureBeforeChannel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := newAdapter(t, server.URL).Stream(context.Background(), chatReq("Hi"))
	require.Error(t, err)

	var upstreamErr *httpclient.UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.Equal(t, http.StatusUnauthorized, upstreamErr.StatusCode)
	assert.Contains(t, string(upstreamErr.Body), "bad key")
}

func TestStream_MissingDoneSentinelSurfacesError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"par\"}}]}\n\n")
	}))
	defer server.Close()

	ch, err := newAdapter(t, server.URL).Stream(context.Background(), chatReq("Hi"))
	require.NoError(t, err)

	var streamErr error
	for res := range ch {
		if res.Err != nil {
			streamErr = res.Err
		}
	}
	require.Error(t, streamErr)
	assert.Contains(t, streamErr.Error(), "ended before completion")
}
