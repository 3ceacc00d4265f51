package anthropic_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/averba/model-relay/internal/llm"
	"github.com/averba/model-relay/internal/llm/anthropic"
	"github.com/averba/model-relay/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdapter(t *testing.T, baseURL string) llm.Provider {
	t.Helper()
	p, err := anthropic.NewAdapter(llm.ProviderConfig{ID: "anthropic-test", BaseURL: baseURL, APIKey: "sk-ant-test"})
	require.NoError(t, err)
	return p
}

func TestGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		// System messages fold into the top-level field, out of the array.
		assert.Contains(t, req["system"], "Be brief.")
		assert.Len(t, req["messages"], 1)
		assert.EqualValues(t, 4096, req["max_tokens"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":          "msg_01",
			"content":     []map[string]string{{"type": "text", "text": "Hello."}},
			"stop_reason": "end_turn",
			"usage":       map[string]int{"input_tokens": 9, "output_tokens": 2},
		})
	}))
	defer server.Close()

	req := &llm.Request{
		Model: "claude-3-haiku-20240307",
		Messages: []api.ChatMessage{
			{Role: "system", Content: "Be brief."},
			{Role: "user", Content: "Hi"},
		},
	}

	text, usage, err := newAdapter(t, server.URL).Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Hello.", text)
	require.NotNil(t, usage)
	assert.Equal(t, 11, usage.TotalTokens)
}

func TestStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		events := []string{
			`{"type":"message_start"}`,
			`{"type":"content_block_delta","delta":{"type":"text_delta","text":"Hel"}}`,
			`{"type":"content_block_delta","delta":{"type":"text_delta","text":"lo"}}`,
			`{"type":"message_stop"}`,
		}
		for _, ev := range events {
			fmt.Fprintf(w, "data: %s\n\n", ev)
			w.(http.Flusher).Flush()
		}
	}))
	defer server.Close()

	req := &llm.Request{
		Model:    "claude-3-haiku-20240307",
		Messages: []api.ChatMessage{{Role: "user", Content: "Hi"}},
	}

	ch, err := newAdapter(t, server.URL).Stream(context.Background(), req)
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
