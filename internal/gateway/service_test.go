package gateway_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/averba/model-relay/internal/alias"
	"github.com/averba/model-relay/internal/cache"
	"github.com/averba/model-relay/internal/directory"
	"github.com/averba/model-relay/internal/gateway"
	"github.com/averba/model-relay/internal/relay"
	"github.com/averba/model-relay/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	_ "github.com/averba/model-relay/internal/llm/ollama"
)

// newOllamaBackend fakes the native generate endpoint and records the
// model id of every request it receives.
func newOllamaBackend(t *testing.T, reply string) (*httptest.Server, *atomic.Value) {
	t.Helper()
	var lastModel atomic.Value

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model  string `json:"model"`
			Stream bool   `json:"stream"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		lastModel.Store(req.Model)

		if req.Stream {
			for _, tok := range []string{reply[:1], reply[1:]} {
				fmt.Fprintf(w, `{"response":%q,"done":false}`+"\n", tok)
			}
			fmt.Fprintln(w, `{"done":true}`)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"response":          reply,
			"done":              true,
			"prompt_eval_count": 4,
			"eval_count":        2,
		})
	}))
	t.Cleanup(server.Close)

	return server, &lastModel
}

func newService(t *testing.T, endpointURL string, respCache cache.Cache) *gateway.Service {
	t.Helper()
	dir := directory.NewStatic([]directory.ModelRecord{{
		ID:              "local-coder",
		Provider:        directory.Ollama,
		InternalModelID: "qwen2.5-coder:1.5b",
		EndpointURL:     endpointURL,
		IsDefault:       true,
		IsActive:        true,
	}})

	svc := gateway.NewService(zap.NewNop(), alias.New(nil, ""), dir, respCache, time.Minute)
	require.Equal(t, 1, svc.Bootstrap())
	return svc
}

func userMessage(content string) []api.ChatMessage {
	return []api.ChatMessage{{Role: "user", Content: content}}
}

func TestChat_AliasRewriteAndRestore(t *testing.T) {
	backend, lastModel := newOllamaBackend(t, "ok")
	svc := newService(t, backend.URL, nil)

	resp, err := svc.Chat(context.Background(), &api.ChatRequest{
		Model:    "gpt-4",
		Messages: userMessage("Hello"),
	})
	require.NoError(t, err)

	// The upstream saw the internal id; the client sees the alias back.
	assert.Equal(t, "qwen2.5-coder:1.5b", lastModel.Load())
	assert.Equal(t, "gpt-4", resp.Model)
	assert.Equal(t, "ok", resp.Choices[0].Message.Content)
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 6, resp.Usage.TotalTokens)
}

func TestChat_EmptyModelUsesDefault(t *testing.T) {
	backend, lastModel := newOllamaBackend(t, "ok")
	svc := newService(t, backend.URL, nil)

	resp, err := svc.Chat(context.Background(), &api.ChatRequest{Messages: userMessage("Hello")})
	require.NoError(t, err)
	assert.Equal(t, "qwen2.5-coder:1.5b", lastModel.Load())
	assert.Equal(t, "qwen2.5-coder:1.5b", resp.Model)
}

func TestChat_BlankMessagesRejected(t *testing.T) {
	backend, _ := newOllamaBackend(t, "ok")
	svc := newService(t, backend.URL, nil)

	_, err := svc.Chat(context.Background(), &api.ChatRequest{
		Model:    "gpt-4",
		Messages: []api.ChatMessage{{Role: "user", Content: ""}},
	})
	require.Error(t, err)

	var problem *api.Problem
	require.ErrorAs(t, err, &problem)
	assert.Equal(t, http.StatusBadRequest, problem.Status)
}

func TestChat_NoActiveModels(t *testing.T) {
	dir := directory.NewStatic(nil)
	svc := gateway.NewService(zap.NewNop(), alias.New(nil, ""), dir, nil, 0)
	svc.Bootstrap()

	_, err := svc.Chat(context.Background(), &api.ChatRequest{
		Model:    "gpt-4",
		Messages: userMessage("Hello"),
	})
	require.Error(t, err)

	var problem *api.Problem
	require.ErrorAs(t, err, &problem)
	assert.Equal(t, http.StatusServiceUnavailable, problem.Status)
}

func TestChat_UpstreamFailureIs502(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"out of memory"}`, http.StatusInternalServerError)
	}))
	defer server.Close()

	svc := newService(t, server.URL, nil)

	_, err := svc.Chat(context.Background(), &api.ChatRequest{
		Model:    "gpt-4",
		Messages: userMessage("Hello"),
	})
	require.Error(t, err)

	var problem *api.Problem
	require.ErrorAs(t, err, &problem)
	assert.Equal(t, http.StatusBadGateway, problem.Status)
	assert.Contains(t, problem.Extensions["upstream_body"], "out of memory")
}

func TestChat_DeterministicRequestsAreCached(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(map[string]interface{}{"response": "cached answer", "done": true})
	}))
	defer server.Close()

	svc := newService(t, server.URL, cache.NewLRU(8))

	zero := 0.0
	req := &api.ChatRequest{Model: "gpt-4", Messages: userMessage("2+2?"), Temperature: &zero}

	first, err := svc.Chat(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.Chat(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, first.Choices[0].Message.Content, second.Choices[0].Message.Content)
	// Each response still gets its own session id.
	assert.NotEqual(t, first.ID, second.ID)
}

func TestChat_DefaultTemperatureSkipsCache(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(map[string]interface{}{"response": "fresh", "done": true})
	}))
	defer server.Close()

	svc := newService(t, server.URL, cache.NewLRU(8))

	req := &api.ChatRequest{Model: "gpt-4", Messages: userMessage("Hello")}
	_, err := svc.Chat(context.Background(), req)
	require.NoError(t, err)
	_, err = svc.Chat(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
}

func TestOpenStream_DeliversSessionAndChannel(t *testing.T) {
	backend, lastModel := newOllamaBackend(t, "hi")
	svc := newService(t, backend.URL, nil)

	sess, stream, err := svc.OpenStream(context.Background(), &api.ChatRequest{
		Model:    "gpt-4",
		Messages: userMessage("Hello"),
		Stream:   true,
	}, relay.TransportSSE)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4", sess.OriginalModel)
	assert.Equal(t, "qwen2.5-coder:1.5b", sess.ResolvedModel)
	assert.Equal(t, "qwen2.5-coder:1.5b", lastModel.Load())

	var text string
	for res := range stream {
		require.NoError(t, res.Err)
		text += res.Chunk.Text
	}
	assert.Equal(t, "hi", text)
}

func TestOpenStream_UpstreamDownFailsSynchronously(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	svc := newService(t, server.URL, nil)

	_, _, err := svc.OpenStream(context.Background(), &api.ChatRequest{
		Model:    "gpt-4",
		Messages: userMessage("Hello"),
		Stream:   true,
	}, relay.TransportSSE)
	require.Error(t, err)

	var problem *api.Problem
	require.ErrorAs(t, err, &problem)
	assert.Equal(t, http.StatusBadGateway, problem.Status)
}

func TestListModels_UnionOfAliasesAndInternalIDs(t *testing.T) {
	backend, _ := newOllamaBackend(t, "ok")
	svc := newService(t, backend.URL, nil)

	list := svc.ListModels()
	assert.Equal(t, "list", list.Object)

	ids := make(map[string]string)
	for _, m := range list.Data {
		ids[m.ID] = m.OwnedBy
	}

	assert.Equal(t, "model-relay", ids["gpt-4"])
	assert.Equal(t, "model-relay", ids["claude-3-sonnet"])
	assert.Equal(t, "ollama", ids["qwen2.5-coder:1.5b"])
}
