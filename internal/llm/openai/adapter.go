// Package openai adapts any OpenAI-compatible chat completions backend.
// The SSE chunk stream is normalized into the uniform chunk sequence the
// relay consumes; the upstream [DONE] sentinel is consumed here, never
// forwarded.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/averba/model-relay/internal/directory"
	"github.com/averba/model-relay/internal/httpclient"
	"github.com/averba/model-relay/internal/llm"
	"github.com/averba/model-relay/pkg/api"
)

func init() {
	llm.Register(directory.OpenAI, NewAdapter)
}

type Adapter struct {
	config llm.ProviderConfig
	client *http.Client
}

func NewAdapter(config llm.ProviderConfig) (llm.Provider, error) {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	return &Adapter{
		config: config,
		client: &http.Client{},
	}, nil
}

func (a *Adapter) Name() string             { return a.config.ID }
func (a *Adapter) Type() directory.Provider { return directory.OpenAI }

type chatRequest struct {
	Model       string            `json:"model"`
	Messages    []api.ChatMessage `json:"messages"`
	Temperature float64           `json:"temperature,omitempty"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	TopP        float64           `json:"top_p,omitempty"`
	Stream      bool              `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *api.Usage `json:"usage,omitempty"`
}

func (a *Adapter) headers() map[string]string {
	headers := map[string]string{}
	if a.config.APIKey != "" {
		headers["Authorization"] = "Bearer " + a.config.APIKey
	}
	return headers
}

func (a *Adapter) completionsURL() string {
	return fmt.Sprintf("%s/chat/completions", strings.TrimRight(a.config.BaseURL, "/"))
}

func (a *Adapter) buildRequest(req *llm.Request, stream bool) chatRequest {
	return chatRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		TopP:        req.TopP,
		Stream:      stream,
	}
}

func (a *Adapter) Generate(ctx context.Context, req *llm.Request) (string, *api.Usage, error) {
	var resp chatResponse
	if err := httpclient.SendRequest(ctx, a.client, "POST", a.completionsURL(), a.headers(), a.buildRequest(req, false), &resp); err != nil {
		return "", nil, err
	}

	if len(resp.Choices) == 0 {
		return "", nil, fmt.Errorf("upstream returned no choices")
	}

	return resp.Choices[0].Message.Content, resp.Usage, nil
}

func (a *Adapter) Stream(ctx context.Context, req *llm.Request) (<-chan llm.StreamResult, error) {
	body, err := httpclient.OpenStream(ctx, a.client, "POST", a.completionsURL(), a.headers(), a.buildRequest(req, true))
	if err != nil {
		return nil, err
	}

	ch := make(chan llm.StreamResult, llm.StreamBuffer)

	go func() {
		defer close(ch)
		defer func() {
			_ = body.Close()
		}()

		err := httpclient.ScanLines(body, func(line string) error {
			if !strings.HasPrefix(line, "data: ") {
				return nil
			}

			data := strings.TrimPrefix(line, "data: ")
			if data == "[DONE]" {
				if !llm.Emit(ctx, ch, llm.StreamResult{Chunk: llm.StreamChunk{Final: true}}) {
					return errCancelled
				}
				return errDone
			}

			var chunk chatResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				return nil
			}

			if len(chunk.Choices) == 0 {
				return nil
			}

			if text := chunk.Choices[0].Delta.Content; text != "" {
				if !llm.Emit(ctx, ch, llm.StreamResult{Chunk: llm.StreamChunk{Text: text}}) {
					return errCancelled
				}
			}

			return nil
		})

		if err != nil && !errors.Is(err, errDone) && !errors.Is(err, errCancelled) {
			llm.Emit(ctx, ch, llm.StreamResult{Err: fmt.Errorf("openai stream interrupted: %w", err)})
			return
		}

		// Stream ended without the [DONE] sentinel: the connection dropped
		// mid-stream. Surface it in-band so the relay can tell the client.
		if err == nil {
			llm.Emit(ctx, ch, llm.StreamResult{Err: fmt.Errorf("openai stream ended before completion")})
		}
	}()

	return ch, nil
}

var (
	errDone      = errors.New("stream complete")
	errCancelled = errors.New("consumer cancelled")
)
