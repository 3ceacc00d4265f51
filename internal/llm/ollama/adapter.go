// Package ollama adapts the native Ollama generate API. The newline
// delimited JSON stream it produces is normalized into the uniform chunk
// sequence the relay consumes.
package ollama

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
	llm.Register(directory.Ollama, NewAdapter)
}

type Adapter struct {
	config llm.ProviderConfig
	client *http.Client
}

func NewAdapter(config llm.ProviderConfig) (llm.Provider, error) {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	return &Adapter{
		config: config,
		// no overall timeout: first byte from a cold model can take
		// arbitrarily long, callers bound it via context
		client: &http.Client{},
	}, nil
}

func (a *Adapter) Name() string             { return a.config.ID }
func (a *Adapter) Type() directory.Provider { return directory.Ollama }

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	System  string          `json:"system,omitempty"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options,omitempty"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
}

type generateResponse struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count,omitempty"`
	EvalCount       int    `json:"eval_count,omitempty"`
}

func (a *Adapter) buildRequest(req *llm.Request, stream bool) generateRequest {
	system, prompt := flatten(req.Messages)
	return generateRequest{
		Model:  req.Model,
		Prompt: prompt,
		System: system,
		Stream: stream,
		Options: generateOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
			TopP:        req.TopP,
		},
	}
}

func (a *Adapter) generateURL() string {
	return fmt.Sprintf("%s/api/generate", strings.TrimRight(a.config.BaseURL, "/"))
}

func (a *Adapter) Generate(ctx context.Context, req *llm.Request) (string, *api.Usage, error) {
	var resp generateResponse
	if err := httpclient.SendRequest(ctx, a.client, "POST", a.generateURL(), nil, a.buildRequest(req, false), &resp); err != nil {
		return "", nil, err
	}

	var usage *api.Usage
	if resp.PromptEvalCount > 0 || resp.EvalCount > 0 {
		usage = &api.Usage{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
			TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
		}
	}

	return resp.Response, usage, nil
}

func (a *Adapter) Stream(ctx context.Context, req *llm.Request) (<-chan llm.StreamResult, error) {
	body, err := httpclient.OpenStream(ctx, a.client, "POST", a.generateURL(), nil, a.buildRequest(req, true))
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
			var chunk generateResponse
			if err := json.Unmarshal([]byte(line), &chunk); err != nil {
				// tolerate noise between objects, wait for the next line
				return nil
			}

			if chunk.Response != "" {
				if !llm.Emit(ctx, ch, llm.StreamResult{Chunk: llm.StreamChunk{Text: chunk.Response}}) {
					return errCancelled
				}
			}

			if chunk.Done {
				if !llm.Emit(ctx, ch, llm.StreamResult{Chunk: llm.StreamChunk{Final: true}}) {
					return errCancelled
				}
				return errDone
			}

			return nil
		})

		if err != nil && !errors.Is(err, errDone) && !errors.Is(err, errCancelled) {
			llm.Emit(ctx, ch, llm.StreamResult{Err: fmt.Errorf("ollama stream interrupted: %w", err)})
			return
		}

		// Body exhausted without a done:true marker: the connection dropped
		// mid-stream. Surface it in-band so the relay can tell the client.
		if err == nil {
			llm.Emit(ctx, ch, llm.StreamResult{Err: fmt.Errorf("ollama stream ended before completion")})
		}
	}()

	return ch, nil
}

var (
	errDone      = errors.New("stream complete")
	errCancelled = errors.New("consumer cancelled")
)

// flatten folds a chat transcript into Ollama's system + prompt pair.
// Assistant turns are kept inline so multi-turn context survives the
// conversion to the single-prompt generate API.
func flatten(messages []api.ChatMessage) (system, prompt string) {
	var sys, conv []string
	for _, m := range messages {
		switch m.Role {
		case "system":
			sys = append(sys, m.Content)
		case "assistant":
			conv = append(conv, "Assistant: "+m.Content)
		default:
			conv = append(conv, m.Content)
		}
	}
	return strings.Join(sys, "\n"), strings.Join(conv, "\n")
}
