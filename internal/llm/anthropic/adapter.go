// Package anthropic adapts the Anthropic messages API.
package anthropic

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

const defaultVersion = "2023-06-01"

func init() {
	llm.Register(directory.Anthropic, NewAdapter)
}

type Adapter struct {
	config llm.ProviderConfig
	client *http.Client
}

func NewAdapter(config llm.ProviderConfig) (llm.Provider, error) {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.anthropic.com/v1"
	}
	return &Adapter{
		config: config,
		client: &http.Client{},
	}, nil
}

func (a *Adapter) Name() string             { return a.config.ID }
func (a *Adapter) Type() directory.Provider { return directory.Anthropic }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	System      string    `json:"system,omitempty"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature,omitempty"`
	TopP        float64   `json:"top_p,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

type content struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type response struct {
	ID         string    `json:"id"`
	Content    []content `json:"content"`
	StopReason string    `json:"stop_reason"`
	Usage      usage     `json:"usage"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type streamEvent struct {
	Type  string `json:"type"`
	Delta *struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta,omitempty"`
}

func toAnthropicReq(req *llm.Request) request {
	ar := request{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	}
	if ar.MaxTokens == 0 {
		ar.MaxTokens = 4096
	}
	for _, m := range req.Messages {
		if m.Role == "system" {
			ar.System += m.Content + "\n"
		} else {
			ar.Messages = append(ar.Messages, message{Role: m.Role, Content: m.Content})
		}
	}
	return ar
}

func (a *Adapter) headers() map[string]string {
	return map[string]string{
		"x-api-key":         a.config.APIKey,
		"anthropic-version": defaultVersion,
	}
}

func (a *Adapter) messagesURL() string {
	return fmt.Sprintf("%s/messages", strings.TrimRight(a.config.BaseURL, "/"))
}

func (a *Adapter) Generate(ctx context.Context, req *llm.Request) (string, *api.Usage, error) {
	ar := toAnthropicReq(req)
	ar.Stream = false

	var resp response
	if err := httpclient.SendRequest(ctx, a.client, "POST", a.messagesURL(), a.headers(), ar, &resp); err != nil {
		return "", nil, err
	}

	var text strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}

	return text.String(), &api.Usage{
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
		TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}, nil
}

func (a *Adapter) Stream(ctx context.Context, req *llm.Request) (<-chan llm.StreamResult, error) {
	ar := toAnthropicReq(req)
	ar.Stream = true

	body, err := httpclient.OpenStream(ctx, a.client, "POST", a.messagesURL(), a.headers(), ar)
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

			var event streamEvent
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
				return nil
			}

			switch event.Type {
			case "content_block_delta":
				if event.Delta != nil && event.Delta.Type == "text_delta" && event.Delta.Text != "" {
					if !llm.Emit(ctx, ch, llm.StreamResult{Chunk: llm.StreamChunk{Text: event.Delta.Text}}) {
						return errCancelled
					}
				}
			case "message_stop":
				if !llm.Emit(ctx, ch, llm.StreamResult{Chunk: llm.StreamChunk{Final: true}}) {
					return errCancelled
				}
				return errDone
			}

			return nil
		})

		if err != nil && !errors.Is(err, errDone) && !errors.Is(err, errCancelled) {
			llm.Emit(ctx, ch, llm.StreamResult{Err: fmt.Errorf("anthropic stream interrupted: %w", err)})
			return
		}

		if err == nil {
			llm.Emit(ctx, ch, llm.StreamResult{Err: fmt.Errorf("anthropic stream ended before completion")})
		}
	}()

	return ch, nil
}

var (
	errDone      = errors.New("stream complete")
	errCancelled = errors.New("consumer cancelled")
)
