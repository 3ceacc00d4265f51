// Package tokens approximates token usage for responses whose upstream
// does not report counts. The numbers are best-effort, never billing
// grade.
package tokens

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/averba/model-relay/pkg/api"
)

// perMessageOverhead approximates the chat framing tokens each message
// costs on top of its content.
const perMessageOverhead = 4

// Counter estimates token counts with the cl100k_base encoding. When the
// encoding cannot be loaded (offline host), it degrades to a characters/4
// heuristic rather than failing the request.
type Counter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
}

func NewCounter() *Counter {
	return &Counter{}
}

func (c *Counter) encoding() *tiktoken.Tiktoken {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			c.enc = enc
		}
	})
	return c.enc
}

// Count estimates the tokens in one text.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	if enc := c.encoding(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return len(text)/4 + 1
}

// CountMessages estimates the prompt tokens for a chat transcript.
func (c *Counter) CountMessages(messages []api.ChatMessage) int {
	total := 0
	for _, m := range messages {
		total += c.Count(m.Content) + perMessageOverhead
	}
	return total
}

// Usage builds an approximate usage block for a prompt/completion pair.
func (c *Counter) Usage(messages []api.ChatMessage, completion string) *api.Usage {
	prompt := c.CountMessages(messages)
	out := c.Count(completion)
	return &api.Usage{
		PromptTokens:     prompt,
		CompletionTokens: out,
		TotalTokens:      prompt + out,
	}
}
