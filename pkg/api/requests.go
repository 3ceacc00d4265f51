package api

// ChatRequest is the OpenAI-compatible chat completion payload accepted on
// /v1/chat/completions. Model may name an alias, a real internal model id,
// or be absent entirely (the resolver falls back to the default model).
type ChatRequest struct {
	Model string `json:"model"`

	Messages []ChatMessage `json:"messages" binding:"required,min=1,dive"`

	// LLM parameters
	Temperature *float64 `json:"temperature,omitempty" binding:"omitempty,gte=0,lte=2"`
	MaxTokens   int      `json:"max_tokens,omitempty" binding:"omitempty,gt=0"`
	TopP        float64  `json:"top_p,omitempty" binding:"omitempty,gte=0,lte=1"`

	// Enable streaming, defaults to `false` (empty)
	Stream bool `json:"stream,omitempty"`
}

type ChatMessage struct {
	Role    string `json:"role" binding:"required,oneof=user assistant system"`
	Content string `json:"content"`
}

// Temp returns the request temperature, or the default applied when the
// client omits the field.
func (r *ChatRequest) Temp() float64 {
	if r.Temperature == nil {
		return 0.7
	}
	return *r.Temperature
}

// StreamRequest is the plain-protocol payload accepted on /v1/chat/stream.
// Context carries optional editor context (selection, open buffer) that is
// folded into the prompt.
type StreamRequest struct {
	Prompt  string `json:"prompt" binding:"required"`
	Context string `json:"context,omitempty"`
	Model   string `json:"model,omitempty"`
}
