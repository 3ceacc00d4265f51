package api

type ChatResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"` // "chat.completion" or "chat.completion.chunk"
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

type Choice struct {
	Index        int          `json:"index"`
	Message      *ChatMessage `json:"message,omitempty"` // non-streaming
	Delta        *Delta       `json:"delta,omitempty"`   // streaming
	FinishReason string       `json:"finish_reason,omitempty"`
}

// Delta is the incremental message fragment inside a chat.completion.chunk.
// Content is a pointer so the terminal chunk can serialize as `"delta":{}`
// while the initial chunk still carries an explicit empty string.
type Delta struct {
	Role    string  `json:"role,omitempty"`
	Content *string `json:"content,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Model is the /v1/models listing entry.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"` // always "model"
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

type ModelList struct {
	Object string  `json:"object"` // always "list"
	Data   []Model `json:"data"`
}
