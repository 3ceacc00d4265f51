package api

import "encoding/json"

// StreamEvent is the plain-protocol record emitted on /v1/chat/stream.
// Exactly one of Content/Diff/Error is set depending on Type.
type StreamEvent struct {
	Type    string `json:"type"` // "token", "diff", "done", "error"
	Content string `json:"content,omitempty"`
	// Diff is reserved for clients that render edit suggestions. The
	// server only emits token, done and error events today.
	Diff string `json:"diff,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ClientFrame is an inbound WebSocket message on /v1/chat/ws.
type ClientFrame struct {
	Type string          `json:"type"` // "chat", "ping", "session", "model_switch"
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ChatFrameData is the Data payload of a "chat" frame.
type ChatFrameData struct {
	Prompt   string        `json:"prompt,omitempty"`
	Context  string        `json:"context,omitempty"`
	Model    string        `json:"model,omitempty"`
	Messages []ChatMessage `json:"messages,omitempty"`
}

// ModelSwitchData is the Data payload of a "model_switch" frame.
type ModelSwitchData struct {
	Model string `json:"model"`
}

// ServerFrame is an outbound WebSocket message. Chat responses are keyed by
// the originating request ID so multiple chats can share one socket.
type ServerFrame struct {
	Type    string `json:"type"` // "chat_start", "chat_chunk", "chat_complete", "chat_error", "pong", "session", "error"
	ID      string `json:"id,omitempty"`
	Content string `json:"content,omitempty"`
	Model   string `json:"model,omitempty"`
	Error   string `json:"error,omitempty"`
}
