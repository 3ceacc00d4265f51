package relay

import (
	"encoding/json"

	"github.com/averba/model-relay/pkg/api"
)

// DoneSentinel is the raw stream terminator OpenAI-compatible clients
// expect after the final chunk.
const DoneSentinel = "[DONE]"

// OpenAIChunk encodes the stream as chat.completion.chunk objects. The
// model field of every chunk is the session's original alias; the resolved
// internal id is never revealed.
type OpenAIChunk struct{}

func (OpenAIChunk) chunk(s *Session, choice api.Choice) Record {
	payload, _ := json.Marshal(api.ChatResponse{
		ID:      s.ID,
		Object:  "chat.completion.chunk",
		Created: s.CreatedAt.Unix(),
		Model:   s.OriginalModel,
		Choices: []api.Choice{choice},
	})
	return Record{Kind: KindToken, Payload: payload}
}

func (t OpenAIChunk) Start(s *Session) []Record {
	empty := ""
	rec := t.chunk(s, api.Choice{Delta: &api.Delta{Role: "assistant", Content: &empty}})
	rec.Kind = KindStart
	return []Record{rec}
}

func (t OpenAIChunk) Token(s *Session, text string) []Record {
	return []Record{t.chunk(s, api.Choice{Delta: &api.Delta{Content: &text}})}
}

func (t OpenAIChunk) Done(s *Session) []Record {
	finish := t.chunk(s, api.Choice{Delta: &api.Delta{}, FinishReason: "stop"})
	finish.Kind = KindDone
	return []Record{
		finish,
		{Kind: KindDone, Payload: []byte(DoneSentinel)},
	}
}

func (t OpenAIChunk) Error(s *Session, msg string) []Record {
	payload, _ := json.Marshal(map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "upstream_error",
		},
	})
	return []Record{{Kind: KindError, Payload: payload}}
}
