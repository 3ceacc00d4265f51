package relay

import (
	"encoding/json"

	"github.com/averba/model-relay/pkg/api"
)

// PlainToken encodes the stream as {type, content} events. With an empty
// FrameID it produces the bare /v1/chat/stream shapes; with a FrameID set
// it produces the WebSocket chat_* variants tagged with the originating
// message id, so multiple chats can share one socket without cross-talk.
type PlainToken struct {
	FrameID string
}

func (t PlainToken) Start(s *Session) []Record {
	if t.FrameID == "" {
		return nil
	}
	payload, _ := json.Marshal(api.ServerFrame{
		Type:  "chat_start",
		ID:    t.FrameID,
		Model: s.OriginalModel,
	})
	return []Record{{Kind: KindStart, Payload: payload}}
}

func (t PlainToken) Token(s *Session, text string) []Record {
	var payload []byte
	if t.FrameID == "" {
		payload, _ = json.Marshal(api.StreamEvent{Type: "token", Content: text})
	} else {
		payload, _ = json.Marshal(api.ServerFrame{Type: "chat_chunk", ID: t.FrameID, Content: text})
	}
	return []Record{{Kind: KindToken, Payload: payload}}
}

func (t PlainToken) Done(s *Session) []Record {
	var payload []byte
	if t.FrameID == "" {
		payload, _ = json.Marshal(api.StreamEvent{Type: "done"})
	} else {
		payload, _ = json.Marshal(api.ServerFrame{Type: "chat_complete", ID: t.FrameID})
	}
	return []Record{{Kind: KindDone, Payload: payload}}
}

func (t PlainToken) Error(s *Session, msg string) []Record {
	var payload []byte
	if t.FrameID == "" {
		payload, _ = json.Marshal(api.StreamEvent{Type: "error", Error: msg})
	} else {
		payload, _ = json.Marshal(api.ServerFrame{Type: "chat_error", ID: t.FrameID, Error: msg})
	}
	return []Record{{Kind: KindError, Payload: payload}}
}
