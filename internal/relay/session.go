package relay

import (
	"time"

	"github.com/google/uuid"
)

type Transport string

const (
	TransportSSE       Transport = "sse"
	TransportWebSocket Transport = "websocket"
)

// Session is one logical streaming chat exchange, from accepted request to
// terminal record. OriginalModel is the name the client sent (possibly an
// alias); every record emitted to the client restores it. ResolvedModel is
// the internal id the upstream call was made with and never leaves the
// server.
type Session struct {
	ID            string
	Transport     Transport
	OriginalModel string
	ResolvedModel string
	Provider      string
	CreatedAt     time.Time
}

// NewSession creates a session for one relay run. When the client omitted
// a model name, the resolved id doubles as the advertised one.
func NewSession(transport Transport, originalModel, resolvedModel string) *Session {
	if originalModel == "" {
		originalModel = resolvedModel
	}
	return &Session{
		ID:            "chatcmpl-" + uuid.NewString(),
		Transport:     transport,
		OriginalModel: originalModel,
		ResolvedModel: resolvedModel,
		CreatedAt:     time.Now(),
	}
}
