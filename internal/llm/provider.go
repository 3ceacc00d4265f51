// Package llm defines the uniform provider contract the relay pipeline
// consumes, plus the factory registry provider adapters register into.
package llm

import (
	"context"

	"github.com/averba/model-relay/internal/directory"
	"github.com/averba/model-relay/pkg/api"
)

// Request is the normalized generation request handed to an adapter. Model
// is always the internal model id; alias substitution happened upstream.
type Request struct {
	Model       string
	Messages    []api.ChatMessage
	Temperature float64
	MaxTokens   int
	TopP        float64
}

// StreamChunk is one normalized token fragment pulled from an upstream
// stream. Final marks the provider's own end-of-stream signal; it carries
// no text.
type StreamChunk struct {
	Text  string
	Final bool
}

// StreamResult is the channel element produced by Stream. Err is set at
// most once, as the last element before the channel closes.
type StreamResult struct {
	Chunk StreamChunk
	Err   error
}

// Provider is the uniform generate contract over one upstream backend.
type Provider interface {
	Name() string
	Type() directory.Provider

	// Generate performs a single non-streaming completion and returns the
	// full response text. Usage may be nil when the upstream reports none.
	Generate(ctx context.Context, req *Request) (string, *api.Usage, error)

	// Stream opens one upstream connection and returns a finite, non
	// restartable sequence of chunks. A non-2xx upstream status fails here,
	// before any chunk is yielded. A mid-stream drop ends the sequence with
	// a single error result instead of panicking past yielded chunks.
	Stream(ctx context.Context, req *Request) (<-chan StreamResult, error)
}

// ProviderConfig carries the per-binding settings an adapter needs.
type ProviderConfig struct {
	ID      string
	Type    directory.Provider
	BaseURL string
	APIKey  string
}

// Emit sends one result unless the consumer is gone. Adapters use it so a
// cancelled relay never strands the reader goroutine on a full channel.
func Emit(ctx context.Context, ch chan<- StreamResult, res StreamResult) bool {
	select {
	case ch <- res:
		return true
	case <-ctx.Done():
		return false
	}
}

// StreamBuffer bounds in-flight chunks between the upstream reader and the
// relay loop; a slow downstream write blocks the reader instead of piling
// up unsent chunks.
const StreamBuffer = 16
