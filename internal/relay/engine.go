package relay

import (
	"context"
	"strings"

	"github.com/averba/model-relay/internal/llm"
)

// State is the engine's position in the relay lifecycle.
type State int

const (
	StateIdle State = iota
	StateAwaitingUpstream
	StateStreaming
	StateDraining
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingUpstream:
		return "awaiting_upstream"
	case StateStreaming:
		return "streaming"
	case StateDraining:
		return "draining"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Sink is the transport's write end. Write blocks until the record is on
// the wire, which is what backpressures the upstream pull loop.
type Sink interface {
	Write(ctx context.Context, rec Record) error
}

// Stats summarizes one engine run for the completion log. Completion is
// the accumulated upstream text, kept so callers can estimate token usage
// for upstreams that report none.
type Stats struct {
	Chunks     int
	State      State
	Completion string
}

// Engine pulls normalized chunks from a provider stream and pushes
// transcoded records into a sink, preserving upstream order chunk for
// chunk. Exactly one terminal record (done or error) is emitted per run;
// after it the engine returns, so a token can never follow a terminal.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Run drives one relay session to a terminal state. The stream channel is
// the bounded handoff from the provider reader; ctx cancellation (client
// disconnect or explicit cancel) stops further pulls within one cycle and
// leaves the upstream to be discarded.
func (e *Engine) Run(ctx context.Context, sess *Session, stream <-chan llm.StreamResult, tc Transcoder, sink Sink) Stats {
	stats := Stats{State: StateStreaming}
	var completion strings.Builder

	if err := e.write(ctx, sink, tc.Start(sess)); err != nil {
		stats.State = StateFailed
		return stats
	}

	for {
		select {
		case <-ctx.Done():
			// Consumer is gone. Stop pulling; the provider reader notices
			// the dead context and unwinds on its own.
			stats.State = StateDraining
			stats.Completion = completion.String()
			return stats

		case res, ok := <-stream:
			if !ok {
				// Upstream exhausted without an explicit final marker.
				stats.Completion = completion.String()
				return e.finish(ctx, sess, tc, sink, stats)
			}

			if res.Err != nil {
				stats.State = StateFailed
				stats.Completion = completion.String()
				if err := e.write(ctx, sink, tc.Error(sess, res.Err.Error())); err != nil {
					return stats
				}
				return stats
			}

			if res.Chunk.Final {
				stats.Completion = completion.String()
				return e.finish(ctx, sess, tc, sink, stats)
			}

			stats.Chunks++
			completion.WriteString(res.Chunk.Text)
			if err := e.write(ctx, sink, tc.Token(sess, res.Chunk.Text)); err != nil {
				// The write sink died mid-stream; no terminal record can
				// reach the client anymore.
				stats.State = StateFailed
				stats.Completion = completion.String()
				return stats
			}
		}
	}
}

func (e *Engine) finish(ctx context.Context, sess *Session, tc Transcoder, sink Sink, stats Stats) Stats {
	if err := e.write(ctx, sink, tc.Done(sess)); err != nil {
		stats.State = StateFailed
		return stats
	}
	stats.State = StateCompleted
	return stats
}

func (e *Engine) write(ctx context.Context, sink Sink, recs []Record) error {
	for _, rec := range recs {
		if err := sink.Write(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}
