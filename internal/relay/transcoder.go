// Package relay bridges one upstream provider stream onto one downstream
// wire format. The engine drives the state machine; transcoders shape each
// normalized chunk for the transport that asked for it.
package relay

// Kind classifies a wire-ready record so transport sinks can frame it
// without re-parsing the payload.
type Kind int

const (
	KindStart Kind = iota
	KindToken
	KindDone
	KindError
)

// Record is one wire-ready payload produced by a transcoder. Payload is
// already encoded; sinks only frame and write it.
type Record struct {
	Kind    Kind
	Payload []byte
}

// Terminal reports whether the record ends its stream.
func (r Record) Terminal() bool {
	return r.Kind == KindDone || r.Kind == KindError
}

// Transcoder shapes the normalized token stream into a specific wire
// format. Implementations are pure functions of (chunk, session) and hold
// no per-session mutable state, so one instance serves concurrent sessions.
type Transcoder interface {
	// Start emits the records that open a stream, before any token.
	Start(s *Session) []Record

	// Token emits the records for one upstream text chunk.
	Token(s *Session, text string) []Record

	// Done emits the terminal success records.
	Done(s *Session) []Record

	// Error emits the terminal failure record. Streams that already
	// committed success headers deliver errors in-band through this.
	Error(s *Session, msg string) []Record
}
