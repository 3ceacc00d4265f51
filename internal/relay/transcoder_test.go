package relay_test

import (
	"encoding/json"
	"testing"

	"github.com/averba/model-relay/internal/relay"
	"github.com/averba/model-relay/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeChunk(t *testing.T, rec relay.Record) api.ChatResponse {
	t.Helper()
	var chunk api.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Payload, &chunk))
	return chunk
}

func TestOpenAIChunk_ModelIsAlwaysTheRequestedName(t *testing.T) {
	sess := relay.NewSession(relay.TransportSSE, "gpt-4", "qwen2.5-coder:1.5b")
	tc := relay.OpenAIChunk{}

	var recs []relay.Record
	recs = append(recs, tc.Start(sess)...)
	recs = append(recs, tc.Token(sess, "hello")...)
	recs = append(recs, tc.Done(sess)[0])

	for _, rec := range recs {
		chunk := decodeChunk(t, rec)
		assert.Equal(t, "gpt-4", chunk.Model)
		assert.NotEqual(t, sess.ResolvedModel, chunk.Model)
	}
}

func TestOpenAIChunk_StartCarriesRole(t *testing.T) {
	sess := relay.NewSession(relay.TransportSSE, "gpt-4", "qwen2.5-coder:1.5b")

	recs := relay.OpenAIChunk{}.Start(sess)
	require.Len(t, recs, 1)

	chunk := decodeChunk(t, recs[0])
	require.Len(t, chunk.Choices, 1)
	require.NotNil(t, chunk.Choices[0].Delta)
	assert.Equal(t, "assistant", chunk.Choices[0].Delta.Role)
	require.NotNil(t, chunk.Choices[0].Delta.Content)
	assert.Equal(t, "", *chunk.Choices[0].Delta.Content)
}

func TestOpenAIChunk_TokenCarriesContentDelta(t *testing.T) {
	sess := relay.NewSession(relay.TransportSSE, "gpt-4", "qwen2.5-coder:1.5b")

	recs := relay.OpenAIChunk{}.Token(sess, "def main():")
	require.Len(t, recs, 1)

	chunk := decodeChunk(t, recs[0])
	assert.Equal(t, "chat.completion.chunk", chunk.Object)
	require.NotNil(t, chunk.Choices[0].Delta.Content)
	assert.Equal(t, "def main():", *chunk.Choices[0].Delta.Content)
}

func TestOpenAIChunk_DoneEmitsFinishThenSentinel(t *testing.T) {
	sess := relay.NewSession(relay.TransportSSE, "gpt-4", "qwen2.5-coder:1.5b")

	recs := relay.OpenAIChunk{}.Done(sess)
	require.Len(t, recs, 2)

	finish := decodeChunk(t, recs[0])
	assert.Equal(t, "stop", finish.Choices[0].FinishReason)

	assert.Equal(t, relay.DoneSentinel, string(recs[1].Payload))
	assert.True(t, recs[1].Terminal())
}

func TestOpenAIChunk_SessionIDStableAcrossChunks(t *testing.T) {
	sess := relay.NewSession(relay.TransportSSE, "", "llama3.2:3b")
	tc := relay.OpenAIChunk{}

	first := decodeChunk(t, tc.Token(sess, "a")[0])
	second := decodeChunk(t, tc.Token(sess, "b")[0])

	assert.Equal(t, first.ID, second.ID)
	assert.Contains(t, first.ID, "chatcmpl-")
	// No requested name; the resolved id is advertised instead.
	assert.Equal(t, "llama3.2:3b", first.Model)
}

func TestPlainToken_BareEvents(t *testing.T) {
	sess := relay.NewSession(relay.TransportSSE, "gpt-4", "qwen2.5-coder:1.5b")
	tc := relay.PlainToken{}

	assert.Empty(t, tc.Start(sess))

	var ev api.StreamEvent
	require.NoError(t, json.Unmarshal(tc.Token(sess, "hi")[0].Payload, &ev))
	assert.Equal(t, "token", ev.Type)
	assert.Equal(t, "hi", ev.Content)

	require.NoError(t, json.Unmarshal(tc.Done(sess)[0].Payload, &ev))
	assert.Equal(t, "done", ev.Type)

	require.NoError(t, json.Unmarshal(tc.Error(sess, "boom")[0].Payload, &ev))
	assert.Equal(t, "error", ev.Type)
	assert.Equal(t, "boom", ev.Error)
}

func TestPlainToken_FramedEventsCarryMessageID(t *testing.T) {
	sess := relay.NewSession(relay.TransportWebSocket, "gpt-4", "qwen2.5-coder:1.5b")
	tc := relay.PlainToken{FrameID: "msg-42"}

	var frame api.ServerFrame
	require.NoError(t, json.Unmarshal(tc.Start(sess)[0].Payload, &frame))
	assert.Equal(t, "chat_start", frame.Type)
	assert.Equal(t, "msg-42", frame.ID)
	assert.Equal(t, "gpt-4", frame.Model)

	require.NoError(t, json.Unmarshal(tc.Token(sess, "tok")[0].Payload, &frame))
	assert.Equal(t, "chat_chunk", frame.Type)
	assert.Equal(t, "msg-42", frame.ID)
	assert.Equal(t, "tok", frame.Content)

	require.NoError(t, json.Unmarshal(tc.Done(sess)[0].Payload, &frame))
	assert.Equal(t, "chat_complete", frame.Type)
	assert.Equal(t, "msg-42", frame.ID)

	require.NoError(t, json.Unmarshal(tc.Error(sess, "bad")[0].Payload, &frame))
	assert.Equal(t, "chat_error", frame.Type)
	assert.Equal(t, "bad", frame.Error)
}
