package v1

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/averba/model-relay/internal/gateway"
	"github.com/averba/model-relay/internal/relay"
	"github.com/averba/model-relay/internal/server/validator"
	"github.com/averba/model-relay/pkg/api"
)

type StreamHandler struct {
	service *gateway.Service
	engine  *relay.Engine
	logger  *zap.Logger
}

func NewStreamHandler(service *gateway.Service, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{
		service: service,
		engine:  relay.NewEngine(),
		logger:  logger,
	}
}

// chatRequestFromPrompt converts the plain-protocol payload into the
// internal chat shape. Editor context rides along as a system message.
func chatRequestFromPrompt(prompt, context, model string) *api.ChatRequest {
	var messages []api.ChatMessage
	if context != "" {
		messages = append(messages, api.ChatMessage{Role: "system", Content: context})
	}
	messages = append(messages, api.ChatMessage{Role: "user", Content: prompt})

	return &api.ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   true,
	}
}

// HandleStream serves POST /v1/chat/stream: the custom token-event SSE
// protocol.
func (h *StreamHandler) HandleStream(c *gin.Context) {
	var req api.StreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationError(validator.ParseValidationError(err)))
		return
	}

	chatReq := chatRequestFromPrompt(req.Prompt, req.Context, req.Model)

	sess, stream, err := h.service.OpenStream(c.Request.Context(), chatReq, relay.TransportSSE)
	if err != nil {
		_ = c.Error(err)
		return
	}

	writeSSEHeaders(c)

	start := time.Now()
	stats := h.engine.Run(c.Request.Context(), sess, stream, relay.PlainToken{}, &sseSink{w: c.Writer})

	h.logger.Info("Stream finished",
		zap.String("session", sess.ID),
		zap.String("model", sess.OriginalModel),
		zap.String("provider", sess.Provider),
		zap.String("state", stats.State.String()),
		zap.Int("chunks", stats.Chunks),
		zap.Int("approx_completion_tokens", h.service.Counter().Count(stats.Completion)),
		zap.Duration("duration", time.Since(start)),
	)
}
