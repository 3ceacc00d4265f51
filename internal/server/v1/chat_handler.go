package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/averba/model-relay/internal/gateway"
	"github.com/averba/model-relay/internal/relay"
	"github.com/averba/model-relay/internal/server/validator"
	"github.com/averba/model-relay/pkg/api"
)

type ChatHandler struct {
	service *gateway.Service
	engine  *relay.Engine
	logger  *zap.Logger
}

func NewChatHandler(service *gateway.Service, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		service: service,
		engine:  relay.NewEngine(),
		logger:  logger,
	}
}

// CreateCompletion serves POST /v1/chat/completions, streaming and not.
func (h *ChatHandler) CreateCompletion(c *gin.Context) {
	var req api.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationError(validator.ParseValidationError(err)))
		return
	}

	if req.Stream {
		h.handleStream(c, &req)
		return
	}

	resp, err := h.service.Chat(c.Request.Context(), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ChatHandler) handleStream(c *gin.Context, req *api.ChatRequest) {
	// Resolution and upstream-connect failures happen before any header is
	// written, so they still surface as plain HTTP errors.
	sess, stream, err := h.service.OpenStream(c.Request.Context(), req, relay.TransportSSE)
	if err != nil {
		_ = c.Error(err)
		return
	}

	writeSSEHeaders(c)

	start := time.Now()
	stats := h.engine.Run(c.Request.Context(), sess, stream, relay.OpenAIChunk{}, &sseSink{w: c.Writer})

	h.logger.Info("Stream finished",
		zap.String("session", sess.ID),
		zap.String("model", sess.OriginalModel),
		zap.String("resolved_model", sess.ResolvedModel),
		zap.String("provider", sess.Provider),
		zap.String("state", stats.State.String()),
		zap.Int("chunks", stats.Chunks),
		zap.Int("approx_completion_tokens", h.service.Counter().Count(stats.Completion)),
		zap.Duration("duration", time.Since(start)),
	)
}

func writeSSEHeaders(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()
}
