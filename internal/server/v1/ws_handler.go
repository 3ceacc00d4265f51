package v1

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/averba/model-relay/internal/gateway"
	"github.com/averba/model-relay/internal/relay"
	"github.com/averba/model-relay/pkg/api"
)

// WSHandler serves the long-lived chat socket. One socket carries many
// sequential (or overlapping) chat requests; each run is scoped to the
// inbound message id so responses never cross-talk.
type WSHandler struct {
	service  *gateway.Service
	engine   *relay.Engine
	registry *relay.Registry
	logger   *zap.Logger
}

func NewWSHandler(service *gateway.Service, registry *relay.Registry, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		service:  service,
		engine:   relay.NewEngine(),
		registry: registry,
		logger:   logger,
	}
}

// Handle serves GET /v1/chat/ws.
func (h *WSHandler) Handle(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Warn("WebSocket accept failed", zap.Error(err))
		return
	}

	connID := uuid.NewString()
	entry := h.registry.Add(connID, func() {
		_ = conn.Close(websocket.StatusNormalClosure, "idle timeout")
	})
	defer h.registry.Remove(connID)
	defer conn.CloseNow()

	h.logger.Info("WebSocket session opened", zap.String("session", connID))

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	var writeMu sync.Mutex

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == -1 && !errors.Is(err, context.Canceled) {
				h.logger.Debug("WebSocket read ended", zap.String("session", connID), zap.Error(err))
			}
			h.logger.Info("WebSocket session closed",
				zap.String("session", connID),
				zap.Duration("lifetime", time.Since(entry.CreatedAt)),
			)
			return
		}

		h.registry.Touch(connID)

		var frame api.ClientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.writeFrame(ctx, conn, &writeMu, api.ServerFrame{Type: "error", Error: "invalid frame"})
			continue
		}

		switch frame.Type {
		case "ping":
			h.writeFrame(ctx, conn, &writeMu, api.ServerFrame{Type: "pong", ID: frame.ID})

		case "session":
			h.writeFrame(ctx, conn, &writeMu, api.ServerFrame{
				Type:  "session",
				ID:    connID,
				Model: h.registry.Model(connID),
			})

		case "model_switch":
			var sw api.ModelSwitchData
			if err := json.Unmarshal(frame.Data, &sw); err != nil || sw.Model == "" {
				h.writeFrame(ctx, conn, &writeMu, api.ServerFrame{Type: "error", ID: frame.ID, Error: "model_switch requires a model"})
				continue
			}
			h.registry.SetModel(connID, sw.Model)
			h.writeFrame(ctx, conn, &writeMu, api.ServerFrame{Type: "session", ID: connID, Model: sw.Model})

		case "chat":
			go h.runChat(ctx, conn, &writeMu, connID, frame)

		default:
			h.writeFrame(ctx, conn, &writeMu, api.ServerFrame{Type: "error", ID: frame.ID, Error: "unknown frame type: " + frame.Type})
		}
	}
}

// runChat relays one chat message. It runs in its own goroutine so a
// second chat frame can start while the first is still streaming.
func (h *WSHandler) runChat(ctx context.Context, conn *websocket.Conn, writeMu *sync.Mutex, connID string, frame api.ClientFrame) {
	msgID := frame.ID
	if msgID == "" {
		msgID = uuid.NewString()
	}

	var data api.ChatFrameData
	if frame.Data != nil {
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			h.writeFrame(ctx, conn, writeMu, api.ServerFrame{Type: "chat_error", ID: msgID, Error: "invalid chat payload"})
			return
		}
	}

	chatReq, err := h.chatRequest(connID, &data)
	if err != nil {
		h.writeFrame(ctx, conn, writeMu, api.ServerFrame{Type: "chat_error", ID: msgID, Error: err.Error()})
		return
	}

	sess, stream, err := h.service.OpenStream(ctx, chatReq, relay.TransportWebSocket)
	if err != nil {
		var problem *api.Problem
		msg := "failed to open stream"
		if errors.As(err, &problem) {
			msg = problem.Detail
		}
		h.writeFrame(ctx, conn, writeMu, api.ServerFrame{Type: "chat_error", ID: msgID, Error: msg})
		return
	}

	sink := &wsSink{
		conn:  conn,
		mu:    writeMu,
		touch: func() { h.registry.Touch(connID) },
	}

	start := time.Now()
	stats := h.engine.Run(ctx, sess, stream, relay.PlainToken{FrameID: msgID}, sink)

	h.logger.Info("Stream finished",
		zap.String("session", sess.ID),
		zap.String("ws_session", connID),
		zap.String("message_id", msgID),
		zap.String("model", sess.OriginalModel),
		zap.String("provider", sess.Provider),
		zap.String("state", stats.State.String()),
		zap.Int("chunks", stats.Chunks),
		zap.Int("approx_completion_tokens", h.service.Counter().Count(stats.Completion)),
		zap.Duration("duration", time.Since(start)),
	)
}

// chatRequest builds the internal request from a chat frame. A full
// messages array wins over the prompt shorthand; the connection's
// switched model applies when the frame names none.
func (h *WSHandler) chatRequest(connID string, data *api.ChatFrameData) (*api.ChatRequest, error) {
	model := data.Model
	if model == "" {
		model = h.registry.Model(connID)
	}

	if len(data.Messages) > 0 {
		return &api.ChatRequest{Model: model, Messages: data.Messages, Stream: true}, nil
	}

	if data.Prompt == "" {
		return nil, errors.New("chat frame carries neither prompt nor messages")
	}

	return chatRequestFromPrompt(data.Prompt, data.Context, model), nil
}

func (h *WSHandler) writeFrame(ctx context.Context, conn *websocket.Conn, mu *sync.Mutex, frame api.ServerFrame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		return
	}

	mu.Lock()
	defer mu.Unlock()
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		h.logger.Debug("WebSocket write failed", zap.Error(err))
	}
}
