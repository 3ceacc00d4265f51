package v1

import (
	"context"
	"fmt"
	"sync"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"

	"github.com/averba/model-relay/internal/relay"
)

// sseSink frames relay records as Server-Sent Events. Every record,
// including the raw [DONE] sentinel, goes out as a data line and is
// flushed immediately so the client renders incrementally.
type sseSink struct {
	w gin.ResponseWriter
}

func (s *sseSink) Write(ctx context.Context, rec relay.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", rec.Payload); err != nil {
		return err
	}
	s.w.Flush()
	return nil
}

// wsSink writes relay records as text frames on a shared socket. The
// mutex serializes writes across the chat runs multiplexed onto one
// connection; activity is reported so the idle sweeper leaves busy
// sockets alone.
type wsSink struct {
	conn  *websocket.Conn
	mu    *sync.Mutex
	touch func()
}

func (s *wsSink) Write(ctx context.Context, rec relay.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conn.Write(ctx, websocket.MessageText, rec.Payload); err != nil {
		return err
	}
	if s.touch != nil {
		s.touch()
	}
	return nil
}
