package httpapi

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/matheus3301/sightings/internal/chat"
	"github.com/matheus3301/sightings/internal/realtime"
	"go.uber.org/zap"
)

// channel adapts real-time connections to the chat service.
type channel struct {
	chat   *chat.Service
	logger *zap.Logger
}

func (ch *channel) serve(c *gin.Context) {
	conn, err := realtime.Accept(c.Writer, c.Request, ch.logger)
	if err != nil {
		ch.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	ch.logger.Debug("channel connected", zap.String("conn_id", conn.ID()))
	conn.Serve(c.Request.Context(), ch)
}

func (ch *channel) JoinSession(ctx context.Context, c *realtime.Conn, sightID string) {
	if err := ch.chat.Join(ctx, sightID, c); err != nil {
		ch.logger.Warn("join session failed",
			zap.String("conn_id", c.ID()),
			zap.String("sight_id", sightID),
			zap.Error(err),
		)
	}
}

func (ch *channel) SendMessage(ctx context.Context, c *realtime.Conn, msg realtime.SendMessage) {
	n, err := ch.chat.Send(ctx, msg)
	if err != nil {
		ch.logger.Warn("send message failed",
			zap.String("conn_id", c.ID()),
			zap.String("sight_id", msg.SightID),
			zap.Error(err),
		)
		return
	}
	ch.logger.Debug("message broadcast", zap.String("sight_id", msg.SightID), zap.Int("delivered", n))
}

func (ch *channel) Disconnected(c *realtime.Conn) {
	ch.chat.Leave(c.ID())
}
