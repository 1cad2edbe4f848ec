package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

// Handler receives the events of one server-side connection. Calls for a
// single connection never overlap; calls for different connections may.
type Handler interface {
	JoinSession(ctx context.Context, c *Conn, sightID string)
	SendMessage(ctx context.Context, c *Conn, msg SendMessage)
	Disconnected(c *Conn)
}

// Conn is an accepted server-side connection.
type Conn struct {
	id     string
	ws     *websocket.Conn
	logger *zap.Logger

	writeMu sync.Mutex
}

// Accept upgrades an HTTP request to a channel connection with a fresh id.
func Accept(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (*Conn, error) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.NewString()
	return &Conn{
		id:     id,
		ws:     ws,
		logger: logger.With(zap.String("conn_id", id)),
	}, nil
}

// ID returns the connection id.
func (c *Conn) ID() string { return c.id }

// Send writes one event to the peer.
func (c *Conn) Send(ctx context.Context, event string, data any) error {
	env, err := NewEnvelope(event, data)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsjson.Write(ctx, c.ws, env)
}

// Serve reads events until the peer goes away or ctx ends, dispatching each
// to h in order. h.Disconnected runs exactly once on return.
func (c *Conn) Serve(ctx context.Context, h Handler) {
	defer func() {
		h.Disconnected(c)
		_ = c.ws.CloseNow()
	}()

	for {
		var env Envelope
		if err := wsjson.Read(ctx, c.ws, &env); err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				c.logger.Debug("connection read ended", zap.Error(err))
			}
			return
		}

		switch env.Event {
		case EventJoinSession:
			var sightID string
			if err := json.Unmarshal(env.Data, &sightID); err != nil || sightID == "" {
				c.logger.Warn("malformed joinSession", zap.ByteString("data", env.Data))
				continue
			}
			h.JoinSession(ctx, c, sightID)
		case EventSendMessage:
			var msg SendMessage
			if err := json.Unmarshal(env.Data, &msg); err != nil {
				c.logger.Warn("malformed sendMessage", zap.Error(err))
				continue
			}
			h.SendMessage(ctx, c, msg)
		default:
			c.logger.Debug("ignoring unknown event", zap.String("event", env.Event))
		}
	}
}

// Close ends the connection with a normal closure.
func (c *Conn) Close(reason string) error {
	return c.ws.Close(websocket.StatusNormalClosure, reason)
}
