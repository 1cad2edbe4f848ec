package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/matheus3301/sightings/internal/sighting"
	"go.uber.org/zap"
)

// ErrNotConnected is returned by sends while the channel is down.
var ErrNotConnected = errors.New("realtime: not connected")

// ClientConfig configures a field client's channel connection.
type ClientConfig struct {
	URL         string
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	DialTimeout time.Duration
}

func (c *ClientConfig) defaults() {
	if c.BaseDelay <= 0 {
		c.BaseDelay = 500 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
}

type reconnector struct {
	baseDelay time.Duration
	maxDelay  time.Duration
	attempt   int
}

func (r *reconnector) nextDelay() time.Duration {
	jitter := time.Duration(rand.Float64() * float64(r.baseDelay) * 0.5)
	delay := time.Duration(math.Min(
		float64(r.baseDelay)*math.Pow(2, float64(r.attempt))+float64(jitter),
		float64(r.maxDelay),
	))
	r.attempt++
	return delay
}

func (r *reconnector) reset() {
	r.attempt = 0
}

// Client is the field client's end of the channel. It dials in the
// background, redials with exponential backoff after every drop, and re-joins
// the last joined sighting on each connect.
type Client struct {
	cfg    ClientConfig
	logger *zap.Logger
	recon  *reconnector

	mu     sync.Mutex
	conn   *websocket.Conn
	joined string
	cancel context.CancelFunc
	done   chan struct{}

	writeMu sync.Mutex

	hmu            sync.RWMutex
	onConnected    []func()
	onDisconnected []func(error)
	onUpdate       []func([]sighting.Message)
}

// NewClient creates a client. Nothing is dialled until Start.
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	cfg.defaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		logger: logger,
		recon:  &reconnector{baseDelay: cfg.BaseDelay, maxDelay: cfg.MaxDelay},
	}
}

// OnConnected registers a handler for completed handshakes.
func (c *Client) OnConnected(fn func()) {
	c.hmu.Lock()
	c.onConnected = append(c.onConnected, fn)
	c.hmu.Unlock()
}

// OnDisconnected registers a handler for dropped connections.
func (c *Client) OnDisconnected(fn func(err error)) {
	c.hmu.Lock()
	c.onDisconnected = append(c.onDisconnected, fn)
	c.hmu.Unlock()
}

// OnUpdateMessages registers a handler for updateMessages events.
func (c *Client) OnUpdateMessages(fn func([]sighting.Message)) {
	c.hmu.Lock()
	c.onUpdate = append(c.onUpdate, fn)
	c.hmu.Unlock()
}

// Start begins the dial loop.
func (c *Client) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.run(ctx)
}

// Stop closes the connection and waits for the dial loop to exit.
func (c *Client) Stop() {
	c.mu.Lock()
	cancel, done, conn := c.cancel, c.done, c.conn
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "client stopping")
	}
	<-done
}

// Connected reports whether the channel is currently up.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// JoinSession subscribes to a sighting's chat. The sighting is remembered and
// re-joined after reconnects even if this call fails with ErrNotConnected.
func (c *Client) JoinSession(ctx context.Context, sightID string) error {
	c.mu.Lock()
	c.joined = sightID
	c.mu.Unlock()
	return c.send(ctx, EventJoinSession, sightID)
}

// SendMessage submits a chat message. It returns once the frame is written;
// there is no delivery acknowledgement beyond that.
func (c *Client) SendMessage(ctx context.Context, msg SendMessage) error {
	return c.send(ctx, EventSendMessage, msg)
}

func (c *Client) send(ctx context.Context, event string, data any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	env, err := NewEnvelope(event, data)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsjson.Write(ctx, conn, env)
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return
		}
		delay := c.recon.nextDelay()
		c.logger.Info("channel down, redialing",
			zap.Int("attempt", c.recon.attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) session(ctx context.Context) error {
	dctx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	ws, _, err := websocket.Dial(dctx, c.cfg.URL, nil)
	cancel()
	if err != nil {
		return err
	}
	ws.SetReadLimit(4 << 20)

	c.mu.Lock()
	c.conn = ws
	joined := c.joined
	c.mu.Unlock()
	c.recon.reset()

	c.logger.Info("channel connected", zap.String("url", c.cfg.URL))
	c.emitConnected()
	if joined != "" {
		if err := c.send(ctx, EventJoinSession, joined); err != nil {
			c.logger.Warn("re-join failed", zap.String("sight_id", joined), zap.Error(err))
		}
	}

	err = c.readLoop(ctx, ws)

	c.mu.Lock()
	c.conn = nil
	c.mu.Unlock()
	_ = ws.CloseNow()

	if ctx.Err() == nil {
		c.emitDisconnected(err)
	}
	return err
}

func (c *Client) readLoop(ctx context.Context, ws *websocket.Conn) error {
	for {
		var env Envelope
		if err := wsjson.Read(ctx, ws, &env); err != nil {
			return err
		}
		if env.Event != EventUpdateMessages {
			continue
		}
		var msgs []sighting.Message
		if err := json.Unmarshal(env.Data, &msgs); err != nil {
			c.logger.Warn("malformed updateMessages", zap.Error(err))
			continue
		}
		c.hmu.RLock()
		handlers := c.onUpdate
		c.hmu.RUnlock()
		for _, h := range handlers {
			h(msgs)
		}
	}
}

func (c *Client) emitConnected() {
	c.hmu.RLock()
	handlers := c.onConnected
	c.hmu.RUnlock()
	for _, h := range handlers {
		h()
	}
}

func (c *Client) emitDisconnected(err error) {
	c.hmu.RLock()
	handlers := c.onDisconnected
	c.hmu.RUnlock()
	for _, h := range handlers {
		h(err)
	}
}
