package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/sightings/internal/sighting"
)

// echoHandler answers joinSession with a one-message history and records sends.
type echoHandler struct {
	mu           sync.Mutex
	joins        []string
	sent         []SendMessage
	disconnected chan string
}

func (h *echoHandler) JoinSession(ctx context.Context, c *Conn, sightID string) {
	h.mu.Lock()
	h.joins = append(h.joins, sightID)
	h.mu.Unlock()
	_ = c.Send(ctx, EventUpdateMessages, []sighting.Message{{SightID: sightID, Sender: "srv", Message: "welcome"}})
}

func (h *echoHandler) SendMessage(_ context.Context, _ *Conn, msg SendMessage) {
	h.mu.Lock()
	h.sent = append(h.sent, msg)
	h.mu.Unlock()
}

func (h *echoHandler) Disconnected(c *Conn) {
	h.disconnected <- c.ID()
}

func (h *echoHandler) joinCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.joins)
}

func newTestServer(t *testing.T, h Handler) (*httptest.Server, chan *Conn) {
	t.Helper()
	conns := make(chan *Conn, 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := Accept(w, r, nil)
		if err != nil {
			return
		}
		conns <- c
		c.Serve(r.Context(), h)
	}))
	t.Cleanup(srv.Close)
	return srv, conns
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestChannelURL(t *testing.T) {
	tests := []struct {
		in, want string
		wantErr  bool
	}{
		{in: "http://localhost:3000", want: "ws://localhost:3000/ws"},
		{in: "https://field.example.org/", want: "wss://field.example.org/ws"},
		{in: "ws://10.0.0.2:3000", want: "ws://10.0.0.2:3000/ws"},
		{in: "ftp://nope", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ChannelURL(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ChannelURL(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ChannelURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func channelURL(t *testing.T, base string) string {
	t.Helper()
	u, err := ChannelURL(base)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func TestClientJoinReceivesHistory(t *testing.T) {
	h := &echoHandler{disconnected: make(chan string, 10)}
	srv, _ := newTestServer(t, h)

	c := NewClient(ClientConfig{URL: channelURL(t, srv.URL), BaseDelay: 10 * time.Millisecond}, nil)
	connected := make(chan struct{}, 5)
	updates := make(chan []sighting.Message, 5)
	c.OnConnected(func() { connected <- struct{}{} })
	c.OnUpdateMessages(func(m []sighting.Message) { updates <- m })

	if err := c.SendMessage(context.Background(), SendMessage{SightID: "s1"}); err != ErrNotConnected {
		t.Fatalf("send before connect error = %v, want ErrNotConnected", err)
	}

	c.Start(context.Background())
	defer c.Stop()

	select {
	case <-connected:
	case <-time.After(3 * time.Second):
		t.Fatal("client never connected")
	}

	if err := c.JoinSession(context.Background(), "s1"); err != nil {
		t.Fatal(err)
	}
	select {
	case msgs := <-updates:
		if len(msgs) != 1 || msgs[0].Message != "welcome" || msgs[0].SightID != "s1" {
			t.Errorf("history = %+v", msgs)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no updateMessages after join")
	}

	if err := c.SendMessage(context.Background(), SendMessage{SightID: "s1", Message: "hi", Sender: "ana"}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "server to record send", func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return len(h.sent) == 1 && h.sent[0].Message == "hi"
	})
}

// TestClientReconnectsAndRejoins drops the connection from the server side
// and expects the client to come back on its own and re-join its sighting.
func TestClientReconnectsAndRejoins(t *testing.T) {
	h := &echoHandler{disconnected: make(chan string, 10)}
	srv, conns := newTestServer(t, h)

	c := NewClient(ClientConfig{URL: channelURL(t, srv.URL), BaseDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond}, nil)
	drops := make(chan error, 5)
	c.OnDisconnected(func(err error) { drops <- err })
	c.Start(context.Background())
	defer c.Stop()

	var first *Conn
	select {
	case first = <-conns:
	case <-time.After(3 * time.Second):
		t.Fatal("no server-side connection")
	}
	waitFor(t, "client connected", c.Connected)
	if err := c.JoinSession(context.Background(), "s9"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "first join", func() bool { return h.joinCount() == 1 })

	_ = first.Close("test drop")

	select {
	case <-drops:
	case <-time.After(3 * time.Second):
		t.Fatal("OnDisconnected not called")
	}
	select {
	case <-h.disconnected:
	case <-time.After(3 * time.Second):
		t.Fatal("server handler never saw the disconnect")
	}

	waitFor(t, "re-join after reconnect", func() bool { return h.joinCount() == 2 })
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.joins[1] != "s9" {
		t.Errorf("re-joined %q, want s9", h.joins[1])
	}
}
