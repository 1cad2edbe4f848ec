package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	gormsqlite "github.com/glebarez/sqlite"
	"github.com/matheus3301/sightings/internal/bus"
	"github.com/matheus3301/sightings/internal/chat"
	"github.com/matheus3301/sightings/internal/docstore"
	"github.com/matheus3301/sightings/internal/hub"
	"github.com/matheus3301/sightings/internal/realtime"
	"github.com/matheus3301/sightings/internal/sighting"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubLookup struct {
	out []sighting.Candidate
	err error
}

func (s stubLookup) Lookup(context.Context, string) ([]sighting.Candidate, error) {
	return s.out, s.err
}

type fixture struct {
	router *gin.Engine
	repo   *docstore.Repo
	bus    *bus.Bus
	reg    *hub.Registry
}

func newFixture(t *testing.T, lookup Lookuper) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := docstore.Migrate(db); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	repo := docstore.NewRepo(db)
	b := bus.New()
	reg := hub.NewRegistry()
	svc := chat.NewService(reg, repo, b, zap.NewNop())
	r := NewRouter(Deps{Sightings: repo, Chat: svc, Lookup: lookup, Bus: b, Logger: zap.NewNop()})
	return &fixture{router: r, repo: repo, bus: b, reg: reg}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return body.Error
}

func TestIfOnline(t *testing.T) {
	f := newFixture(t, nil)
	if w := f.do(t, http.MethodGet, "/if_online", nil); w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}

func TestCreateListAndGet(t *testing.T) {
	f := newFixture(t, nil)
	events, unsub := f.bus.Subscribe("sight.", 4)
	defer unsub()

	w := f.do(t, http.MethodPost, "/sights", sighting.Sighting{Nickname: "ana", Description: "kestrel hovering"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d body=%s", w.Code, w.Body)
	}
	var created sighting.Sighting
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	if created.ID == "" {
		t.Fatal("created sighting has no id")
	}
	if ev := <-events; ev.Kind != KindSightCreated {
		t.Errorf("event kind = %q", ev.Kind)
	}

	w = f.do(t, http.MethodGet, "/sights", nil)
	var list []sighting.Sighting
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil || len(list) != 1 {
		t.Fatalf("list = %s (%v)", w.Body, err)
	}

	w = f.do(t, http.MethodGet, "/sights/"+created.ID, nil)
	if w.Code != http.StatusOK {
		t.Errorf("get status = %d", w.Code)
	}
	w = f.do(t, http.MethodGet, "/sights/nope", nil)
	if w.Code != http.StatusNotFound || errorBody(t, w) == "" {
		t.Errorf("get missing = %d %s", w.Code, w.Body)
	}
}

func TestListEmptyIsArray(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(t, http.MethodGet, "/sights", nil)
	if w.Code != http.StatusOK || w.Body.String() != "[]" {
		t.Errorf("empty list = %d %q", w.Code, w.Body.String())
	}
}

func TestBulkInsertIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	batch := []sighting.Sighting{
		{ID: "01J0000000000000000000000A", Nickname: "ana"},
		{ID: "01J0000000000000000000000B", Nickname: "bo"},
	}

	for i := 0; i < 2; i++ {
		w := f.do(t, http.MethodPost, "/sights/many", batch)
		if w.Code != http.StatusCreated {
			t.Fatalf("attempt %d status = %d body=%s", i, w.Code, w.Body)
		}
	}
	n, _ := f.repo.CountSightings(context.Background())
	if n != 2 {
		t.Errorf("stored %d sightings after resubmit, want 2", n)
	}

	if w := f.do(t, http.MethodPost, "/sights/many", map[string]string{"not": "a list"}); w.Code != http.StatusBadRequest {
		t.Errorf("bad body status = %d", w.Code)
	}
}

// Regression: a resubmitted batch re-announced sightings that were already
// stored.
func TestBulkInsertEmitsOnlyNewSightings(t *testing.T) {
	f := newFixture(t, nil)
	events, unsub := f.bus.Subscribe("sight.", 8)
	defer unsub()

	first := []sighting.Sighting{{ID: "01J0000000000000000000000C", Nickname: "ana"}}
	if w := f.do(t, http.MethodPost, "/sights/many", first); w.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", w.Code, w.Body)
	}
	<-events

	again := append(first, sighting.Sighting{ID: "01J0000000000000000000000D", Nickname: "bo"})
	w := f.do(t, http.MethodPost, "/sights/many", again)
	var body struct {
		Inserted int `json:"inserted"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.Inserted != 1 {
		t.Fatalf("resubmit = %d %s", w.Code, w.Body)
	}

	ev := <-events
	if s, ok := ev.Payload.(sighting.Sighting); !ok || s.ID != "01J0000000000000000000000D" {
		t.Errorf("event payload = %#v", ev.Payload)
	}
	select {
	case ev := <-events:
		t.Errorf("extra event %#v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

// Regression: the bulk route accepted sightings without a nickname and the
// identification route accepted updates without a sender.
func TestWritesRequireAuthor(t *testing.T) {
	f := newFixture(t, nil)
	anon := sighting.Sighting{ID: "01J0000000000000000000000E", Description: "x"}

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"single without nickname", http.MethodPost, "/sights", anon},
		{"batch without nickname", http.MethodPost, "/sights/many", []sighting.Sighting{anon}},
		{"identify without sender", http.MethodPut, "/sights/" + anon.ID, map[string]string{"identification": "crow"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, tt.method, tt.path, tt.body)
			if w.Code != http.StatusBadRequest || errorBody(t, w) == "" {
				t.Errorf("status = %d body=%s", w.Code, w.Body)
			}
		})
	}
	if n, _ := f.repo.CountSightings(context.Background()); n != 0 {
		t.Errorf("stored %d sightings", n)
	}
}

func TestUpdateIdentification(t *testing.T) {
	f := newFixture(t, nil)
	s := &sighting.Sighting{Nickname: "ana"}
	if err := f.repo.CreateSighting(context.Background(), s); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		id   string
		body sighting.Identification
		want int
	}{
		{"not author", s.ID, sighting.Identification{Sender: "mallory", Identification: "crow"}, http.StatusForbidden},
		{"missing", "missing", sighting.Identification{Sender: "ana"}, http.StatusNotFound},
		{"author", s.ID, sighting.Identification{Sender: "ana", Identification: "Kestrel", ScientificName: "Falco tinnunculus"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPut, "/sights/"+tt.id, tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body)
			}
		})
	}

	got, _ := f.repo.GetSighting(context.Background(), s.ID)
	if got.Identification != "Kestrel" {
		t.Errorf("identification = %q", got.Identification)
	}
}

func TestQuery(t *testing.T) {
	f := newFixture(t, stubLookup{out: []sighting.Candidate{{ScientificName: "Falco tinnunculus", URI: "u"}}})
	w := f.do(t, http.MethodGet, "/sights/query/kestrel", nil)
	var out []sighting.Candidate
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil || len(out) != 1 {
		t.Fatalf("query = %d %s", w.Code, w.Body)
	}

	f = newFixture(t, stubLookup{err: errors.New("endpoint down")})
	if w := f.do(t, http.MethodGet, "/sights/query/kestrel", nil); w.Code != http.StatusBadGateway {
		t.Errorf("failed lookup status = %d", w.Code)
	}
}

func TestUnknownRouteAndMethod(t *testing.T) {
	f := newFixture(t, nil)
	if w := f.do(t, http.MethodGet, "/nowhere", nil); w.Code != http.StatusNotFound || errorBody(t, w) != "route not found" {
		t.Errorf("unknown route = %d %s", w.Code, w.Body)
	}
	if w := f.do(t, http.MethodDelete, "/sights/x", nil); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("unknown method = %d", w.Code)
	}
}

func readUpdate(t *testing.T, ctx context.Context, ws *websocket.Conn) []sighting.Message {
	t.Helper()
	var env realtime.Envelope
	if err := wsjson.Read(ctx, ws, &env); err != nil {
		t.Fatalf("read: %v", err)
	}
	if env.Event != realtime.EventUpdateMessages {
		t.Fatalf("event = %q", env.Event)
	}
	var msgs []sighting.Message
	if err := json.Unmarshal(env.Data, &msgs); err != nil {
		t.Fatal(err)
	}
	return msgs
}

func dial(t *testing.T, ctx context.Context, url string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = ws.CloseNow() })
	return ws
}

func send(t *testing.T, ctx context.Context, ws *websocket.Conn, event string, data any) {
	t.Helper()
	env, err := realtime.NewEnvelope(event, data)
	if err != nil {
		t.Fatal(err)
	}
	if err := wsjson.Write(ctx, ws, env); err != nil {
		t.Fatal(err)
	}
}

// TestChannelChatRoundTrip joins two peers to one sighting over the real
// websocket route, sends from one, and checks both see the full history.
func TestChannelChatRoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	_ = f.repo.CreateMessage(context.Background(), &sighting.Message{SightID: "s1", Sender: "old", Message: "earlier"})

	srv := httptest.NewServer(f.router)
	defer srv.Close()
	url, err := realtime.ChannelURL(srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a := dial(t, ctx, url)
	b := dial(t, ctx, url)

	send(t, ctx, a, realtime.EventJoinSession, "s1")
	if got := readUpdate(t, ctx, a); len(got) != 1 || got[0].Message != "earlier" {
		t.Fatalf("a history = %+v", got)
	}
	send(t, ctx, b, realtime.EventJoinSession, "s1")
	if got := readUpdate(t, ctx, b); len(got) != 1 {
		t.Fatalf("b history = %+v", got)
	}

	send(t, ctx, a, realtime.EventSendMessage, realtime.SendMessage{SightID: "s1", Message: "look up!", Sender: "ana"})
	for name, ws := range map[string]*websocket.Conn{"a": a, "b": b} {
		got := readUpdate(t, ctx, ws)
		if len(got) != 2 || got[1].Message != "look up!" || got[1].Sender != "ana" {
			t.Errorf("%s after send = %+v", name, got)
		}
	}

	_ = b.Close(websocket.StatusNormalClosure, "bye")
	deadline := time.Now().Add(2 * time.Second)
	for len(f.reg.Subscribers("s1")) != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("subscribers = %d after disconnect, want 1", len(f.reg.Subscribers("s1")))
		}
		time.Sleep(10 * time.Millisecond)
	}
}
