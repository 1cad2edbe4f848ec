package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matheus3301/sightings/internal/offlinecache"
	"github.com/matheus3301/sightings/internal/sighting"
)

func newServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchSightingsKeepsRawRecords(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sights" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`[{"id":"s1","extra":true},{"id":"s2"}]`))
	})
	snap, err := NewClient(srv.URL, nil, 0).FetchSightings(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Sightings) != 2 || snap.Stale {
		t.Fatalf("snapshot = %+v", snap)
	}
	if string(snap.Sightings[0]) != `{"id":"s1","extra":true}` {
		t.Errorf("raw record = %s", snap.Sightings[0])
	}
}

func TestFetchSightingsFlagsCachedReplay(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(offlinecache.HeaderCacheStatus, offlinecache.CacheHit)
		_, _ = w.Write([]byte(`[]`))
	})
	snap, err := NewClient(srv.URL, nil, 0).FetchSightings(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !snap.Stale {
		t.Error("cached response not reported stale")
	}
}

func TestBulkInsertRequiresCreated(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusCreated)
	var got []sighting.Sighting
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/sights/many" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(int(status.Load()))
	})
	c := NewClient(srv.URL, nil, 0)

	if err := c.BulkInsert(context.Background(), []sighting.Sighting{{ID: "p1"}}); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "p1" {
		t.Errorf("server got %+v", got)
	}

	status.Store(http.StatusOK)
	err := c.BulkInsert(context.Background(), nil)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusOK {
		t.Errorf("200 error = %v, want StatusError", err)
	}
}

func TestUpdateIdentificationErrors(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sights/theirs":
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"only the author can identify this sighting"}`))
		case "/sights/gone":
			w.WriteHeader(http.StatusNotFound)
		default:
			_, _ = w.Write([]byte(`{"id":"mine","identification":"Robin"}`))
		}
	})
	c := NewClient(srv.URL, nil, 0)
	ctx := context.Background()

	_, err := c.UpdateIdentification(ctx, "theirs", sighting.Identification{Sender: "ana"})
	if !errors.Is(err, ErrNotAuthor) {
		t.Errorf("403 error = %v, want ErrNotAuthor", err)
	}
	if _, err := c.UpdateIdentification(ctx, "gone", sighting.Identification{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("404 error = %v, want ErrNotFound", err)
	}
	s, err := c.UpdateIdentification(ctx, "mine", sighting.Identification{Sender: "ana"})
	if err != nil || s.Identification != "Robin" {
		t.Errorf("ok = %+v %v", s, err)
	}
}

func TestPingRejectsCachedProbe(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(offlinecache.HeaderCacheStatus, offlinecache.CacheHit)
	})
	if err := NewClient(srv.URL, nil, 0).Ping(context.Background()); err == nil {
		t.Error("Ping accepted a replayed probe")
	}
}

func TestDebouncerFiresOnceWithLatest(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []string
	)
	d := NewDebouncer(30*time.Millisecond, func(v string) {
		mu.Lock()
		calls = append(calls, v)
		mu.Unlock()
	})
	for _, v := range []string{"r", "ro", "rob", "robin"} {
		d.Trigger(v)
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 1 || calls[0] != "robin" {
		t.Errorf("calls = %v, want [robin]", calls)
	}
}

func TestDebouncerStop(t *testing.T) {
	var fired atomic.Bool
	d := NewDebouncer(20*time.Millisecond, func(string) { fired.Store(true) })
	d.Trigger("x")
	d.Stop()
	d.Trigger("y")
	time.Sleep(60 * time.Millisecond)
	if fired.Load() {
		t.Error("debouncer fired after Stop")
	}
}
