package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/sightings/internal/sighting"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testStore(t *testing.T) *Store {
	t.Helper()
	s := New(filepath.Join(t.TempDir(), "field.db"), zap.NewNop())
	s.Start()
	select {
	case <-s.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for store readiness")
	}
	if err := s.Err(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMigrateAppliesOnFreshDB(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate; a second run must be a no-op.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != SchemaVersion {
		t.Errorf("version = %d, want %d (one per collection + response cache)", result.Version, SchemaVersion)
	}
}

func TestMigrateCreatesEveryCollection(t *testing.T) {
	db := testDB(t)

	for _, c := range Collections {
		t.Run(string(c), func(t *testing.T) {
			if _, err := db.Exec(`INSERT INTO `+string(c)+` (id, data) VALUES (?, ?)`, "x", "{}"); err != nil {
				t.Fatalf("insert into %s: %v", c, err)
			}
		})
	}
	if _, err := db.Exec(`INSERT INTO http_cache (cache_name, url, status, stored_at) VALUES ('c', 'u', 200, 0)`); err != nil {
		t.Fatalf("insert into http_cache: %v", err)
	}
}

func TestOperationsBeforeReadyAreRejected(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "field.db"), nil)
	ctx := context.Background()

	err := s.Put(ctx, Sights, Record{ID: "a", Data: []byte(`{}`)}).Err(ctx)
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("Put before Start error = %v, want ErrNotReady", err)
	}
	if _, err := s.GetAll(ctx, Sights).Await(ctx); !errors.Is(err, ErrNotReady) {
		t.Fatalf("GetAll before Start error = %v, want ErrNotReady", err)
	}
}

func TestOnReadyCallback(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "field.db"), nil)
	defer func() { _ = s.Close() }()

	fired := make(chan error, 2)
	s.OnReady(func(err error) { fired <- err })
	s.Start()
	s.Start()

	select {
	case err := <-fired:
		if err != nil {
			t.Fatalf("ready with error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("OnReady never fired")
	}

	select {
	case <-fired:
		t.Fatal("OnReady fired twice")
	case <-time.After(100 * time.Millisecond):
	}

	// Registering after readiness runs immediately.
	late := make(chan struct{})
	s.OnReady(func(error) { close(late) })
	select {
	case <-late:
	default:
		t.Fatal("late OnReady did not run")
	}
}

// Regression: a callback registered while the store finished opening could
// run both from the opener and from OnReady.
func TestOnReadyDuringOpenRunsAtMostOnce(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "field.db"), nil)
	defer func() { _ = s.Close() }()

	const n = 200
	var counts [n]int32
	var mu sync.Mutex
	var wg sync.WaitGroup

	s.Start()
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.OnReady(func(error) {
				mu.Lock()
				counts[i]++
				mu.Unlock()
			})
		}()
	}
	wg.Wait()
	<-s.Ready()
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for i, c := range counts {
		if c > 1 {
			t.Errorf("callback %d ran %d times", i, c)
		}
	}
}

func TestPutGetAllPreservesInsertionOrder(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, id := range []string{"c", "a", "b"} {
		if err := s.Put(ctx, Sights, Record{ID: id, Data: []byte(`{"id":"` + id + `"}`)}).Err(ctx); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := s.GetAll(ctx, Sights).Await(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, r := range recs {
		got = append(got, r.ID)
	}
	if fmt.Sprint(got) != "[c a b]" {
		t.Errorf("order = %v, want [c a b]", got)
	}
}

func TestDuplicateIDReportsEngineCode(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	rec := Record{ID: "dup", Data: []byte(`{}`)}
	if err := s.Put(ctx, Messages, rec).Err(ctx); err != nil {
		t.Fatal(err)
	}
	err := s.Put(ctx, Messages, rec).Err(ctx)
	if err == nil {
		t.Fatal("expected duplicate id to fail")
	}

	var se *Error
	if !errors.As(err, &se) {
		t.Fatalf("error %T is not *store.Error", err)
	}
	if se.Code != sqlite3.ErrConstraint {
		t.Errorf("code = %d, want SQLITE_CONSTRAINT", se.Code)
	}
	if se.Op != "put" || se.Collection != Messages {
		t.Errorf("op/collection = %s/%s, want put/messages", se.Op, se.Collection)
	}
	if !IsConstraint(err) {
		t.Error("IsConstraint() = false")
	}
}

func TestClearAndDelete(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for i := range 3 {
		id := fmt.Sprintf("m%d", i)
		if err := s.Put(ctx, Messages, Record{ID: id, Data: []byte(`{}`)}).Err(ctx); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := s.Delete(ctx, Messages, "m1").Await(ctx)
	if err != nil || !removed {
		t.Fatalf("Delete(m1) = %v, %v; want true, nil", removed, err)
	}
	removed, _ = s.Delete(ctx, Messages, "m1").Await(ctx)
	if removed {
		t.Error("second Delete(m1) reported a removal")
	}

	n, err := s.Clear(ctx, Messages).Await(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("Clear removed %d, want 2", n)
	}
	count, _ := s.Count(ctx, Messages).Await(ctx)
	if count != 0 {
		t.Errorf("count after clear = %d, want 0", count)
	}
}

func TestUnknownCollectionRejected(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	err := s.Put(ctx, Collection("sights; DROP TABLE sights"), Record{ID: "x"}).Err(ctx)
	if !errors.Is(err, ErrUnknownCollection) {
		t.Fatalf("error = %v, want ErrUnknownCollection", err)
	}
}

// TestConcurrentPutsCommitIndependently verifies one failing put does not
// take the others down with it.
func TestConcurrentPutsCommitIndependently(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, AllSights, Record{ID: "taken", Data: []byte(`{}`)}).Err(ctx); err != nil {
		t.Fatal(err)
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s%02d", i)
			if i == 7 {
				id = "taken"
			}
			if err := s.Put(ctx, AllSights, Record{ID: id, Data: []byte(`{}`)}).Err(ctx); err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if failed != 1 {
		t.Errorf("failed puts = %d, want 1", failed)
	}
	count, _ := s.Count(ctx, AllSights).Await(ctx)
	if count != 20 {
		t.Errorf("count = %d, want 20", count)
	}
}

func TestReplaceCachedSightings(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	first := []json.RawMessage{[]byte(`{"id":"old"}`)}
	if _, err := s.ReplaceCachedSightings(ctx, first); err != nil {
		t.Fatal(err)
	}

	second := []json.RawMessage{
		[]byte(`{"id":"s1","nickname":"ana"}`),
		[]byte(`{"id":"s2","nickname":"bo"}`),
	}
	n, err := s.ReplaceCachedSightings(ctx, second)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("stored = %d, want 2", n)
	}

	cached, err := s.CachedSightings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(cached) != 2 || cached[0].ID != "s1" || cached[1].ID != "s2" {
		t.Errorf("cached = %+v, want [s1 s2]", cached)
	}
}

func TestQueueSightingAssignsID(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	queued, err := s.QueueSighting(ctx, sighting.Sighting{Nickname: "ana", Description: "heron"})
	if err != nil {
		t.Fatal(err)
	}
	if queued.ID == "" {
		t.Fatal("QueueSighting did not assign an id")
	}

	pending, err := s.PendingSightings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ID != queued.ID || pending[0].Description != "heron" {
		t.Errorf("pending = %+v", pending)
	}

	if err := s.ClearPendingSightings(ctx); err != nil {
		t.Fatal(err)
	}
	pending, _ = s.PendingSightings(ctx)
	if len(pending) != 0 {
		t.Errorf("pending after clear = %d, want 0", len(pending))
	}
}

func TestQueueMessageRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	m, err := s.QueueMessage(ctx, PendingMessage{SightID: "s1", Message: "hello", Sender: "ana"})
	if err != nil {
		t.Fatal(err)
	}
	msgs, err := s.PendingMessages(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0] != m {
		t.Errorf("pending messages = %+v, want [%+v]", msgs, m)
	}
	if err := s.DeletePendingMessage(ctx, m.ID); err != nil {
		t.Fatal(err)
	}
	msgs, _ = s.PendingMessages(ctx)
	if len(msgs) != 0 {
		t.Errorf("pending after delete = %d", len(msgs))
	}
}

func TestNewIDIsMonotonic(t *testing.T) {
	prev := NewID()
	for range 1000 {
		id := NewID()
		if id <= prev {
			t.Fatalf("NewID() = %s after %s, want strictly increasing", id, prev)
		}
		prev = id
	}
}

func TestResponseCache(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	resp := CachedResponse{
		CacheName: "app_cache_1",
		URL:       "http://x/sights",
		Status:    200,
		Header:    map[string][]string{"Content-Type": {"application/json"}},
		Body:      []byte(`[]`),
	}
	if err := s.PutResponse(ctx, resp); err != nil {
		t.Fatal(err)
	}
	resp.Body = []byte(`[{"id":"s1"}]`)
	if err := s.PutResponse(ctx, resp); err != nil {
		t.Fatal(err)
	}
	if err := s.PutResponse(ctx, CachedResponse{CacheName: "app_cache_0", URL: "http://x/", Status: 200}); err != nil {
		t.Fatal(err)
	}

	got, err := s.MatchResponse(ctx, "app_cache_1", "http://x/sights")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || string(got.Body) != `[{"id":"s1"}]` || got.Header.Get("Content-Type") != "application/json" {
		t.Fatalf("MatchResponse = %+v", got)
	}

	miss, err := s.MatchResponse(ctx, "app_cache_1", "http://x/missing")
	if err != nil || miss != nil {
		t.Fatalf("miss = %+v, %v; want nil, nil", miss, err)
	}

	names, _ := s.CacheNames(ctx)
	if fmt.Sprint(names) != "[app_cache_0 app_cache_1]" {
		t.Errorf("names = %v", names)
	}
	if err := s.DeleteCache(ctx, "app_cache_0"); err != nil {
		t.Fatal(err)
	}
	names, _ = s.CacheNames(ctx)
	if fmt.Sprint(names) != "[app_cache_1]" {
		t.Errorf("names after delete = %v", names)
	}
}
