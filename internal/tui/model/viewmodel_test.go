package model

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matheus3301/sightings/internal/outbox"
	"github.com/matheus3301/sightings/internal/sighting"
	"github.com/matheus3301/sightings/internal/status"
	"github.com/matheus3301/sightings/internal/store"
	intsync "github.com/matheus3301/sightings/internal/sync"
)

type fakeSyncer struct{ out intsync.Outcome }

func (f *fakeSyncer) Run(context.Context) (intsync.Outcome, error) { return f.out, nil }

type fakeWriter struct {
	delivery  outbox.Delivery
	sightings []sighting.Sighting
	queued    []store.PendingMessage
}

func (f *fakeWriter) SubmitSighting(_ context.Context, s sighting.Sighting) (sighting.Sighting, error) {
	s.ID = "queued-1"
	f.sightings = append(f.sightings, s)
	return s, nil
}

func (f *fakeWriter) SubmitMessage(_ context.Context, sightID, text, sender string) (outbox.Delivery, error) {
	if f.delivery == outbox.Queued {
		f.queued = append(f.queued, store.PendingMessage{ID: "m1", SightID: sightID, Message: text, Sender: sender})
	}
	return f.delivery, nil
}

func (f *fakeWriter) PendingThread(_ context.Context, sightID string) ([]store.PendingMessage, error) {
	var out []store.PendingMessage
	for _, m := range f.queued {
		if m.SightID == sightID {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeChannel struct{ joined []string }

func (f *fakeChannel) JoinSession(_ context.Context, id string) error {
	f.joined = append(f.joined, id)
	return nil
}

type fakeRemote struct {
	candidates []sighting.Candidate
	got        sighting.Identification
}

func (f *fakeRemote) Lookup(context.Context, string) ([]sighting.Candidate, error) {
	return f.candidates, nil
}

func (f *fakeRemote) UpdateIdentification(_ context.Context, id string, upd sighting.Identification) (*sighting.Sighting, error) {
	f.got = upd
	return &sighting.Sighting{ID: id, Nickname: "ana", Identification: upd.Identification, ScientificName: upd.ScientificName}, nil
}

func sample() []sighting.Sighting {
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	return []sighting.Sighting{
		{ID: "a", Nickname: "ana", Description: "small brown bird", SeenAt: base, Geolocation: sighting.Geolocation{Latitude: 10}},
		{ID: "b", Nickname: "bo", Description: "heron by the lake", Identification: "Grey heron", SeenAt: base.Add(2 * time.Hour)},
		{ID: "c", Nickname: "cy", Description: "owl", SeenAt: base.Add(time.Hour), Geolocation: sighting.Geolocation{Latitude: 1}},
	}
}

func newVM(w *fakeWriter, ch *fakeChannel, r *fakeRemote, sender string) *ViewModel {
	return NewViewModel(Deps{
		Syncer:  &fakeSyncer{out: intsync.Outcome{Mode: status.Online, View: sample()}},
		Writer:  w,
		Channel: ch,
		Remote:  r,
		Sender:  sender,
	})
}

func ids(list []sighting.Sighting) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = s.ID
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRefreshAndSorting(t *testing.T) {
	vm := newVM(&fakeWriter{}, &fakeChannel{}, &fakeRemote{}, "ana")
	if _, err := vm.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if vm.Mode() != status.Online || vm.Total() != 3 {
		t.Fatalf("mode = %s, total = %d", vm.Mode(), vm.Total())
	}

	vm.CycleSeen()
	if got := ids(vm.Visible()); !equal(got, []string{"b", "c", "a"}) {
		t.Errorf("newest first = %v", got)
	}

	vm.CycleDistance()
	if vm.Options().BySeen != sighting.Unsorted {
		t.Error("distance sort left the seen sort on")
	}
	if got := ids(vm.Visible()); !equal(got, []string{"b", "c", "a"}) {
		t.Errorf("nearest first = %v", got)
	}

	vm.ToggleIdentified()
	if got := ids(vm.Visible()); !equal(got, []string{"c", "a"}) {
		t.Errorf("unidentified only = %v", got)
	}
}

func TestFilterMatchesText(t *testing.T) {
	vm := newVM(&fakeWriter{}, &fakeChannel{}, &fakeRemote{}, "ana")
	_, _ = vm.Refresh(context.Background())

	vm.SetFilter("  HERON ")
	if got := ids(vm.Visible()); !equal(got, []string{"b"}) {
		t.Errorf("filtered = %v", got)
	}
	vm.SetFilter("")
	if len(vm.Visible()) != 3 {
		t.Error("empty filter did not clear")
	}
}

func TestOpenThreadJoinsOnlyOnline(t *testing.T) {
	ch := &fakeChannel{}
	vm := newVM(&fakeWriter{}, ch, &fakeRemote{}, "ana")
	ctx := context.Background()

	if err := vm.OpenThread(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if len(ch.joined) != 0 {
		t.Error("joined a session while offline")
	}

	vm.SetMode(status.Online)
	if err := vm.OpenThread(ctx, "b"); err != nil {
		t.Fatal(err)
	}
	if len(ch.joined) != 1 || ch.joined[0] != "b" {
		t.Errorf("joined = %v", ch.joined)
	}
}

// Regression: a late history update for the previous sighting replaced the
// thread of the one just opened.
func TestSetHistoryIgnoresOtherSighting(t *testing.T) {
	vm := newVM(&fakeWriter{}, &fakeChannel{}, &fakeRemote{}, "ana")
	_ = vm.OpenThread(context.Background(), "a")

	if vm.SetHistory([]sighting.Message{{SightID: "b", Message: "late"}}) {
		t.Error("accepted history of another sighting")
	}
	if !vm.SetHistory([]sighting.Message{{SightID: "a", Message: "hi"}}) {
		t.Fatal("rejected history of the active sighting")
	}
	history, _ := vm.Thread()
	if len(history) != 1 || history[0].Message != "hi" {
		t.Errorf("history = %+v", history)
	}
}

func TestSendQueuedShowsInThread(t *testing.T) {
	w := &fakeWriter{delivery: outbox.Queued}
	vm := newVM(w, &fakeChannel{}, &fakeRemote{}, "ana")
	ctx := context.Background()

	if _, err := vm.Send(ctx, "hi"); err == nil {
		t.Error("sent with no thread open")
	}
	_ = vm.OpenThread(ctx, "a")
	d, err := vm.Send(ctx, "anyone?")
	if err != nil || d != outbox.Queued {
		t.Fatalf("delivery = %v, %v", d, err)
	}
	_, queued := vm.Thread()
	if len(queued) != 1 || queued[0].Message != "anyone?" {
		t.Errorf("queued = %+v", queued)
	}
}

func TestWritesNeedSender(t *testing.T) {
	vm := newVM(&fakeWriter{}, &fakeChannel{}, &fakeRemote{}, "")
	ctx := context.Background()

	if _, err := vm.AddSighting(ctx, sighting.Sighting{}); !errors.Is(err, ErrNoSender) {
		t.Errorf("AddSighting error = %v", err)
	}
	if _, err := vm.Identify(ctx, "a", "wren", nil); !errors.Is(err, ErrNoSender) {
		t.Errorf("Identify error = %v", err)
	}
}

func TestAddSightingPrepends(t *testing.T) {
	w := &fakeWriter{}
	vm := newVM(w, &fakeChannel{}, &fakeRemote{}, "ana")
	_, _ = vm.Refresh(context.Background())

	s, err := vm.AddSighting(context.Background(), sighting.Sighting{Nickname: "someone-else", Description: "kite"})
	if err != nil {
		t.Fatal(err)
	}
	if s.Nickname != "ana" {
		t.Errorf("nickname = %q, want the configured sender", s.Nickname)
	}
	if got := vm.Visible(); got[0].ID != "queued-1" {
		t.Errorf("first = %q", got[0].ID)
	}
}

func TestIdentifyUsesCandidate(t *testing.T) {
	r := &fakeRemote{candidates: []sighting.Candidate{{ScientificName: "Ardea cinerea", URI: "http://dbpedia.org/resource/Grey_heron"}}}
	vm := newVM(&fakeWriter{}, &fakeChannel{}, r, "ana")
	ctx := context.Background()
	_, _ = vm.Refresh(ctx)

	found, err := vm.Lookup(ctx, "heron")
	if err != nil || len(found) != 1 {
		t.Fatalf("lookup = %v, %v", found, err)
	}
	if _, err := vm.Identify(ctx, "a", "Grey heron", &vm.Candidates()[0]); err != nil {
		t.Fatal(err)
	}
	if r.got.ScientificName != "Ardea cinerea" || r.got.DBPediaURL == "" || r.got.Sender != "ana" {
		t.Errorf("update = %+v", r.got)
	}
	s, _ := vm.Sighting("a")
	if s.Identification != "Grey heron" {
		t.Errorf("cached copy = %+v", s)
	}
}
