// Package model holds the TUI's view state on top of the field runtime.
package model

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/matheus3301/sightings/internal/outbox"
	"github.com/matheus3301/sightings/internal/sighting"
	"github.com/matheus3301/sightings/internal/status"
	"github.com/matheus3301/sightings/internal/store"
	intsync "github.com/matheus3301/sightings/internal/sync"
)

var ErrNoSender = errors.New("no sender nickname configured, run sightctl init --sender <name>")

// Syncer runs one reconciliation pass.
type Syncer interface {
	Run(ctx context.Context) (intsync.Outcome, error)
}

// Writer is the outbox side of the field client.
type Writer interface {
	SubmitSighting(ctx context.Context, s sighting.Sighting) (sighting.Sighting, error)
	SubmitMessage(ctx context.Context, sightID, text, sender string) (outbox.Delivery, error)
	PendingThread(ctx context.Context, sightID string) ([]store.PendingMessage, error)
}

type Channel interface {
	JoinSession(ctx context.Context, sightID string) error
}

// Remote covers the calls that only work against the server.
type Remote interface {
	Lookup(ctx context.Context, term string) ([]sighting.Candidate, error)
	UpdateIdentification(ctx context.Context, id string, upd sighting.Identification) (*sighting.Sighting, error)
}

type Deps struct {
	Syncer  Syncer
	Writer  Writer
	Channel Channel
	Remote  Remote
	Sender  string
}

// ViewModel caches the sighting list and the open chat thread and signals
// UI refreshes.
type ViewModel struct {
	mu sync.RWMutex

	deps       Deps
	sightings  []sighting.Sighting
	opts       sighting.ViewOptions
	filter     string
	mode       status.Mode
	activeID   string
	history    []sighting.Message
	queued     []store.PendingMessage
	candidates []sighting.Candidate

	refreshCh chan struct{}
}

func NewViewModel(d Deps) *ViewModel {
	return &ViewModel{
		deps:      d,
		opts:      sighting.DefaultViewOptions(),
		mode:      status.Offline,
		refreshCh: make(chan struct{}, 1),
	}
}

// RefreshCh returns the channel that signals UI refresh.
func (vm *ViewModel) RefreshCh() <-chan struct{} {
	return vm.refreshCh
}

func (vm *ViewModel) signalRefresh() {
	select {
	case vm.refreshCh <- struct{}{}:
	default:
	}
}

// Refresh runs a reconciliation pass and adopts its view.
func (vm *ViewModel) Refresh(ctx context.Context) (intsync.Outcome, error) {
	out, err := vm.deps.Syncer.Run(ctx)
	if err != nil {
		return out, err
	}
	vm.ApplyOutcome(out)
	return out, nil
}

// ApplyOutcome adopts the view of a pass run elsewhere, such as the
// background engine.
func (vm *ViewModel) ApplyOutcome(out intsync.Outcome) {
	vm.mu.Lock()
	vm.sightings = out.View
	vm.mode = out.Mode
	vm.mu.Unlock()
	vm.signalRefresh()
}

func (vm *ViewModel) SetMode(m status.Mode) {
	vm.mu.Lock()
	vm.mode = m
	vm.mu.Unlock()
	vm.signalRefresh()
}

func (vm *ViewModel) Mode() status.Mode {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.mode
}

// Visible returns the arranged sighting list narrowed by the text filter.
func (vm *ViewModel) Visible() []sighting.Sighting {
	vm.mu.RLock()
	list := sighting.Arrange(vm.sightings, vm.opts)
	filter := strings.ToLower(vm.filter)
	vm.mu.RUnlock()

	if filter == "" {
		return list
	}
	out := list[:0:0]
	for _, s := range list {
		if matches(s, filter) {
			out = append(out, s)
		}
	}
	return out
}

func matches(s sighting.Sighting, lower string) bool {
	for _, f := range []string{s.Nickname, s.Description, s.Identification, s.ScientificName} {
		if strings.Contains(strings.ToLower(f), lower) {
			return true
		}
	}
	return false
}

// Total is the number of sightings before any filtering.
func (vm *ViewModel) Total() int {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return len(vm.sightings)
}

func (vm *ViewModel) Options() sighting.ViewOptions {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.opts
}

func (vm *ViewModel) update(fn func(o *sighting.ViewOptions)) {
	vm.mu.Lock()
	fn(&vm.opts)
	vm.mu.Unlock()
	vm.signalRefresh()
}

func (vm *ViewModel) ToggleIdentified() {
	vm.update(func(o *sighting.ViewOptions) { o.ShowIdentified = !o.ShowIdentified })
}

func (vm *ViewModel) ToggleUnidentified() {
	vm.update(func(o *sighting.ViewOptions) { o.ShowUnidentified = !o.ShowUnidentified })
}

// CycleSeen steps the seen-time sort through newest first, oldest first
// and off. Date and distance sorting are exclusive.
func (vm *ViewModel) CycleSeen() {
	vm.update(func(o *sighting.ViewOptions) {
		o.BySeen = o.BySeen.Next(sighting.Descending)
		if o.BySeen != sighting.Unsorted {
			o.ByDistance = sighting.Unsorted
		}
	})
}

// CycleDistance steps the distance sort through nearest first, farthest
// first and off.
func (vm *ViewModel) CycleDistance() {
	vm.update(func(o *sighting.ViewOptions) {
		o.ByDistance = o.ByDistance.Next(sighting.Ascending)
		if o.ByDistance != sighting.Unsorted {
			o.BySeen = sighting.Unsorted
		}
	})
}

func (vm *ViewModel) SetOrigin(p sighting.Geolocation) {
	vm.update(func(o *sighting.ViewOptions) { o.Origin = p })
}

func (vm *ViewModel) SetFilter(text string) {
	vm.mu.Lock()
	vm.filter = strings.TrimSpace(text)
	vm.mu.Unlock()
	vm.signalRefresh()
}

func (vm *ViewModel) Filter() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.filter
}

// Sighting returns the cached sighting with the given id.
func (vm *ViewModel) Sighting(id string) (sighting.Sighting, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for _, s := range vm.sightings {
		if s.ID == id {
			return s, true
		}
	}
	return sighting.Sighting{}, false
}

// OpenThread makes id the active chat. Online it joins the sighting's
// session, whose history arrives through SetHistory; offline only the
// locally queued messages are shown.
func (vm *ViewModel) OpenThread(ctx context.Context, id string) error {
	vm.mu.Lock()
	if vm.activeID != id {
		vm.history = nil
	}
	vm.activeID = id
	online := vm.mode == status.Online
	vm.mu.Unlock()

	if online {
		if err := vm.deps.Channel.JoinSession(ctx, id); err != nil {
			return err
		}
	}
	return vm.loadQueued(ctx)
}

func (vm *ViewModel) CloseThread() {
	vm.mu.Lock()
	vm.activeID = ""
	vm.history = nil
	vm.queued = nil
	vm.mu.Unlock()
}

func (vm *ViewModel) ActiveID() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.activeID
}

func (vm *ViewModel) loadQueued(ctx context.Context) error {
	id := vm.ActiveID()
	if id == "" {
		return nil
	}
	queued, err := vm.deps.Writer.PendingThread(ctx, id)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	if vm.activeID == id {
		vm.queued = queued
	}
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// SetHistory replaces the thread history with an update from the channel.
// Updates for a sighting other than the active one are dropped.
func (vm *ViewModel) SetHistory(msgs []sighting.Message) bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.activeID == "" {
		return false
	}
	for _, m := range msgs {
		if m.SightID != vm.activeID {
			return false
		}
	}
	vm.history = msgs
	select {
	case vm.refreshCh <- struct{}{}:
	default:
	}
	return true
}

// Thread returns the server history and the locally queued messages of the
// active sighting.
func (vm *ViewModel) Thread() ([]sighting.Message, []store.PendingMessage) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.history, vm.queued
}

// Send submits text to the active thread.
func (vm *ViewModel) Send(ctx context.Context, text string) (outbox.Delivery, error) {
	id := vm.ActiveID()
	if id == "" {
		return outbox.Queued, errors.New("no sighting open")
	}
	if vm.deps.Sender == "" {
		return outbox.Queued, ErrNoSender
	}
	d, err := vm.deps.Writer.SubmitMessage(ctx, id, text, vm.deps.Sender)
	if err != nil {
		return d, err
	}
	if d == outbox.Queued {
		if err := vm.loadQueued(ctx); err != nil {
			return d, err
		}
	}
	return d, nil
}

// AddSighting queues a new sighting under the configured nickname.
func (vm *ViewModel) AddSighting(ctx context.Context, s sighting.Sighting) (sighting.Sighting, error) {
	if vm.deps.Sender == "" {
		return s, ErrNoSender
	}
	s.Nickname = vm.deps.Sender
	queued, err := vm.deps.Writer.SubmitSighting(ctx, s)
	if err != nil {
		return queued, err
	}
	vm.mu.Lock()
	vm.sightings = append([]sighting.Sighting{queued}, vm.sightings...)
	vm.mu.Unlock()
	vm.signalRefresh()
	return queued, nil
}

// Lookup searches the species service and keeps the candidates.
func (vm *ViewModel) Lookup(ctx context.Context, term string) ([]sighting.Candidate, error) {
	found, err := vm.deps.Remote.Lookup(ctx, term)
	if err != nil {
		return nil, err
	}
	vm.mu.Lock()
	vm.candidates = found
	vm.mu.Unlock()
	return found, nil
}

func (vm *ViewModel) Candidates() []sighting.Candidate {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.candidates
}

// Identify sets the identification of id from name and an optional lookup
// candidate, and replaces the cached copy with the server's answer.
func (vm *ViewModel) Identify(ctx context.Context, id, name string, c *sighting.Candidate) (*sighting.Sighting, error) {
	if vm.deps.Sender == "" {
		return nil, ErrNoSender
	}
	upd := sighting.Identification{Sender: vm.deps.Sender, Identification: name}
	if c != nil {
		upd.ScientificName = c.ScientificName
		upd.DBPediaURL = c.URI
		upd.DBPediaDescription = c.Description
	}
	s, err := vm.deps.Remote.UpdateIdentification(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	vm.mu.Lock()
	for i := range vm.sightings {
		if vm.sightings[i].ID == s.ID {
			vm.sightings[i] = *s
		}
	}
	vm.mu.Unlock()
	vm.signalRefresh()
	return s, nil
}
