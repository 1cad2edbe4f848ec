// Package tui is the interactive field client: a sighting list with
// per-sighting chat that keeps working offline.
package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/sightings/internal/bus"
	"github.com/matheus3301/sightings/internal/field"
	"github.com/matheus3301/sightings/internal/outbox"
	"github.com/matheus3301/sightings/internal/share"
	"github.com/matheus3301/sightings/internal/sighting"
	"github.com/matheus3301/sightings/internal/status"
	intsync "github.com/matheus3301/sightings/internal/sync"
	"github.com/matheus3301/sightings/internal/tui/keys"
	"github.com/matheus3301/sightings/internal/tui/model"
	"github.com/matheus3301/sightings/internal/tui/ui"
	"github.com/matheus3301/sightings/internal/tui/views"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

const tick = 5 * time.Second

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	rt       *field.Runtime
	vm       *model.ViewModel
	theme    *ui.Theme
	registry *keys.Registry
	flash    *ui.FlashModel
	logger   *zap.Logger

	root      *tview.Flex
	pages     *ui.Pages
	prompt    *ui.Prompt
	crumbs    *ui.Crumbs
	menu      *ui.Menu
	info      *ui.ProfileInfo
	statusBar *views.StatusBar

	list     *views.SightingList
	thread   *views.MessageThread
	details  *views.SightingInfo
	identify *views.IdentifyView
	sharing  *views.ShareView
	add      *views.AddForm
	help     *views.HelpView

	promptOpen bool
	detailID   string
	pendingIDs map[string]bool
	queuedMsgs int

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp builds the TUI over an opened field runtime.
func NewApp(rt *field.Runtime) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:      tview.NewApplication(),
		rt:       rt,
		theme:    theme,
		registry: keys.NewRegistry(),
		flash:    ui.NewFlashModel(),
		logger:   rt.Logger.Named("tui"),
		vm: model.NewViewModel(model.Deps{
			Syncer:  rt.Reconciler,
			Writer:  rt.Composer,
			Channel: rt.Channel,
			Remote:  rt.API,
			Sender:  rt.Config.Sender,
		}),
		pages:     ui.NewPages(),
		prompt:    ui.NewPrompt(theme),
		crumbs:    ui.NewCrumbs(theme),
		menu:      ui.NewMenu(theme),
		info:      ui.NewProfileInfo(theme),
		statusBar: views.NewStatusBar(theme, rt.Profile),
		list:      views.NewSightingList(theme),
		thread:    views.NewMessageThread(theme, rt.Config.Sender),
		details:   views.NewSightingInfo(theme),
		identify:  views.NewIdentifyView(theme),
		sharing:   views.NewShareView(theme),
		add:       views.NewAddForm(theme),
		help:      views.NewHelpView(theme),
		ctx:       ctx,
		cancel:    cancel,
	}
	a.vm.SetMode(rt.Tracker.Current())

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	return a
}

func (a *App) setupBindings() {
	rn := func(r rune, desc string, fn func()) *keys.Action {
		return &keys.Action{Key: tcell.KeyRune, Rune: r, Description: desc, Handler: fn}
	}

	a.registry.AddGlobal(rn('?', "help", func() { a.push(a.help) }))
	a.registry.AddGlobal(rn(':', "command", func() { a.showPrompt(ui.PromptCommand) }))
	a.registry.AddGlobal(rn('/', "filter", func() { a.showPrompt(ui.PromptFilter) }))
	a.registry.AddGlobal(&keys.Action{Key: tcell.KeyCtrlR, Description: "sync", Handler: a.syncNow})

	list := a.list.Name()
	a.registry.AddView(list, rn('q', "quit", a.Stop))
	a.registry.AddView(list, rn('a', "add", func() { a.push(a.add) }))
	a.registry.AddView(list, rn('d', "details", func() { a.openDetails(a.list.Selected()) }))
	a.registry.AddView(list, rn('n', "identify", func() { a.openIdentify(a.list.Selected()) }))
	a.registry.AddView(list, rn('s', "share", func() { a.openShare(a.list.Selected()) }))
	a.registry.AddView(list, rn('t', "sort seen", a.vm.CycleSeen))
	a.registry.AddView(list, rn('g', "sort distance", a.vm.CycleDistance))
	a.registry.AddView(list, rn('u', "toggle unidentified", a.vm.ToggleUnidentified))
	a.registry.AddView(list, rn('i', "toggle identified", a.vm.ToggleIdentified))
	a.registry.AddView(list, rn('r', "sync", a.syncNow))

	chat := a.thread.Name()
	a.registry.AddView(chat, rn('i', "compose", func() { a.app.SetFocus(a.thread.Composer()) }))
	a.registry.AddView(chat, rn('d', "details", func() { a.openDetails(a.vm.ActiveID()) }))

	det := a.details.Name()
	a.registry.AddView(det, &keys.Action{Key: tcell.KeyEnter, Description: "chat", Handler: func() { a.openThread(a.detailID) }})
	a.registry.AddView(det, rn('n', "identify", func() { a.openIdentify(a.detailID) }))
	a.registry.AddView(det, rn('s', "share", func() { a.openShare(a.detailID) }))
}

func (a *App) setupCallbacks() {
	a.list.SetSelectedFunc(func(row, _ int) {
		if id := a.list.Selected(); id != "" {
			a.openThread(id)
		}
	})

	a.thread.SetOnSend(func(text string) {
		go func() {
			d, err := a.vm.Send(a.ctx, text)
			switch {
			case err != nil:
				a.flash.Err(err)
			case d == outbox.Queued:
				a.flash.Warn(outbox.SavedLocallyNotice)
				a.refreshQueues()
			}
		}()
	})

	a.add.SetOnError(a.flash.Err)
	a.add.SetOnCancel(func() { a.pop() })
	a.add.SetOnSubmit(func(s sighting.Sighting) {
		a.pop()
		go func() {
			queued, err := a.vm.AddSighting(a.ctx, s)
			if err != nil {
				a.flash.Err(err)
				return
			}
			if a.rt.Tracker.Online() {
				a.flash.Info("Sighting saved, uploading")
			} else {
				a.flash.Warn("You are offline. The sighting was saved locally and will be uploaded when you are back online.")
			}
			a.logger.Debug("sighting added", zap.String("sight_id", queued.ID))
			a.refreshQueues()
		}()
	})

	a.identify.SetOnLookup(func(term string) {
		ctx, cancel := context.WithTimeout(a.ctx, a.rt.Config.RequestTimeout.Duration)
		defer cancel()
		found, err := a.vm.Lookup(ctx, term)
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.identify.ShowError(err.Error())
				return
			}
			a.identify.Update(found)
		})
	})
	a.identify.SetOnChoose(func(id, name string, c *sighting.Candidate) {
		go func() {
			ctx, cancel := context.WithTimeout(a.ctx, a.rt.Config.RequestTimeout.Duration)
			defer cancel()
			s, err := a.vm.Identify(ctx, id, name, c)
			if err != nil {
				a.flash.Err(err)
				return
			}
			a.flash.Info(fmt.Sprintf("Identified as %s", s.Identification))
			a.app.QueueUpdateDraw(func() { a.pop() })
		}()
	})

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		if mode == ui.PromptFilter {
			a.vm.SetFilter(text)
			return
		}
		a.runCommand(ParseCommand(text))
	})
	a.prompt.SetOnChange(a.vm.SetFilter)
	a.prompt.SetOnCancel(a.hidePrompt)

	a.pages.SetOnChange(func(stack []string) {
		a.crumbs.Update(stack)
		if top := a.pages.Top(); top != nil {
			a.menu.Update(top.Hints())
		}
	})

	a.rt.Channel.OnUpdateMessages(func(msgs []sighting.Message) {
		if a.vm.SetHistory(msgs) {
			a.logger.Debug("thread updated", zap.Int("messages", len(msgs)))
		}
	})
	a.rt.Engine.OnOutcome(func(out intsync.Outcome, err error) {
		if err != nil {
			a.flash.Err(fmt.Errorf("sync: %w", err))
			return
		}
		a.vm.ApplyOutcome(out)
		a.refreshQueues()
	})
}

func (a *App) setupLayout() {
	for _, c := range []ui.Component{a.list, a.thread, a.details, a.identify, a.sharing, a.add, a.help} {
		a.pages.Add(c, c.(tview.Primitive))
	}

	header := tview.NewFlex().
		AddItem(ui.NewLogo(a.theme), 18, 0, false).
		AddItem(a.info, 0, 1, false).
		AddItem(a.menu, 0, 1, false)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, 7, 0, false).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)
	a.app.SetRoot(a.root, true)

	a.pages.Push(a.list)

	a.app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if a.promptOpen {
			return ev
		}
		current := a.pages.Current()

		if ev.Key() == tcell.KeyEscape {
			if current == a.thread.Name() && a.app.GetFocus() == a.thread.Composer() {
				a.app.SetFocus(a.thread.Messages())
				return nil
			}
			a.pop()
			return nil
		}
		if current == a.identify.Name() && ev.Key() == tcell.KeyTab {
			if a.app.GetFocus() == a.identify.Input() {
				a.app.SetFocus(a.identify.Results())
			} else {
				a.app.SetFocus(a.identify.Input())
			}
			return nil
		}
		// Text entry owns every other key.
		if _, ok := a.app.GetFocus().(*tview.InputField); ok || current == a.add.Name() {
			return ev
		}
		if a.registry.HandleEvent(current, ev) {
			return nil
		}
		return ev
	})
}

func (a *App) push(c ui.Component) {
	a.pages.Push(c)
	a.focusTop()
}

func (a *App) pop() {
	if popped := a.pages.Pop(); popped == ui.Component(a.thread) {
		a.vm.CloseThread()
	}
	a.focusTop()
}

func (a *App) focusTop() {
	switch top := a.pages.Top(); top {
	case ui.Component(a.thread):
		a.app.SetFocus(a.thread.Messages())
	case ui.Component(a.identify):
		a.app.SetFocus(a.identify.Input())
	default:
		if p, ok := top.(tview.Primitive); ok {
			a.app.SetFocus(p)
		}
	}
}

func (a *App) showPrompt(mode ui.PromptMode) {
	if a.promptOpen {
		return
	}
	a.promptOpen = true
	a.prompt.Activate(mode, a.vm.Filter())
	a.root.AddItem(a.prompt, 3, 0, false)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	if !a.promptOpen {
		return
	}
	a.promptOpen = false
	a.root.RemoveItem(a.prompt)
	a.focusTop()
}

func (a *App) runCommand(cmd Command) {
	switch cmd.Name {
	case "quit":
		a.Stop()
	case "help":
		a.push(a.help)
	case "sync":
		a.syncNow()
	case "add":
		a.push(a.add)
	case "filter":
		a.vm.SetFilter(cmd.Args)
	case "from":
		p, err := cmd.Point()
		if err != nil {
			a.flash.Err(fmt.Errorf(":from %w", err))
			return
		}
		a.vm.SetOrigin(p)
		if a.vm.Options().ByDistance == sighting.Unsorted {
			a.vm.CycleDistance()
		}
		a.flash.Info(fmt.Sprintf("Sorting by distance from %.4f, %.4f", p.Latitude, p.Longitude))
	case "identify":
		a.openIdentify(a.targetID(cmd.Args))
	case "share":
		a.openShare(a.targetID(cmd.Args))
	case "":
	default:
		a.flash.Err(fmt.Errorf("unknown command %q", cmd.Name))
	}
}

// targetID picks an explicit id, then the sighting on screen, then the list
// selection.
func (a *App) targetID(arg string) string {
	switch {
	case arg != "":
		return arg
	case a.pages.Current() == a.details.Name():
		return a.detailID
	case a.vm.ActiveID() != "":
		return a.vm.ActiveID()
	}
	return a.list.Selected()
}

func (a *App) openThread(id string) {
	s, ok := a.vm.Sighting(id)
	if !ok {
		return
	}
	a.thread.SetSighting(s)
	a.thread.Update(nil, nil)
	a.push(a.thread)
	go func() {
		if err := a.vm.OpenThread(a.ctx, id); err != nil {
			a.flash.Err(fmt.Errorf("open chat: %w", err))
		}
	}()
}

func (a *App) openDetails(id string) {
	s, ok := a.vm.Sighting(id)
	if !ok {
		return
	}
	a.detailID = id
	a.details.Update(s, a.pendingIDs[id])
	a.push(a.details)
}

func (a *App) openIdentify(id string) {
	s, ok := a.vm.Sighting(id)
	if !ok {
		a.flash.Warn("Select a sighting first")
		return
	}
	if a.pendingIDs[id] {
		a.flash.Warn("This sighting has not been uploaded yet")
		return
	}
	if s.Nickname != a.rt.Config.Sender {
		a.flash.Warn("Only the author can identify this sighting")
		return
	}
	a.identify.Reset(id, s.Identification)
	a.push(a.identify)
}

func (a *App) openShare(id string) {
	if id == "" {
		a.flash.Warn("Select a sighting first")
		return
	}
	link, err := share.URL(a.rt.Config.ServerURL, id)
	if err != nil {
		a.flash.Err(err)
		return
	}
	a.sharing.ShowLink(link)
	a.push(a.sharing)
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, a.rt.Config.RequestTimeout.Duration)
		defer cancel()
		// Fetching through the cache worker keeps the detail page available
		// offline.
		if _, err := a.rt.API.GetSighting(ctx, id); err != nil {
			a.logger.Debug("prefetch shared sighting", zap.String("sight_id", id), zap.Error(err))
		}
	}()
}

func (a *App) syncNow() {
	a.statusBar.SetSyncing(true)
	go func() {
		out, err := a.vm.Refresh(a.ctx)
		a.app.QueueUpdateDraw(func() { a.statusBar.SetSyncing(false) })
		if err != nil {
			a.flash.Err(fmt.Errorf("sync: %w", err))
			return
		}
		switch {
		case out.Mode == status.Offline:
			a.flash.Warn("Offline: showing cached and queued sightings")
		case out.Fallback:
			a.flash.Warn("Server unreachable: showing cached and queued sightings")
		default:
			a.flash.Info(fmt.Sprintf("Synced %d sightings", len(out.View)))
		}
		a.refreshQueues()
	}()
}

// refreshQueues recounts the local queues. It is safe to call from any
// goroutine.
func (a *App) refreshQueues() {
	pending, err := a.rt.Store.PendingSightings(a.ctx)
	if err != nil {
		return
	}
	msgs, err := a.rt.Store.PendingMessages(a.ctx)
	if err != nil {
		return
	}
	ids := make(map[string]bool, len(pending))
	for _, s := range pending {
		ids[s.ID] = true
	}
	a.app.QueueUpdateDraw(func() {
		a.pendingIDs = ids
		a.queuedMsgs = len(msgs)
		a.render()
	})
}

// render redraws the data-driven widgets. It must run on the UI goroutine.
func (a *App) render() {
	visible := a.vm.Visible()
	a.list.Update(visible, a.vm.Total(), a.vm.Options(), a.vm.Filter(), a.pendingIDs)
	if a.pages.Current() == a.thread.Name() {
		a.thread.Update(a.vm.Thread())
	}

	mode := a.vm.Mode()
	a.statusBar.SetMode(mode)
	a.statusBar.SetQueued(len(a.pendingIDs), a.queuedMsgs)
	a.statusBar.SetFlash(a.flash.Current().Format(a.theme))
	a.info.Update(ui.ProfileData{
		Profile:         a.rt.Profile,
		Server:          a.rt.Config.ServerURL,
		Sender:          a.rt.Config.Sender,
		Mode:            string(mode),
		Online:          mode == status.Online,
		PendingSighting: len(a.pendingIDs),
		PendingMessages: a.queuedMsgs,
		Visible:         len(visible),
	})
}

func (a *App) watch() {
	events, unsub := a.rt.Bus.SubscribeAll(32,
		status.KindChanged, status.KindAlert, intsync.KindSightingsFlushed, outbox.KindSightQueued)
	defer unsub()
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-a.vm.RefreshCh():
			a.app.QueueUpdateDraw(a.render)
		case <-a.flash.Watch():
			a.app.QueueUpdateDraw(a.render)
		case <-ticker.C:
			a.refreshQueues()
		case ev := <-events:
			a.handleEvent(ev)
		}
	}
}

func (a *App) handleEvent(ev bus.Event) {
	switch p := ev.Payload.(type) {
	case status.Change:
		a.vm.SetMode(p.To)
		if p.To == status.Online {
			a.flash.Info("Back online")
		}
	case status.Alert:
		a.flash.Warn(p.Message)
	case int:
		if ev.Kind == intsync.KindSightingsFlushed {
			a.flash.Info(fmt.Sprintf("%d queued sightings uploaded", p))
		}
	case sighting.Sighting:
		a.refreshQueues()
	}
}

// Run loads the cached view and blocks until the UI exits.
func (a *App) Run() error {
	go func() {
		if _, err := a.vm.Refresh(a.ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.flash.Err(fmt.Errorf("load sightings: %w", err))
		}
		a.refreshQueues()
		a.watch()
	}()
	return a.app.Run()
}

// Stop shuts the UI down. The runtime is closed by the caller.
func (a *App) Stop() {
	a.cancel()
	a.identify.Stop()
	a.app.Stop()
}
