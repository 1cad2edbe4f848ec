package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/sightings/internal/sighting"
	"github.com/matheus3301/sightings/internal/store"
	"github.com/matheus3301/sightings/internal/tui/ui"
	"github.com/rivo/tview"
)

// MessageThread shows the chat of one sighting and a composer.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	composer *tview.InputField
	title    string
	me       string
	onSend   func(text string)
}

func NewMessageThread(theme *ui.Theme, me string) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" Chat ")
	messages.SetTitleColor(theme.TitleColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Message (i to focus) ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		composer: composer,
		me:       me,
	}

	composer.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && mt.onSend != nil {
			if text := composer.GetText(); text != "" {
				mt.onSend(text)
				composer.SetText("")
			}
		}
	})
	return mt
}

// Name implements Component.
func (mt *MessageThread) Name() string { return "Chat" }

// Start implements Component.
func (mt *MessageThread) Start() {}

// Stop implements Component.
func (mt *MessageThread) Stop() { mt.composer.SetText("") }

// Hints implements Component.
func (mt *MessageThread) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "i", Description: "Compose"},
		{Key: "d", Description: "Details"},
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
	}
}

// SetSighting titles the thread after s.
func (mt *MessageThread) SetSighting(s sighting.Sighting) {
	mt.title = s.Identification
	if mt.title == "" {
		mt.title = oneLine(s.Description, 40)
	}
	mt.messages.SetTitle(fmt.Sprintf(" %s · %s ", tview.Escape(sanitizeForTerminal(mt.title)), tview.Escape(s.Nickname)))
}

func (mt *MessageThread) SetOnSend(fn func(text string)) {
	mt.onSend = fn
}

// Update renders the server history followed by messages still queued on
// this device.
func (mt *MessageThread) Update(history []sighting.Message, queued []store.PendingMessage) {
	mt.messages.Clear()
	if len(history) == 0 && len(queued) == 0 {
		_, _ = fmt.Fprintf(mt.messages, "[%s::d]No messages yet.[-:-:-]", ui.Tag(mt.theme.FgColor))
		return
	}
	for _, m := range history {
		mt.write(m.Sender, formatTime(m.CreatedAt), m.Message, mt.theme.FgColor)
	}
	for _, m := range queued {
		mt.write(m.Sender, "queued", m.Message, mt.theme.PendingColor)
	}
	mt.messages.ScrollToEnd()
}

func (mt *MessageThread) write(sender, when, text string, c tcell.Color) {
	if sender == mt.me && sender != "" {
		sender = "You"
	}
	_, _ = fmt.Fprintf(mt.messages, "[%s::b]%s[-:-:-] [::d]%s[-:-:-]\n[%s]%s[-]\n\n",
		ui.Tag(mt.theme.CounterColor), tview.Escape(sanitizeForTerminal(sender)), when,
		ui.Tag(c), tview.Escape(sanitizeForTerminal(text)))
}

// Messages returns the history view for focus management.
func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

// Composer returns the input field for focus management.
func (mt *MessageThread) Composer() *tview.InputField {
	return mt.composer
}
