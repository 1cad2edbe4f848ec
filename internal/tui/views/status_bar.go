package views

import (
	"fmt"
	"time"

	"github.com/matheus3301/sightings/internal/status"
	"github.com/matheus3301/sightings/internal/tui/ui"
	"github.com/rivo/tview"
)

// StatusBar shows connectivity, queue sizes and the current flash message.
type StatusBar struct {
	*tview.TextView
	theme    *ui.Theme
	profile  string
	mode     status.Mode
	sightQ   int
	messageQ int
	syncing  bool
	flash    string
}

func NewStatusBar(theme *ui.Theme, profile string) *StatusBar {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)
	sb := &StatusBar{TextView: tv, theme: theme, profile: profile, mode: status.Offline}
	sb.render()
	return sb
}

func (sb *StatusBar) SetMode(m status.Mode) {
	sb.mode = m
	sb.render()
}

// SetQueued updates the number of sightings and messages waiting for a
// connection.
func (sb *StatusBar) SetQueued(sightings, messages int) {
	sb.sightQ, sb.messageQ = sightings, messages
	sb.render()
}

func (sb *StatusBar) SetSyncing(syncing bool) {
	sb.syncing = syncing
	sb.render()
}

// SetFlash sets the already formatted flash text.
func (sb *StatusBar) SetFlash(msg string) {
	sb.flash = msg
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	mode := ui.Tag(sb.theme.OfflineColor)
	if sb.mode == status.Online {
		mode = ui.Tag(sb.theme.OnlineColor)
	}
	syncIcon := " "
	if sb.syncing {
		syncIcon = fmt.Sprintf("[%s]~[-]", ui.Tag(sb.theme.OnlineColor))
	}

	line := fmt.Sprintf(" [::b]%s[-:-:-] | [%s::b]%s[-:-:-] %s", tview.Escape(sb.profile), mode, sb.mode, syncIcon)
	if sb.sightQ > 0 || sb.messageQ > 0 {
		line += fmt.Sprintf(" | [%s]%d queued sightings, %d queued messages[-]", ui.Tag(sb.theme.PendingColor), sb.sightQ, sb.messageQ)
	}
	line += " | " + time.Now().Format("15:04")
	if sb.flash != "" {
		line += " | " + sb.flash
	}
	_, _ = fmt.Fprint(sb, line)
}
