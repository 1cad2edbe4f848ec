package views

import (
	"fmt"

	"github.com/matheus3301/sightings/internal/share"
	"github.com/matheus3301/sightings/internal/tui/ui"
	"github.com/rivo/tview"
)

// ShareView shows a QR code for a sighting's detail link.
type ShareView struct {
	*tview.TextView
	theme *ui.Theme
}

func NewShareView(theme *ui.Theme) *ShareView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Share ")
	tv.SetTitleColor(theme.TitleColor)
	return &ShareView{TextView: tv, theme: theme}
}

// Name implements Component.
func (sv *ShareView) Name() string { return "Share" }

// Start implements Component.
func (sv *ShareView) Start() {}

// Stop implements Component.
func (sv *ShareView) Stop() {}

// Hints implements Component.
func (sv *ShareView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

// ShowLink renders link as a QR code with the link text underneath.
func (sv *ShareView) ShowLink(link string) {
	sv.Clear()
	qr, err := share.Render(link, "")
	if err != nil {
		sv.ShowMessage("QR generation failed: " + err.Error())
		return
	}
	_, _ = fmt.Fprintf(sv, "\n%s\n[%s]%s[-]", qr, ui.Tag(sv.theme.CounterColor), tview.Escape(link))
}

func (sv *ShareView) ShowMessage(msg string) {
	sv.Clear()
	_, _ = fmt.Fprintf(sv, "\n\n%s", tview.Escape(msg))
}
