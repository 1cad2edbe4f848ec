package views

import (
	"fmt"
	"strings"

	"github.com/matheus3301/sightings/internal/tui/ui"
	"github.com/rivo/tview"
)

// HelpView displays the key and command reference.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	hv := &HelpView{TextView: tv, theme: theme}
	hv.render()
	return hv
}

// Name implements Component.
func (hv *HelpView) Name() string { return "Help" }

// Start implements Component.
func (hv *HelpView) Start() { hv.ScrollToBeginning() }

// Stop implements Component.
func (hv *HelpView) Stop() {}

// Hints implements Component.
func (hv *HelpView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

type helpSection struct {
	title string
	rows  [][2]string
}

var helpSections = []helpSection{
	{"Global keys", [][2]string{
		{":", "Command mode"},
		{"/", "Filter sightings"},
		{"?", "Help"},
		{"Esc", "Cancel / go back"},
		{"q", "Quit (from the list)"},
		{"Ctrl-C", "Quit immediately"},
	}},
	{"Sighting list", [][2]string{
		{"Enter", "Open the sighting's chat"},
		{"a", "Add a sighting"},
		{"d", "Show details"},
		{"n", "Identify the sighting"},
		{"s", "Share link as QR code"},
		{"t", "Sort by seen time: newest, oldest, off"},
		{"g", "Sort by distance: nearest, farthest, off"},
		{"u", "Show or hide unidentified"},
		{"i", "Show or hide identified"},
		{"r", "Sync now"},
	}},
	{"Chat", [][2]string{
		{"i", "Focus the message field"},
		{"Enter", "Send (queued while offline)"},
		{"d", "Show details"},
	}},
	{"Commands", [][2]string{
		{":sync", "Run a sync pass"},
		{":add", "Add a sighting"},
		{":from <lat,lon>", "Set the distance origin"},
		{":identify [id]", "Identify a sighting"},
		{":share [id]", "Share a sighting"},
		{":filter <text>", "Filter by text, empty clears"},
		{":help", "Show this help"},
		{":quit", "Quit"},
	}},
}

func (hv *HelpView) render() {
	kc := ui.Tag(hv.theme.MenuKeyColor)
	var sb strings.Builder
	for _, s := range helpSections {
		sb.WriteString(fmt.Sprintf("\n  [::b]%s[-:-:-]\n\n", s.title))
		for _, r := range s.rows {
			sb.WriteString(fmt.Sprintf("  [%s]%-16s[-:-:-] %s\n", kc, tview.Escape(r[0]), r[1]))
		}
	}
	_, _ = fmt.Fprint(hv, sb.String())
}
