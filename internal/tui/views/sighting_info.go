package views

import (
	"fmt"
	"strings"

	"github.com/matheus3301/sightings/internal/sighting"
	"github.com/matheus3301/sightings/internal/tui/ui"
	"github.com/rivo/tview"
)

// SightingInfo displays every field of one sighting.
type SightingInfo struct {
	*tview.TextView
	theme *ui.Theme
}

func NewSightingInfo(theme *ui.Theme) *SightingInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetWordWrap(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Sighting ")
	tv.SetTitleColor(theme.TitleColor)
	return &SightingInfo{TextView: tv, theme: theme}
}

// Name implements Component.
func (si *SightingInfo) Name() string { return "Details" }

// Start implements Component.
func (si *SightingInfo) Start() { si.ScrollToBeginning() }

// Stop implements Component.
func (si *SightingInfo) Stop() {}

// Hints implements Component.
func (si *SightingInfo) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Chat"},
		{Key: "n", Description: "Identify"},
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
	}
}

// Update renders s. queued marks a sighting that has not reached the server.
func (si *SightingInfo) Update(s sighting.Sighting, queued bool) {
	si.Clear()

	fg := ui.Tag(si.theme.FgColor)
	ct := ui.Tag(si.theme.CounterColor)
	row := func(label, value string) string {
		if value == "" {
			value = "-"
		}
		return fmt.Sprintf(" [%s::b]%-16s[-:-:-] [%s]%s[-]\n", fg, label, ct, tview.Escape(sanitizeForTerminal(value)))
	}

	state := "uploaded"
	if queued {
		state = "queued on this device"
	}
	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(row("Id:", s.ID))
	sb.WriteString(row("Seen by:", s.Nickname))
	sb.WriteString(row("Seen at:", s.SeenAt.Local().Format("2006-01-02 15:04")))
	sb.WriteString(row("Location:", fmt.Sprintf("%.5f, %.5f", s.Geolocation.Latitude, s.Geolocation.Longitude)))
	sb.WriteString(row("State:", state))
	sb.WriteString(row("Identification:", s.Identification))
	sb.WriteString(row("Scientific name:", s.ScientificName))
	sb.WriteString(row("Reference:", s.DBPediaURL))
	sb.WriteString(row("Photo:", oneLine(s.Photo, 60)))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf(" [%s::b]Description[-:-:-]\n %s\n", fg, tview.Escape(sanitizeForTerminal(s.Description))))
	if s.DBPediaDescription != "" {
		sb.WriteString(fmt.Sprintf("\n [%s::b]About[-:-:-]\n %s\n", fg, tview.Escape(sanitizeForTerminal(s.DBPediaDescription))))
	}
	_, _ = fmt.Fprint(si, sb.String())

	title := s.Identification
	if title == "" {
		title = "Unidentified"
	}
	si.SetTitle(fmt.Sprintf(" %s ", tview.Escape(title)))
}
