package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

// Logo displays a compact ASCII art logo.
type Logo struct {
	*tview.TextView
}

func NewLogo(theme *Theme) *Logo {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(1, 0, 1, 0)

	title := Tag(theme.TitleColor)
	_, _ = fmt.Fprintf(tv,
		"[%s::b] ┌─┐┬┌─┐┬ ┬┌┬┐[-:-:-]\n"+
			"[%s::b] └─┐││ ┬├─┤ │ [-:-:-]\n"+
			"[%s::b] └─┘┴└─┘┴ ┴ ┴ [-:-:-]\n"+
			"[%s]field log[-:-:-]",
		title, title, title, Tag(theme.FgColor),
	)
	return &Logo{TextView: tv}
}

// ProfileData is the header summary of the field client.
type ProfileData struct {
	Profile         string
	Server          string
	Sender          string
	Mode            string
	Online          bool
	PendingSighting int
	PendingMessages int
	Visible         int
}

// ProfileInfo displays profile and queue state in the header.
type ProfileInfo struct {
	*tview.TextView
	theme *Theme
}

func NewProfileInfo(theme *Theme) *ProfileInfo {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)
	return &ProfileInfo{TextView: tv, theme: theme}
}

func (p *ProfileInfo) Update(d ProfileData) {
	p.Clear()
	fg := Tag(p.theme.FgColor)
	val := Tag(p.theme.CounterColor)
	mode := Tag(p.theme.OfflineColor)
	if d.Online {
		mode = Tag(p.theme.OnlineColor)
	}
	sender := d.Sender
	if sender == "" {
		sender = "-"
	}

	row := func(label, color, value string) string {
		return fmt.Sprintf("[%s::b]%-9s[-:-:-][%s]%s[-]\n", fg, label, color, tview.Escape(value))
	}
	var sb strings.Builder
	sb.WriteString(row("Profile:", val, d.Profile))
	sb.WriteString(row("Server:", val, d.Server))
	sb.WriteString(row("You:", val, sender))
	sb.WriteString(row("Mode:", mode, d.Mode))
	sb.WriteString(row("Queued:", Tag(p.theme.PendingColor), fmt.Sprintf("%d sightings, %d messages", d.PendingSighting, d.PendingMessages)))
	sb.WriteString(row("Showing:", val, fmt.Sprint(d.Visible)))
	_, _ = fmt.Fprint(p, strings.TrimSuffix(sb.String(), "\n"))
}

// Menu displays keyboard shortcut hints in a vertical list.
type Menu struct {
	*tview.TextView
	theme *Theme
}

func NewMenu(theme *Theme) *Menu {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 2, 0)
	return &Menu{TextView: tv, theme: theme}
}

func (m *Menu) Update(hints []MenuHint) {
	m.Clear()
	kc := Tag(m.theme.MenuKeyColor)
	for _, h := range hints {
		_, _ = fmt.Fprintf(m, "[%s::b]<%s>[-:-:-] %s\n", kc, h.Key, h.Description)
	}
}

// Crumbs is a breadcrumb bar showing the page stack.
type Crumbs struct {
	*tview.TextView
	theme *Theme
}

func NewCrumbs(theme *Theme) *Crumbs {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	return &Crumbs{TextView: tv, theme: theme}
}

func (c *Crumbs) Update(stack []string) {
	c.Clear()
	parts := make([]string, len(stack))
	for i, name := range stack {
		fg, bg, attr := c.theme.CrumbInactiveFg, c.theme.CrumbInactiveBg, ""
		if i == len(stack)-1 {
			fg, bg, attr = c.theme.CrumbActiveFg, c.theme.CrumbActiveBg, "b"
		}
		parts[i] = fmt.Sprintf("[%s:%s:%s] %s [-:-:-]", Tag(fg), Tag(bg), attr, tview.Escape(name))
	}
	_, _ = fmt.Fprint(c, strings.Join(parts, " > "))
}
