package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/sightings/internal/sighting"
	"github.com/matheus3301/sightings/internal/tui/ui"
	"github.com/rivo/tview"
)

// SightingList is the main table of sightings.
type SightingList struct {
	*tview.Table
	theme     *ui.Theme
	sightings []sighting.Sighting
	pending   map[string]bool
}

func NewSightingList(theme *ui.Theme) *SightingList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitle(" Sightings ")
	table.SetTitleColor(theme.TitleColor)

	return &SightingList{Table: table, theme: theme}
}

// Name implements Component.
func (sl *SightingList) Name() string { return "Sightings" }

// Start implements Component.
func (sl *SightingList) Start() {}

// Stop implements Component.
func (sl *SightingList) Stop() {}

// Hints implements Component.
func (sl *SightingList) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Chat"},
		{Key: "a", Description: "Add"},
		{Key: "d", Description: "Details"},
		{Key: "n", Description: "Identify"},
		{Key: "t/g", Description: "Sort seen/distance"},
		{Key: "u/i", Description: "Hide unidentified/identified"},
		{Key: "r", Description: "Sync"},
		{Key: "/", Description: "Filter"},
		{Key: "?", Description: "Help"},
	}
}

// Update renders list. Sightings whose id is in pending are marked as not
// yet uploaded.
func (sl *SightingList) Update(list []sighting.Sighting, total int, opts sighting.ViewOptions, filter string, pending map[string]bool) {
	selected := sl.Selected()
	sl.sightings = list
	sl.pending = pending
	sl.Clear()

	headers := []struct {
		text string
		exp  int
	}{
		{" SEEN", 0},
		{" BY", 0},
		{" IDENTIFICATION", 1},
		{" DESCRIPTION", 2},
		{" LAT,LON", 0},
		{" ", 0},
	}
	for col, h := range headers {
		sl.SetCell(0, col, tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(sl.theme.TableHeaderFg).
			SetBackgroundColor(sl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp))
	}

	selRow := 1
	for i, s := range list {
		row := i + 1
		ident := s.Identification
		identColor := sl.theme.FgColor
		if ident == "" {
			ident = "unknown"
			identColor = sl.theme.PendingColor
		}
		mark, markColor := "", sl.theme.FgColor
		if pending[s.ID] {
			mark, markColor = "queued", sl.theme.PendingColor
		}
		cell := func(text string) *tview.TableCell {
			return tview.NewTableCell(" " + tview.Escape(sanitizeForTerminal(text))).SetTextColor(sl.theme.FgColor)
		}
		sl.SetCell(row, 0, cell(formatTime(s.SeenAt)))
		sl.SetCell(row, 1, cell(s.Nickname).SetMaxWidth(16))
		sl.SetCell(row, 2, cell(ident).SetExpansion(1).SetTextColor(identColor))
		sl.SetCell(row, 3, cell(oneLine(s.Description, 80)).SetExpansion(2))
		sl.SetCell(row, 4, cell(fmt.Sprintf("%.3f,%.3f", s.Geolocation.Latitude, s.Geolocation.Longitude)).SetAlign(tview.AlignRight))
		sl.SetCell(row, 5, cell(mark).SetTextColor(markColor))
		if s.ID == selected {
			selRow = row
		}
	}
	if len(list) > 0 {
		sl.Select(selRow, 0)
	}

	title := fmt.Sprintf(" Sightings (%d/%d)%s ", len(list), total, describe(opts))
	if filter != "" {
		title = fmt.Sprintf(" Sightings (%d/%d)%s filter: %s ", len(list), total, describe(opts), tview.Escape(filter))
	}
	sl.SetTitle(title)
}

func describe(opts sighting.ViewOptions) string {
	var s string
	switch opts.BySeen {
	case sighting.Descending:
		s += " newest first"
	case sighting.Ascending:
		s += " oldest first"
	}
	switch opts.ByDistance {
	case sighting.Ascending:
		s += " nearest first"
	case sighting.Descending:
		s += " farthest first"
	}
	if !opts.ShowIdentified {
		s += " unidentified only"
	}
	if !opts.ShowUnidentified {
		s += " identified only"
	}
	if s != "" {
		s = " |" + s
	}
	return s
}

// Selected returns the id of the highlighted sighting.
func (sl *SightingList) Selected() string {
	row, _ := sl.GetSelection()
	idx := row - 1
	if idx < 0 || idx >= len(sl.sightings) {
		return ""
	}
	return sl.sightings[idx].ID
}
