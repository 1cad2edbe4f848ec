package views

import (
	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/sightings/internal/api"
	"github.com/matheus3301/sightings/internal/sighting"
	"github.com/matheus3301/sightings/internal/tui/ui"
	"github.com/rivo/tview"
)

// IdentifyView names a sighting. Typing in the name field runs a debounced
// species lookup; picking a candidate fills the reference fields.
type IdentifyView struct {
	*tview.Flex
	theme      *ui.Theme
	input      *tview.InputField
	results    *tview.Table
	sightID    string
	candidates []sighting.Candidate
	debounce   *api.Debouncer
	onLookup   func(term string)
	onChoose   func(id, name string, c *sighting.Candidate)
}

func NewIdentifyView(theme *ui.Theme) *IdentifyView {
	input := tview.NewInputField().
		SetLabel(" Name: ").
		SetFieldWidth(0)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.MenuKeyColor)

	results := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	results.SetBorder(true)
	results.SetBorderColor(theme.BorderColor)
	results.SetBackgroundColor(theme.BgColor)
	results.SetTitle(" Matches ")
	results.SetTitleColor(theme.TitleColor)
	results.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(input, 1, 0, true).
		AddItem(results, 0, 1, false)

	iv := &IdentifyView{
		Flex:    flex,
		theme:   theme,
		input:   input,
		results: results,
	}

	input.SetChangedFunc(func(text string) {
		if iv.debounce != nil && text != "" {
			iv.debounce.Trigger(text)
		}
	})
	input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && iv.onChoose != nil && input.GetText() != "" {
			iv.onChoose(iv.sightID, input.GetText(), nil)
		}
	})
	results.SetSelectedFunc(func(row, _ int) {
		idx := row - 1
		if idx < 0 || idx >= len(iv.candidates) || iv.onChoose == nil {
			return
		}
		name := input.GetText()
		if name == "" {
			name = iv.candidates[idx].ScientificName
		}
		c := iv.candidates[idx]
		iv.onChoose(iv.sightID, name, &c)
	})
	return iv
}

// Name implements Component.
func (iv *IdentifyView) Name() string { return "Identify" }

// Start implements Component.
func (iv *IdentifyView) Start() {
	iv.debounce = api.NewDebouncer(api.LookupDelay, func(term string) {
		if iv.onLookup != nil {
			iv.onLookup(term)
		}
	})
}

// Stop implements Component.
func (iv *IdentifyView) Stop() {
	if iv.debounce != nil {
		iv.debounce.Stop()
		iv.debounce = nil
	}
}

// Hints implements Component.
func (iv *IdentifyView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Save name"},
		{Key: "Tab", Description: "Matches"},
		{Key: "Esc", Description: "Back"},
	}
}

// Reset prepares the view for sighting id, prefilled with its current name.
func (iv *IdentifyView) Reset(id, current string) {
	iv.sightID = id
	iv.input.SetText(current)
	iv.Update(nil)
	iv.results.SetTitle(" Matches ")
}

// SetOnLookup sets the callback for debounced lookups. It runs off the UI
// goroutine.
func (iv *IdentifyView) SetOnLookup(fn func(term string)) { iv.onLookup = fn }

// SetOnChoose sets the callback for saving. c is nil when the name is used
// without a lookup match.
func (iv *IdentifyView) SetOnChoose(fn func(id, name string, c *sighting.Candidate)) {
	iv.onChoose = fn
}

// Update shows lookup candidates.
func (iv *IdentifyView) Update(found []sighting.Candidate) {
	iv.candidates = found
	iv.results.Clear()
	for col, h := range []string{" SCIENTIFIC NAME", " DESCRIPTION"} {
		iv.results.SetCell(0, col, tview.NewTableCell(h).
			SetSelectable(false).
			SetTextColor(iv.theme.TableHeaderFg).
			SetBackgroundColor(iv.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold))
	}
	for i, c := range found {
		iv.results.SetCell(i+1, 0, tview.NewTableCell(" "+tview.Escape(c.ScientificName)).SetMaxWidth(32).SetTextColor(iv.theme.FgColor))
		iv.results.SetCell(i+1, 1, tview.NewTableCell(" "+tview.Escape(oneLine(c.Description, 120))).SetExpansion(1).SetTextColor(iv.theme.FgColor))
	}
}

// ShowError reports a failed lookup in the results title.
func (iv *IdentifyView) ShowError(msg string) {
	iv.results.SetTitle(" Matches: " + tview.Escape(msg) + " ")
}

func (iv *IdentifyView) Input() *tview.InputField { return iv.input }

func (iv *IdentifyView) Results() *tview.Table { return iv.results }
