package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// PromptMode selects between command entry and list filtering.
type PromptMode int

const (
	PromptCommand PromptMode = iota
	PromptFilter
)

const historySize = 20

// Prompt is the input bar opened by ':' and '/'. In filter mode every edit
// is reported so the list narrows while typing; Esc restores the filter
// that was active on open. Commands keep a short Up/Down history.
type Prompt struct {
	*tview.InputField
	mode     PromptMode
	previous string
	history  []string
	cursor   int

	onSubmit func(mode PromptMode, text string)
	onChange func(text string)
	onCancel func()
}

func NewPrompt(theme *Theme) *Prompt {
	input := tview.NewInputField().SetFieldWidth(0)
	input.SetBorder(true)
	input.SetBorderColor(theme.PromptBorderColor)
	input.SetTitleColor(theme.TitleColor)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.MenuKeyColor)

	p := &Prompt{InputField: input}

	input.SetChangedFunc(func(text string) {
		if p.mode == PromptFilter && p.onChange != nil {
			p.onChange(text)
		}
	})
	input.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if p.mode != PromptCommand {
			return ev
		}
		switch ev.Key() {
		case tcell.KeyUp:
			p.recall(-1)
			return nil
		case tcell.KeyDown:
			p.recall(1)
			return nil
		}
		return ev
	})
	input.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter:
			p.submit(p.GetText())
		case tcell.KeyEscape:
			p.cancel()
		}
	})
	return p
}

func (p *Prompt) cancel() {
	if p.mode == PromptFilter && p.onChange != nil {
		p.onChange(p.previous)
	}
	if p.onCancel != nil {
		p.onCancel()
	}
}

func (p *Prompt) submit(text string) {
	if p.mode == PromptCommand {
		if text == "" {
			if p.onCancel != nil {
				p.onCancel()
			}
			return
		}
		p.remember(text)
	}
	if p.onSubmit != nil {
		p.onSubmit(p.mode, text)
	}
}

func (p *Prompt) remember(text string) {
	if n := len(p.history); n > 0 && p.history[n-1] == text {
		return
	}
	p.history = append(p.history, text)
	if len(p.history) > historySize {
		p.history = p.history[len(p.history)-historySize:]
	}
}

// recall moves through the command history. Moving past the newest entry
// clears the field.
func (p *Prompt) recall(step int) {
	if len(p.history) == 0 {
		return
	}
	p.cursor += step
	switch {
	case p.cursor < 0:
		p.cursor = 0
	case p.cursor >= len(p.history):
		p.cursor = len(p.history)
		p.SetText("")
		return
	}
	p.SetText(p.history[p.cursor])
}

// SetOnSubmit sets the Enter callback. An empty command counts as cancel;
// an empty filter is submitted so it can clear the list filter.
func (p *Prompt) SetOnSubmit(fn func(mode PromptMode, text string)) {
	p.onSubmit = fn
}

// SetOnChange sets the live filter callback.
func (p *Prompt) SetOnChange(fn func(text string)) {
	p.onChange = fn
}

func (p *Prompt) SetOnCancel(fn func()) {
	p.onCancel = fn
}

// Activate prepares the prompt for mode. current is the active filter,
// shown for editing in filter mode.
func (p *Prompt) Activate(mode PromptMode, current string) {
	p.mode = mode
	p.cursor = len(p.history)
	switch mode {
	case PromptCommand:
		p.SetLabel(":")
		p.SetTitle(" Command ")
		p.SetText("")
	case PromptFilter:
		p.previous = current
		p.SetLabel("/")
		p.SetTitle(" Filter sightings ")
		p.SetText(current)
	}
}

func (p *Prompt) Mode() PromptMode {
	return p.mode
}
