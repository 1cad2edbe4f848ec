package ui

import "github.com/rivo/tview"

// Pages is a stack of components over tview.Pages. Pushing starts a
// component and popping stops it.
type Pages struct {
	*tview.Pages
	stack    []Component
	onChange func(stack []string)
}

func NewPages() *Pages {
	return &Pages{Pages: tview.NewPages()}
}

// SetOnChange sets a callback that fires when the stack changes.
func (p *Pages) SetOnChange(fn func(stack []string)) {
	p.onChange = fn
}

// Add registers a component's primitive under its name without showing it.
func (p *Pages) Add(c Component, item tview.Primitive) {
	p.AddPage(c.Name(), item, true, false)
}

// Push shows c on top of the stack. Pushing the current top again is a no-op.
func (p *Pages) Push(c Component) {
	if top := p.Top(); top != nil {
		if top.Name() == c.Name() {
			return
		}
		p.HidePage(top.Name())
	}
	p.stack = append(p.stack, c)
	p.ShowPage(c.Name())
	p.SendToFront(c.Name())
	c.Start()
	p.notify()
}

// Pop removes the top component and shows the previous one. The root page
// is never popped.
func (p *Pages) Pop() Component {
	if len(p.stack) <= 1 {
		return nil
	}
	top := p.stack[len(p.stack)-1]
	top.Stop()
	p.HidePage(top.Name())
	p.stack = p.stack[:len(p.stack)-1]
	cur := p.stack[len(p.stack)-1]
	p.ShowPage(cur.Name())
	p.SendToFront(cur.Name())
	p.notify()
	return top
}

// Top returns the visible component, or nil.
func (p *Pages) Top() Component {
	if len(p.stack) == 0 {
		return nil
	}
	return p.stack[len(p.stack)-1]
}

// Current returns the visible page name.
func (p *Pages) Current() string {
	if top := p.Top(); top != nil {
		return top.Name()
	}
	return ""
}

// Stack returns the page names from root to top.
func (p *Pages) Stack() []string {
	names := make([]string, len(p.stack))
	for i, c := range p.stack {
		names[i] = c.Name()
	}
	return names
}

// Reset pops everything above the root.
func (p *Pages) Reset() {
	for len(p.stack) > 1 {
		p.Pop()
	}
}

func (p *Pages) notify() {
	if p.onChange != nil {
		p.onChange(p.Stack())
	}
}
