package ui

// MenuHint describes a keyboard shortcut for display in the menu bar.
type MenuHint struct {
	Key         string
	Description string
}

// Component is the lifecycle interface for all TUI pages. Start runs when
// the page is pushed and Stop when it is popped.
type Component interface {
	Name() string
	Start()
	Stop()
	Hints() []MenuHint
}
