package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the [key.Binding] set shared by every view.
type keyMap struct {
	up       key.Binding
	down     key.Binding
	enter    key.Binding
	transfer key.Binding
	filter   key.Binding
	back     key.Binding
	yes      key.Binding
	no       key.Binding
	restart  key.Binding
	quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		enter:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "preview")),
		transfer: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "transfer")),
		filter:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
		back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		yes:      key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "start")),
		no:       key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "cancel")),
		restart:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "another playlist")),
		quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// bindings returns the help line for view. The transfer view has none, only ctrl+c quits there.
func (k keyMap) bindings(view ViewState) []key.Binding {
	switch view {
	case PlaylistListView:
		return []key.Binding{k.up, k.down, k.filter, k.enter, k.quit}
	case TrackListView:
		return []key.Binding{k.up, k.down, k.transfer, k.back, k.quit}
	case ConfirmView:
		return []key.Binding{k.yes, k.no}
	case ResultView:
		return []key.Binding{k.restart, k.quit}
	default:
		return nil
	}
}
