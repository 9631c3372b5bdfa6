package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the dashboard keybindings.
type KeyMap struct {
	// Navigation
	Down  key.Binding
	Up    key.Binding
	Left  key.Binding
	Right key.Binding

	Select key.Binding
	Back   key.Binding
	Quit   key.Binding
	Help   key.Binding

	// View state
	ToggleView    key.Binding
	Search        key.Binding
	CycleCategory key.Binding
	CycleSort     key.Binding
	FlipDirection key.Binding
	Refresh       key.Binding
	ClearFilters  key.Binding

	// Drag and drop
	Grab key.Binding

	// Selection
	MultiSelect   key.Binding
	ToggleSelect  key.Binding
	SelectAll     key.Binding
	BatchDelete   key.Binding
	BatchComplete key.Binding

	// Task actions
	New    key.Binding
	Edit   key.Binding
	Delete key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Left: key.NewBinding(
			key.WithKeys("h", "left"),
			key.WithHelp("h/←", "prev lane"),
		),
		Right: key.NewBinding(
			key.WithKeys("l", "right"),
			key.WithHelp("l/→", "next lane"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open detail"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back / cancel drag"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		ToggleView: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "list/board"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		CycleCategory: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "cycle category"),
		),
		CycleSort: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "cycle sort"),
		),
		FlipDirection: key.NewBinding(
			key.WithKeys("S"),
			key.WithHelp("S", "flip direction"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		ClearFilters: key.NewBinding(
			key.WithKeys("0"),
			key.WithHelp("0", "clear filters"),
		),
		Grab: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "grab / drop"),
		),
		MultiSelect: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "multi-select"),
		),
		ToggleSelect: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "select"),
		),
		SelectAll: key.NewBinding(
			key.WithKeys("A"),
			key.WithHelp("A", "select lane"),
		),
		BatchDelete: key.NewBinding(
			key.WithKeys("D"),
			key.WithHelp("D", "delete selected"),
		),
		BatchComplete: key.NewBinding(
			key.WithKeys("C"),
			key.WithHelp("C", "complete selected"),
		),
		New: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "new task"),
		),
		Edit: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "edit"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete"),
		),
	}
}

// ShortHelp returns the most essential keybindings for the status bar.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.Up, k.Down, k.Select, k.New,
		k.Grab, k.Search, k.Help, k.Quit,
	}
}

// FullHelp returns all keybindings grouped for the help overlay.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right, k.Select, k.Back, k.Quit},
		{k.ToggleView, k.Search, k.CycleCategory, k.CycleSort, k.FlipDirection, k.ClearFilters, k.Refresh},
		{k.Grab, k.MultiSelect, k.ToggleSelect, k.SelectAll, k.BatchDelete, k.BatchComplete},
		{k.New, k.Edit, k.Delete, k.Help},
	}
}
