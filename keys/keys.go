package keys

import (
	"github.com/charmbracelet/bubbles/key"
)

type KeyName int

const (
	KeyUp KeyName = iota
	KeyDown
	KeyQuit
	KeyHelp

	KeySync       // Key for triggering a manual sync
	KeyAutoSync   // Key for toggling automatic sync
	KeyAutoAdd    // Key for toggling automatic member addition
	KeyDisconnect // Key for removing the connection
	KeyRefresh    // Key for reloading the connection status
	KeyConnect    // Key for opening the connect dialog when disconnected
	KeyToggleLog  // Key for showing or hiding the activity log
	KeyCopy       // Key for copying the linked plan id

	// -- Confirmation keybindings --

	KeyConfirm
	KeyCancel
)

// GlobalKeyStringsMap is a global, immutable map string to keybinding.
var GlobalKeyStringsMap = map[string]KeyName{
	"up":     KeyUp,
	"k":      KeyUp,
	"down":   KeyDown,
	"j":      KeyDown,
	"q":      KeyQuit,
	"ctrl+c": KeyQuit,
	"?":      KeyHelp,
	"s":      KeySync,
	"a":      KeyAutoSync,
	"m":      KeyAutoAdd,
	"D":      KeyDisconnect,
	"r":      KeyRefresh,
	"c":      KeyConnect,
	"l":      KeyToggleLog,
	"i":      KeyCopy,
	"y":      KeyConfirm,
	"n":      KeyCancel,
	"esc":    KeyCancel,
}

// GlobalkeyBindings is a global, immutable map of KeyName to keybinding.
var GlobalkeyBindings = map[KeyName]key.Binding{
	KeyUp: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "scroll log"),
	),
	KeyDown: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "scroll log"),
	),
	KeyQuit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	KeyHelp: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	KeySync: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "sync now"),
	),
	KeyAutoSync: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "auto-sync"),
	),
	KeyAutoAdd: key.NewBinding(
		key.WithKeys("m"),
		key.WithHelp("m", "auto-add members"),
	),
	// Upper-case so a stray keystroke cannot start a disconnect.
	KeyDisconnect: key.NewBinding(
		key.WithKeys("D"),
		key.WithHelp("D", "disconnect"),
	),
	KeyRefresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	KeyConnect: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "connect"),
	),
	KeyToggleLog: key.NewBinding(
		key.WithKeys("l"),
		key.WithHelp("l", "toggle log"),
	),
	KeyCopy: key.NewBinding(
		key.WithKeys("i"),
		key.WithHelp("i", "copy plan id"),
	),
	KeyConfirm: key.NewBinding(
		key.WithKeys("y"),
		key.WithHelp("y", "confirm"),
	),
	KeyCancel: key.NewBinding(
		key.WithKeys("n", "esc"),
		key.WithHelp("n/esc", "cancel"),
	),
}

// Help returns the "key desc" hint for each name, in order.
func Help(names ...KeyName) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		b, ok := GlobalkeyBindings[n]
		if !ok {
			continue
		}
		h := b.Help()
		out = append(out, h.Key+" "+h.Desc)
	}
	return out
}
