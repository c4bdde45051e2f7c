package keys

import (
	"testing"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func TestGlobalKeyStringsMap_EveryNameHasBinding(t *testing.T) {
	for s, name := range GlobalKeyStringsMap {
		b, ok := GlobalkeyBindings[name]
		if !assert.True(t, ok, "no binding for %q", s) {
			continue
		}
		assert.Contains(t, b.Keys(), s, "binding for %q does not list the key", s)
	}
}

func TestDisconnectNeedsShift(t *testing.T) {
	lower := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")}
	upper := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("D")}
	assert.False(t, key.Matches(lower, GlobalkeyBindings[KeyDisconnect]))
	assert.True(t, key.Matches(upper, GlobalkeyBindings[KeyDisconnect]))
}

func TestHelp(t *testing.T) {
	assert.Equal(t, []string{"s sync now", "q quit"}, Help(KeySync, KeyQuit))
}
