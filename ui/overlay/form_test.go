package overlay

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func typeInto(f *FieldForm, s string) {
	for _, r := range s {
		f.HandleKeyPress(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func teamForm() *FieldForm {
	return NewFieldForm("Create team", 60,
		Field{Key: "name", Title: "Team name", Required: true},
		Field{Key: "desc", Title: "Description (optional)"},
	)
}

func TestFieldForm_SubmitWithRequiredValue(t *testing.T) {
	f := teamForm()
	typeInto(f, "Acme Corp")

	done := f.HandleKeyPress(tea.KeyMsg{Type: tea.KeyEnter})
	assert.True(t, done)
	assert.True(t, f.IsSubmitted())
	assert.Equal(t, "Acme Corp", f.Value("name"))
	assert.Equal(t, "", f.Value("desc"))
}

func TestFieldForm_TabMovesToNextField(t *testing.T) {
	f := teamForm()
	typeInto(f, "Acme")
	f.HandleKeyPress(tea.KeyMsg{Type: tea.KeyTab})
	typeInto(f, "delivery team")

	assert.Equal(t, "Acme", f.Value("name"))
	assert.Equal(t, "delivery team", f.Value("desc"))
}

func TestFieldForm_BlankRequiredDoesNotSubmit(t *testing.T) {
	f := teamForm()
	typeInto(f, "   ")

	assert.False(t, f.HandleKeyPress(tea.KeyMsg{Type: tea.KeyEnter}))
	assert.False(t, f.IsSubmitted())
	assert.False(t, f.Ready())
}

func TestFieldForm_InitialValuesShown(t *testing.T) {
	f := NewFieldForm("Create team", 60,
		Field{Key: "name", Title: "Team name", Initial: "Acme Corp", Required: true},
	)
	assert.True(t, f.Ready())
	assert.Equal(t, "Acme Corp", f.Value("name"))
	assert.Contains(t, f.Render(""), "Create team")
}

func TestFieldForm_EscCancels(t *testing.T) {
	f := teamForm()
	assert.True(t, f.HandleKeyPress(tea.KeyMsg{Type: tea.KeyEsc}))
	assert.True(t, f.IsCanceled())
	assert.False(t, f.IsSubmitted())

	f.Reopen()
	assert.False(t, f.IsCanceled())
}

func TestFieldForm_SelectDefaultsToInitial(t *testing.T) {
	f := NewFieldForm("Create channel", 60,
		Field{Key: "membership", Title: "Membership", Initial: "private", Options: []Option{
			{Label: "Standard", Value: "standard"},
			{Label: "Private", Value: "private"},
		}},
	)
	assert.Equal(t, "private", f.Value("membership"))
}

func TestConfirmOverlay(t *testing.T) {
	c := NewConfirmOverlay("Disconnect?", "Tasks are kept.", "Disconnect", "Cancel", 60)
	assert.True(t, c.HandleKeyPress(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'y'}}))
	assert.True(t, c.Confirmed())

	c = NewConfirmOverlay("Disconnect?", "Tasks are kept.", "Disconnect", "Cancel", 60)
	assert.True(t, c.HandleKeyPress(tea.KeyMsg{Type: tea.KeyEsc}))
	assert.False(t, c.Confirmed())

	c = NewConfirmOverlay("Disconnect?", "Tasks are kept.", "Disconnect", "Cancel", 60)
	assert.True(t, c.HandleKeyPress(tea.KeyMsg{Type: tea.KeyEnter}))
	assert.False(t, c.Confirmed(), "negative is highlighted by default")
}
