package overlay

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
)

// ConfirmOverlay asks a yes/no question. y and n answer directly; enter
// takes the highlighted button; esc answers no.
type ConfirmOverlay struct {
	form     *huh.Form
	value    bool
	answered bool
	width    int
}

func NewConfirmOverlay(title, description, affirmative, negative string, width int) *ConfirmOverlay {
	c := &ConfirmOverlay{width: width}
	c.form = huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Description(description).
			Affirmative(affirmative).
			Negative(negative).
			Value(&c.value),
	)).
		WithTheme(ThemeRosePine()).
		WithWidth(max(width-6, 34)).
		WithShowHelp(false)
	_ = c.form.Init()
	return c
}

// HandleKeyPress returns true once the question is answered.
func (c *ConfirmOverlay) HandleKeyPress(msg tea.KeyMsg) bool {
	switch msg.Type {
	case tea.KeyEsc:
		c.value = false
		c.answered = true
		return true
	case tea.KeyEnter:
		c.update(msg)
		c.answered = true
		return true
	case tea.KeyRunes:
		switch msg.String() {
		case "y", "Y":
			c.value = true
			c.answered = true
			return true
		case "n", "N":
			c.value = false
			c.answered = true
			return true
		}
	}
	c.update(msg)
	return false
}

func (c *ConfirmOverlay) update(msg tea.Msg) {
	updated, _ := c.form.Update(msg)
	if form, ok := updated.(*huh.Form); ok {
		c.form = form
	}
}

// Confirmed reports whether the answer was yes.
func (c *ConfirmOverlay) Confirmed() bool {
	return c.answered && c.value
}

func (c *ConfirmOverlay) Render() string {
	return DialogStyle.BorderForeground(ColorLove).Width(max(c.width, 40)).Render(c.form.View())
}
