package overlay

import (
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// Rosé Pine Moon palette shared by the planner dialogs.
// https://rosepinetheme.com/palette/
var (
	ColorBase    = lipgloss.Color("#232136")
	ColorSurface = lipgloss.Color("#2a273f")
	ColorOverlay = lipgloss.Color("#393552")
	ColorMuted   = lipgloss.Color("#6e6a86")
	ColorSubtle  = lipgloss.Color("#908caa")
	ColorText    = lipgloss.Color("#e0def4")

	ColorLove = lipgloss.Color("#eb6f92") // error, danger
	ColorGold = lipgloss.Color("#f6c177") // warning, partial
	ColorFoam = lipgloss.Color("#9ccfd8") // info, success
	ColorIris = lipgloss.Color("#c4a7e7") // highlight, primary
)

// Shared dialog styles.
var (
	TitleStyle    = lipgloss.NewStyle().Foreground(ColorIris).Bold(true)
	SubtitleStyle = lipgloss.NewStyle().Foreground(ColorMuted)
	HintStyle     = lipgloss.NewStyle().Foreground(ColorMuted)
	LabelStyle    = lipgloss.NewStyle().Foreground(ColorSubtle)
	ValueStyle    = lipgloss.NewStyle().Foreground(ColorText)
	ErrorStyle    = lipgloss.NewStyle().Foreground(ColorLove)
	WarnStyle     = lipgloss.NewStyle().Foreground(ColorGold)
	OKStyle       = lipgloss.NewStyle().Foreground(ColorFoam)
	SelectedStyle = lipgloss.NewStyle().Foreground(ColorIris).Bold(true)

	DialogStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorIris).
			Padding(1, 2)
)

// ThemeRosePine returns a huh theme matching the palette above.
func ThemeRosePine() *huh.Theme {
	t := huh.ThemeBase()

	t.Focused.Base = t.Focused.Base.BorderForeground(ColorIris)
	t.Focused.Card = t.Focused.Base
	t.Focused.Title = t.Focused.Title.Foreground(ColorIris).Bold(true)
	t.Focused.Description = t.Focused.Description.Foreground(ColorMuted)
	t.Focused.ErrorIndicator = t.Focused.ErrorIndicator.Foreground(ColorLove)
	t.Focused.ErrorMessage = t.Focused.ErrorMessage.Foreground(ColorLove)
	t.Focused.SelectSelector = t.Focused.SelectSelector.Foreground(ColorIris)
	t.Focused.Option = t.Focused.Option.Foreground(ColorText)
	t.Focused.SelectedOption = t.Focused.SelectedOption.Foreground(ColorFoam)
	t.Focused.FocusedButton = t.Focused.FocusedButton.Foreground(ColorBase).Background(ColorIris)
	t.Focused.BlurredButton = t.Focused.BlurredButton.Foreground(ColorSubtle).Background(ColorOverlay)

	t.Focused.TextInput.Cursor = t.Focused.TextInput.Cursor.Foreground(ColorFoam)
	t.Focused.TextInput.Placeholder = t.Focused.TextInput.Placeholder.Foreground(ColorMuted)
	t.Focused.TextInput.Prompt = t.Focused.TextInput.Prompt.Foreground(ColorIris)
	t.Focused.TextInput.Text = t.Focused.TextInput.Text.Foreground(ColorText)

	t.Blurred = t.Focused
	t.Blurred.Base = t.Blurred.Base.BorderStyle(lipgloss.HiddenBorder())
	t.Blurred.Card = t.Blurred.Base
	t.Blurred.Title = t.Blurred.Title.Foreground(ColorSubtle).Bold(false)

	return t
}
