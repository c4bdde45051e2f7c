package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/kastheco/opsdash/ui/overlay"
)

// The dashboard shares the dialog palette.
var (
	ColorBase    = overlay.ColorBase
	ColorSurface = overlay.ColorSurface
	ColorOverlay = overlay.ColorOverlay
	ColorMuted   = overlay.ColorMuted
	ColorSubtle  = overlay.ColorSubtle
	ColorText    = overlay.ColorText

	ColorLove = overlay.ColorLove
	ColorGold = overlay.ColorGold
	ColorFoam = overlay.ColorFoam
	ColorIris = overlay.ColorIris
	ColorRose = lipgloss.Color("#ea9a97") // accent, secondary
)
