package tui

import (
	"image/color"

	"charm.land/lipgloss/v2"
	"github.com/evanschultz/weekplan/internal/domain"
)

// palette is the resolved color set for one theme.
type palette struct {
	dark      bool
	text      color.Color
	muted     color.Color
	dim       color.Color
	accent    color.Color
	today     color.Color
	selection color.Color
	errorFg   color.Color
	indicator color.Color
	cards     map[domain.Color]color.Color
}

func darkPalette() palette {
	return palette{
		dark:      true,
		text:      lipgloss.Color("252"),
		muted:     lipgloss.Color("245"),
		dim:       lipgloss.Color("239"),
		accent:    lipgloss.Color("62"),
		today:     lipgloss.Color("212"),
		selection: lipgloss.Color("237"),
		errorFg:   lipgloss.Color("203"),
		indicator: lipgloss.Color("81"),
		cards: map[domain.Color]color.Color{
			domain.ColorBlue:   lipgloss.Color("75"),
			domain.ColorGreen:  lipgloss.Color("114"),
			domain.ColorYellow: lipgloss.Color("221"),
			domain.ColorPink:   lipgloss.Color("218"),
			domain.ColorOrange: lipgloss.Color("215"),
		},
	}
}

func lightPalette() palette {
	return palette{
		text:      lipgloss.Color("235"),
		muted:     lipgloss.Color("243"),
		dim:       lipgloss.Color("250"),
		accent:    lipgloss.Color("25"),
		today:     lipgloss.Color("161"),
		selection: lipgloss.Color("254"),
		errorFg:   lipgloss.Color("160"),
		indicator: lipgloss.Color("31"),
		cards: map[domain.Color]color.Color{
			domain.ColorBlue:   lipgloss.Color("26"),
			domain.ColorGreen:  lipgloss.Color("28"),
			domain.ColorYellow: lipgloss.Color("136"),
			domain.ColorPink:   lipgloss.Color("162"),
			domain.ColorOrange: lipgloss.Color("166"),
		},
	}
}

// paletteFor resolves theme; auto follows the detected terminal background.
func paletteFor(theme domain.Theme, darkBackground bool) palette {
	switch theme {
	case domain.ThemeLight:
		return lightPalette()
	case domain.ThemeDark:
		return darkPalette()
	default:
		if darkBackground {
			return darkPalette()
		}
		return lightPalette()
	}
}

// cardColor returns the foreground for a task color, falling back to the text color.
func (p palette) cardColor(c domain.Color) color.Color {
	if fg, ok := p.cards[c]; ok {
		return fg
	}
	return p.text
}

// glamourStyle names the markdown style matching the palette.
func (p palette) glamourStyle() string {
	if p.dark {
		return "dark"
	}
	return "light"
}
