package domain

import (
	"slices"
	"strings"
)

// Theme selects the board palette.
type Theme string

const (
	ThemeAuto  Theme = "auto"
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Supported interface languages.
const (
	LanguageEnglish = "en"
	LanguageRussian = "ru"
)

var (
	validThemes    = []Theme{ThemeAuto, ThemeLight, ThemeDark}
	validLanguages = []string{LanguageEnglish, LanguageRussian}
)

// Preferences are the user settings persisted next to the tasks.
type Preferences struct {
	Language     string
	Theme        Theme
	WrapTitles   bool
	FullWeekdays bool
}

// DefaultPreferences returns the settings used before the user changes anything.
func DefaultPreferences() Preferences {
	return Preferences{
		Language:   LanguageRussian,
		Theme:      ThemeAuto,
		WrapTitles: true,
	}
}

func ParseTheme(raw string) (Theme, error) {
	theme := Theme(strings.ToLower(strings.TrimSpace(raw)))
	if !slices.Contains(validThemes, theme) {
		return ThemeAuto, ErrInvalidPreference
	}
	return theme, nil
}

func ParseLanguage(raw string) (string, error) {
	lang := strings.ToLower(strings.TrimSpace(raw))
	if !slices.Contains(validLanguages, lang) {
		return LanguageRussian, ErrInvalidPreference
	}
	return lang, nil
}

// Languages returns the supported language tags in picker order.
func Languages() []string {
	return slices.Clone(validLanguages)
}

// Next returns the theme after t, wrapping around.
func (t Theme) Next() Theme {
	idx := slices.Index(validThemes, t)
	return validThemes[(idx+1)%len(validThemes)]
}

// Normalize replaces unknown values with defaults.
func (p Preferences) Normalize() Preferences {
	if lang, err := ParseLanguage(p.Language); err == nil {
		p.Language = lang
	} else {
		p.Language = DefaultPreferences().Language
	}
	if theme, err := ParseTheme(string(p.Theme)); err == nil {
		p.Theme = theme
	} else {
		p.Theme = ThemeAuto
	}
	return p
}
