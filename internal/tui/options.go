package tui

import (
	"context"
	"time"

	"github.com/evanschultz/weekplan/internal/domain"
	"github.com/evanschultz/weekplan/internal/locale"
)

// PreferencesStore persists the settings changed from the settings popup.
type PreferencesStore interface {
	SavePreferences(context.Context, domain.Preferences) error
}

// ClipboardWriter copies text to the system clipboard.
type ClipboardWriter func(string) error

type Option func(*Model)

// WithPreferences sets the initial preferences.
func WithPreferences(prefs domain.Preferences) Option {
	return func(m *Model) {
		m.prefs = prefs.Normalize()
	}
}

func WithPreferencesStore(store PreferencesStore) Option {
	return func(m *Model) {
		m.prefsStore = store
	}
}

// WithCatalog sets the message catalog; its language follows the preferences.
func WithCatalog(catalog *locale.Catalog) Option {
	return func(m *Model) {
		if catalog != nil {
			m.text = catalog
		}
	}
}

// WithBridge connects planner notifications queued on bridge.
func WithBridge(bridge *Bridge) Option {
	return func(m *Model) {
		m.bridge = bridge
	}
}

// WithDarkBackground records the detected terminal background used by the auto theme.
func WithDarkBackground(dark bool) Option {
	return func(m *Model) {
		m.darkBackground = dark
	}
}

func WithClipboard(write ClipboardWriter) Option {
	return func(m *Model) {
		if write != nil {
			m.copyText = write
		}
	}
}

// WithDeepLink opens the task named by a "#task/<id>" link after the first load.
func WithDeepLink(link string) Option {
	return func(m *Model) {
		m.deepLink = link
	}
}

// WithTickInterval sets how often the undo countdown refreshes. Zero disables ticking.
func WithTickInterval(d time.Duration) Option {
	return func(m *Model) {
		m.tickEvery = d
	}
}

// WithClock overrides the wall clock used for undo countdowns.
func WithClock(now func() time.Time) Option {
	return func(m *Model) {
		if now != nil {
			m.now = now
		}
	}
}
