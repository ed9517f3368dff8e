package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/evanschultz/weekplan/internal/app"
	"github.com/evanschultz/weekplan/internal/domain"
	"github.com/jmoiron/sqlx"
)

const (
	settingInboxTitle   = "inbox_title"
	settingLanguage     = "language"
	settingTheme        = "theme"
	settingWrapTitles   = "wrap_titles"
	settingFullWeekdays = "full_weekdays"
)

func (r *Repository) setting(ctx context.Context, key string) (string, error) {
	var value string
	if err := r.db.GetContext(ctx, &value, `SELECT value FROM settings WHERE key = ?`, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("setting %q: %w", key, app.ErrNotFound)
		}
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

func (r *Repository) setSettings(ctx context.Context, values map[string]string) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		for key, value := range values {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO settings(key, value) VALUES (?, ?)
				ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
			if err != nil {
				return fmt.Errorf("set setting %q: %w", key, err)
			}
		}
		return nil
	})
}

// LoadPreferences returns the stored preferences. Keys never saved keep their value from fallback.
func (r *Repository) LoadPreferences(ctx context.Context, fallback domain.Preferences) (domain.Preferences, error) {
	prefs := fallback.Normalize()
	var rows []struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}
	err := r.db.SelectContext(ctx, &rows, `SELECT key, value FROM settings WHERE key IN (?, ?, ?, ?)`,
		settingLanguage, settingTheme, settingWrapTitles, settingFullWeekdays)
	if err != nil {
		return prefs, fmt.Errorf("load preferences: %w", err)
	}
	for _, row := range rows {
		switch row.Key {
		case settingLanguage:
			prefs.Language = row.Value
		case settingTheme:
			prefs.Theme = domain.Theme(row.Value)
		case settingWrapTitles:
			if v, err := strconv.ParseBool(row.Value); err == nil {
				prefs.WrapTitles = v
			}
		case settingFullWeekdays:
			if v, err := strconv.ParseBool(row.Value); err == nil {
				prefs.FullWeekdays = v
			}
		}
	}
	return prefs.Normalize(), nil
}

// SavePreferences stores every preference.
func (r *Repository) SavePreferences(ctx context.Context, prefs domain.Preferences) error {
	lang, err := domain.ParseLanguage(prefs.Language)
	if err != nil {
		return fmt.Errorf("%w: language %q", app.ErrValidation, prefs.Language)
	}
	theme, err := domain.ParseTheme(string(prefs.Theme))
	if err != nil {
		return fmt.Errorf("%w: theme %q", app.ErrValidation, prefs.Theme)
	}
	return r.setSettings(ctx, map[string]string{
		settingLanguage:     lang,
		settingTheme:        string(theme),
		settingWrapTitles:   strconv.FormatBool(prefs.WrapTitles),
		settingFullWeekdays: strconv.FormatBool(prefs.FullWeekdays),
	})
}
