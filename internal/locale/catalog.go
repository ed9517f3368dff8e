package locale

import (
	"embed"
	"fmt"
	"sync"
	"time"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	toml "github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"
)

//go:embed messages/*.toml
var messageFS embed.FS

// supported lists the bundled languages; the first one is the fallback.
var supported = []language.Tag{language.Russian, language.English}

// Catalog resolves message ids for the active language. It is safe for concurrent use.
type Catalog struct {
	bundle  *i18n.Bundle
	matcher language.Matcher

	mu        sync.RWMutex
	lang      string
	localizer *i18n.Localizer
}

// New loads the bundled message files and activates lang. The returned catalog is usable even
// when err is non-nil; unresolved ids render as the id itself.
func New(lang string) (*Catalog, error) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)
	c := &Catalog{
		bundle:  bundle,
		matcher: language.NewMatcher(supported),
	}

	entries, err := messageFS.ReadDir("messages")
	if err == nil {
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if _, loadErr := bundle.LoadMessageFileFS(messageFS, "messages/"+entry.Name()); loadErr != nil {
				err = fmt.Errorf("load %s: %w", entry.Name(), loadErr)
				break
			}
		}
	}
	c.SetLanguage(lang)
	return c, err
}

// SetLanguage activates the closest bundled match for raw and returns its base tag.
func (c *Catalog) SetLanguage(raw string) string {
	tag := c.match(raw)
	base, _ := tag.Base()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lang = base.String()
	c.localizer = i18n.NewLocalizer(c.bundle, c.lang, language.English.String())
	return c.lang
}

func (c *Catalog) match(raw string) language.Tag {
	parsed, err := language.Parse(raw)
	if err != nil {
		return supported[0]
	}
	_, idx, confidence := c.matcher.Match(parsed)
	if confidence == language.No {
		return supported[0]
	}
	return supported[idx]
}

// Language returns the active base language tag ("en", "ru").
func (c *Catalog) Language() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lang
}

// Text renders id with data. A "Count" entry in data selects the plural form.
func (c *Catalog) Text(id string, data map[string]any) string {
	c.mu.RLock()
	localizer := c.localizer
	c.mu.RUnlock()

	cfg := &i18n.LocalizeConfig{MessageID: id, TemplateData: data}
	if count, ok := data["Count"]; ok {
		cfg.PluralCount = count
	}
	text, err := localizer.Localize(cfg)
	if err != nil || text == "" {
		return id
	}
	return text
}

// Weekday returns the full or short localized name of d.
func (c *Catalog) Weekday(d time.Weekday, full bool) string {
	if full {
		return c.Text(fmt.Sprintf("weekday_%d", int(d)), nil)
	}
	return c.Text(fmt.Sprintf("weekday_short_%d", int(d)), nil)
}

// Month returns the month name as used after a day number.
func (c *Catalog) Month(m time.Month) string {
	return c.Text(fmt.Sprintf("month_%d", int(m)), nil)
}
