// Package i18n loads haven's message catalogues and exposes the default
// localizer used for user-facing notifications and error strings.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	gi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

var (
	mu        sync.RWMutex
	bundle    *gi18n.Bundle
	localizer *gi18n.Localizer
	loadOnce  sync.Once
	loadErr   error
)

func loadBundle() (*gi18n.Bundle, error) {
	loadOnce.Do(func() {
		b := gi18n.NewBundle(language.English)
		b.RegisterUnmarshalFunc("json", json.Unmarshal)
		entries, err := localeFS.ReadDir("locales")
		if err != nil {
			loadErr = err
			return
		}
		for _, entry := range entries {
			if _, err := b.LoadMessageFileFS(localeFS, "locales/"+entry.Name()); err != nil {
				loadErr = fmt.Errorf("load locale %s: %w", entry.Name(), err)
				return
			}
		}
		bundle = b
	})
	return bundle, loadErr
}

// Init builds a localizer for lang (falling back to English) and makes it
// the package default used by T.
func Init(lang string) (*gi18n.Localizer, error) {
	loc, err := NewLocalizer(lang)
	if err != nil {
		return nil, err
	}
	mu.Lock()
	localizer = loc
	mu.Unlock()
	return loc, nil
}

// NewLocalizer builds a localizer without touching the package default.
func NewLocalizer(lang string) (*gi18n.Localizer, error) {
	b, err := loadBundle()
	if err != nil {
		return nil, err
	}
	return gi18n.NewLocalizer(b, lang, language.English.String()), nil
}

// Languages lists the catalogues compiled into the binary.
func Languages() []language.Tag {
	b, err := loadBundle()
	if err != nil {
		return nil
	}
	return b.LanguageTags()
}

func defaultLocalizer() *gi18n.Localizer {
	mu.RLock()
	loc := localizer
	mu.RUnlock()
	if loc != nil {
		return loc
	}
	loc, err := Init("en")
	if err != nil {
		return nil
	}
	return loc
}

// T returns the message for id in the default language. Unknown ids come
// back unchanged so a missing key never hides the underlying error.
func T(id string) string {
	return Localize(defaultLocalizer(), id, nil)
}

// Localize resolves id with loc and optional template data.
func Localize(loc *gi18n.Localizer, id string, data map[string]any) string {
	if loc == nil {
		return id
	}
	msg, err := loc.Localize(&gi18n.LocalizeConfig{MessageID: id, TemplateData: data})
	if err != nil || msg == "" {
		return id
	}
	return msg
}
