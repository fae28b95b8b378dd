package i18n

import (
	"testing"

	gi18n "github.com/nicksnyder/go-i18n/v2/i18n"
)

func TestTranslation(t *testing.T) {
	cases := []struct {
		lang, expected string
	}{
		{"es", "no hay una sesión activa"},
		{"de", "keine aktive Sitzung"},
		{"fr", "aucune séance active"},
		{"pt", "no active session"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.lang, func(t *testing.T) {
			loc, err := NewLocalizer(tc.lang)
			if err != nil {
				t.Fatalf("init failed: %v", err)
			}
			msg, err := loc.Localize(&gi18n.LocalizeConfig{MessageID: "error_no_active_session"})
			if err != nil {
				t.Fatalf("localize failed: %v", err)
			}
			if msg != tc.expected {
				t.Fatalf("unexpected translation (%s): %q", tc.lang, msg)
			}
		})
	}
}

func TestUnknownKeyFallsBackToID(t *testing.T) {
	if got := T("no_such_key"); got != "no_such_key" {
		t.Fatalf("T(no_such_key) = %q", got)
	}
}

func TestLanguagesIncludesCatalogues(t *testing.T) {
	tags := Languages()
	if len(tags) < 4 {
		t.Fatalf("expected at least 4 catalogues, got %v", tags)
	}
}
