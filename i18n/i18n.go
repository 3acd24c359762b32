package i18n

import (
	"strings"

	"github.com/wocat/qcat-engine/model"
)

// GlobalConfiguration is the configuration code carrying the shared
// fallback texts used by every questionnaire.
const GlobalConfiguration = "wocat"

// Store resolves localized texts out of translation entities.
type Store struct {
	DefaultLocale string
}

func NewStore(defaultLocale string) *Store {
	return &Store{DefaultLocale: defaultLocale}
}

// Translate returns the text stored under (keyword, configurationCode,
// locale), trying in order: configuration x locale, configuration x default
// locale, global x locale, global x default locale. The second return value
// is false when no step yields a non-empty text.
func (s *Store) Translate(tr *model.Translation, keyword, configurationCode, locale string) (string, bool) {
	if tr == nil {
		return "", false
	}
	steps := [][2]string{
		{configurationCode, locale},
		{configurationCode, s.DefaultLocale},
		{GlobalConfiguration, locale},
		{GlobalConfiguration, s.DefaultLocale},
	}
	for _, step := range steps {
		byKeyword, ok := tr.Data[step[0]]
		if !ok {
			continue
		}
		byLocale, ok := byKeyword[keyword]
		if !ok {
			continue
		}
		if text := byLocale[step[1]]; text != "" {
			return Unescape(text), true
		}
	}
	return "", false
}

// Escape doubles percent signs for storage in parametric message catalogs.
func Escape(text string) string {
	return strings.ReplaceAll(text, "%", "%%")
}

// Unescape reverses Escape.
func Unescape(text string) string {
	return strings.ReplaceAll(text, "%%", "%")
}
