// Package transform converts answer documents between the canonical
// multilingual storage shape and the editor-facing translation form. The
// translation form replaces each translated field K by three sibling
// fields: old_K (the full original mapping), original_K (the text at the
// original locale) and translation_K (the text being edited). The naming
// prefixes are a stable convention, not a type distinction.
package transform

import (
	"strings"

	"github.com/goccy/go-json"

	"github.com/wocat/qcat-engine/model"
)

const (
	oldPrefix         = "old_"
	originalPrefix    = "original_"
	translationPrefix = "translation_"
)

// ToSingleLanguage flattens every translated field to the text at locale,
// falling back to originalLocale. Non-translated fields pass through.
func ToSingleLanguage(doc model.Document, locale, originalLocale string) model.Document {
	out := model.Document{}
	for kw, instances := range doc {
		converted := make([]model.Instance, 0, len(instances))
		for _, instance := range instances {
			flat := model.Instance{}
			for key, value := range instance {
				if texts, ok := localeMap(value); ok {
					if text, found := pick(texts, locale, originalLocale); found {
						flat[key] = text
					}
					continue
				}
				flat[key] = value
			}
			converted = append(converted, flat)
		}
		out[kw] = converted
	}
	return out
}

// ToTranslationForm expands every translated field into the three-sibling
// editor shape. A nil originalLocale is expressed by passing the current
// locale twice.
func ToTranslationForm(doc model.Document, currentLocale, originalLocale string) model.Document {
	if originalLocale == "" {
		originalLocale = currentLocale
	}
	out := model.Document{}
	for kw, instances := range doc {
		converted := make([]model.Instance, 0, len(instances))
		for _, instance := range instances {
			form := model.Instance{}
			for key, value := range instance {
				texts, ok := localeMap(value)
				if !ok {
					form[key] = value
					continue
				}
				form[oldPrefix+key] = value
				form[originalPrefix+key] = texts[originalLocale]
				if text, found := pick(texts, currentLocale, originalLocale); found {
					form[translationPrefix+key] = text
				} else {
					form[translationPrefix+key] = ""
				}
			}
			converted = append(converted, form)
		}
		out[kw] = converted
	}
	return out
}

// FromTranslationForm reverses ToTranslationForm for one instance. The
// old_ entries seed the original mappings, then translation_/original_
// entries overwrite the text at their locale.
func FromTranslationForm(instance model.Instance, currentLocale, originalLocale string) model.Instance {
	if originalLocale == "" {
		originalLocale = currentLocale
	}
	out := model.Instance{}

	for key, value := range instance {
		if !strings.HasPrefix(key, oldPrefix) {
			continue
		}
		if texts, ok := parseOldValue(value); ok {
			out[strings.TrimPrefix(key, oldPrefix)] = texts
		}
	}

	// original_ first, then translation_: the current translation wins when
	// both address the same locale.
	for key, value := range instance {
		if strings.HasPrefix(key, originalPrefix) {
			merge(out, strings.TrimPrefix(key, originalPrefix), originalLocale, value)
		}
	}
	for key, value := range instance {
		switch {
		case strings.HasPrefix(key, translationPrefix):
			merge(out, strings.TrimPrefix(key, translationPrefix), currentLocale, value)
		case strings.HasPrefix(key, originalPrefix), strings.HasPrefix(key, oldPrefix):
		default:
			out[key] = value
		}
	}

	return out
}

func merge(out model.Instance, field, locale string, value any) {
	text, ok := value.(string)
	if !ok {
		return
	}
	texts, ok := out[field].(map[string]any)
	if !ok {
		texts = map[string]any{}
		out[field] = texts
	}
	texts[locale] = text
}

// parseOldValue accepts the original mapping either decoded or as the
// serialized string the editor round-trips through hidden form fields.
func parseOldValue(value any) (map[string]any, bool) {
	switch v := value.(type) {
	case map[string]any:
		return copyMap(v), true
	case map[string]string:
		out := make(map[string]any, len(v))
		for locale, text := range v {
			out[locale] = text
		}
		return out, true
	case string:
		if v == "" {
			return map[string]any{}, true
		}
		var parsed map[string]any
		if err := json.Unmarshal([]byte(v), &parsed); err == nil {
			return parsed, true
		}
		// Hidden fields may carry single-quoted mapping literals.
		var requoted map[string]any
		if err := json.Unmarshal([]byte(strings.ReplaceAll(v, "'", `"`)), &requoted); err == nil {
			return requoted, true
		}
	}
	return nil, false
}

func localeMap(value any) (map[string]string, bool) {
	switch texts := value.(type) {
	case map[string]string:
		return texts, true
	case map[string]any:
		out := make(map[string]string, len(texts))
		for locale, text := range texts {
			s, ok := text.(string)
			if !ok {
				return nil, false
			}
			out[locale] = s
		}
		return out, true
	}
	return nil, false
}

func pick(texts map[string]string, locale, fallback string) (string, bool) {
	if text, ok := texts[locale]; ok {
		return text, true
	}
	if text, ok := texts[fallback]; ok {
		return text, true
	}
	return "", false
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
