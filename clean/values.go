package clean

import (
	"fmt"
	"unicode/utf8"

	"github.com/goccy/go-json"

	"github.com/wocat/qcat-engine/configuration"
	"github.com/wocat/qcat-engine/model"
)

// cleanValue type-checks and coerces one field value. A nil result with
// errors means the field is dropped; a nil result without errors means the
// value carried nothing worth storing.
func cleanValue(question *configuration.Question, value any, opts Options) (any, []string) {
	switch {
	case question.FieldType.Translated():
		return cleanTranslatedText(question, value, opts)
	case question.FieldType.SingleChoice():
		return cleanSingleChoice(question, value)
	case question.FieldType.MultiChoice():
		return cleanMultiChoice(question, value)
	}

	switch question.FieldType {
	case model.TypeInt, model.TypeSelectModel, model.TypeUserID, model.TypeLinkID:
		n, ok := toInt(value)
		if !ok {
			return nil, []string{fmt.Sprintf(
				"Value %v of question %q is not an integer.", value, question.Keyword)}
		}
		return n, nil

	case model.TypeFloat:
		f, ok := toFloat(value)
		if !ok {
			return nil, []string{fmt.Sprintf(
				"Value %v of question %q is not a number.", value, question.Keyword)}
		}
		return f, nil

	case model.TypeMap:
		return cleanGeometry(question, value)

	case model.TypeSelectCondQG:
		// Validated against the source questiongroups in the second pass.
		if list, ok := value.([]any); ok {
			return list, nil
		}
		if s, ok := value.(string); ok {
			return []any{s}, nil
		}
		return nil, []string{fmt.Sprintf(
			"Value %v of question %q is not a list.", value, question.Keyword)}

	case model.TypeImage, model.TypeFile, model.TypeDate, model.TypeLinkVideo, model.TypeHidden:
		s, ok := value.(string)
		if !ok {
			return nil, []string{fmt.Sprintf(
				"Value %v of question %q is not a string.", value, question.Keyword)}
		}
		return s, nil

	case model.TypeDisplayOnly, model.TypeTodo:
		// Never persisted.
		return nil, nil
	}

	// Unhandled types pass through unchanged.
	return value, nil
}

func cleanTranslatedText(question *configuration.Question, value any, opts Options) (any, []string) {
	texts, ok := localeMap(value)
	if !ok {
		return nil, []string{fmt.Sprintf(
			"Value %v of question %q is not a locale mapping.", value, question.Keyword)}
	}

	var errs []string
	out := map[string]any{}
	for locale, text := range texts {
		if text == "" {
			continue
		}
		if !opts.NoLimitCheck && question.MaxLength > 0 && utf8.RuneCountInString(text) > question.MaxLength {
			errs = append(errs, fmt.Sprintf(
				"Value for %q in section %s exceeds the maximum length of %d.",
				question.Label, question.Numbering, question.MaxLength))
			continue
		}
		out[locale] = text
	}
	if len(out) == 0 {
		return nil, errs
	}
	return out, errs
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

func cleanSingleChoice(question *configuration.Question, value any) (any, []string) {
	if question.FieldType == model.TypeMeasure {
		n, ok := toInt(value)
		if !ok || !question.HasChoice(n) {
			return nil, []string{invalidChoice(question, value)}
		}
		return n, nil
	}

	if len(question.Choices) > 0 && !question.HasChoice(value) {
		return nil, []string{invalidChoice(question, value)}
	}
	return value, nil
}

func cleanMultiChoice(question *configuration.Question, value any) (any, []string) {
	list, ok := value.([]any)
	if !ok {
		return nil, []string{fmt.Sprintf(
			"Value %v of question %q is not a list.", value, question.Keyword)}
	}

	out := make([]any, 0, len(list))
	for _, element := range list {
		if question.FieldType == model.TypeCbBool {
			n, ok := toInt(element)
			if !ok {
				return nil, []string{invalidChoice(question, list)}
			}
			element = n
		} else if len(question.Choices) > 0 && !question.HasChoice(element) {
			// One invalid member invalidates the whole field.
			return nil, []string{invalidChoice(question, list)}
		}
		out = append(out, element)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func invalidChoice(question *configuration.Question, value any) string {
	return fmt.Sprintf("Value %v is not a valid choice for question %q.", value, question.Keyword)
}

// cleanGeometry shape-checks a GeoJSON feature collection: the collection
// needs a type and every feature's geometry needs type and coordinates.
func cleanGeometry(question *configuration.Question, value any) (any, []string) {
	geometry, ok := value.(map[string]any)
	if !ok {
		if s, isString := value.(string); isString {
			var parsed map[string]any
			if err := json.Unmarshal([]byte(s), &parsed); err != nil {
				return nil, []string{fmt.Sprintf(
					"Value of question %q is not valid GeoJSON: %s.", question.Keyword, err)}
			}
			geometry = parsed
		} else {
			return nil, []string{fmt.Sprintf(
				"Value of question %q is not valid GeoJSON.", question.Keyword)}
		}
	}

	if _, ok := geometry["type"].(string); !ok {
		return nil, []string{fmt.Sprintf(
			"GeoJSON of question %q is missing its type.", question.Keyword)}
	}
	features, _ := geometry["features"].([]any)
	for _, item := range features {
		feature, ok := item.(map[string]any)
		if !ok {
			return nil, []string{fmt.Sprintf(
				"GeoJSON of question %q contains a malformed feature.", question.Keyword)}
		}
		inner, ok := feature["geometry"].(map[string]any)
		if !ok {
			return nil, []string{fmt.Sprintf(
				"GeoJSON of question %q contains a feature without geometry.", question.Keyword)}
		}
		if _, ok := inner["type"].(string); !ok {
			return nil, []string{fmt.Sprintf(
				"GeoJSON of question %q contains a geometry without type.", question.Keyword)}
		}
		if _, ok := inner["coordinates"]; !ok {
			return nil, []string{fmt.Sprintf(
				"GeoJSON of question %q contains a geometry without coordinates.", question.Keyword)}
		}
	}
	return geometry, nil
}

// containsChoice reports whether a stored value holds the given choice key,
// for both scalar and list values.
func containsChoice(value any, choiceKey string) bool {
	if list, ok := value.([]any); ok {
		for _, element := range list {
			if keyString(element) == choiceKey {
				return true
			}
		}
		return false
	}
	return keyString(value) == choiceKey
}

func keyString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return fmt.Sprintf("%t", v)
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%v", v)
	case int:
		return fmt.Sprintf("%d", v)
	}
	return fmt.Sprintf("%v", value)
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	case map[string]string:
		return len(v) == 0
	}
	// Booleans and numbers are never empty.
	return false
}

func toInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v == float64(int64(v)) {
			return int(v), true
		}
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n, true
		}
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n), true
		}
	}
	return 0, false
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case string:
		var f float64
		if _, err := fmt.Sscanf(v, "%g", &f); err == nil {
			return f, true
		}
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f, true
		}
	}
	return 0, false
}
