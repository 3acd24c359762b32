package summary

import (
	"strconv"

	"github.com/wocat/qcat-engine/configuration"
	"github.com/wocat/qcat-engine/model"
)

// getValue is the default extractor: the question's stored values across
// instances, with choice keys resolved to their localized labels. A single
// instance yields the value itself, several yield a list.
func getValue(question *configuration.Question, doc model.Document, _ map[string]any) any {
	instances := doc[question.Questiongroup().Keyword]
	var values []any
	for _, instance := range instances {
		value, ok := instance[question.Keyword]
		if !ok {
			continue
		}
		values = append(values, resolveLabels(question, value))
	}
	switch len(values) {
	case 0:
		return nil
	case 1:
		return values[0]
	}
	return values
}

func resolveLabels(question *configuration.Question, value any) any {
	if len(question.Choices) == 0 {
		return value
	}
	if list, ok := value.([]any); ok {
		labels := make([]any, 0, len(list))
		for _, element := range list {
			labels = append(labels, choiceOrValue(question, element))
		}
		return labels
	}
	return choiceOrValue(question, value)
}

func choiceOrValue(question *configuration.Question, value any) any {
	if label, ok := question.ChoiceLabel(value); ok {
		return label
	}
	return value
}

// getMapValues pulls the feature coordinates out of a map question's
// GeoJSON value.
func getMapValues(question *configuration.Question, doc model.Document, _ map[string]any) any {
	var coordinates []any
	for _, instance := range doc[question.Questiongroup().Keyword] {
		geometry, ok := instance[question.Keyword].(map[string]any)
		if !ok {
			continue
		}
		features, _ := geometry["features"].([]any)
		for _, item := range features {
			feature, ok := item.(map[string]any)
			if !ok {
				continue
			}
			inner, ok := feature["geometry"].(map[string]any)
			if !ok {
				continue
			}
			if coords, ok := inner["coordinates"]; ok {
				coordinates = append(coordinates, coords)
			}
		}
	}
	if coordinates == nil {
		return nil
	}
	return map[string]any{"coordinates": coordinates}
}

// getFullRangeValues yields one item per choice with a selected marker, so
// renderers can draw the full scale rather than only the picked entry.
func getFullRangeValues(question *configuration.Question, doc model.Document, _ map[string]any) any {
	selected := map[string]bool{}
	for _, instance := range doc[question.Questiongroup().Keyword] {
		value, ok := instance[question.Keyword]
		if !ok {
			continue
		}
		if list, isList := value.([]any); isList {
			for _, element := range list {
				selected[keyString(element)] = true
			}
		} else {
			selected[keyString(value)] = true
		}
	}

	var items []map[string]any
	for _, choice := range question.Choices {
		key := keyString(choice.Key)
		if key == "" {
			continue // measure sentinel
		}
		items = append(items, map[string]any{
			"label":    choice.Label,
			"selected": selected[key],
		})
	}
	return items
}

// getPictoAndNestedValues pairs each selected choice with the values of
// the questions listed in the "nested" option, taken from the same
// instance.
func getPictoAndNestedValues(question *configuration.Question, doc model.Document, options map[string]any) any {
	nested := stringOption(options, "nested")

	var items []map[string]any
	for _, instance := range doc[question.Questiongroup().Keyword] {
		value, ok := instance[question.Keyword]
		if !ok {
			continue
		}
		list, ok := value.([]any)
		if !ok {
			list = []any{value}
		}
		for _, element := range list {
			label, ok := question.ChoiceLabel(element)
			if !ok {
				continue
			}
			item := map[string]any{"text": label}
			var subtexts []any
			for _, keyword := range nested {
				if sub, ok := instance[keyword]; ok {
					subtexts = append(subtexts, sub)
				}
			}
			if len(subtexts) > 0 {
				item["subtext"] = subtexts
			}
			items = append(items, item)
		}
	}
	return items
}

// getQGValuesWithScale renders a measure-style question as scale items:
// the full range with bounds and the selected position, plus an optional
// sibling comment.
func getQGValuesWithScale(question *configuration.Question, doc model.Document, options map[string]any) any {
	commentKey, _ := options["comment_key"].(string)

	min, max := scaleBounds(question)
	var items []map[string]any
	for _, instance := range doc[question.Questiongroup().Keyword] {
		value, ok := instance[question.Keyword]
		if !ok {
			continue
		}
		item := map[string]any{
			"label":    question.Label,
			"range":    labelsOf(question),
			"selected": choiceOrValue(question, value),
			"min":      min,
			"max":      max,
		}
		if commentKey != "" {
			if comment, ok := instance[commentKey]; ok {
				item["comment"] = comment
			}
		}
		items = append(items, item)
	}
	return items
}

func scaleBounds(question *configuration.Question) (int, int) {
	count := 0
	for _, choice := range question.Choices {
		if keyString(choice.Key) != "" {
			count++
		}
	}
	if count == 0 {
		return 0, 0
	}
	return 1, count
}

func labelsOf(question *configuration.Question) []any {
	var labels []any
	for _, choice := range question.Choices {
		if keyString(choice.Key) == "" {
			continue
		}
		labels = append(labels, choice.Label)
	}
	return labels
}

// getTable lays the group's instances out as rows under the configured
// table grouping: one head per grouped column, one row per instance.
func getTable(question *configuration.Question, doc model.Document, _ map[string]any) any {
	group := question.Questiongroup()
	if group.TableGrouping == nil {
		return nil
	}

	var head []any
	var columns []string
	for _, grouped := range group.TableGrouping {
		for _, keyword := range grouped {
			columns = append(columns, keyword)
			if q, ok := group.Question(keyword); ok {
				head = append(head, q.Label)
			} else {
				head = append(head, keyword)
			}
		}
	}

	var rows []any
	for _, instance := range doc[group.Keyword] {
		var row []any
		for _, keyword := range columns {
			cell := instance[keyword]
			if q, ok := group.Question(keyword); ok {
				cell = resolveLabels(q, cell)
			}
			row = append(row, cell)
		}
		rows = append(rows, row)
	}

	return map[string]any{"head": head, "rows": rows}
}

func stringOption(options map[string]any, name string) []string {
	switch v := options[name].(type) {
	case []string:
		return v
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func keyString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
	}
	return ""
}
