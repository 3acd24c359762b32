// Package summary derives structured summary documents from a cleaned
// answer document and the configuration's in_summary flags. Extractors are
// looked up by configured name in a registry; renderers only transform
// parsed values and never perform I/O.
package summary

import (
	"strings"

	"github.com/wocat/qcat-engine/configuration"
	"github.com/wocat/qcat-engine/log"
	"github.com/wocat/qcat-engine/model"
)

// Extractor computes the summary value of one question. The returned
// sequence, when lazy, is finite and non-restartable; callers materialize
// before reuse.
type Extractor func(question *configuration.Question, doc model.Document, options map[string]any) any

// Registry maps extractor names to functions.
type Registry map[string]Extractor

// DefaultRegistry returns the built-in extractor set.
func DefaultRegistry() Registry {
	return Registry{
		"get_value":                   getValue,
		"get_map_values":              getMapValues,
		"get_full_range_values":       getFullRangeValues,
		"get_picto_and_nested_values": getPictoAndNestedValues,
		"get_qg_values_with_scale":    getQGValuesWithScale,
		"get_table":                   getTable,
	}
}

// Parser walks the configuration pulling every question flagged for a
// summary type.
type Parser struct {
	Tree       *configuration.Tree
	Extractors Registry
}

// Parse computes the flat field map for summaryType. Duplicate field
// names keep the first computed value; later ones are logged and ignored.
func (p *Parser) Parse(summaryType string, doc model.Document) map[string]any {
	extractors := p.Extractors
	if extractors == nil {
		extractors = DefaultRegistry()
	}

	fields := map[string]any{}
	for _, question := range p.Tree.Questions() {
		options, ok := summaryOptions(question, summaryType)
		if !ok {
			continue
		}
		fieldName, ok := resolveFieldName(question, options)
		if !ok {
			continue
		}

		name, _ := options["function"].(string)
		if name == "" {
			name = "get_value"
		}
		extract, ok := extractors[name]
		if !ok {
			log.Warnf("summary.parse.extractor_missing: %s (field %s)", name, fieldName)
			continue
		}

		if _, exists := fields[fieldName]; exists {
			log.Warnf("summary.parse.duplicate_field: %s (question %s)", fieldName, question.Keyword)
			continue
		}
		fields[fieldName] = extract(question, doc, options)
	}
	return fields
}

// summaryOptions merges the default option bag with the per-type
// overrides, returning false when the question does not contribute to
// summaryType.
func summaryOptions(question *configuration.Question, summaryType string) (map[string]any, bool) {
	if question.InSummary == nil {
		return nil, false
	}
	types, _ := question.InSummary["types"].([]any)
	found := false
	for _, t := range types {
		if s, ok := t.(string); ok && s == summaryType {
			found = true
			break
		}
	}
	if !found {
		return nil, false
	}

	options := map[string]any{}
	if defaults, ok := question.InSummary["default"].(map[string]any); ok {
		for k, v := range defaults {
			options[k] = v
		}
	}
	if overrides, ok := question.InSummary[summaryType].(map[string]any); ok {
		for k, v := range overrides {
			options[k] = v
		}
	}
	return options, true
}

// resolveFieldName handles both plain names and mappings keyed by the
// question's <questiongroup>.<question> address.
func resolveFieldName(question *configuration.Question, options map[string]any) (string, bool) {
	switch name := options["field_name"].(type) {
	case string:
		return name, name != ""
	case map[string]any:
		address := question.Questiongroup().Keyword + "." + question.Keyword
		if resolved, ok := name[address].(string); ok && resolved != "" {
			return resolved, true
		}
	}
	return "", false
}

// Render groups flat fields into named sections: a dotted field name files
// its value under the section before the first dot.
func Render(fields map[string]any) map[string]map[string]any {
	sections := map[string]map[string]any{}
	for name, value := range fields {
		section, rest, found := strings.Cut(name, ".")
		if !found {
			section, rest = "", name
		}
		if sections[section] == nil {
			sections[section] = map[string]any{}
		}
		sections[section][rest] = value
	}
	return sections
}

// Summarize is the package entry point: parse then render.
func Summarize(tree *configuration.Tree, summaryType string, doc model.Document, extractors Registry) map[string]map[string]any {
	parser := &Parser{Tree: tree, Extractors: extractors}
	return Render(parser.Parse(summaryType, doc))
}
