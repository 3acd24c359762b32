package configuration

import (
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/hashicorp/go-multierror"
)

// Raw configuration nodes mirror the source JSON one to one. They are
// merged across the base_code chain before instantiation.

type rawRoot struct {
	Sections []*rawSection `json:"sections"`
}

type rawSection struct {
	Keyword     string         `json:"keyword"`
	ViewOptions map[string]any `json:"view_options"`
	Categories  []*rawCategory `json:"categories"`
}

type rawCategory struct {
	Keyword       string            `json:"keyword"`
	ViewOptions   map[string]any    `json:"view_options"`
	FormOptions   map[string]any    `json:"form_options"`
	Subcategories []*rawSubcategory `json:"subcategories"`
}

type rawSubcategory struct {
	Keyword        string              `json:"keyword"`
	Template       string              `json:"template"`
	ViewOptions    map[string]any      `json:"view_options"`
	FormOptions    map[string]any      `json:"form_options"`
	Questiongroups []*rawQuestiongroup `json:"questiongroups"`
}

type rawQuestiongroup struct {
	Keyword                string         `json:"keyword"`
	MinNum                 *int           `json:"min_num"`
	MaxNum                 *int           `json:"max_num"`
	QuestiongroupCondition string         `json:"questiongroup_condition"`
	Inherited              bool           `json:"inherited_configuration"`
	TableGrouping          [][]string     `json:"table_grouping"`
	ViewOptions            map[string]any `json:"view_options"`
	FormOptions            map[string]any `json:"form_options"`
	Questions              []*rawQuestion `json:"questions"`
}

type rawQuestion struct {
	Keyword                 string         `json:"keyword"`
	Required                bool           `json:"required"`
	MaxLength               int            `json:"max_length"`
	Template                string         `json:"template"`
	Conditions              []string       `json:"conditions"`
	QuestiongroupConditions []string       `json:"questiongroup_conditions"`
	InSummary               map[string]any `json:"in_summary"`
	ViewOptions             map[string]any `json:"view_options"`
	FormOptions             map[string]any `json:"form_options"`
	AdditionalTranslations  map[string]any `json:"additional_translations"`
}

// Declared option sets per node type. Anything else in the source JSON is
// fatal (InvalidOptionError).
var (
	rootOptions          = optionSet("sections")
	sectionOptions       = optionSet("keyword", "view_options", "categories")
	categoryOptions      = optionSet("keyword", "view_options", "form_options", "subcategories")
	subcategoryOptions   = optionSet("keyword", "template", "view_options", "form_options", "questiongroups")
	questiongroupOptions = optionSet("keyword", "min_num", "max_num", "questiongroup_condition",
		"inherited_configuration", "table_grouping", "view_options", "form_options", "questions")
	questionOptions = optionSet("keyword", "required", "max_length", "template", "conditions",
		"questiongroup_conditions", "in_summary", "view_options", "form_options", "additional_translations")
)

func optionSet(names ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

// parseRaw decodes configuration data and validates every node's option bag.
func parseRaw(data []byte) (*rawRoot, error) {
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, &InvalidConfigurationError{Reason: err.Error()}
	}

	var result *multierror.Error
	checkOptions(generic, rootOptions, "configuration", &result)

	root := &rawRoot{}
	if err := json.Unmarshal(data, root); err != nil {
		return nil, &InvalidConfigurationError{Reason: err.Error()}
	}

	for i, section := range root.Sections {
		node := fmt.Sprintf("section %s", nodeName(section.Keyword, i))
		checkNodeOptions(generic["sections"], i, sectionOptions, node, &result)

		sectionRaw := childRaw(generic["sections"], i)
		for j, category := range section.Categories {
			catNode := fmt.Sprintf("category %s", nodeName(category.Keyword, j))
			checkNodeOptions(sectionRaw["categories"], j, categoryOptions, catNode, &result)

			categoryRaw := childRaw(sectionRaw["categories"], j)
			for k, subcategory := range category.Subcategories {
				subNode := fmt.Sprintf("subcategory %s", nodeName(subcategory.Keyword, k))
				checkNodeOptions(categoryRaw["subcategories"], k, subcategoryOptions, subNode, &result)

				subcategoryRaw := childRaw(categoryRaw["subcategories"], k)
				for l, qg := range subcategory.Questiongroups {
					qgNode := fmt.Sprintf("questiongroup %s", nodeName(qg.Keyword, l))
					checkNodeOptions(subcategoryRaw["questiongroups"], l, questiongroupOptions, qgNode, &result)

					qgRaw := childRaw(subcategoryRaw["questiongroups"], l)
					for m, q := range qg.Questions {
						qNode := fmt.Sprintf("question %s", nodeName(q.Keyword, m))
						checkNodeOptions(qgRaw["questions"], m, questionOptions, qNode, &result)
					}
				}
			}
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return root, nil
}

func nodeName(keyword string, index int) string {
	if keyword != "" {
		return keyword
	}
	return "#" + strconv.Itoa(index)
}

// childRaw extracts the raw object at index from a JSON array message.
func childRaw(list json.RawMessage, index int) map[string]json.RawMessage {
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(list, &items); err != nil || index >= len(items) {
		return nil
	}
	return items[index]
}

func checkNodeOptions(list json.RawMessage, index int, allowed map[string]struct{}, node string, result **multierror.Error) {
	checkOptions(childRaw(list, index), allowed, node, result)
}

func checkOptions(raw map[string]json.RawMessage, allowed map[string]struct{}, node string, result **multierror.Error) {
	for option := range raw {
		if _, ok := allowed[option]; !ok {
			*result = multierror.Append(*result, &InvalidOptionError{Option: option, Node: node})
		}
	}
}

// mergeRoot merges a specific configuration over its flattened base.
// Containers merge children by keyword, with novel specific children
// appended in source order; identically-keyed questions are replaced
// wholesale by the specific node.
func mergeRoot(base, specific *rawRoot) *rawRoot {
	return &rawRoot{Sections: mergeSections(base.Sections, specific.Sections)}
}

func mergeSections(base, specific []*rawSection) []*rawSection {
	merged, novel := splitByKeyword(base, specific, func(s *rawSection) string { return s.Keyword })
	out := make([]*rawSection, 0, len(base)+len(novel))
	for _, b := range base {
		s, ok := merged[b.Keyword]
		if !ok {
			out = append(out, b)
			continue
		}
		out = append(out, &rawSection{
			Keyword:     b.Keyword,
			ViewOptions: pickMap(s.ViewOptions, b.ViewOptions),
			Categories:  mergeCategories(b.Categories, s.Categories),
		})
	}
	return append(out, novel...)
}

func mergeCategories(base, specific []*rawCategory) []*rawCategory {
	merged, novel := splitByKeyword(base, specific, func(c *rawCategory) string { return c.Keyword })
	out := make([]*rawCategory, 0, len(base)+len(novel))
	for _, b := range base {
		s, ok := merged[b.Keyword]
		if !ok {
			out = append(out, b)
			continue
		}
		out = append(out, &rawCategory{
			Keyword:       b.Keyword,
			ViewOptions:   pickMap(s.ViewOptions, b.ViewOptions),
			FormOptions:   pickMap(s.FormOptions, b.FormOptions),
			Subcategories: mergeSubcategories(b.Subcategories, s.Subcategories),
		})
	}
	return append(out, novel...)
}

func mergeSubcategories(base, specific []*rawSubcategory) []*rawSubcategory {
	merged, novel := splitByKeyword(base, specific, func(s *rawSubcategory) string { return s.Keyword })
	out := make([]*rawSubcategory, 0, len(base)+len(novel))
	for _, b := range base {
		s, ok := merged[b.Keyword]
		if !ok {
			out = append(out, b)
			continue
		}
		out = append(out, &rawSubcategory{
			Keyword:        b.Keyword,
			Template:       pickString(s.Template, b.Template),
			ViewOptions:    pickMap(s.ViewOptions, b.ViewOptions),
			FormOptions:    pickMap(s.FormOptions, b.FormOptions),
			Questiongroups: mergeQuestiongroups(b.Questiongroups, s.Questiongroups),
		})
	}
	return append(out, novel...)
}

func mergeQuestiongroups(base, specific []*rawQuestiongroup) []*rawQuestiongroup {
	merged, novel := splitByKeyword(base, specific, func(g *rawQuestiongroup) string { return g.Keyword })
	out := make([]*rawQuestiongroup, 0, len(base)+len(novel))
	for _, b := range base {
		s, ok := merged[b.Keyword]
		if !ok {
			out = append(out, b)
			continue
		}
		out = append(out, &rawQuestiongroup{
			Keyword:                b.Keyword,
			MinNum:                 pickInt(s.MinNum, b.MinNum),
			MaxNum:                 pickInt(s.MaxNum, b.MaxNum),
			QuestiongroupCondition: pickString(s.QuestiongroupCondition, b.QuestiongroupCondition),
			Inherited:              s.Inherited || b.Inherited,
			TableGrouping:          pickGrouping(s.TableGrouping, b.TableGrouping),
			ViewOptions:            pickMap(s.ViewOptions, b.ViewOptions),
			FormOptions:            pickMap(s.FormOptions, b.FormOptions),
			Questions:              mergeQuestions(b.Questions, s.Questions),
		})
	}
	return append(out, novel...)
}

// mergeQuestions is the leaf rule: a specific question completely replaces
// the base question with the same keyword.
func mergeQuestions(base, specific []*rawQuestion) []*rawQuestion {
	merged, novel := splitByKeyword(base, specific, func(q *rawQuestion) string { return q.Keyword })
	out := make([]*rawQuestion, 0, len(base)+len(novel))
	for _, b := range base {
		if s, ok := merged[b.Keyword]; ok {
			out = append(out, s)
		} else {
			out = append(out, b)
		}
	}
	return append(out, novel...)
}

// splitByKeyword indexes specific nodes by keyword and returns the ones not
// present in base, preserving source order.
func splitByKeyword[T any](base, specific []T, keyword func(T) string) (map[string]T, []T) {
	baseKeys := map[string]struct{}{}
	for _, b := range base {
		baseKeys[keyword(b)] = struct{}{}
	}
	merged := map[string]T{}
	var novel []T
	for _, s := range specific {
		if _, ok := baseKeys[keyword(s)]; ok {
			merged[keyword(s)] = s
		} else {
			novel = append(novel, s)
		}
	}
	return merged, novel
}

func pickMap(specific, base map[string]any) map[string]any {
	if specific != nil {
		return specific
	}
	return base
}

func pickString(specific, base string) string {
	if specific != "" {
		return specific
	}
	return base
}

func pickInt(specific, base *int) *int {
	if specific != nil {
		return specific
	}
	return base
}

func pickGrouping(specific, base [][]string) [][]string {
	if specific != nil {
		return specific
	}
	return base
}
