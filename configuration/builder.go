package configuration

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/wocat/qcat-engine/condition"
	"github.com/wocat/qcat-engine/i18n"
	"github.com/wocat/qcat-engine/model"
	"github.com/wocat/qcat-engine/registry"
)

// Source yields the active configuration row for a code. A miss is
// (nil, nil); the builder turns it into NoConfigurationFoundError.
type Source interface {
	ActiveConfiguration(code string) (*model.Configuration, error)
}

// Builder resolves a configuration code into a localized Tree.
type Builder struct {
	Registry     *registry.Registry
	Source       Source
	Translations *i18n.Store

	// Templates, when non-nil, is the set of registered rendering
	// templates nodes may reference. nil disables the check.
	Templates map[string]struct{}
}

// Build loads the active configuration for code, flattens its base_code
// chain, validates every node and instantiates the localized tree.
func (b *Builder) Build(code, locale string) (*Tree, error) {
	cfg, raw, err := b.resolve(code, map[string]bool{})
	if err != nil {
		return nil, err
	}

	tree := &Tree{
		Code:           cfg.Code,
		Edition:        cfg.Edition,
		BaseCode:       cfg.BaseCode,
		Locale:         locale,
		questiongroups: map[string]*Questiongroup{},
	}

	for _, rs := range raw.Sections {
		section, err := b.buildSection(tree, rs, locale)
		if err != nil {
			return nil, err
		}
		tree.Sections = append(tree.Sections, section)
	}

	if err := b.validateTree(tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// resolve parses the configuration for code and recursively merges it over
// its base, flattening arbitrary-depth base_code chains.
func (b *Builder) resolve(code string, visited map[string]bool) (*model.Configuration, *rawRoot, error) {
	if visited[code] {
		return nil, nil, &InvalidConfigurationError{Reason: fmt.Sprintf("base_code cycle through %q", code)}
	}
	visited[code] = true

	cfg, err := b.Source.ActiveConfiguration(code)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "load configuration %q", code)
	}
	if cfg == nil {
		return nil, nil, &NoConfigurationFoundError{Code: code}
	}

	raw, err := parseRaw(cfg.Data)
	if err != nil {
		return nil, nil, err
	}

	if cfg.BaseCode != "" {
		_, baseRaw, err := b.resolve(cfg.BaseCode, visited)
		if err != nil {
			return nil, nil, err
		}
		raw = mergeRoot(baseRaw, raw)
	}
	return cfg, raw, nil
}

func (b *Builder) buildSection(tree *Tree, rs *rawSection, locale string) (*Section, error) {
	section := &Section{
		Keyword:     rs.Keyword,
		Label:       b.categoryLabel(tree.Code, rs.Keyword, locale),
		ViewOptions: rs.ViewOptions,
	}
	for _, rc := range rs.Categories {
		entity, err := b.Registry.GetCategory(rc.Keyword)
		if err != nil {
			return nil, &NotInDatabaseError{Kind: "category", Keyword: rc.Keyword}
		}
		category := &Category{
			Keyword:     rc.Keyword,
			Label:       b.translationLabel(entity.Translation, tree.Code, rc.Keyword, locale),
			Numbering:   strconv.Itoa(tree.categories + 1),
			ViewOptions: rc.ViewOptions,
			FormOptions: rc.FormOptions,
		}
		for j, rsc := range rc.Subcategories {
			subcategory, err := b.buildSubcategory(tree, rsc, category.Numbering, j, locale)
			if err != nil {
				return nil, err
			}
			category.Subcategories = append(category.Subcategories, subcategory)
		}
		section.Categories = append(section.Categories, category)
		tree.categories++
	}
	return section, nil
}

func (b *Builder) buildSubcategory(tree *Tree, rsc *rawSubcategory, categoryNumbering string, index int, locale string) (*Subcategory, error) {
	if err := b.checkTemplate(rsc.Template, "subcategory "+rsc.Keyword); err != nil {
		return nil, err
	}
	subcategory := &Subcategory{
		Keyword:     rsc.Keyword,
		Label:       b.categoryLabel(tree.Code, rsc.Keyword, locale),
		Numbering:   categoryNumbering + "." + strconv.Itoa(index+1),
		ViewOptions: rsc.ViewOptions,
		FormOptions: rsc.FormOptions,
	}
	for _, rg := range rsc.Questiongroups {
		group, err := b.buildQuestiongroup(tree, rg, subcategory.Numbering, locale)
		if err != nil {
			return nil, err
		}
		subcategory.Questiongroups = append(subcategory.Questiongroups, group)
	}
	return subcategory, nil
}

func (b *Builder) buildQuestiongroup(tree *Tree, rg *rawQuestiongroup, numbering, locale string) (*Questiongroup, error) {
	entity, err := b.Registry.GetQuestiongroup(rg.Keyword)
	if err != nil {
		return nil, &NotInDatabaseError{Kind: "questiongroup", Keyword: rg.Keyword}
	}

	minNum, maxNum := 1, 1
	if rg.MinNum != nil {
		minNum = *rg.MinNum
	}
	if rg.MaxNum != nil {
		maxNum = *rg.MaxNum
	} else if minNum > 1 {
		maxNum = minNum
	}
	if minNum < 1 || maxNum < 1 || minNum > maxNum {
		return nil, &InvalidConfigurationError{
			Reason: fmt.Sprintf("questiongroup %q: min_num %d / max_num %d out of range", rg.Keyword, minNum, maxNum),
		}
	}

	group := &Questiongroup{
		Keyword:       rg.Keyword,
		Label:         b.translationLabel(entity.Translation, tree.Code, rg.Keyword, locale),
		MinNum:        minNum,
		MaxNum:        maxNum,
		Condition:     rg.QuestiongroupCondition,
		Inherited:     rg.Inherited,
		TableGrouping: rg.TableGrouping,
		FormOptions:   rg.FormOptions,
		ViewOptions:   rg.ViewOptions,
	}

	for _, rq := range rg.Questions {
		question, err := b.buildQuestion(tree, rq, numbering, locale)
		if err != nil {
			return nil, err
		}
		question.group = group
		group.Questions = append(group.Questions, question)
	}

	// Question conditions resolve within the owning group only.
	for _, q := range group.Questions {
		for _, qc := range q.Conditions {
			if _, ok := group.Question(qc.Target); !ok {
				return nil, &InvalidConditionError{
					Condition: fmt.Sprintf("%s|%s|%s", qc.ChoiceKey, qc.Predicate, qc.Target),
					Reason:    fmt.Sprintf("target %q is not part of questiongroup %q", qc.Target, group.Keyword),
				}
			}
			if !q.HasChoice(qc.ChoiceKey) {
				return nil, &InvalidConditionError{
					Condition: fmt.Sprintf("%s|%s|%s", qc.ChoiceKey, qc.Predicate, qc.Target),
					Reason:    fmt.Sprintf("%q is not a choice of question %q", qc.ChoiceKey, q.Keyword),
				}
			}
		}
	}

	tree.questiongroups[group.Keyword] = group
	return group, nil
}

func (b *Builder) buildQuestion(tree *Tree, rq *rawQuestion, numbering, locale string) (*Question, error) {
	if err := b.checkTemplate(rq.Template, "question "+rq.Keyword); err != nil {
		return nil, err
	}

	key, err := b.Registry.GetKey(rq.Keyword)
	if err != nil {
		return nil, &NotInDatabaseError{Kind: "key", Keyword: rq.Keyword}
	}
	fieldType := key.FieldType()
	if fieldType == "" {
		return nil, &InvalidConfigurationError{Reason: fmt.Sprintf("key %q declares no type", rq.Keyword)}
	}

	question := &Question{
		Keyword:                 rq.Keyword,
		Label:                   b.translationLabel(key.Translation, tree.Code, rq.Keyword, locale),
		FieldType:               fieldType,
		Choices:                 b.buildChoices(tree.Code, key, fieldType, locale),
		Required:                rq.Required,
		MaxLength:               rq.MaxLength,
		InSummary:               rq.InSummary,
		FormOptions:             rq.FormOptions,
		ViewOptions:             rq.ViewOptions,
		AdditionalTranslations:  rq.AdditionalTranslations,
		Numbering:               numbering,
	}

	for _, raw := range rq.Conditions {
		parts := strings.SplitN(raw, "|", 3)
		if len(parts) != 3 {
			return nil, &InvalidConditionError{Condition: raw, Reason: "expected value|predicate|target"}
		}
		pred, err := condition.Parse(parts[1])
		if err != nil {
			return nil, &InvalidConditionError{Condition: raw, Reason: err.Error()}
		}
		question.Conditions = append(question.Conditions, QuestionCondition{
			ChoiceKey: parts[0],
			Predicate: pred,
			Target:    parts[2],
		})
	}

	for _, raw := range rq.QuestiongroupConditions {
		idx := strings.LastIndex(raw, "|")
		if idx < 0 {
			return nil, &InvalidQuestiongroupConditionError{Condition: raw, Reason: "expected expr|name"}
		}
		expr, name := raw[:idx], raw[idx+1:]
		if name == "" {
			return nil, &InvalidQuestiongroupConditionError{Condition: raw, Reason: "empty condition name"}
		}
		pred, err := condition.Parse(expr)
		if err != nil {
			return nil, &InvalidQuestiongroupConditionError{Condition: raw, Reason: err.Error()}
		}
		question.QuestiongroupConditions = append(question.QuestiongroupConditions, QuestiongroupCondition{
			Predicate: pred,
			Name:      name,
		})
	}

	return question, nil
}

// buildChoices populates the ordered choice list for a key. bool and
// measure types use fixed sentinels instead of registry values.
func (b *Builder) buildChoices(code string, key *model.Key, fieldType model.FieldType, locale string) []Choice {
	if fieldType == model.TypeBool {
		return []Choice{{Key: true, Label: "Yes"}, {Key: false, Label: "No"}}
	}

	values := make([]*model.Value, len(key.Values))
	copy(values, key.Values)
	sort.SliceStable(values, func(i, j int) bool {
		oi, oj := values[i].OrderValue, values[j].OrderValue
		if oi == nil || oj == nil {
			return oj == nil && oi != nil
		}
		return *oi < *oj
	})

	if fieldType == model.TypeMeasure {
		choices := []Choice{{Key: "", Label: "-"}}
		for i, value := range values {
			choices = append(choices, Choice{
				Key:   i + 1,
				Label: b.translationLabel(value.Translation, code, value.Keyword, locale),
			})
		}
		return choices
	}

	choices := make([]Choice, 0, len(values))
	for _, value := range values {
		choices = append(choices, Choice{
			Key:   value.Keyword,
			Label: b.translationLabel(value.Translation, code, value.Keyword, locale),
		})
	}
	return choices
}

// validateTree runs the whole-tree checks that need every node in place.
func (b *Builder) validateTree(tree *Tree) error {
	declared := tree.QuestiongroupConditions()
	for _, g := range tree.Questiongroups() {
		if g.Condition == "" {
			continue
		}
		if _, ok := declared[g.Condition]; !ok {
			return &InvalidQuestiongroupConditionError{
				Condition: g.Condition,
				Reason:    fmt.Sprintf("no question declares condition %q referenced by questiongroup %q", g.Condition, g.Keyword),
			}
		}
	}
	return b.checkConditionalCycles(tree)
}

// checkConditionalCycles rejects select_conditional_questiongroup questions
// whose source groups cross-reference each other: cleaning recomputes their
// choices in document order, which is ill-defined under a cycle.
func (b *Builder) checkConditionalCycles(tree *Tree) error {
	edges := map[string][]string{}
	for _, g := range tree.Questiongroups() {
		for _, q := range g.Questions {
			if q.FieldType != model.TypeSelectCondQG {
				continue
			}
			for _, src := range stringList(q.FormOptions["questiongroups"]) {
				edges[g.Keyword] = append(edges[g.Keyword], src)
			}
		}
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	colors := map[string]int{}
	var visit func(node string) bool
	visit = func(node string) bool {
		colors[node] = gray
		for _, next := range edges[node] {
			switch colors[next] {
			case gray:
				return false
			case white:
				if !visit(next) {
					return false
				}
			}
		}
		colors[node] = black
		return true
	}
	for node := range edges {
		if colors[node] == white && !visit(node) {
			return &InvalidConfigurationError{
				Reason: fmt.Sprintf("cyclic select_conditional_questiongroup reference through %q", node),
			}
		}
	}
	return nil
}

func (b *Builder) checkTemplate(template, node string) error {
	if template == "" || b.Templates == nil {
		return nil
	}
	if _, ok := b.Templates[template]; !ok {
		return &TemplateNotFoundError{Template: template, Node: node}
	}
	return nil
}

func (b *Builder) translationLabel(tr *model.Translation, code, keyword, locale string) string {
	if label, ok := b.Translations.Translate(tr, "label", code, locale); ok {
		return label
	}
	return keyword
}

// categoryLabel resolves a label for nodes that may, but need not, have a
// category entity behind their keyword (sections, subcategories).
func (b *Builder) categoryLabel(code, keyword, locale string) string {
	entity, err := b.Registry.GetCategory(keyword)
	if err != nil {
		return keyword
	}
	return b.translationLabel(entity.Translation, code, keyword, locale)
}

// stringList coerces a JSON-decoded option into a string slice.
func stringList(value any) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// stringKey normalizes a choice key to the string form used by stored
// documents and configuration conditions.
func stringKey(key any) string {
	switch k := key.(type) {
	case string:
		return k
	case bool:
		return strconv.FormatBool(k)
	case int:
		return strconv.Itoa(k)
	case int64:
		return strconv.FormatInt(k, 10)
	case float64:
		if k == float64(int64(k)) {
			return strconv.FormatInt(int64(k), 10)
		}
		return strconv.FormatFloat(k, 'f', -1, 64)
	case nil:
		return ""
	}
	return fmt.Sprintf("%v", key)
}
