// Package clean normalizes raw answer documents against a built
// configuration tree. Content problems never abort the run: they accumulate
// as messages and the returned document contains only the parts that
// passed. Questiongroups are processed in configuration traversal order,
// then unknown groups in keyword order, so identical inputs always produce
// identical outputs including error ordering.
package clean

import (
	"fmt"
	"sort"

	"github.com/wocat/qcat-engine/configuration"
	"github.com/wocat/qcat-engine/model"
)

// Options tweak validation behaviour.
type Options struct {
	// NoLimitCheck disables max_length enforcement on translated text.
	NoLimitCheck bool
}

// Clean validates and normalizes a raw answer document against tree.
// The error list is empty iff the document is valid.
func Clean(raw any, tree *configuration.Tree, opts Options) (model.Document, []string) {
	doc, shapeErrs, ok := asDocument(raw)
	if !ok {
		return model.Document{}, []string{"Invalid questionnaire data: not a mapping of questiongroups."}
	}

	cleaned := model.Document{}
	errs := shapeErrs

	for _, kw := range groupOrder(doc, tree) {
		instances := doc[kw]

		group, known := tree.Questiongroup(kw)
		if !known {
			// Cross-configuration module data passes through untouched.
			cleaned[kw] = instances
			continue
		}
		if group.Inherited {
			continue
		}
		if len(instances) > group.MaxNum {
			errs = append(errs, fmt.Sprintf(
				"Questiongroup with keyword %q has %d instances, only %d allowed.",
				kw, len(instances), group.MaxNum))
			continue
		}

		var kept []model.Instance
		hasOrder := false
		for _, instance := range instances {
			out, instanceErrs := cleanInstance(group, instance, opts)
			errs = append(errs, instanceErrs...)
			if out == nil {
				continue
			}
			if _, ok := out[model.OrderKey]; ok {
				hasOrder = true
			}
			kept = append(kept, out)
		}
		if hasOrder {
			sort.SliceStable(kept, func(i, j int) bool {
				return orderOf(kept[i]) < orderOf(kept[j])
			})
		}
		if len(kept) > 0 {
			cleaned[kw] = kept
		}
	}

	errs = append(errs, enforceGroupConditions(cleaned, tree)...)
	recomputeConditionalChoices(cleaned, tree)

	return cleaned, errs
}

// asDocument accepts the storage shape or its generic JSON decoding.
// Questiongroups whose value is not a sequence of mappings are rejected
// individually; only a non-mapping document is a total failure.
func asDocument(raw any) (model.Document, []string, bool) {
	switch doc := raw.(type) {
	case model.Document:
		return doc, nil, true
	case map[string]any:
		out := model.Document{}
		var rejected []string
		for kw, value := range doc {
			instances, ok := asInstances(value)
			if !ok {
				rejected = append(rejected, kw)
				continue
			}
			out[kw] = instances
		}
		sort.Strings(rejected)
		var errs []string
		for _, kw := range rejected {
			errs = append(errs, fmt.Sprintf(
				"Questiongroup with keyword %q must contain a list of instances.", kw))
		}
		return out, errs, true
	}
	return nil, nil, false
}

func asInstances(value any) ([]model.Instance, bool) {
	if typed, ok := value.([]model.Instance); ok {
		return typed, true
	}
	list, ok := value.([]any)
	if !ok {
		return nil, false
	}
	instances := make([]model.Instance, 0, len(list))
	for _, item := range list {
		instance, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		instances = append(instances, instance)
	}
	return instances, true
}

// groupOrder yields document questiongroups in configuration traversal
// order, then unknown groups sorted by keyword.
func groupOrder(doc model.Document, tree *configuration.Tree) []string {
	var order []string
	seen := map[string]bool{}
	for _, g := range tree.Questiongroups() {
		if _, ok := doc[g.Keyword]; ok {
			order = append(order, g.Keyword)
			seen[g.Keyword] = true
		}
	}
	var unknown []string
	for kw := range doc {
		if !seen[kw] {
			unknown = append(unknown, kw)
		}
	}
	sort.Strings(unknown)
	return append(order, unknown...)
}

func cleanInstance(group *configuration.Questiongroup, instance model.Instance, opts Options) (model.Instance, []string) {
	out := model.Instance{}
	var errs []string

	if order, ok := instance[model.OrderKey]; ok {
		if n, ok := toInt(order); ok {
			out[model.OrderKey] = n
		}
	}

	for _, question := range group.Questions {
		value, present := instance[question.Keyword]
		if !present || isEmpty(value) {
			continue
		}
		cleanedValue, fieldErrs := cleanValue(question, value, opts)
		errs = append(errs, fieldErrs...)
		if cleanedValue != nil {
			out[question.Keyword] = cleanedValue
		}
	}

	// Keys the questiongroup does not declare are rejected.
	var extra []string
	for key := range instance {
		if key == model.OrderKey {
			continue
		}
		if _, ok := group.Question(key); !ok {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	for _, key := range extra {
		errs = append(errs, fmt.Sprintf(
			"Question with keyword %q is not valid for questiongroup %q.", key, group.Keyword))
	}

	errs = append(errs, enforceQuestionConditions(group, out)...)

	if len(out) == 0 {
		return nil, errs
	}
	if _, ok := out[model.OrderKey]; ok && len(out) == 1 {
		return nil, errs
	}
	return out, errs
}

// enforceQuestionConditions drops condition targets whose triggering choice
// is absent from the sibling source question.
func enforceQuestionConditions(group *configuration.Questiongroup, instance model.Instance) []string {
	var errs []string
	for _, question := range group.Questions {
		if _, present := instance[question.Keyword]; !present {
			continue
		}
		conditions := conditionsTargeting(group, question.Keyword)
		if len(conditions) == 0 {
			continue
		}
		satisfied := false
		for _, c := range conditions {
			source, _ := group.Question(c.source)
			value, ok := instance[source.Keyword]
			if !ok || !containsChoice(value, c.cond.ChoiceKey) {
				continue
			}
			if ok, err := c.cond.Predicate.Eval(value); err == nil && ok {
				satisfied = true
				break
			}
		}
		if !satisfied {
			first := conditions[0]
			errs = append(errs, fmt.Sprintf(
				"Question %q is only valid if %q has value %q.",
				question.Keyword, first.source, first.cond.ChoiceKey))
			delete(instance, question.Keyword)
		}
	}
	return errs
}

type targetedCondition struct {
	source string
	cond   configuration.QuestionCondition
}

func conditionsTargeting(group *configuration.Questiongroup, target string) []targetedCondition {
	var out []targetedCondition
	for _, q := range group.Questions {
		for _, c := range q.Conditions {
			if c.Target == target {
				out = append(out, targetedCondition{source: q.Keyword, cond: c})
			}
		}
	}
	return out
}

// enforceGroupConditions evaluates named questiongroup conditions against
// the cleaned source data. Unsatisfied conditions invalidate every instance
// of the gated group.
func enforceGroupConditions(cleaned model.Document, tree *configuration.Tree) []string {
	declared := tree.QuestiongroupConditions()
	var errs []string
	for _, group := range tree.Questiongroups() {
		if group.Condition == "" {
			continue
		}
		if _, present := cleaned[group.Keyword]; !present {
			continue
		}
		if !groupConditionSatisfied(cleaned, declared[group.Condition]) {
			errs = append(errs, fmt.Sprintf(
				"Questiongroup with keyword %q requires condition %q.",
				group.Keyword, group.Condition))
			delete(cleaned, group.Keyword)
		}
	}
	return errs
}

func groupConditionSatisfied(cleaned model.Document, sources []configuration.ConditionSource) bool {
	for _, src := range sources {
		for _, instance := range cleaned[src.Questiongroup] {
			value, ok := instance[src.Question]
			if !ok {
				continue
			}
			if valueSatisfiesAll(value, src) {
				return true
			}
		}
	}
	return false
}

// valueSatisfiesAll applies every predicate of a condition source: scalars
// evaluate directly, lists need one element for which all predicates hold.
func valueSatisfiesAll(value any, src configuration.ConditionSource) bool {
	if list, ok := value.([]any); ok {
		for _, element := range list {
			if allPredicatesHold(element, src) {
				return true
			}
		}
		return false
	}
	return allPredicatesHold(value, src)
}

func allPredicatesHold(value any, src configuration.ConditionSource) bool {
	for _, pred := range src.Predicates {
		ok, err := pred.Eval(value)
		if err != nil || !ok {
			return false
		}
	}
	return true
}

// recomputeConditionalChoices is the second pass over
// select_conditional_questiongroup questions: their valid choices are the
// current value set of the referenced source questiongroups, so stale
// stored values are dropped. Runs in the same deterministic group order as
// the first pass; build-time validation rejects cyclic cross-references.
func recomputeConditionalChoices(cleaned model.Document, tree *configuration.Tree) {
	for _, group := range tree.Questiongroups() {
		instances, present := cleaned[group.Keyword]
		if !present {
			continue
		}
		for _, question := range group.Questions {
			if question.FieldType != model.TypeSelectCondQG {
				continue
			}
			allowed := map[string]bool{}
			for _, srcKeyword := range sourceGroups(question) {
				for _, instance := range cleaned[srcKeyword] {
					collectValues(instance, allowed)
				}
			}
			for _, instance := range instances {
				value, ok := instance[question.Keyword]
				if !ok {
					continue
				}
				kept := filterAllowed(value, allowed)
				if len(kept) == 0 {
					delete(instance, question.Keyword)
				} else {
					instance[question.Keyword] = kept
				}
			}
		}
	}
}

func sourceGroups(question *configuration.Question) []string {
	switch v := question.FormOptions["questiongroups"].(type) {
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

func collectValues(instance model.Instance, into map[string]bool) {
	for key, value := range instance {
		if key == model.OrderKey {
			continue
		}
		switch v := value.(type) {
		case string:
			into[v] = true
		case []any:
			for _, element := range v {
				if s, ok := element.(string); ok {
					into[s] = true
				}
			}
		}
	}
}

func filterAllowed(value any, allowed map[string]bool) []any {
	var kept []any
	switch v := value.(type) {
	case string:
		if allowed[v] {
			kept = append(kept, v)
		}
	case []any:
		for _, element := range v {
			if s, ok := element.(string); ok && allowed[s] {
				kept = append(kept, s)
			}
		}
	}
	return kept
}

func orderOf(instance model.Instance) int {
	if n, ok := toInt(instance[model.OrderKey]); ok {
		return n
	}
	return 0
}
