package configuration

import (
	"github.com/wocat/qcat-engine/condition"
	"github.com/wocat/qcat-engine/model"
)

// Tree is a fully built questionnaire configuration: localized, flattened
// over its base_code chain and validated. Trees are immutable after build.
type Tree struct {
	Code     string
	Edition  string
	BaseCode string
	Locale   string
	Sections []*Section

	questiongroups map[string]*Questiongroup
	categories     int
}

// Section is the top level of the configuration hierarchy.
type Section struct {
	Keyword     string
	Label       string
	ViewOptions map[string]any
	Categories  []*Category
}

// Category groups subcategories under a numbered heading.
type Category struct {
	Keyword       string
	Label         string
	Numbering     string
	ViewOptions   map[string]any
	FormOptions   map[string]any
	Subcategories []*Subcategory
}

// Subcategory groups questiongroups and carries the numbering reported in
// validation messages.
type Subcategory struct {
	Keyword        string
	Label          string
	Numbering      string
	ViewOptions    map[string]any
	FormOptions    map[string]any
	Questiongroups []*Questiongroup
}

// Questiongroup is a repeatable cluster of questions, the atomic unit of
// answer storage.
type Questiongroup struct {
	Keyword       string
	Label         string
	MinNum        int
	MaxNum        int
	Condition     string // name of the questiongroup condition gating this group
	Inherited     bool
	TableGrouping [][]string
	FormOptions   map[string]any
	ViewOptions   map[string]any
	Questions     []*Question
}

// Question returns the question declared under keyword, if any.
func (g *Questiongroup) Question(keyword string) (*Question, bool) {
	for _, q := range g.Questions {
		if q.Keyword == keyword {
			return q, true
		}
	}
	return nil, false
}

// Choice is one predefined answer: stored key plus localized label.
type Choice struct {
	Key   any
	Label string
}

// QuestionCondition gates a target question on this question holding a
// triggering choice for which the predicate is satisfied.
type QuestionCondition struct {
	ChoiceKey string
	Predicate *condition.Predicate
	Target    string
}

// QuestiongroupCondition is a named predicate declared on a question and
// referenced by questiongroups elsewhere in the tree.
type QuestiongroupCondition struct {
	Predicate *condition.Predicate
	Name      string
}

type Question struct {
	Keyword                 string
	Label                   string
	FieldType               model.FieldType
	Choices                 []Choice
	Required                bool
	MaxLength               int // 0 means unbounded
	Conditions              []QuestionCondition
	QuestiongroupConditions []QuestiongroupCondition
	InSummary               map[string]any
	FormOptions             map[string]any
	ViewOptions             map[string]any
	AdditionalTranslations  map[string]any
	Numbering               string // owning subcategory numbering

	// weak back-reference, traversal only
	group *Questiongroup
}

// Questiongroup returns the group owning this question.
func (q *Question) Questiongroup() *Questiongroup { return q.group }

// HasChoice reports whether key matches one of the question's choice keys.
// Stored values and configuration conditions address choices by their
// string form, so comparison goes through stringKey.
func (q *Question) HasChoice(key any) bool {
	_, ok := q.ChoiceLabel(key)
	return ok
}

// ChoiceLabel resolves the localized label for a stored choice key.
func (q *Question) ChoiceLabel(key any) (string, bool) {
	want := stringKey(key)
	for _, c := range q.Choices {
		if stringKey(c.Key) == want {
			return c.Label, true
		}
	}
	return "", false
}

// Questiongroup returns the group node for keyword, if present in the tree.
func (t *Tree) Questiongroup(keyword string) (*Questiongroup, bool) {
	g, ok := t.questiongroups[keyword]
	return g, ok
}

// Question resolves a question by (questiongroup, question) keyword pair.
func (t *Tree) Question(qgKeyword, keyword string) (*Question, bool) {
	g, ok := t.questiongroups[qgKeyword]
	if !ok {
		return nil, false
	}
	return g.Question(keyword)
}

// Questiongroups returns every group in tree traversal order.
func (t *Tree) Questiongroups() []*Questiongroup {
	var groups []*Questiongroup
	for _, s := range t.Sections {
		for _, c := range s.Categories {
			for _, sc := range c.Subcategories {
				groups = append(groups, sc.Questiongroups...)
			}
		}
	}
	return groups
}

// Questions returns every question in tree traversal order.
func (t *Tree) Questions() []*Question {
	var questions []*Question
	for _, g := range t.Questiongroups() {
		questions = append(questions, g.Questions...)
	}
	return questions
}

// ConditionSource locates the data a named questiongroup condition is
// evaluated against.
type ConditionSource struct {
	Questiongroup string
	Question      string
	Predicates    []*condition.Predicate
}

// QuestiongroupConditions collects every named condition declared on any
// question, keyed by name. Built once per validation run.
func (t *Tree) QuestiongroupConditions() map[string][]ConditionSource {
	out := map[string][]ConditionSource{}
	for _, g := range t.Questiongroups() {
		for _, q := range g.Questions {
			perName := map[string]*ConditionSource{}
			var names []string
			for _, qc := range q.QuestiongroupConditions {
				src, ok := perName[qc.Name]
				if !ok {
					src = &ConditionSource{Questiongroup: g.Keyword, Question: q.Keyword}
					perName[qc.Name] = src
					names = append(names, qc.Name)
				}
				src.Predicates = append(src.Predicates, qc.Predicate)
			}
			for _, name := range names {
				out[name] = append(out[name], *perName[name])
			}
		}
	}
	return out
}
