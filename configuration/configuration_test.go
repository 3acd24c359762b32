package configuration

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wocat/qcat-engine/i18n"
	"github.com/wocat/qcat-engine/model"
	"github.com/wocat/qcat-engine/registry"
)

type memSource map[string]*model.Configuration

func (s memSource) ActiveConfiguration(code string) (*model.Configuration, error) {
	return s[code], nil
}

func intPtr(n int) *int { return &n }

func testStore() *registry.MemStore {
	store := registry.NewMemStore()

	store.AddCategory(&model.Category{Keyword: "cat_1"})

	for _, kw := range []string{"qg_1", "qg_9", "qg_12", "qg_15", "qg_16"} {
		store.AddQuestiongroup(&model.Questiongroup{Keyword: kw})
	}

	measureValues := make([]*model.Value, 0, 5)
	for i, kw := range []string{"value_12_1", "value_12_2", "value_12_3", "value_12_4", "value_12_5"} {
		measureValues = append(measureValues, &model.Value{Keyword: kw, OrderValue: intPtr(i + 1)})
	}
	store.AddKey(&model.Key{
		Keyword: "key_12",
		Translation: &model.Translation{Data: map[string]map[string]map[string]string{
			"sample": {"label": {"en": "Degradation extent"}},
		}},
		Configuration: map[string]any{"type": "measure"},
		Values:        measureValues,
	})

	store.AddKey(&model.Key{
		Keyword:       "key_15",
		Configuration: map[string]any{"type": "checkbox"},
		Values: []*model.Value{
			{Keyword: "value_15_1", OrderValue: intPtr(1)},
			{Keyword: "value_15_2", OrderValue: intPtr(2)},
		},
	})
	store.AddKey(&model.Key{
		Keyword:       "key_16",
		Configuration: map[string]any{"type": "checkbox"},
		Values:        []*model.Value{{Keyword: "value_16_1"}},
	})
	store.AddKey(&model.Key{
		Keyword:       "key_19",
		Configuration: map[string]any{"type": "int"},
	})
	store.AddKey(&model.Key{
		Keyword:       "key_1",
		Configuration: map[string]any{"type": "char"},
	})
	store.AddKey(&model.Key{
		Keyword:       "key_2",
		Configuration: map[string]any{"type": "bool"},
	})

	return store
}

const sampleData = `{
	"sections": [{
		"keyword": "section_1",
		"categories": [{
			"keyword": "cat_1",
			"subcategories": [{
				"keyword": "subcat_1_1",
				"questiongroups": [
					{"keyword": "qg_9", "questions": [{"keyword": "key_12"}]},
					{"keyword": "qg_12", "questions": [
						{"keyword": "key_15", "conditions": ["value_15_1|True|key_16"]},
						{"keyword": "key_16"}
					]}
				]
			}, {
				"keyword": "subcat_1_2",
				"questiongroups": [
					{"keyword": "qg_15", "questions": [
						{"keyword": "key_19", "questiongroup_conditions": [">1|cond_19"]}
					]},
					{"keyword": "qg_16", "questiongroup_condition": "cond_19", "questions": [
						{"keyword": "key_1", "max_length": 50}
					]},
					{"keyword": "qg_1", "questions": [{"keyword": "key_2"}]}
				]
			}]
		}]
	}]
}`

func testBuilder(source memSource) *Builder {
	return &Builder{
		Registry:     registry.New(testStore()),
		Source:       source,
		Translations: i18n.NewStore("en"),
	}
}

func sampleSource(data string) memSource {
	return memSource{
		"sample": &model.Configuration{Code: "sample", Edition: "2015", Data: []byte(data), Active: true},
	}
}

func TestBuildTree(t *testing.T) {
	builder := testBuilder(sampleSource(sampleData))

	tree, err := builder.Build("sample", "en")
	require.NoError(t, err)

	assert.Equal(t, "sample", tree.Code)
	assert.Equal(t, "2015", tree.Edition)
	require.Len(t, tree.Sections, 1)
	require.Len(t, tree.Sections[0].Categories, 1)

	category := tree.Sections[0].Categories[0]
	assert.Equal(t, "1", category.Numbering)
	require.Len(t, category.Subcategories, 2)
	assert.Equal(t, "1.1", category.Subcategories[0].Numbering)
	assert.Equal(t, "1.2", category.Subcategories[1].Numbering)

	measure, ok := tree.Question("qg_9", "key_12")
	require.True(t, ok)
	assert.Equal(t, "Degradation extent", measure.Label)
	assert.Equal(t, "1.1", measure.Numbering)
	require.Len(t, measure.Choices, 6)
	assert.Equal(t, Choice{Key: "", Label: "-"}, measure.Choices[0])
	assert.Equal(t, 1, measure.Choices[1].Key)
	assert.Equal(t, 5, measure.Choices[5].Key)

	boolean, ok := tree.Question("qg_1", "key_2")
	require.True(t, ok)
	assert.Equal(t, []Choice{{Key: true, Label: "Yes"}, {Key: false, Label: "No"}}, boolean.Choices)

	source, ok := tree.Question("qg_12", "key_15")
	require.True(t, ok)
	require.Len(t, source.Conditions, 1)
	assert.Equal(t, "value_15_1", source.Conditions[0].ChoiceKey)
	assert.Equal(t, "key_16", source.Conditions[0].Target)
	assert.Equal(t, "qg_12", source.Questiongroup().Keyword)

	gated, ok := tree.Questiongroup("qg_16")
	require.True(t, ok)
	assert.Equal(t, "cond_19", gated.Condition)

	declared := tree.QuestiongroupConditions()
	require.Len(t, declared["cond_19"], 1)
	assert.Equal(t, "qg_15", declared["cond_19"][0].Questiongroup)
	assert.Equal(t, "key_19", declared["cond_19"][0].Question)
}

func TestBuildNoConfigurationFound(t *testing.T) {
	builder := testBuilder(memSource{})

	_, err := builder.Build("missing", "en")
	var notFound *NoConfigurationFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing", notFound.Code)
}

func TestBuildInvalidOption(t *testing.T) {
	data := `{"sections": [{
		"keyword": "section_1",
		"categories": [{
			"keyword": "cat_1",
			"subcategories": [{
				"keyword": "subcat_1_1",
				"questiongroups": [
					{"keyword": "qg_9", "helptext": "nope", "questions": [{"keyword": "key_12"}]}
				]
			}]
		}]
	}]}`
	builder := testBuilder(sampleSource(data))

	_, err := builder.Build("sample", "en")
	var invalid *InvalidOptionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "helptext", invalid.Option)
}

func TestBuildUnknownKeyword(t *testing.T) {
	data := `{"sections": [{
		"keyword": "section_1",
		"categories": [{
			"keyword": "cat_1",
			"subcategories": [{
				"keyword": "subcat_1_1",
				"questiongroups": [
					{"keyword": "qg_9", "questions": [{"keyword": "key_unknown"}]}
				]
			}]
		}]
	}]}`
	builder := testBuilder(sampleSource(data))

	_, err := builder.Build("sample", "en")
	var missing *NotInDatabaseError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "key_unknown", missing.Keyword)
}

func TestBuildInvalidConditions(t *testing.T) {
	tests := []struct {
		name      string
		condition string
	}{
		{"malformed", "value_15_1|True"},
		{"unparseable predicate", "value_15_1|import os|key_16"},
		{"unknown target", "value_15_1|True|key_99"},
		{"value not a choice", "value_99|True|key_16"},
	}
	for _, test := range tests {
		data := `{"sections": [{
			"keyword": "section_1",
			"categories": [{
				"keyword": "cat_1",
				"subcategories": [{
					"keyword": "subcat_1_1",
					"questiongroups": [
						{"keyword": "qg_12", "questions": [
							{"keyword": "key_15", "conditions": ["` + test.condition + `"]},
							{"keyword": "key_16"}
						]}
					]
				}]
			}]
		}]}`
		builder := testBuilder(sampleSource(data))

		_, err := builder.Build("sample", "en")
		var invalid *InvalidConditionError
		assert.ErrorAsf(t, err, &invalid, test.name)
	}
}

func TestBuildUndeclaredQuestiongroupCondition(t *testing.T) {
	data := `{"sections": [{
		"keyword": "section_1",
		"categories": [{
			"keyword": "cat_1",
			"subcategories": [{
				"keyword": "subcat_1_1",
				"questiongroups": [
					{"keyword": "qg_16", "questiongroup_condition": "cond_undeclared", "questions": [
						{"keyword": "key_1"}
					]}
				]
			}]
		}]
	}]}`
	builder := testBuilder(sampleSource(data))

	_, err := builder.Build("sample", "en")
	var invalid *InvalidQuestiongroupConditionError
	require.ErrorAs(t, err, &invalid)
}

func TestBuildInvalidMinMax(t *testing.T) {
	data := `{"sections": [{
		"keyword": "section_1",
		"categories": [{
			"keyword": "cat_1",
			"subcategories": [{
				"keyword": "subcat_1_1",
				"questiongroups": [
					{"keyword": "qg_9", "min_num": 3, "max_num": 2, "questions": [{"keyword": "key_12"}]}
				]
			}]
		}]
	}]}`
	builder := testBuilder(sampleSource(data))

	_, err := builder.Build("sample", "en")
	var invalid *InvalidConfigurationError
	require.ErrorAs(t, err, &invalid)
}

func TestBuildTemplateNotFound(t *testing.T) {
	data := `{"sections": [{
		"keyword": "section_1",
		"categories": [{
			"keyword": "cat_1",
			"subcategories": [{
				"keyword": "subcat_1_1",
				"template": "fancy_table",
				"questiongroups": [
					{"keyword": "qg_9", "questions": [{"keyword": "key_12"}]}
				]
			}]
		}]
	}]}`
	builder := testBuilder(sampleSource(data))
	builder.Templates = map[string]struct{}{"plain": {}}

	_, err := builder.Build("sample", "en")
	var missing *TemplateNotFoundError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "fancy_table", missing.Template)
}

const baseData = `{"sections": [{
	"keyword": "section_1",
	"categories": [{
		"keyword": "cat_1",
		"subcategories": [{
			"keyword": "subcat_1_1",
			"questiongroups": [
				{"keyword": "qg_1", "questions": [{"keyword": "key_1", "max_length": 50}]}
			]
		}]
	}]
}]}`

const childData = `{"sections": [{
	"keyword": "section_1",
	"categories": [{
		"keyword": "cat_1",
		"subcategories": [{
			"keyword": "subcat_1_1",
			"questiongroups": [
				{"keyword": "qg_1", "questions": [{"keyword": "key_1", "max_length": 20}]},
				{"keyword": "qg_9", "questions": [{"keyword": "key_12"}]}
			]
		}]
	}]
}]}`

func TestBuildInheritance(t *testing.T) {
	builder := testBuilder(memSource{
		"base": &model.Configuration{Code: "base", Edition: "2015", Data: []byte(baseData), Active: true},
		"child": &model.Configuration{
			Code: "child", Edition: "2018", BaseCode: "base", Data: []byte(childData), Active: true,
		},
	})

	tree, err := builder.Build("child", "en")
	require.NoError(t, err)
	assert.Equal(t, "base", tree.BaseCode)

	// the specific question replaces the base question wholesale
	question, ok := tree.Question("qg_1", "key_1")
	require.True(t, ok)
	assert.Equal(t, 20, question.MaxLength)

	// novel children append after the merged base children
	groups := tree.Questiongroups()
	require.Len(t, groups, 2)
	assert.Equal(t, "qg_1", groups[0].Keyword)
	assert.Equal(t, "qg_9", groups[1].Keyword)
}

func TestBuildBaseCodeCycle(t *testing.T) {
	builder := testBuilder(memSource{
		"a": &model.Configuration{Code: "a", BaseCode: "b", Data: []byte(baseData), Active: true},
		"b": &model.Configuration{Code: "b", BaseCode: "a", Data: []byte(baseData), Active: true},
	})

	_, err := builder.Build("a", "en")
	var invalid *InvalidConfigurationError
	require.ErrorAs(t, err, &invalid)
}

func TestCache(t *testing.T) {
	builds := 0
	builder := testBuilder(sampleSource(sampleData))
	cache := NewCache(func(code, locale string) (*Tree, error) {
		builds++
		return builder.Build(code, locale)
	})

	first, err := cache.Get("sample", "en")
	require.NoError(t, err)
	second, err := cache.Get("sample", "en")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, builds)

	// a different locale is a different entry
	_, err = cache.Get("sample", "es")
	require.NoError(t, err)
	assert.Equal(t, 2, builds)

	cache.Invalidate("sample")
	_, err = cache.Get("sample", "en")
	require.NoError(t, err)
	assert.Equal(t, 3, builds)

	cache.Clear()
	_, err = cache.Get("sample", "en")
	require.NoError(t, err)
	assert.Equal(t, 4, builds)
}

func TestCacheBuildErrorNotStored(t *testing.T) {
	cache := NewCache(func(code, locale string) (*Tree, error) {
		return nil, errors.New("boom")
	})
	_, err := cache.Get("sample", "en")
	assert.Error(t, err)
}
