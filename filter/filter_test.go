package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wocat/qcat-engine/configuration"
	"github.com/wocat/qcat-engine/i18n"
	"github.com/wocat/qcat-engine/model"
	"github.com/wocat/qcat-engine/registry"
)

type memSource map[string]*model.Configuration

func (s memSource) ActiveConfiguration(code string) (*model.Configuration, error) {
	return s[code], nil
}

const treeData = `{"sections": [{
	"keyword": "section_1",
	"categories": [{
		"keyword": "cat_1",
		"subcategories": [{
			"keyword": "subcat_1_1",
			"questiongroups": [
				{"keyword": "qg_11", "questions": [{"keyword": "key_14"}]},
				{"keyword": "qg_9", "questions": [{"keyword": "key_12"}]}
			]
		}]
	}]
}]}`

func intPtr(n int) *int { return &n }

func testParser(t *testing.T) *Parser {
	t.Helper()

	store := registry.NewMemStore()
	store.AddCategory(&model.Category{Keyword: "cat_1"})
	store.AddQuestiongroup(&model.Questiongroup{Keyword: "qg_11"})
	store.AddQuestiongroup(&model.Questiongroup{Keyword: "qg_9"})
	store.AddKey(&model.Key{
		Keyword: "key_14",
		Translation: &model.Translation{Data: map[string]map[string]map[string]string{
			"sample": {"label": {"en": "Prevention"}},
		}},
		Configuration: map[string]any{"type": "image_checkbox"},
		Values: []*model.Value{
			{
				Keyword: "value_14_1",
				Translation: &model.Translation{Data: map[string]map[string]map[string]string{
					"sample": {"label": {"en": "Value 14_1"}},
				}},
			},
			{Keyword: "value_14_2"},
		},
	})
	store.AddKey(&model.Key{
		Keyword:       "key_12",
		Configuration: map[string]any{"type": "measure"},
		Values: []*model.Value{
			{Keyword: "value_12_1", OrderValue: intPtr(1)},
			{Keyword: "value_12_2", OrderValue: intPtr(2)},
		},
	})

	builder := &configuration.Builder{
		Registry: registry.New(store),
		Source: memSource{
			"sample": &model.Configuration{Code: "sample", Edition: "2015", Data: []byte(treeData), Active: true},
		},
		Translations: i18n.NewStore("en"),
	}
	tree, err := builder.Build("sample", "en")
	require.NoError(t, err)

	return &Parser{
		Tree:      tree,
		Flags:     map[string]string{"unccd": "UNCCD"},
		Languages: map[string]string{"es": "Spanish"},
	}
}

func TestParseOrderedDescriptors(t *testing.T) {
	parser := testParser(t)

	descriptors := parser.Parse("type=technologies&filter__qg_11__key_14=value_14_1&created=2014-2016")
	require.Len(t, descriptors, 3)

	assert.Equal(t, TypeType, descriptors[0].Type)
	assert.Equal(t, "technologies", descriptors[0].Value)

	question := descriptors[1]
	assert.Equal(t, "qg_11", question.Questiongroup)
	assert.Equal(t, "key_14", question.Key)
	assert.Equal(t, "Prevention", question.KeyLabel)
	assert.Equal(t, "Value 14_1", question.ValueLabel)
	assert.Equal(t, OperatorEq, question.Operator)
	assert.Equal(t, "image_checkbox", question.Type)

	date := descriptors[2]
	assert.Equal(t, TypeDate, date.Type)
	assert.Equal(t, []string{"2014", "2016"}, date.Values)
	assert.Equal(t, "2014 - 2016", date.ValueLabel)
}

func TestParseSkipsMalformed(t *testing.T) {
	parser := testParser(t)

	for _, query := range []string{
		"unknown=1",
		"type=wocat",
		"created=2014",
		"created=x-y",
		"filter__qg_11",
		"filter__qg_11__key_14__gte__x=1",
		"filter__qg_99__key_14=value_14_1",
		"filter__qg_11__key_99=value_14_1",
	} {
		assert.Emptyf(t, parser.Parse(query), "query %q", query)
	}
}

func TestParseOperator(t *testing.T) {
	parser := testParser(t)

	descriptors := parser.Parse("filter__qg_9__key_12__gte=2")
	require.Len(t, descriptors, 1)
	assert.Equal(t, "gte", descriptors[0].Operator)
	assert.Equal(t, "measure", descriptors[0].Type)
	assert.Equal(t, []string{"2"}, descriptors[0].Values)
}

func TestParseDisjunction(t *testing.T) {
	parser := testParser(t)

	descriptors := parser.Parse("filter__qg_11__key_14=value_14_1%7Cvalue_14_9")
	require.Len(t, descriptors, 1)

	desc := descriptors[0]
	assert.Equal(t, []string{"value_14_1", "value_14_9"}, desc.Values)
	// unresolvable values fall back to their raw form
	assert.Equal(t, []string{"Value 14_1", "value_14_9"}, desc.ValueLabels)
	assert.Equal(t, "Value 14_1, value_14_9", desc.ValueLabel)
}

func TestParseNonQuestionParameters(t *testing.T) {
	parser := testParser(t)

	descriptors := parser.Parse("q=soil%20erosion&flag=unccd&flag=other&lang=es&lang=fr&edition=2015")
	require.Len(t, descriptors, 6)

	assert.Equal(t, TypeSearch, descriptors[0].Type)
	assert.Equal(t, "soil erosion", descriptors[0].Value)

	assert.Equal(t, "UNCCD", descriptors[1].ValueLabel)
	assert.Equal(t, "Unknown", descriptors[2].ValueLabel)

	assert.Equal(t, "Spanish", descriptors[3].ValueLabel)
	assert.Equal(t, "fr", descriptors[4].ValueLabel)

	assert.Equal(t, TypeEdition, descriptors[5].Type)
	assert.Equal(t, "2015", descriptors[5].ValueLabel)
}
