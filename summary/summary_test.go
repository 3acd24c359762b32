package summary

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
				{"keyword": "qg_11", "questions": [{
					"keyword": "key_14",
					"in_summary": {
						"types": ["full"],
						"default": {"field_name": "header.measures"}
					}
				}]},
				{"keyword": "qg_9", "questions": [{
					"keyword": "key_12",
					"in_summary": {
						"types": ["full"],
						"default": {
							"field_name": "body.degradation",
							"function": "get_full_range_values"
						}
					}
				}]},
				{"keyword": "qg_2", "questions": [
					{
						"keyword": "key_text",
						"in_summary": {
							"types": ["full"],
							"default": {"field_name": "definition"}
						}
					},
					{
						"keyword": "key_other",
						"in_summary": {
							"types": ["full"],
							"default": {"field_name": "definition"}
						}
					}
				]}
			]
		}]
	}]
}]}`

func intPtr(n int) *int { return &n }

func testTree(t *testing.T) *configuration.Tree {
	t.Helper()

	store := registry.NewMemStore()
	store.AddCategory(&model.Category{Keyword: "cat_1"})
	for _, kw := range []string{"qg_11", "qg_9", "qg_2"} {
		store.AddQuestiongroup(&model.Questiongroup{Keyword: kw})
	}
	store.AddKey(&model.Key{
		Keyword:       "key_14",
		Configuration: map[string]any{"type": "image_checkbox"},
		Values: []*model.Value{
			{
				Keyword: "value_14_1",
				Translation: &model.Translation{Data: map[string]map[string]map[string]string{
					"sample": {"label": {"en": "Terracing"}},
				}},
			},
			{Keyword: "value_14_2"},
		},
	})
	store.AddKey(&model.Key{
		Keyword:       "key_12",
		Configuration: map[string]any{"type": "measure"},
		Values: []*model.Value{
			{
				Keyword:    "value_12_1",
				OrderValue: intPtr(1),
				Translation: &model.Translation{Data: map[string]map[string]map[string]string{
					"sample": {"label": {"en": "low"}},
				}},
			},
			{
				Keyword:    "value_12_2",
				OrderValue: intPtr(2),
				Translation: &model.Translation{Data: map[string]map[string]map[string]string{
					"sample": {"label": {"en": "high"}},
				}},
			},
		},
	})
	store.AddKey(&model.Key{
		Keyword:       "key_text",
		Configuration: map[string]any{"type": "text"},
	})
	store.AddKey(&model.Key{
		Keyword:       "key_other",
		Configuration: map[string]any{"type": "text"},
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
	return tree
}

func TestParseResolvesChoiceLabels(t *testing.T) {
	tree := testTree(t)
	parser := &Parser{Tree: tree}

	fields := parser.Parse("full", model.Document{
		"qg_11": []model.Instance{{"key_14": []any{"value_14_1", "value_14_2"}}},
	})

	// known choices become labels, unknown keys pass through
	assert.Equal(t, []any{"Terracing", "value_14_2"}, fields["header.measures"])
}

func TestParseDuplicateFieldKeepsFirst(t *testing.T) {
	tree := testTree(t)
	parser := &Parser{Tree: tree}

	fields := parser.Parse("full", model.Document{
		"qg_2": []model.Instance{{
			"key_text":  map[string]any{"en": "first"},
			"key_other": map[string]any{"en": "second"},
		}},
	})

	assert.Equal(t, map[string]any{"en": "first"}, fields["definition"])
}

func TestParseSkipsOtherSummaryTypes(t *testing.T) {
	tree := testTree(t)
	parser := &Parser{Tree: tree}

	fields := parser.Parse("brief", model.Document{
		"qg_11": []model.Instance{{"key_14": []any{"value_14_1"}}},
	})
	assert.Empty(t, fields)
}

func TestFullRangeValues(t *testing.T) {
	tree := testTree(t)
	parser := &Parser{Tree: tree}

	fields := parser.Parse("full", model.Document{
		"qg_9": []model.Instance{{"key_12": 2}},
	})

	items, ok := fields["body.degradation"].([]map[string]any)
	require.True(t, ok)
	// the measure sentinel is skipped, all real choices appear
	require.Len(t, items, 2)
	assert.Equal(t, map[string]any{"label": "low", "selected": false}, items[0])
	assert.Equal(t, map[string]any{"label": "high", "selected": true}, items[1])
}

func TestRenderSections(t *testing.T) {
	sections := Render(map[string]any{
		"header.measures":  "a",
		"body.degradation": "b",
		"definition":       "c",
	})

	assert.Equal(t, map[string]any{"measures": "a"}, sections["header"])
	assert.Equal(t, map[string]any{"degradation": "b"}, sections["body"])
	assert.Equal(t, map[string]any{"definition": "c"}, sections[""])
}

func TestSummarize(t *testing.T) {
	tree := testTree(t)

	sections := Summarize(tree, "full", model.Document{
		"qg_11": []model.Instance{{"key_14": []any{"value_14_1"}}},
	}, nil)

	assert.Equal(t, "Terracing", sections["header"]["measures"])
}

func TestGetTable(t *testing.T) {
	tree := testTree(t)
	group, ok := tree.Questiongroup("qg_2")
	require.True(t, ok)
	group.TableGrouping = [][]string{{"key_text", "key_other"}}

	question, ok := group.Question("key_text")
	require.True(t, ok)

	table := getTable(question, model.Document{
		"qg_2": []model.Instance{
			{"key_text": "a1", "key_other": "b1"},
			{"key_text": "a2"},
		},
	}, nil)

	result, ok := table.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"key_text", "key_other"}, result["head"])
	rows := result["rows"].([]any)
	require.Len(t, rows, 2)
	assert.Equal(t, []any{"a1", "b1"}, rows[0])
	assert.Equal(t, []any{"a2", nil}, rows[1])
}
