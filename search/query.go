// Package search builds the nested query documents sent to the fulltext
// engine. Field names and nesting are a stable wire contract; only the
// document is in scope here, never its transport.
package search

import (
	"fmt"
	"strings"

	"github.com/wocat/qcat-engine/filter"
	"github.com/wocat/qcat-engine/model"
)

// Query is a generic JSON object in the engine's query DSL.
type Query = map[string]any

// ErrNotImplemented reports a filter type the builder has no clause for.
// Filter parsing normalizes its output, so hitting this is a programming
// error, not user input.
type ErrNotImplemented struct {
	FilterType string
}

func (err *ErrNotImplemented) Error() string {
	return fmt.Sprintf("no query clause implemented for filter type %q", err.FilterType)
}

// aggregationBuckets caps the bucket count of aggregation queries.
const aggregationBuckets = 200

// BuildQuery assembles the search query document from active filters plus
// an optional free-text query. Clauses combine under bool.must when
// matchAll is set, bool.should otherwise.
func BuildQuery(filters []filter.Descriptor, queryString string, codes []string, limit, offset int, matchAll bool) (Query, error) {
	boolQuery, err := buildBool(filters, queryString, codes, matchAll)
	if err != nil {
		return nil, err
	}
	return Query{
		"query": boolQuery,
		"sort": []any{
			Query{
				"data.qg_location.country": Query{
					"order":  "asc",
					"nested": Query{"path": "data.qg_location"},
				},
			},
			Query{"_score": Query{"order": "desc"}},
		},
		"size": limit,
		"from": offset,
	}, nil
}

// BuildAggregationQuery builds a bucketed count over the focal
// (questiongroup, key), excluding any active filter on that focus so the
// buckets reflect the remaining result set.
func BuildAggregationQuery(filters []filter.Descriptor, focusQG, focusKey, queryString string, codes []string, matchAll bool) (Query, error) {
	remaining := make([]filter.Descriptor, 0, len(filters))
	for _, desc := range filters {
		if desc.Questiongroup == focusQG && desc.Key == focusKey {
			continue
		}
		remaining = append(remaining, desc)
	}

	boolQuery, err := buildBool(remaining, queryString, codes, matchAll)
	if err != nil {
		return nil, err
	}

	field := fmt.Sprintf("data.%s.%s", focusQG, focusKey)
	return Query{
		"query": boolQuery,
		"size":  0,
		"aggs": Query{
			"values": Query{
				"nested": Query{"path": "data." + focusQG},
				"aggs": Query{
					"values": Query{
						"terms": Query{
							"field": field,
							"size":  aggregationBuckets,
						},
					},
				},
			},
		},
	}, nil
}

func buildBool(filters []filter.Descriptor, queryString string, codes []string, matchAll bool) (Query, error) {
	var clauses []any
	for _, desc := range filters {
		clause, err := buildClause(desc)
		if err != nil {
			return nil, err
		}
		if clause != nil {
			clauses = append(clauses, clause)
		}
	}
	if queryString != "" {
		clauses = append(clauses, Query{
			"query_string": Query{"query": EscapeReserved(queryString)},
		})
	}

	inner := Query{}
	if len(clauses) > 0 {
		if matchAll {
			inner["must"] = clauses
		} else {
			inner["should"] = clauses
			inner["minimum_should_match"] = 1
		}
	}
	if len(codes) > 0 {
		inner["filter"] = []any{
			Query{"terms": Query{"configurations": codes}},
		}
	}
	if len(inner) == 0 {
		return Query{"match_all": Query{}}, nil
	}
	return Query{"bool": inner}, nil
}

func buildClause(desc filter.Descriptor) (Query, error) {
	switch desc.Type {
	case filter.TypeSearch:
		if desc.Value == "" {
			return nil, nil
		}
		return Query{
			"query_string": Query{"query": EscapeReserved(desc.Value)},
		}, nil

	case filter.TypeType:
		return Query{"term": Query{"type": desc.Value}}, nil

	case filter.TypeDate:
		return Query{
			"range": Query{
				desc.Key: Query{
					"gte": desc.Values[0] + "||/y",
					"lte": desc.Values[1] + "||/y",
				},
			},
		}, nil

	case filter.TypeFlag:
		return Query{
			"nested": Query{
				"path":  "flags",
				"query": Query{"match": Query{"flags.flag": desc.Value}},
			},
		}, nil

	case filter.TypeLang:
		return Query{"term": Query{"translations": desc.Value}}, nil

	case filter.TypeEdition:
		return Query{"term": Query{"edition": desc.Value}}, nil
	}

	if strings.HasPrefix(desc.Type, "_") {
		return nil, &ErrNotImplemented{FilterType: desc.Type}
	}
	return buildQuestionClause(desc), nil
}

// buildQuestionClause scopes a typed filter to its questiongroup with a
// nested clause.
func buildQuestionClause(desc filter.Descriptor) Query {
	path := "data." + desc.Questiongroup
	field := path + "." + desc.Key

	var inner Query
	switch model.FieldType(desc.Type) {
	case model.TypeText, model.TypeChar:
		inner = Query{
			"multi_match": Query{
				"query":  desc.Value,
				"fields": []any{field + ".*"},
				"type":   "most_fields",
			},
		}
	default:
		switch desc.Operator {
		case "gt", "gte", "lt", "lte":
			inner = Query{
				"range": Query{
					field + "_order": Query{desc.Operator: desc.Values[0]},
				},
			}
		default:
			if len(desc.Values) > 1 {
				var should []any
				for _, value := range desc.Values {
					should = append(should, Query{"match": Query{field: value}})
				}
				inner = Query{"bool": Query{"should": should}}
			} else {
				inner = Query{"match": Query{field: desc.Value}}
			}
		}
	}

	return Query{
		"nested": Query{
			"path":  path,
			"query": inner,
		},
	}
}

// reservedCharacters are backslash-escaped in free-text queries before they
// reach the engine's query_string parser.
const reservedCharacters = `\+-=><!(){}[]^"~*?:/`

// EscapeReserved escapes the query_string reserved characters, including
// the && and || operator pairs.
func EscapeReserved(query string) string {
	var b strings.Builder
	b.Grow(len(query) * 2)
	for _, r := range query {
		if strings.ContainsRune(reservedCharacters, r) || r == '&' || r == '|' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
