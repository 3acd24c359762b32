// Package filter decodes the questionnaire search query-string surface into
// normalized filter descriptors. Malformed or unresolvable filters are
// dropped silently; the descriptor order follows the query-string pair
// order, never the configuration's internals.
package filter

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/wocat/qcat-engine/configuration"
	"github.com/wocat/qcat-engine/log"
	"github.com/wocat/qcat-engine/model"
)

// Pseudo filter types produced for the non-question parameters.
const (
	TypeSearch  = "_search"
	TypeType    = "_type"
	TypeDate    = "_date"
	TypeFlag    = "_flag"
	TypeLang    = "_lang"
	TypeEdition = "_edition"
)

// OperatorEq is the default operator of a typed filter.
const OperatorEq = "eq"

// typeTokenAll is the SLM data type token matching everything; it never
// produces a filter.
const typeTokenAll = "wocat"

// Descriptor is one active filter derived from the query string.
type Descriptor struct {
	Questiongroup string
	Key           string
	KeyLabel      string
	Value         string
	Values        []string
	ValueLabel    string
	ValueLabels   []string
	Operator      string
	Type          string
	Choices       []configuration.Choice
}

// ModelLookup resolves select_model primary keys to display labels.
type ModelLookup interface {
	Label(id int) (string, bool)
}

// Parser turns raw query strings into descriptors against one
// configuration tree.
type Parser struct {
	Tree      *configuration.Tree
	Flags     map[string]string // flag key -> label
	Languages map[string]string // locale -> display name
	Models    ModelLookup       // optional
}

// Parse decodes rawQuery (an HTTP query string) into an ordered descriptor
// list. Parameters are case-sensitive; unknown ones are dropped.
func (p *Parser) Parse(rawQuery string) []Descriptor {
	var out []Descriptor
	for _, pair := range pairs(rawQuery) {
		if desc, ok := p.parsePair(pair[0], pair[1]); ok {
			out = append(out, desc)
		}
	}
	return out
}

// pairs splits a query string preserving parameter order, which
// url.ParseQuery would lose.
func pairs(rawQuery string) [][2]string {
	var out [][2]string
	for _, chunk := range strings.Split(rawQuery, "&") {
		if chunk == "" {
			continue
		}
		key, value, _ := strings.Cut(chunk, "=")
		decodedKey, err := url.QueryUnescape(key)
		if err != nil {
			continue
		}
		decodedValue, err := url.QueryUnescape(value)
		if err != nil {
			continue
		}
		out = append(out, [2]string{decodedKey, decodedValue})
	}
	return out
}

func (p *Parser) parsePair(key, value string) (Descriptor, bool) {
	switch key {
	case "q":
		return Descriptor{Key: key, Value: value, Type: TypeSearch}, true

	case "type":
		if value == typeTokenAll {
			return Descriptor{}, false
		}
		return Descriptor{Key: key, Value: value, ValueLabel: value, Type: TypeType}, true

	case "created", "updated":
		years := strings.Split(value, "-")
		if len(years) != 2 {
			return Descriptor{}, false
		}
		if _, err := strconv.Atoi(years[0]); err != nil {
			return Descriptor{}, false
		}
		if _, err := strconv.Atoi(years[1]); err != nil {
			return Descriptor{}, false
		}
		return Descriptor{
			Key:        key,
			Value:      value,
			Values:     years,
			ValueLabel: years[0] + " - " + years[1],
			Type:       TypeDate,
		}, true

	case "flag":
		label, ok := p.Flags[value]
		if !ok {
			label = "Unknown"
		}
		return Descriptor{Key: key, Value: value, ValueLabel: label, Type: TypeFlag}, true

	case "lang":
		label, ok := p.Languages[value]
		if !ok {
			label = value
		}
		return Descriptor{Key: key, Value: value, ValueLabel: label, Type: TypeLang}, true

	case "edition":
		return Descriptor{Key: key, Value: value, ValueLabel: value, Type: TypeEdition}, true
	}

	if strings.HasPrefix(key, "filter__") {
		return p.parseTypedFilter(key, value)
	}
	return Descriptor{}, false
}

func (p *Parser) parseTypedFilter(key, value string) (Descriptor, bool) {
	parts := strings.Split(key, "__")
	if len(parts) != 3 && len(parts) != 4 {
		log.Debugf("filter.parse.skip: malformed parameter %q", key)
		return Descriptor{}, false
	}

	qgKeyword, keyKeyword := parts[1], parts[2]
	operator := OperatorEq
	if len(parts) == 4 {
		operator = parts[3]
	}

	question, ok := p.Tree.Question(qgKeyword, keyKeyword)
	if !ok {
		log.Debugf("filter.parse.skip: unknown filter key %s/%s", qgKeyword, keyKeyword)
		return Descriptor{}, false
	}

	values := strings.Split(value, "|")
	labels := make([]string, 0, len(values))
	for _, v := range values {
		labels = append(labels, p.valueLabel(question, v))
	}

	return Descriptor{
		Questiongroup: qgKeyword,
		Key:           keyKeyword,
		KeyLabel:      question.Label,
		Value:         value,
		Values:        values,
		ValueLabel:    strings.Join(labels, ", "),
		ValueLabels:   labels,
		Operator:      operator,
		Type:          string(question.FieldType),
		Choices:       question.Choices,
	}, true
}

func (p *Parser) valueLabel(question *configuration.Question, value string) string {
	if question.FieldType == model.TypeSelectModel {
		if p.Models != nil {
			if id, err := strconv.Atoi(value); err == nil {
				if label, ok := p.Models.Label(id); ok {
					return label
				}
			}
		}
		return value
	}
	if label, ok := question.ChoiceLabel(value); ok {
		return label
	}
	return value
}
