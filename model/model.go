package model

import "time"

// FieldType identifies the input widget and value shape of a question.
type FieldType string

const (
	TypeChar            FieldType = "char"
	TypeText            FieldType = "text"
	TypeBool            FieldType = "bool"
	TypeMeasure         FieldType = "measure"
	TypeCheckbox        FieldType = "checkbox"
	TypeImageCheckbox   FieldType = "image_checkbox"
	TypeImage           FieldType = "image"
	TypeSelectType      FieldType = "select_type"
	TypeSelect          FieldType = "select"
	TypeRadio           FieldType = "radio"
	TypeSelectCondCustom FieldType = "select_conditional_custom"
	TypeSelectCondQG    FieldType = "select_conditional_questiongroup"
	TypeCbBool          FieldType = "cb_bool"
	TypeMultiSelect     FieldType = "multi_select"
	TypeInt             FieldType = "int"
	TypeFloat           FieldType = "float"
	TypeSelectModel     FieldType = "select_model"
	TypeDate            FieldType = "date"
	TypeFile            FieldType = "file"
	TypeUserID          FieldType = "user_id"
	TypeLinkID          FieldType = "link_id"
	TypeHidden          FieldType = "hidden"
	TypeDisplayOnly     FieldType = "display_only"
	TypeLinkVideo       FieldType = "link_video"
	TypeMap             FieldType = "map"
	TypeWMSLayer        FieldType = "wms_layer"
	TypeTodo            FieldType = "todo"
)

// SingleChoice reports whether values of this type hold exactly one choice key.
func (t FieldType) SingleChoice() bool {
	switch t {
	case TypeBool, TypeMeasure, TypeSelect, TypeRadio, TypeSelectType, TypeSelectCondCustom:
		return true
	}
	return false
}

// MultiChoice reports whether values of this type hold an ordered list of choice keys.
func (t FieldType) MultiChoice() bool {
	switch t {
	case TypeCheckbox, TypeImageCheckbox, TypeCbBool, TypeMultiSelect:
		return true
	}
	return false
}

// Translated reports whether values of this type are locale-keyed text mappings.
func (t FieldType) Translated() bool {
	switch t {
	case TypeChar, TypeText, TypeWMSLayer:
		return true
	}
	return false
}

// Translation holds localized texts, nested as
// configuration code -> keyword -> locale -> text.
type Translation struct {
	ID              int                                     `json:"id,omitempty"`
	TranslationType string                                  `json:"translation_type"`
	Data            map[string]map[string]map[string]string `json:"data"`
}

// Key is the schema entity behind a question.
type Key struct {
	Keyword       string         `json:"keyword"`
	Translation   *Translation   `json:"translation,omitempty"`
	Configuration map[string]any `json:"configuration"`
	Values        []*Value       `json:"values,omitempty"`
}

// FieldType returns the declared type of the key, or "" if missing.
func (k *Key) FieldType() FieldType {
	t, _ := k.Configuration["type"].(string)
	return FieldType(t)
}

// Value is a predefined answer choice.
type Value struct {
	Keyword       string         `json:"keyword"`
	OrderValue    *int           `json:"order_value,omitempty"`
	Translation   *Translation   `json:"translation,omitempty"`
	Configuration map[string]any `json:"configuration,omitempty"`
}

// Questiongroup is the schema entity behind a repeatable question cluster.
type Questiongroup struct {
	Keyword       string         `json:"keyword"`
	Translation   *Translation   `json:"translation,omitempty"`
	Configuration map[string]any `json:"configuration,omitempty"`
}

// Category is the schema entity behind a configuration category.
type Category struct {
	Keyword     string       `json:"keyword"`
	Translation *Translation `json:"translation,omitempty"`
}

// Configuration is one versioned questionnaire structure document.
// At most one row per code is active.
type Configuration struct {
	Code      string    `json:"code"`
	Edition   string    `json:"edition"`
	BaseCode  string    `json:"base_code,omitempty"`
	Data      []byte    `json:"data"`
	Active    bool      `json:"active"`
	Activated time.Time `json:"activated"`
}

// Instance is one filled-in occurrence of a questiongroup:
// question keyword -> value. The optional OrderKey entry controls the
// final position of the instance within its questiongroup sequence.
type Instance = map[string]any

// OrderKey is the reserved instance key holding the explicit ordering index.
const OrderKey = "__order"

// Document is a stored answer document: questiongroup keyword -> instances.
type Document = map[string][]Instance
