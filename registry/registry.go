package registry

import (
	"fmt"

	"github.com/wocat/qcat-engine/model"
)

// EntityStore is the consumed lookup interface over the persisted schema
// entities. Implementations return (nil, false) on a miss and never error:
// the schema is read-only from the engine's point of view.
type EntityStore interface {
	Key(keyword string) (*model.Key, bool)
	Value(keyword string) (*model.Value, bool)
	Questiongroup(keyword string) (*model.Questiongroup, bool)
	Category(keyword string) (*model.Category, bool)
}

// UnknownEntityError reports a keyword lookup miss.
type UnknownEntityError struct {
	Kind    string
	Keyword string
}

func (err *UnknownEntityError) Error() string {
	return fmt.Sprintf("unknown %s with keyword %q", err.Kind, err.Keyword)
}

// Registry is a read-through adapter turning store misses into typed errors.
type Registry struct {
	store EntityStore
}

func New(store EntityStore) *Registry {
	return &Registry{store: store}
}

func (r *Registry) GetKey(keyword string) (*model.Key, error) {
	if key, ok := r.store.Key(keyword); ok {
		return key, nil
	}
	return nil, &UnknownEntityError{Kind: "key", Keyword: keyword}
}

func (r *Registry) GetValue(keyword string) (*model.Value, error) {
	if value, ok := r.store.Value(keyword); ok {
		return value, nil
	}
	return nil, &UnknownEntityError{Kind: "value", Keyword: keyword}
}

func (r *Registry) GetQuestiongroup(keyword string) (*model.Questiongroup, error) {
	if qg, ok := r.store.Questiongroup(keyword); ok {
		return qg, nil
	}
	return nil, &UnknownEntityError{Kind: "questiongroup", Keyword: keyword}
}

func (r *Registry) GetCategory(keyword string) (*model.Category, error) {
	if cat, ok := r.store.Category(keyword); ok {
		return cat, nil
	}
	return nil, &UnknownEntityError{Kind: "category", Keyword: keyword}
}
