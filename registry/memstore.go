package registry

import "github.com/wocat/qcat-engine/model"

// MemStore is an in-memory EntityStore, loaded up-front from fixtures or
// an external dump. It satisfies EntityStore for tests and embedders that
// do not run against a database.
type MemStore struct {
	keys           map[string]*model.Key
	values         map[string]*model.Value
	questiongroups map[string]*model.Questiongroup
	categories     map[string]*model.Category
}

func NewMemStore() *MemStore {
	return &MemStore{
		keys:           map[string]*model.Key{},
		values:         map[string]*model.Value{},
		questiongroups: map[string]*model.Questiongroup{},
		categories:     map[string]*model.Category{},
	}
}

func (s *MemStore) AddKey(key *model.Key) {
	s.keys[key.Keyword] = key
	for _, value := range key.Values {
		s.values[value.Keyword] = value
	}
}

func (s *MemStore) AddValue(value *model.Value) {
	s.values[value.Keyword] = value
}

func (s *MemStore) AddQuestiongroup(qg *model.Questiongroup) {
	s.questiongroups[qg.Keyword] = qg
}

func (s *MemStore) AddCategory(cat *model.Category) {
	s.categories[cat.Keyword] = cat
}

func (s *MemStore) Key(keyword string) (*model.Key, bool) {
	key, ok := s.keys[keyword]
	return key, ok
}

func (s *MemStore) Value(keyword string) (*model.Value, bool) {
	value, ok := s.values[keyword]
	return value, ok
}

func (s *MemStore) Questiongroup(keyword string) (*model.Questiongroup, bool) {
	qg, ok := s.questiongroups[keyword]
	return qg, ok
}

func (s *MemStore) Category(keyword string) (*model.Category, bool) {
	cat, ok := s.categories[keyword]
	return cat, ok
}
