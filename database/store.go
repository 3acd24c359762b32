package database

import (
	"database/sql"
	"errors"
	"time"

	"github.com/goccy/go-json"

	"github.com/wocat/qcat-engine/log"
	"github.com/wocat/qcat-engine/model"
)

// Store adapts the sqlite schema to the engine's consumed interfaces:
// registry.EntityStore and configuration.Source.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Key(keyword string) (*model.Key, bool) {
	row := s.db.QueryRow(`
		SELECT k.keyword, k.configuration, t.translation_type, t.data
		FROM entity_key k
		LEFT OUTER JOIN translation t ON (k.translation_id = t.id)
		WHERE k.keyword = ?`,
		keyword,
	)

	key := &model.Key{}
	var config string
	var translationType, translationData sql.NullString
	err := row.Scan(&key.Keyword, &config, &translationType, &translationData)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		log.Errorf("db.get_key.scan: %s", err)
		return nil, false
	}

	if err := json.Unmarshal([]byte(config), &key.Configuration); err != nil {
		log.Errorf("db.get_key.parse_configuration: %s", err)
		return nil, false
	}
	key.Translation = parseTranslation(translationType, translationData)

	values, ok := s.keyValues(keyword)
	if !ok {
		return nil, false
	}
	key.Values = values
	return key, true
}

func (s *Store) keyValues(keyword string) ([]*model.Value, bool) {
	rows, err := s.db.Query(`
		SELECT v.keyword, v.order_value, v.configuration, t.translation_type, t.data
		FROM key_value kv
		JOIN entity_value v ON (kv.value_keyword = v.keyword)
		LEFT OUTER JOIN translation t ON (v.translation_id = t.id)
		WHERE kv.key_keyword = ?
		ORDER BY kv.position`,
		keyword,
	)
	if err != nil {
		log.Errorf("db.get_key.values: %s", err)
		return nil, false
	}
	defer rows.Close()

	var values []*model.Value
	for rows.Next() {
		value, ok := scanValue(rows)
		if !ok {
			return nil, false
		}
		values = append(values, value)
	}
	if err := rows.Err(); err != nil {
		log.Errorf("db.get_key.values.rows: %s", err)
		return nil, false
	}
	return values, true
}

func (s *Store) Value(keyword string) (*model.Value, bool) {
	rows, err := s.db.Query(`
		SELECT v.keyword, v.order_value, v.configuration, t.translation_type, t.data
		FROM entity_value v
		LEFT OUTER JOIN translation t ON (v.translation_id = t.id)
		WHERE v.keyword = ?`,
		keyword,
	)
	if err != nil {
		log.Errorf("db.get_value: %s", err)
		return nil, false
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, false
	}
	return scanValue(rows)
}

func scanValue(rows *sql.Rows) (*model.Value, bool) {
	value := &model.Value{}
	var order sql.NullInt64
	var config string
	var translationType, translationData sql.NullString
	err := rows.Scan(&value.Keyword, &order, &config, &translationType, &translationData)
	if err != nil {
		log.Errorf("db.get_value.scan: %s", err)
		return nil, false
	}
	if order.Valid {
		n := int(order.Int64)
		value.OrderValue = &n
	}
	if err := json.Unmarshal([]byte(config), &value.Configuration); err != nil {
		log.Errorf("db.get_value.parse_configuration: %s", err)
		return nil, false
	}
	value.Translation = parseTranslation(translationType, translationData)
	return value, true
}

func (s *Store) Questiongroup(keyword string) (*model.Questiongroup, bool) {
	row := s.db.QueryRow(`
		SELECT g.keyword, g.configuration, t.translation_type, t.data
		FROM questiongroup g
		LEFT OUTER JOIN translation t ON (g.translation_id = t.id)
		WHERE g.keyword = ?`,
		keyword,
	)

	qg := &model.Questiongroup{}
	var config string
	var translationType, translationData sql.NullString
	err := row.Scan(&qg.Keyword, &config, &translationType, &translationData)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		log.Errorf("db.get_questiongroup.scan: %s", err)
		return nil, false
	}
	if err := json.Unmarshal([]byte(config), &qg.Configuration); err != nil {
		log.Errorf("db.get_questiongroup.parse_configuration: %s", err)
		return nil, false
	}
	qg.Translation = parseTranslation(translationType, translationData)
	return qg, true
}

func (s *Store) Category(keyword string) (*model.Category, bool) {
	row := s.db.QueryRow(`
		SELECT c.keyword, t.translation_type, t.data
		FROM category c
		LEFT OUTER JOIN translation t ON (c.translation_id = t.id)
		WHERE c.keyword = ?`,
		keyword,
	)

	cat := &model.Category{}
	var translationType, translationData sql.NullString
	err := row.Scan(&cat.Keyword, &translationType, &translationData)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		log.Errorf("db.get_category.scan: %s", err)
		return nil, false
	}
	cat.Translation = parseTranslation(translationType, translationData)
	return cat, true
}

// ActiveConfiguration loads the single active configuration row for code.
// A miss is (nil, nil) per configuration.Source.
func (s *Store) ActiveConfiguration(code string) (*model.Configuration, error) {
	row := s.db.QueryRow(`
		SELECT code, edition, base_code, data, active, activated
		FROM configuration
		WHERE code = ? AND active = 1`,
		code,
	)

	cfg := &model.Configuration{}
	var baseCode sql.NullString
	var data string
	var activated sql.NullTime
	err := row.Scan(&cfg.Code, &cfg.Edition, &baseCode, &data, &cfg.Active, &activated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cfg.BaseCode = baseCode.String
	cfg.Data = []byte(data)
	if activated.Valid {
		cfg.Activated = activated.Time
	} else {
		cfg.Activated = time.Time{}
	}
	return cfg, nil
}

func parseTranslation(translationType, data sql.NullString) *model.Translation {
	if !translationType.Valid {
		return nil
	}
	tr := &model.Translation{TranslationType: translationType.String}
	if data.Valid && data.String != "" {
		if err := json.Unmarshal([]byte(data.String), &tr.Data); err != nil {
			log.Errorf("db.parse_translation: %s", err)
			return nil
		}
	}
	return tr
}
