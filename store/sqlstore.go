package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// documentRow is the single table behind the MySQL-backed document
// collection: the full document as a JSON payload plus the columns needed to
// address and filter it.
type documentRow struct {
	ID      string `gorm:"primaryKey;size:64"`
	DocType string `gorm:"column:doc_type;size:64;index"`
	Data    string `gorm:"type:json"`
}

func (documentRow) TableName() string { return "documents" }

// SQLStore implements Client on MySQL through gorm for self-hosted
// deployments. Field predicates and ordering compile to JSON_EXTRACT
// expressions, and Inc/Dec compile to a single UPDATE so per-field arithmetic
// stays atomic per row, the same guarantee the hosted backend gives per
// document.
type SQLStore struct {
	db *gorm.DB
}

// NewSQLStore migrates the documents table and returns the store.
func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if err := db.AutoMigrate(&documentRow{}); err != nil {
		return nil, fmt.Errorf("sqlstore: migrate documents table: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Get(ctx context.Context, id string, dest any) error {
	var row documentRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(row.Data), dest)
}

func (s *SQLStore) Fetch(ctx context.Context, q Query, dest any) error {
	tx := s.filtered(ctx, q)
	if q.Order != "" {
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		// Order fields come from repository constants, never from request input.
		tx = tx.Order(fmt.Sprintf("JSON_UNQUOTE(JSON_EXTRACT(data, '$.%s')) %s", q.Order, dir))
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}

	var rows []documentRow
	if err := tx.Find(&rows).Error; err != nil {
		return err
	}
	docs := make([]json.RawMessage, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, json.RawMessage(row.Data))
	}
	return decodeInto(docs, dest)
}

func (s *SQLStore) First(ctx context.Context, q Query, dest any) (bool, error) {
	q.Limit = 1
	q.Offset = 0
	var docs []json.RawMessage
	if err := s.Fetch(ctx, q, &docs); err != nil {
		return false, err
	}
	if len(docs) == 0 {
		return false, nil
	}
	return true, json.Unmarshal(docs[0], dest)
}

func (s *SQLStore) Count(ctx context.Context, q Query) (int64, error) {
	var n int64
	err := s.filtered(ctx, q).Count(&n).Error
	return n, err
}

func (s *SQLStore) Create(ctx context.Context, doc any, dest any) error {
	obj := map[string]any{}
	if err := decodeInto(doc, &obj); err != nil {
		return fmt.Errorf("sqlstore: encode document: %w", err)
	}
	id, _ := obj["_id"].(string)
	if id == "" {
		id = uuid.NewString()
		obj["_id"] = id
	}
	docType, _ := obj["_type"].(string)
	data, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	row := documentRow{ID: id, DocType: docType, Data: string(data)}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	if dest != nil {
		return decodeInto(obj, dest)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&documentRow{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) Patch(id string) *Patch {
	return newPatch(s, id)
}

func (s *SQLStore) applyPatch(ctx context.Context, id string, ops patchOps) error {
	// MySQL reports zero affected rows for no-op updates, so existence is
	// checked up front instead of inferred from the update result.
	var n int64
	if err := s.db.WithContext(ctx).Model(&documentRow{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	expr := "data"
	var args []any
	for _, field := range sortedKeysAny(ops.Set) {
		val, err := json.Marshal(ops.Set[field])
		if err != nil {
			return fmt.Errorf("sqlstore: encode %s: %w", field, err)
		}
		expr = fmt.Sprintf("JSON_SET(%s, '$.%s', CAST(? AS JSON))", expr, field)
		args = append(args, string(val))
	}
	for _, field := range sortedKeysInt(ops.Inc) {
		expr = fmt.Sprintf("JSON_SET(%s, '$.%s', IFNULL(JSON_EXTRACT(data, '$.%s'), 0) + ?)", expr, field, field)
		args = append(args, ops.Inc[field])
	}
	for _, field := range sortedKeysInt(ops.Dec) {
		expr = fmt.Sprintf("JSON_SET(%s, '$.%s', IFNULL(JSON_EXTRACT(data, '$.%s'), 0) - ?)", expr, field, field)
		args = append(args, ops.Dec[field])
	}
	return s.db.WithContext(ctx).Model(&documentRow{}).
		Where("id = ?", id).
		Update("data", gorm.Expr(expr, args...)).Error
}

func (s *SQLStore) filtered(ctx context.Context, q Query) *gorm.DB {
	tx := s.db.WithContext(ctx).Model(&documentRow{}).Where("doc_type = ?", q.Type)
	for _, field := range sortedKeys(q.Refs) {
		tx = tx.Where("JSON_UNQUOTE(JSON_EXTRACT(data, ?)) = ?", "$."+field+"._ref", q.Refs[field])
	}
	for _, field := range sortedKeysAny(q.Eq) {
		tx = tx.Where("JSON_UNQUOTE(JSON_EXTRACT(data, ?)) = ?", "$."+field, fmt.Sprint(q.Eq[field]))
	}
	if q.Since != nil {
		tx = tx.Where("JSON_UNQUOTE(JSON_EXTRACT(data, ?)) > ?", "$."+q.Since.Field, q.Since.After.UTC().Format("2006-01-02T15:04:05Z"))
	}
	return tx
}

func sortedKeysInt(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
