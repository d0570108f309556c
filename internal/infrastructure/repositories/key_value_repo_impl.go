package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"wallet-ledger.backend/internal/infrastructure/models"
)

// KeyValueRepository implements the typed JSON journal
type KeyValueRepository struct {
	db *gorm.DB
}

// NewKeyValueRepository creates a new key-value repository
func NewKeyValueRepository(db *gorm.DB) *KeyValueRepository {
	return &KeyValueRepository{db: db}
}

// Get loads the value at key into out. The second return is false when
// the key does not exist.
func (r *KeyValueRepository) Get(ctx context.Context, key string, out interface{}) (bool, error) {
	var m models.KeyValue
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).Where("key = ?", key).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	if out != nil {
		if err := json.Unmarshal([]byte(m.Value), out); err != nil {
			return false, fmt.Errorf("corrupt journal value at %q: %w", key, err)
		}
	}
	return true, nil
}

// Set upserts the value at key
func (r *KeyValueRepository) Set(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	now := time.Now()
	m := &models.KeyValue{
		Key:       key,
		Value:     string(raw),
		CreatedAt: now,
		UpdatedAt: now,
	}
	db := GetDB(ctx, r.db)
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(m).Error
}

// Delete removes a key. Deleting a missing key is not an error.
func (r *KeyValueRepository) Delete(ctx context.Context, key string) error {
	db := GetDB(ctx, r.db)
	return db.WithContext(ctx).Where("key = ?", key).Delete(&models.KeyValue{}).Error
}

// ListByPrefix returns the raw values of every key sharing a prefix
func (r *KeyValueRepository) ListByPrefix(ctx context.Context, prefix string) (map[string]json.RawMessage, error) {
	var ms []models.KeyValue
	db := GetDB(ctx, r.db)
	err := db.WithContext(ctx).
		Where("key LIKE ?", prefix+"%").
		Order("key ASC").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}

	out := make(map[string]json.RawMessage, len(ms))
	for i := range ms {
		out[ms[i].Key] = json.RawMessage(ms[i].Value)
	}
	return out, nil
}
