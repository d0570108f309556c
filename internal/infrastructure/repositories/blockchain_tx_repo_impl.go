package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"wallet-ledger.backend/internal/domain/entities"
	domainerrors "wallet-ledger.backend/internal/domain/errors"
	"wallet-ledger.backend/internal/infrastructure/models"
)

// BlockchainTxRepository implements observed on-chain transaction storage
type BlockchainTxRepository struct {
	db *gorm.DB
}

// NewBlockchainTxRepository creates a new blockchain transaction repository
func NewBlockchainTxRepository(db *gorm.DB) *BlockchainTxRepository {
	return &BlockchainTxRepository{db: db}
}

// Create records a confirmed on-chain transaction
func (r *BlockchainTxRepository) Create(ctx context.Context, tx *entities.BlockchainTransaction) error {
	now := time.Now()
	m := &models.BlockchainTransaction{
		Hash:          tx.Hash,
		FromAddress:   tx.FromAddress,
		ToAddress:     tx.ToAddress,
		Currency:      string(tx.Currency),
		Value:         tx.Value.String(),
		Fee:           tx.Fee.String(),
		BlockNumber:   tx.BlockNumber,
		Confirmations: tx.Confirmations,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		if isDuplicateErr(err) {
			return domainerrors.ErrConflict
		}
		return err
	}
	return nil
}

// GetByHash gets an observed transaction by hash
func (r *BlockchainTxRepository) GetByHash(ctx context.Context, hash string) (*entities.BlockchainTransaction, error) {
	var m models.BlockchainTransaction
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).Where("hash = ?", hash).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return blockchainTxToEntity(&m)
}

// UpdateConfirmations moves the confirmation count of an observed transaction
func (r *BlockchainTxRepository) UpdateConfirmations(ctx context.Context, hash string, confirmations int) error {
	db := GetDB(ctx, r.db)
	result := db.WithContext(ctx).Model(&models.BlockchainTransaction{}).
		Where("hash = ?", hash).
		Updates(map[string]interface{}{
			"confirmations": confirmations,
			"updated_at":    time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

func blockchainTxToEntity(m *models.BlockchainTransaction) (*entities.BlockchainTransaction, error) {
	value, err := parseDecimal(m.Value)
	if err != nil {
		return nil, err
	}
	fee, err := parseDecimal(m.Fee)
	if err != nil {
		return nil, err
	}
	return &entities.BlockchainTransaction{
		Hash:          m.Hash,
		FromAddress:   m.FromAddress,
		ToAddress:     m.ToAddress,
		Currency:      entities.Currency(m.Currency),
		Value:         value,
		Fee:           fee,
		BlockNumber:   m.BlockNumber,
		Confirmations: m.Confirmations,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}, nil
}

// PendingBlockchainTxRepository implements submitted-but-unconfirmed
// outbound transaction storage
type PendingBlockchainTxRepository struct {
	db *gorm.DB
}

// NewPendingBlockchainTxRepository creates a new pending blockchain
// transaction repository
func NewPendingBlockchainTxRepository(db *gorm.DB) *PendingBlockchainTxRepository {
	return &PendingBlockchainTxRepository{db: db}
}

// Create records a freshly submitted outbound transaction
func (r *PendingBlockchainTxRepository) Create(ctx context.Context, tx *entities.PendingBlockchainTransaction) error {
	m := &models.PendingBlockchainTransaction{
		Hash:        tx.Hash,
		FromAddress: tx.FromAddress,
		ToAddress:   tx.ToAddress,
		Currency:    string(tx.Currency),
		Value:       tx.Value.String(),
		Fee:         tx.Fee.String(),
		CreatedAt:   time.Now(),
	}
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		if isDuplicateErr(err) {
			return domainerrors.ErrConflict
		}
		return err
	}
	return nil
}

// GetByHash gets a pending transaction by hash
func (r *PendingBlockchainTxRepository) GetByHash(ctx context.Context, hash string) (*entities.PendingBlockchainTransaction, error) {
	var m models.PendingBlockchainTransaction
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).Where("hash = ?", hash).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}

	value, err := parseDecimal(m.Value)
	if err != nil {
		return nil, err
	}
	fee, err := parseDecimal(m.Fee)
	if err != nil {
		return nil, err
	}
	return &entities.PendingBlockchainTransaction{
		Hash:        m.Hash,
		FromAddress: m.FromAddress,
		ToAddress:   m.ToAddress,
		Currency:    entities.Currency(m.Currency),
		Value:       value,
		Fee:         fee,
		CreatedAt:   m.CreatedAt,
	}, nil
}

// DeleteByHash removes a pending transaction once it has been observed
// on chain. Deleting an already-removed hash is not an error.
func (r *PendingBlockchainTxRepository) DeleteByHash(ctx context.Context, hash string) error {
	db := GetDB(ctx, r.db)
	return db.WithContext(ctx).Where("hash = ?", hash).Delete(&models.PendingBlockchainTransaction{}).Error
}

// StrangeBlockchainTxRepository implements storage for unreconcilable
// on-chain events
type StrangeBlockchainTxRepository struct {
	db *gorm.DB
}

// NewStrangeBlockchainTxRepository creates a new strange blockchain
// transaction repository
func NewStrangeBlockchainTxRepository(db *gorm.DB) *StrangeBlockchainTxRepository {
	return &StrangeBlockchainTxRepository{db: db}
}

// Create records an on-chain event the reconciler could not explain
func (r *StrangeBlockchainTxRepository) Create(ctx context.Context, tx *entities.StrangeBlockchainTransaction) error {
	now := time.Now()
	m := &models.StrangeBlockchainTransaction{
		Hash:          tx.Hash,
		FromAddress:   tx.FromAddress,
		ToAddress:     tx.ToAddress,
		Currency:      string(tx.Currency),
		Value:         tx.Value.String(),
		Fee:           tx.Fee.String(),
		BlockNumber:   tx.BlockNumber,
		Confirmations: tx.Confirmations,
		Commentary:    tx.Commentary,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	db := GetDB(ctx, r.db)
	return db.WithContext(ctx).Create(m).Error
}

// List returns recorded strange transactions, newest first
func (r *StrangeBlockchainTxRepository) List(ctx context.Context, limit, offset int) ([]*entities.StrangeBlockchainTransaction, error) {
	var ms []models.StrangeBlockchainTransaction
	db := GetDB(ctx, r.db)
	err := db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&ms).Error
	if err != nil {
		return nil, err
	}

	out := make([]*entities.StrangeBlockchainTransaction, 0, len(ms))
	for i := range ms {
		value, err := parseDecimal(ms[i].Value)
		if err != nil {
			return nil, err
		}
		fee, err := parseDecimal(ms[i].Fee)
		if err != nil {
			return nil, err
		}
		out = append(out, &entities.StrangeBlockchainTransaction{
			BlockchainTransaction: entities.BlockchainTransaction{
				Hash:          ms[i].Hash,
				FromAddress:   ms[i].FromAddress,
				ToAddress:     ms[i].ToAddress,
				Currency:      entities.Currency(ms[i].Currency),
				Value:         value,
				Fee:           fee,
				BlockNumber:   ms[i].BlockNumber,
				Confirmations: ms[i].Confirmations,
				CreatedAt:     ms[i].CreatedAt,
				UpdatedAt:     ms[i].UpdatedAt,
			},
			Commentary: ms[i].Commentary,
		})
	}
	return out, nil
}

// SeenHashRepository implements the reconciliation idempotency guard
type SeenHashRepository struct {
	db *gorm.DB
}

// NewSeenHashRepository creates a new seen hash repository
func NewSeenHashRepository(db *gorm.DB) *SeenHashRepository {
	return &SeenHashRepository{db: db}
}

// Create records that a (hash, currency) observation has been processed.
// The primary key turns a concurrent duplicate into ErrConflict, which
// callers treat as "someone else already handled it".
func (r *SeenHashRepository) Create(ctx context.Context, seen *entities.SeenHash) error {
	m := &models.SeenHash{
		Hash:        seen.Hash,
		Currency:    string(seen.Currency),
		BlockNumber: seen.BlockNumber,
		CreatedAt:   time.Now(),
	}
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		if isDuplicateErr(err) {
			return domainerrors.ErrConflict
		}
		return err
	}
	return nil
}

// Exists reports whether a (hash, currency) pair was already recorded
func (r *SeenHashRepository) Exists(ctx context.Context, hash string, currency entities.Currency) (bool, error) {
	var count int64
	db := GetDB(ctx, r.db)
	err := db.WithContext(ctx).Model(&models.SeenHash{}).
		Where("hash = ? AND currency = ?", hash, string(currency)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
