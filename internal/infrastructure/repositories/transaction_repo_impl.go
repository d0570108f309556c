package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"wallet-ledger.backend/internal/domain/entities"
	domainerrors "wallet-ledger.backend/internal/domain/errors"
	"wallet-ledger.backend/internal/infrastructure/models"
)

// TransactionRepository implements double-entry leaf data operations
type TransactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create inserts a new ledger transaction
func (r *TransactionRepository) Create(ctx context.Context, tx *entities.Transaction) error {
	now := time.Now()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	tx.UpdatedAt = now

	m := transactionToModel(tx)
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		if isDuplicateErr(err) {
			return domainerrors.ErrConflict
		}
		return err
	}
	return nil
}

// GetByID gets a transaction by ID
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Transaction, error) {
	var m models.Transaction
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return transactionToEntity(&m)
}

// ListByGroupID returns the leaves of one group in insertion order
func (r *TransactionRepository) ListByGroupID(ctx context.Context, groupID uuid.UUID) ([]*entities.Transaction, error) {
	var ms []models.Transaction
	db := GetDB(ctx, r.db)
	err := db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("created_at ASC").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	return transactionsToEntities(ms)
}

// ListByAccountID returns every transaction touching an account on either side
func (r *TransactionRepository) ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*entities.Transaction, error) {
	var ms []models.Transaction
	db := GetDB(ctx, r.db)
	err := db.WithContext(ctx).
		Where("dr_account_id = ? OR cr_account_id = ?", accountID, accountID).
		Order("created_at ASC").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	return transactionsToEntities(ms)
}

// AccountBalance derives the live balance of an account over non-cancelled
// transactions. A Cr account accumulates on its cr side and pays out on its
// dr side; a Dr account is the inverse because it mirrors the on-chain
// wallet, which a deposit fills and a withdrawal drains. Summation happens
// here rather than in SQL so the decimal values never pass through float
// arithmetic.
func (r *TransactionRepository) AccountBalance(ctx context.Context, accountID uuid.UUID, kind entities.AccountKind) (decimal.Decimal, error) {
	var ms []models.Transaction
	db := GetDB(ctx, r.db)
	err := db.WithContext(ctx).
		Select("dr_account_id", "cr_account_id", "value").
		Where("(dr_account_id = ? OR cr_account_id = ?) AND status <> ?",
			accountID, accountID, string(entities.TransactionStatusCancelled)).
		Find(&ms).Error
	if err != nil {
		return decimal.Zero, err
	}

	balance := decimal.Zero
	for i := range ms {
		value, err := parseDecimal(ms[i].Value)
		if err != nil {
			return decimal.Zero, err
		}
		if ms[i].CrAccountID == accountID {
			balance = balance.Add(value)
		}
		if ms[i].DrAccountID == accountID {
			balance = balance.Sub(value)
		}
	}
	if kind == entities.AccountKindDr {
		balance = balance.Neg()
	}
	return balance, nil
}

// UpdateStatusByGroupID moves every leaf of a group to the given status
func (r *TransactionRepository) UpdateStatusByGroupID(ctx context.Context, groupID uuid.UUID, status entities.TransactionStatus) error {
	db := GetDB(ctx, r.db)
	result := db.WithContext(ctx).Model(&models.Transaction{}).
		Where("group_id = ?", groupID).
		Updates(map[string]interface{}{
			"status":     string(status),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

func transactionToModel(tx *entities.Transaction) *models.Transaction {
	return &models.Transaction{
		ID:          tx.ID,
		GroupID:     tx.GroupID,
		UserID:      tx.UserID,
		DrAccountID: tx.DrAccountID,
		CrAccountID: tx.CrAccountID,
		Currency:    string(tx.Currency),
		Value:       tx.Value.String(),
		Kind:        string(tx.Kind),
		Status:      string(tx.Status),
		HoldUntil:   tx.HoldUntil,
		CreatedAt:   tx.CreatedAt,
		UpdatedAt:   tx.UpdatedAt,
	}
}

func transactionToEntity(m *models.Transaction) (*entities.Transaction, error) {
	value, err := parseDecimal(m.Value)
	if err != nil {
		return nil, err
	}
	return &entities.Transaction{
		ID:          m.ID,
		GroupID:     m.GroupID,
		UserID:      m.UserID,
		DrAccountID: m.DrAccountID,
		CrAccountID: m.CrAccountID,
		Currency:    entities.Currency(m.Currency),
		Value:       value,
		Kind:        entities.TransactionKind(m.Kind),
		Status:      entities.TransactionStatus(m.Status),
		HoldUntil:   m.HoldUntil,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}, nil
}

func transactionsToEntities(ms []models.Transaction) ([]*entities.Transaction, error) {
	txs := make([]*entities.Transaction, 0, len(ms))
	for i := range ms {
		tx, err := transactionToEntity(&ms[i])
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, nil
}
