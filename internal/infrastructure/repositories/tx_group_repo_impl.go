package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"wallet-ledger.backend/internal/domain/entities"
	domainerrors "wallet-ledger.backend/internal/domain/errors"
	"wallet-ledger.backend/internal/infrastructure/models"
)

// TxGroupRepository implements transaction group data operations
type TxGroupRepository struct {
	db *gorm.DB
}

// NewTxGroupRepository creates a new transaction group repository
func NewTxGroupRepository(db *gorm.DB) *TxGroupRepository {
	return &TxGroupRepository{db: db}
}

// Create inserts a new group. The group id is client supplied, so a
// duplicate insert is the idempotency signal and comes back as ErrConflict.
func (r *TxGroupRepository) Create(ctx context.Context, group *entities.TransactionGroup) error {
	if len(group.TransactionIDs) > entities.MaxGroupTransactions {
		return domainerrors.ErrInvalidInput
	}

	now := time.Now()
	if group.CreatedAt.IsZero() {
		group.CreatedAt = now
	}
	group.UpdatedAt = now

	m := &models.TxGroup{
		ID:        group.ID,
		Kind:      string(group.Kind),
		Status:    string(group.Status),
		UserID:    group.UserID,
		CreatedAt: group.CreatedAt,
		UpdatedAt: group.UpdatedAt,
	}
	if group.BlockchainTxHash.Valid {
		hash := group.BlockchainTxHash.String
		m.BlockchainTxHash = &hash
	}
	leaves := []**uuid.UUID{&m.Tx1ID, &m.Tx2ID, &m.Tx3ID, &m.Tx4ID}
	for i, txID := range group.TransactionIDs {
		id := txID
		*leaves[i] = &id
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

// GetByID gets a group by ID with its leaf transactions loaded
func (r *TxGroupRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.TransactionGroup, error) {
	var m models.TxGroup
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}

	group := groupToEntity(&m)

	var txs []models.Transaction
	err := db.WithContext(ctx).
		Where("group_id = ?", id).
		Order("created_at ASC").
		Find(&txs).Error
	if err != nil {
		return nil, err
	}
	for i := range txs {
		tx, err := transactionToEntity(&txs[i])
		if err != nil {
			return nil, err
		}
		group.Transactions = append(group.Transactions, *tx)
	}
	return group, nil
}

// FindPendingByHash returns pending groups bound to a blockchain tx hash
func (r *TxGroupRepository) FindPendingByHash(ctx context.Context, hash string) ([]*entities.TransactionGroup, error) {
	var ms []models.TxGroup
	db := GetDB(ctx, r.db)
	err := db.WithContext(ctx).
		Where("blockchain_tx_hash = ? AND status = ?", hash, string(entities.GroupStatusPending)).
		Order("created_at ASC").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}

	groups := make([]*entities.TransactionGroup, 0, len(ms))
	for i := range ms {
		groups = append(groups, groupToEntity(&ms[i]))
	}
	return groups, nil
}

// UpdateStatus advances a group out of PENDING. Any other transition is
// rejected with ErrIllegalTransition. A non-empty blockchainTxHash is
// bound in the same statement.
func (r *TxGroupRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status entities.GroupStatus, blockchainTxHash string) error {
	if status != entities.GroupStatusDone && status != entities.GroupStatusCancelled {
		return domainerrors.ErrIllegalTransition
	}

	updates := map[string]interface{}{
		"status":     string(status),
		"updated_at": time.Now(),
	}
	if blockchainTxHash != "" {
		updates["blockchain_tx_hash"] = blockchainTxHash
	}

	db := GetDB(ctx, r.db)
	result := db.WithContext(ctx).Model(&models.TxGroup{}).
		Where("id = ? AND status = ?", id, string(entities.GroupStatusPending)).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Distinguish a missing group from one that already left PENDING.
		var m models.TxGroup
		if err := db.WithContext(ctx).Select("id").Where("id = ?", id).First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrNotFound
			}
			return err
		}
		return domainerrors.ErrIllegalTransition
	}
	return nil
}

// BindBlockchainTxHash attaches the broadcast hash to a pending group
func (r *TxGroupRepository) BindBlockchainTxHash(ctx context.Context, id uuid.UUID, hash string) error {
	db := GetDB(ctx, r.db)
	result := db.WithContext(ctx).Model(&models.TxGroup{}).
		Where("id = ? AND status = ?", id, string(entities.GroupStatusPending)).
		Updates(map[string]interface{}{
			"blockchain_tx_hash": hash,
			"updated_at":         time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var m models.TxGroup
		if err := db.WithContext(ctx).Select("id").Where("id = ?", id).First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrNotFound
			}
			return err
		}
		return domainerrors.ErrIllegalTransition
	}
	return nil
}

// AppendLeaf binds one more transaction to a group, used for the fee
// settlement leg added on withdrawal confirmation.
func (r *TxGroupRepository) AppendLeaf(ctx context.Context, groupID, txID uuid.UUID) error {
	db := GetDB(ctx, r.db)

	var m models.TxGroup
	if err := db.WithContext(ctx).Where("id = ?", groupID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainerrors.ErrNotFound
		}
		return err
	}

	var column string
	switch {
	case m.Tx1ID == nil:
		column = "tx1_id"
	case m.Tx2ID == nil:
		column = "tx2_id"
	case m.Tx3ID == nil:
		column = "tx3_id"
	case m.Tx4ID == nil:
		column = "tx4_id"
	default:
		return domainerrors.ErrInvalidInput
	}

	return db.WithContext(ctx).Model(&models.TxGroup{}).
		Where("id = ?", groupID).
		Updates(map[string]interface{}{
			column:       txID,
			"updated_at": time.Now(),
		}).Error
}

// ListByUserID returns a user's groups, newest first
func (r *TxGroupRepository) ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entities.TransactionGroup, error) {
	var ms []models.TxGroup
	db := GetDB(ctx, r.db)
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&ms).Error
	if err != nil {
		return nil, err
	}

	groups := make([]*entities.TransactionGroup, 0, len(ms))
	for i := range ms {
		groups = append(groups, groupToEntity(&ms[i]))
	}
	return groups, nil
}

// ListPendingOlderThan returns pending groups created before the cutoff,
// used by the stale-pending alert pass.
func (r *TxGroupRepository) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*entities.TransactionGroup, error) {
	var ms []models.TxGroup
	db := GetDB(ctx, r.db)
	err := db.WithContext(ctx).
		Where("status = ? AND created_at < ?", string(entities.GroupStatusPending), cutoff).
		Order("created_at ASC").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}

	groups := make([]*entities.TransactionGroup, 0, len(ms))
	for i := range ms {
		groups = append(groups, groupToEntity(&ms[i]))
	}
	return groups, nil
}

func groupToEntity(m *models.TxGroup) *entities.TransactionGroup {
	group := &entities.TransactionGroup{
		ID:               m.ID,
		Kind:             entities.GroupKind(m.Kind),
		Status:           entities.GroupStatus(m.Status),
		UserID:           m.UserID,
		BlockchainTxHash: null.StringFromPtr(m.BlockchainTxHash),
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
	for _, leaf := range []*uuid.UUID{m.Tx1ID, m.Tx2ID, m.Tx3ID, m.Tx4ID} {
		if leaf != nil {
			group.TransactionIDs = append(group.TransactionIDs, *leaf)
		}
	}
	return group
}
