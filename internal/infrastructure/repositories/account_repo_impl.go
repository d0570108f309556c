package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"wallet-ledger.backend/internal/domain/entities"
	domainerrors "wallet-ledger.backend/internal/domain/errors"
	"wallet-ledger.backend/internal/infrastructure/models"
)

// AccountRepository implements account data operations
type AccountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// CreatePair creates the Dr/Cr account pair backing one wallet address.
// An address already bound to a different user is rejected with ErrConflict.
// Existing rows for the address are locked so racing binds serialise; the
// unique index on (address, currency, kind) backstops the same-currency
// race where neither caller sees a row to lock.
func (r *AccountRepository) CreatePair(ctx context.Context, input *entities.CreateAccountPairInput) (*entities.Account, *entities.Account, error) {
	db := GetDB(ctx, r.db)

	q := db.WithContext(ctx)
	if db.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var existing []models.Account
	if err := q.Where("address = ?", input.Address).Find(&existing).Error; err != nil {
		return nil, nil, err
	}
	for _, m := range existing {
		if m.UserID != input.UserID {
			return nil, nil, domainerrors.ErrConflict
		}
		if m.Currency == string(input.Currency) {
			return nil, nil, domainerrors.ErrConflict
		}
	}

	now := time.Now()
	dr := &models.Account{
		ID:        uuid.New(),
		UserID:    input.UserID,
		Currency:  string(input.Currency),
		Address:   input.Address,
		Name:      input.Name,
		Kind:      string(entities.AccountKindDr),
		Balance:   "0",
		CreatedAt: now,
		UpdatedAt: now,
	}
	cr := &models.Account{
		ID:        uuid.New(),
		UserID:    input.UserID,
		Currency:  string(input.Currency),
		Address:   input.Address,
		Name:      input.Name,
		Kind:      string(entities.AccountKindCr),
		Balance:   "0",
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := db.WithContext(ctx).Create(dr).Error; err != nil {
		if isDuplicateErr(err) {
			return nil, nil, domainerrors.ErrConflict
		}
		return nil, nil, err
	}
	if err := db.WithContext(ctx).Create(cr).Error; err != nil {
		if isDuplicateErr(err) {
			return nil, nil, domainerrors.ErrConflict
		}
		return nil, nil, err
	}

	drEntity, err := accountToEntity(dr)
	if err != nil {
		return nil, nil, err
	}
	crEntity, err := accountToEntity(cr)
	if err != nil {
		return nil, nil, err
	}
	return drEntity, crEntity, nil
}

// GetByID gets an account by ID
func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Account, error) {
	var m models.Account
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return accountToEntity(&m)
}

// GetByIDForUpdate locks the account row for the rest of the enclosing
// transaction. The sqlite dialect used in tests has no row locks; there
// the read is plain, which is safe because sqlite serialises writers.
func (r *AccountRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Account, error) {
	db := GetDB(ctx, r.db)
	q := db.WithContext(ctx)
	if db.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var m models.Account
	if err := q.Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return accountToEntity(&m)
}

// ListByAddress returns every account bound to a wallet address
func (r *AccountRepository) ListByAddress(ctx context.Context, address string) ([]*entities.Account, error) {
	var ms []models.Account
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).Where("address = ?", address).Order("kind ASC").Find(&ms).Error; err != nil {
		return nil, err
	}
	return accountsToEntities(ms)
}

// GetByAddress resolves one account by its (address, currency, kind) triple
func (r *AccountRepository) GetByAddress(ctx context.Context, address string, currency entities.Currency, kind entities.AccountKind) (*entities.Account, error) {
	var m models.Account
	db := GetDB(ctx, r.db)
	err := db.WithContext(ctx).
		Where("address = ? AND currency = ? AND kind = ?", address, string(currency), string(kind)).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return accountToEntity(&m)
}

// AddToBalance adjusts the materialised balance cache by delta. The
// database CHECK rejects a result below zero, surfaced as
// ErrInsufficientFunds.
func (r *AccountRepository) AddToBalance(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error {
	db := GetDB(ctx, r.db)
	result := db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"balance":    gorm.Expr("balance + ?", delta.String()),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		if isCheckViolation(result.Error, "balance_non_negative") {
			return domainerrors.ErrInsufficientFunds
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// SetBalance overwrites the balance cache, used by the periodic rebuild
func (r *AccountRepository) SetBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error {
	db := GetDB(ctx, r.db)
	result := db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"balance":    balance.String(),
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

// ListByKindCurrency lists accounts of one side of the ledger for a currency
func (r *AccountRepository) ListByKindCurrency(ctx context.Context, kind entities.AccountKind, currency entities.Currency) ([]*entities.Account, error) {
	var ms []models.Account
	db := GetDB(ctx, r.db)
	err := db.WithContext(ctx).
		Where("kind = ? AND currency = ?", string(kind), string(currency)).
		Order("id ASC").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	return accountsToEntities(ms)
}

// ListAll returns every account, used by the invariant auditor
func (r *AccountRepository) ListAll(ctx context.Context) ([]*entities.Account, error) {
	var ms []models.Account
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).Order("id ASC").Find(&ms).Error; err != nil {
		return nil, err
	}
	return accountsToEntities(ms)
}

func accountToEntity(m *models.Account) (*entities.Account, error) {
	balance, err := parseDecimal(m.Balance)
	if err != nil {
		return nil, err
	}
	return &entities.Account{
		ID:        m.ID,
		UserID:    m.UserID,
		Currency:  entities.Currency(m.Currency),
		Address:   m.Address,
		Name:      m.Name,
		Kind:      entities.AccountKind(m.Kind),
		Balance:   balance,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}, nil
}

func accountsToEntities(ms []models.Account) ([]*entities.Account, error) {
	accounts := make([]*entities.Account, 0, len(ms))
	for i := range ms {
		a, err := accountToEntity(&ms[i])
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}
