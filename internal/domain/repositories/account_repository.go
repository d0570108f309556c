package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"wallet-ledger.backend/internal/domain/entities"
)

// AccountRepository persists ledger accounts
type AccountRepository interface {
	// CreatePair inserts the Dr/Cr pair backing one wallet address.
	// Returns ErrConflict when the address is already bound to a
	// different user.
	CreatePair(ctx context.Context, input *entities.CreateAccountPairInput) (dr *entities.Account, cr *entities.Account, err error)

	GetByID(ctx context.Context, id uuid.UUID) (*entities.Account, error)

	// GetByIDForUpdate locks the account row for the remainder of the
	// enclosing unit of work before returning it.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Account, error)

	ListByAddress(ctx context.Context, address string) ([]*entities.Account, error)
	GetByAddress(ctx context.Context, address string, currency entities.Currency, kind entities.AccountKind) (*entities.Account, error)

	// AddToBalance adjusts the materialised balance cache; delta may be
	// negative. The database rejects the update when the result would
	// drop below zero.
	AddToBalance(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error

	// SetBalance overwrites the cache, used by the periodic rebuild.
	SetBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error

	ListByKindCurrency(ctx context.Context, kind entities.AccountKind, currency entities.Currency) ([]*entities.Account, error)
	ListAll(ctx context.Context) ([]*entities.Account, error)
}
