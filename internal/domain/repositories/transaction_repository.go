package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"wallet-ledger.backend/internal/domain/entities"
)

// TransactionRepository persists the double-entry leaves
type TransactionRepository interface {
	Create(ctx context.Context, tx *entities.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Transaction, error)
	ListByGroupID(ctx context.Context, groupID uuid.UUID) ([]*entities.Transaction, error)
	ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*entities.Transaction, error)

	// AccountBalance derives the live balance over non-cancelled
	// transactions. Sign follows the account kind: a Dr account grows on
	// its dr side (it mirrors an on-chain wallet), a Cr account grows on
	// its cr side.
	AccountBalance(ctx context.Context, accountID uuid.UUID, kind entities.AccountKind) (decimal.Decimal, error)

	UpdateStatusByGroupID(ctx context.Context, groupID uuid.UUID, status entities.TransactionStatus) error
}
