package repositories

import (
	"context"

	"wallet-ledger.backend/internal/domain/entities"
)

// BlockchainTxRepository persists observed, confirmed on-chain transactions
type BlockchainTxRepository interface {
	Create(ctx context.Context, tx *entities.BlockchainTransaction) error
	GetByHash(ctx context.Context, hash string) (*entities.BlockchainTransaction, error)
	UpdateConfirmations(ctx context.Context, hash string, confirmations int) error
}

// PendingBlockchainTxRepository persists submitted-but-unconfirmed
// outbound transactions
type PendingBlockchainTxRepository interface {
	Create(ctx context.Context, tx *entities.PendingBlockchainTransaction) error
	GetByHash(ctx context.Context, hash string) (*entities.PendingBlockchainTransaction, error)
	DeleteByHash(ctx context.Context, hash string) error
}

// StrangeBlockchainTxRepository records unreconcilable on-chain events
type StrangeBlockchainTxRepository interface {
	Create(ctx context.Context, tx *entities.StrangeBlockchainTransaction) error
	List(ctx context.Context, limit, offset int) ([]*entities.StrangeBlockchainTransaction, error)
}

// SeenHashRepository is the reconciliation idempotency guard. Create
// returns ErrConflict when the (hash, currency) pair was already recorded,
// which serialises concurrent observations of the same transaction.
type SeenHashRepository interface {
	Create(ctx context.Context, seen *entities.SeenHash) error
	Exists(ctx context.Context, hash string, currency entities.Currency) (bool, error)
}
