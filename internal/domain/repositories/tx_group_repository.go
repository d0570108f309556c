package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"wallet-ledger.backend/internal/domain/entities"
)

// TxGroupRepository persists transaction groups
type TxGroupRepository interface {
	Create(ctx context.Context, group *entities.TransactionGroup) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.TransactionGroup, error)

	// FindPendingByHash returns the pending groups bound to a blockchain
	// transaction hash.
	FindPendingByHash(ctx context.Context, hash string) ([]*entities.TransactionGroup, error)

	// UpdateStatus advances a group. Only PENDING→DONE and
	// PENDING→CANCELLED are legal; anything else returns
	// ErrIllegalTransition. blockchainTxHash, when non-empty, is bound to
	// the group in the same statement.
	UpdateStatus(ctx context.Context, id uuid.UUID, status entities.GroupStatus, blockchainTxHash string) error

	// BindBlockchainTxHash attaches the broadcast hash to a pending group
	// once the signer returns it. Binding to a non-pending group returns
	// ErrIllegalTransition.
	BindBlockchainTxHash(ctx context.Context, id uuid.UUID, hash string) error

	// AppendLeaf registers the fee-settlement leg added on withdrawal
	// confirmation. Fails when the group already holds the maximum
	// number of leaves.
	AppendLeaf(ctx context.Context, groupID, txID uuid.UUID) error

	ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entities.TransactionGroup, error)
	ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*entities.TransactionGroup, error)
}
