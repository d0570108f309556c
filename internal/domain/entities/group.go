package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// GroupKind represents the user intent a transaction group realises
type GroupKind string

const (
	GroupKindDeposit    GroupKind = "DEPOSIT"
	GroupKindWithdrawal GroupKind = "WITHDRAWAL"
	GroupKindInternal   GroupKind = "INTERNAL"
	GroupKindExchange   GroupKind = "EXCHANGE"
	GroupKindFeeAdjust  GroupKind = "FEE_ADJUST"
)

// GroupStatus represents group lifecycle state
type GroupStatus string

const (
	GroupStatusPending   GroupStatus = "PENDING"
	GroupStatusDone      GroupStatus = "DONE"
	GroupStatusCancelled GroupStatus = "CANCELLED"
)

// MaxGroupTransactions bounds the number of leaf transactions per group.
const MaxGroupTransactions = 4

// TransactionGroup is the atomic commit unit of one user intent. Its id is
// the client-supplied idempotency key. Leaf membership never changes after
// commit except for the fee-settlement leg appended on withdrawal
// confirmation.
type TransactionGroup struct {
	ID               uuid.UUID   `json:"id"`
	Kind             GroupKind   `json:"kind"`
	Status           GroupStatus `json:"status"`
	UserID           uuid.UUID   `json:"userId"`
	BlockchainTxHash null.String `json:"blockchainTxHash,omitempty"`
	TransactionIDs   []uuid.UUID `json:"transactionIds"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`

	// Joins
	Transactions []Transaction `json:"transactions,omitempty"`
}
