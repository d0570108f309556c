package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionStatus represents the lifecycle state of a ledger transaction
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusDone      TransactionStatus = "DONE"
	TransactionStatusCancelled TransactionStatus = "CANCELLED"
)

// TransactionKind tags the role a leaf transaction plays inside its group
type TransactionKind string

const (
	TransactionKindDeposit       TransactionKind = "DEPOSIT"
	TransactionKindInternal      TransactionKind = "INTERNAL"
	TransactionKindWithdrawal    TransactionKind = "WITHDRAWAL"
	TransactionKindFee           TransactionKind = "FEE"
	TransactionKindFeeSettlement TransactionKind = "FEE_SETTLEMENT"
	TransactionKindExchangeFrom  TransactionKind = "EXCHANGE_FROM"
	TransactionKindExchangeTo    TransactionKind = "EXCHANGE_TO"
	TransactionKindFeeAdjust     TransactionKind = "FEE_ADJUST"
)

// Transaction is the atomic double-entry leaf: value moves from the Dr
// account to the Cr account. A transaction is owned by exactly one group.
type Transaction struct {
	ID          uuid.UUID         `json:"id"`
	GroupID     uuid.UUID         `json:"groupId"`
	UserID      uuid.UUID         `json:"userId"`
	DrAccountID uuid.UUID         `json:"drAccountId"`
	CrAccountID uuid.UUID         `json:"crAccountId"`
	Currency    Currency          `json:"currency"`
	Value       decimal.Decimal   `json:"value"`
	Kind        TransactionKind   `json:"kind"`
	Status      TransactionStatus `json:"status"`
	HoldUntil   *time.Time        `json:"holdUntil,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}
