package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountKind distinguishes the two sides of the double-entry ledger.
// A Dr account mirrors the balance of a payment-system-controlled
// blockchain wallet; a Cr account represents a claim on funds.
type AccountKind string

const (
	AccountKindDr AccountKind = "DR"
	AccountKindCr AccountKind = "CR"
)

// Account represents a ledger account
type Account struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"userId"`
	Currency  Currency        `json:"currency"`
	Address   string          `json:"address"`
	Name      string          `json:"name"`
	Kind      AccountKind     `json:"kind"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// AccountWithBalance pairs an account with its live balance derived from
// transactions, as opposed to the materialised Balance cache column.
type AccountWithBalance struct {
	Account Account
	Balance decimal.Decimal
}

// CreateAccountPairInput carries the parameters for provisioning the
// Dr/Cr pair backing one blockchain wallet address.
type CreateAccountPairInput struct {
	UserID   uuid.UUID `json:"userId"`
	Currency Currency  `json:"currency"`
	Address  string    `json:"address"`
	Name     string    `json:"name"`
}
