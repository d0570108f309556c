package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecipientType says whether an intent's destination is a ledger account
// id or a raw blockchain address.
type RecipientType string

const (
	RecipientTypeAccount RecipientType = "ACCOUNT"
	RecipientTypeAddress RecipientType = "ADDRESS"
)

// Intent is the normalised request the group builder dispatches on. ID is
// client-generated and doubles as the idempotency key and the group id.
type Intent struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"userId"`
	Kind         GroupKind       `json:"kind"`
	From         uuid.UUID       `json:"from,omitempty"`
	To           string          `json:"to,omitempty"`
	ToType       RecipientType   `json:"toType"`
	FromCurrency Currency        `json:"fromCurrency"`
	ToCurrency   Currency        `json:"toCurrency"`
	Value        decimal.Decimal `json:"value"`
	Fee          decimal.Decimal `json:"fee"`

	// Exchange intents carry the quote fixed at issuance time
	RateID        uuid.UUID       `json:"rateId,omitempty"`
	Rate          decimal.Decimal `json:"rate,omitempty"`
	RateExpiresAt time.Time       `json:"rateExpiresAt,omitempty"`

	// FeeAdjust intents require an operator rationale
	Rationale string `json:"rationale,omitempty"`
}

// DepositObservation is the builder input derived from a confirmed inbound
// blockchain transaction.
type DepositObservation struct {
	IntentID uuid.UUID
	Account  Account
	Value    decimal.Decimal
	TxHash   string
}
