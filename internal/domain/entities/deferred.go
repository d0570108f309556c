package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DeferredStatus represents deferred-record lifecycle state
type DeferredStatus string

const (
	DeferredStatusWaiting   DeferredStatus = "WAITING"
	DeferredStatusFired     DeferredStatus = "FIRED"
	DeferredStatusExpired   DeferredStatus = "EXPIRED"
	DeferredStatusCancelled DeferredStatus = "CANCELLED"
)

// DeferredConditionType selects between the two trigger kinds
type DeferredConditionType string

const (
	DeferredConditionTime    DeferredConditionType = "TIME"
	DeferredConditionBalance DeferredConditionType = "BALANCE"
)

// BalanceOp is the comparison applied to an account balance trigger
type BalanceOp string

const (
	BalanceOpGTE BalanceOp = "GTE"
	BalanceOpLTE BalanceOp = "LTE"
)

// DeferredCondition fires either at a wall-clock time or when an account
// balance crosses a threshold.
type DeferredCondition struct {
	Type      DeferredConditionType `json:"type"`
	At        time.Time             `json:"at,omitempty"`
	AccountID uuid.UUID             `json:"accountId,omitempty"`
	Op        BalanceOp             `json:"op,omitempty"`
	Threshold decimal.Decimal       `json:"threshold,omitempty"`
}

// DeferredRecord is a persisted state machine advanced by scheduler ticks.
// ExpiryIntent, when set, is submitted instead of Intent once ExpiresAt
// passes before the condition fires (typically a refund).
type DeferredRecord struct {
	ID           uuid.UUID         `json:"id"`
	Intent       Intent            `json:"intent"`
	Condition    DeferredCondition `json:"condition"`
	ExpiresAt    *time.Time        `json:"expiresAt,omitempty"`
	Status       DeferredStatus    `json:"status"`
	ExpiryIntent *Intent           `json:"expiryIntent,omitempty"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}
