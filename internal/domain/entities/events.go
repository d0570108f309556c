package entities

import (
	"github.com/google/uuid"
)

// GroupEvent is published to the bus when a group commits or advances
type GroupEvent struct {
	GroupID          uuid.UUID   `json:"groupId"`
	Kind             GroupKind   `json:"kind"`
	Status           GroupStatus `json:"status"`
	AccountIDs       []uuid.UUID `json:"accountIds"`
	Values           []string    `json:"values"`
	BlockchainTxHash string      `json:"blockchainTxHash,omitempty"`
	ActualFee        string      `json:"actualFee,omitempty"`
}

// AlertReason types the operational alerts the engine can raise
type AlertReason string

const (
	AlertReasonStrangeTx          AlertReason = "STRANGE_TX"
	AlertReasonInvariantViolation AlertReason = "INVARIANT_VIOLATION"
	AlertReasonFeesFloorBreach    AlertReason = "FEES_FLOOR_BREACH"
	AlertReasonLiquidityLow       AlertReason = "LIQUIDITY_LOW"
	AlertReasonStalePending       AlertReason = "STALE_PENDING"
)

// Alert is published to the bus on operational anomalies
type Alert struct {
	Reason   AlertReason `json:"reason"`
	Currency Currency    `json:"currency,omitempty"`
	Message  string      `json:"message"`
	GroupID  uuid.UUID   `json:"groupId,omitempty"`
	TxHash   string      `json:"txHash,omitempty"`
}
