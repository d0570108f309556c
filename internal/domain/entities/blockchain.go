package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// BlockchainTransaction is an observed, confirmed on-chain transfer.
// Rows are immutable once recorded; only the confirmation count may move.
type BlockchainTransaction struct {
	Hash          string          `json:"hash"`
	FromAddress   string          `json:"fromAddress"`
	ToAddress     string          `json:"toAddress"`
	Currency      Currency        `json:"currency"`
	Value         decimal.Decimal `json:"value"`
	Fee           decimal.Decimal `json:"fee"`
	BlockNumber   int64           `json:"blockNumber"`
	Confirmations int             `json:"confirmations"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// PendingBlockchainTransaction is an outbound transfer submitted to a
// blockchain but not yet observed in a block.
type PendingBlockchainTransaction struct {
	Hash        string          `json:"hash"`
	FromAddress string          `json:"fromAddress"`
	ToAddress   string          `json:"toAddress"`
	Currency    Currency        `json:"currency"`
	Value       decimal.Decimal `json:"value"`
	Fee         decimal.Decimal `json:"fee"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// StrangeBlockchainTransaction is an observed on-chain event the engine
// could not reconcile against the ledger.
type StrangeBlockchainTransaction struct {
	BlockchainTransaction
	Commentary string `json:"commentary"`
}

// SeenHash is the idempotency guard for blockchain observations
type SeenHash struct {
	Hash        string    `json:"hash"`
	BlockNumber int64     `json:"blockNumber"`
	Currency    Currency  `json:"currency"`
	CreatedAt   time.Time `json:"createdAt"`
}
