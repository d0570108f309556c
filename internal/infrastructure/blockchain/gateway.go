package blockchain

import (
	"context"

	"github.com/shopspring/decimal"
	"wallet-ledger.backend/internal/domain/entities"
)

// SubmitRequest carries an outbound transfer handed to the custody signer.
// A withdrawal drawn from several custody wallets lists every source
// address; the signer consolidates them into one broadcast transaction.
type SubmitRequest struct {
	Currency      entities.Currency `json:"currency"`
	FromAddresses []string          `json:"fromAddresses"`
	ToAddress     string            `json:"toAddress"`
	Value         decimal.Decimal   `json:"value"`
	FeePrice      decimal.Decimal   `json:"feePrice"`
	Nonce         *uint64           `json:"nonce,omitempty"`
}

// SubmitResult is the signer's acknowledgement of a broadcast transfer
type SubmitResult struct {
	Hash  string          `json:"hash"`
	Fee   decimal.Decimal `json:"fee"`
	Nonce uint64          `json:"nonce"`
}

// Gateway is the engine's view of a blockchain. Key custody and signing
// live behind it; the ledger only ever sees addresses, hashes and values.
type Gateway interface {
	// Submit hands an outbound transfer to the signer for broadcast and
	// returns the resulting transaction hash and actual fee.
	Submit(ctx context.Context, req *SubmitRequest) (*SubmitResult, error)

	// FetchByHash returns the observed on-chain state of one transaction,
	// or ErrNotFound when the node does not know the hash.
	FetchByHash(ctx context.Context, currency entities.Currency, hash string) (*entities.BlockchainTransaction, error)

	// FetchByAddress lists recent transfers touching an address.
	FetchByAddress(ctx context.Context, currency entities.Currency, address string) ([]*entities.BlockchainTransaction, error)

	// Balance returns the confirmed on-chain balance of an address.
	Balance(ctx context.Context, currency entities.Currency, address string) (decimal.Decimal, error)

	// EstimateFee returns the current network fee for a standard transfer.
	EstimateFee(ctx context.Context, currency entities.Currency) (decimal.Decimal, error)
}
