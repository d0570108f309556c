package blockchain

import (
	"context"

	"github.com/shopspring/decimal"
	"wallet-ledger.backend/internal/domain/entities"
	domainerrors "wallet-ledger.backend/internal/domain/errors"
)

// SignerGateway implements Gateway entirely through the custody signer.
// Used for chains the engine has no direct node client for.
type SignerGateway struct {
	signer *SignerClient
}

// NewSignerGateway wraps a signer client as a Gateway
func NewSignerGateway(signer *SignerClient) *SignerGateway {
	return &SignerGateway{signer: signer}
}

func (g *SignerGateway) Submit(ctx context.Context, req *SubmitRequest) (*SubmitResult, error) {
	return g.signer.Submit(ctx, req)
}

func (g *SignerGateway) FetchByHash(ctx context.Context, currency entities.Currency, hash string) (*entities.BlockchainTransaction, error) {
	return g.signer.FetchByHash(ctx, currency, hash)
}

func (g *SignerGateway) FetchByAddress(ctx context.Context, currency entities.Currency, address string) ([]*entities.BlockchainTransaction, error) {
	return g.signer.ListByAddress(ctx, currency, address)
}

func (g *SignerGateway) Balance(ctx context.Context, currency entities.Currency, address string) (decimal.Decimal, error) {
	return g.signer.Balance(ctx, currency, address)
}

func (g *SignerGateway) EstimateFee(ctx context.Context, currency entities.Currency) (decimal.Decimal, error) {
	return g.signer.EstimateFee(ctx, currency)
}

// Registry resolves the Gateway serving a currency
type Registry struct {
	gateways map[entities.Currency]Gateway
}

// NewRegistry creates a gateway registry
func NewRegistry() *Registry {
	return &Registry{gateways: make(map[entities.Currency]Gateway)}
}

// Register binds a gateway to a currency
func (r *Registry) Register(currency entities.Currency, gateway Gateway) {
	r.gateways[currency] = gateway
}

// Get returns the gateway for a currency, or ErrInvalidInput when the
// currency has none registered.
func (r *Registry) Get(currency entities.Currency) (Gateway, error) {
	gateway, ok := r.gateways[currency]
	if !ok {
		return nil, domainerrors.ErrInvalidInput
	}
	return gateway, nil
}
