package usecases

import (
	"github.com/google/uuid"
	"wallet-ledger.backend/internal/config"
	"wallet-ledger.backend/internal/domain/entities"
	domainerrors "wallet-ledger.backend/internal/domain/errors"
)

// SystemAccounts resolves the well-known system accounts of each currency:
// the liquidity Dr/Cr pair backing exchanges and the fees Cr account that
// accumulates reserves.
type SystemAccounts struct {
	byCurrency map[entities.Currency]config.SystemAccountIDs
}

// NewSystemAccounts builds the resolver from configuration
func NewSystemAccounts(cfg *config.LedgerConfig) *SystemAccounts {
	byCurrency := make(map[entities.Currency]config.SystemAccountIDs, len(cfg.SystemAccounts))
	for currency, ids := range cfg.SystemAccounts {
		byCurrency[entities.Currency(currency)] = ids
	}
	return &SystemAccounts{byCurrency: byCurrency}
}

// LiquidityCr returns the system liquidity Cr account id for a currency
func (s *SystemAccounts) LiquidityCr(currency entities.Currency) (uuid.UUID, error) {
	return s.resolve(currency, func(ids config.SystemAccountIDs) uuid.UUID { return ids.LiquidityCr })
}

// LiquidityDr returns the system liquidity Dr account id for a currency
func (s *SystemAccounts) LiquidityDr(currency entities.Currency) (uuid.UUID, error) {
	return s.resolve(currency, func(ids config.SystemAccountIDs) uuid.UUID { return ids.LiquidityDr })
}

// FeesCr returns the system fees Cr account id for a currency
func (s *SystemAccounts) FeesCr(currency entities.Currency) (uuid.UUID, error) {
	return s.resolve(currency, func(ids config.SystemAccountIDs) uuid.UUID { return ids.FeesCr })
}

func (s *SystemAccounts) resolve(currency entities.Currency, pick func(config.SystemAccountIDs) uuid.UUID) (uuid.UUID, error) {
	ids, ok := s.byCurrency[currency]
	if !ok {
		return uuid.Nil, domainerrors.ErrUnknownAccount
	}
	id := pick(ids)
	if id == uuid.Nil {
		return uuid.Nil, domainerrors.ErrUnknownAccount
	}
	return id, nil
}
