package usecases

import (
	"github.com/shopspring/decimal"
	"wallet-ledger.backend/internal/domain/entities"
)

// confirmationStep maps a USD value ceiling to the confirmations required
// below it. Steps are evaluated in order; values at or above every ceiling
// take the final confirmation count.
type confirmationStep struct {
	BelowUSD      decimal.Decimal
	Confirmations int
}

// ConfirmationPolicy decides how many confirmations an observation needs
// before the engine acts on it. Thresholds are monotonic in USD value, so
// a growing confirmation count can never lose eligibility.
type ConfirmationPolicy struct {
	steps map[entities.Currency][]confirmationStep
	final map[entities.Currency]int
}

// DefaultConfirmationPolicy returns the production threshold tables
func DefaultConfirmationPolicy() *ConfirmationPolicy {
	return &ConfirmationPolicy{
		steps: map[entities.Currency][]confirmationStep{
			entities.CurrencyETH: {
				{decimal.NewFromInt(20), 0},
				{decimal.NewFromInt(50), 1},
				{decimal.NewFromInt(200), 2},
				{decimal.NewFromInt(500), 3},
				{decimal.NewFromInt(1000), 4},
				{decimal.NewFromInt(2000), 5},
				{decimal.NewFromInt(3000), 6},
				{decimal.NewFromInt(5000), 8},
			},
			entities.CurrencyBTC: {
				{decimal.NewFromInt(100), 0},
				{decimal.NewFromInt(500), 1},
				{decimal.NewFromInt(1000), 2},
			},
		},
		final: map[entities.Currency]int{
			entities.CurrencyETH: 12,
			entities.CurrencyBTC: 3,
		},
	}
}

// Required returns the confirmations needed for a transfer worth usdValue.
// Unknown currencies take the most conservative known requirement.
func (p *ConfirmationPolicy) Required(currency entities.Currency, usdValue decimal.Decimal) int {
	steps, ok := p.steps[currency]
	if !ok {
		max := 0
		for _, n := range p.final {
			if n > max {
				max = n
			}
		}
		return max
	}
	for _, step := range steps {
		if usdValue.LessThan(step.BelowUSD) {
			return step.Confirmations
		}
	}
	return p.final[currency]
}

// Sufficient reports whether an observation has enough confirmations
func (p *ConfirmationPolicy) Sufficient(currency entities.Currency, usdValue decimal.Decimal, confirmations int) bool {
	return confirmations >= p.Required(currency, usdValue)
}
