package entities

// Currency is the ticker symbol of a supported cryptocurrency
type Currency string

const (
	CurrencyETH Currency = "ETH"
	CurrencyBTC Currency = "BTC"

	// CurrencyUSD is never held on the ledger; it only denominates
	// confirmation thresholds and market rates.
	CurrencyUSD Currency = "USD"
)

func (c Currency) String() string {
	return string(c)
}
