package blockchain

import (
	"regexp"

	"github.com/ethereum/go-ethereum/common"
	"wallet-ledger.backend/internal/domain/entities"
)

var btcAddressPattern = regexp.MustCompile(`^(bc1[a-z0-9]{25,62}|[13][a-km-zA-HJ-NP-Z1-9]{25,34})$`)

// ValidAddress reports whether address is well formed for the currency.
// ETH uses the canonical hex check; BTC accepts legacy base58 and bech32
// shapes without verifying the checksum, which the node does on submit.
func ValidAddress(currency entities.Currency, address string) bool {
	switch currency {
	case entities.CurrencyETH:
		return common.IsHexAddress(address) && common.HexToAddress(address) != (common.Address{})
	case entities.CurrencyBTC:
		return btcAddressPattern.MatchString(address)
	default:
		return false
	}
}
