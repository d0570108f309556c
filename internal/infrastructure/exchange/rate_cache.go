package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"wallet-ledger.backend/internal/domain/entities"
	"wallet-ledger.backend/pkg/logger"
	"wallet-ledger.backend/pkg/redis"
)

// CachedRates wraps a Client with a short-lived redis cache over
// MarketRate, which the liquidity monitor polls every cycle. Quotes are
// never cached; a quote is a commitment and always comes from the desk.
type CachedRates struct {
	Client
	ttl time.Duration
}

// NewCachedRates wraps client with a market-rate cache
func NewCachedRates(client Client, ttl time.Duration) *CachedRates {
	return &CachedRates{Client: client, ttl: ttl}
}

type cachedRate struct {
	Rate decimal.Decimal `json:"rate"`
}

// MarketRate serves from redis when a fresh value exists, falling through
// to the desk otherwise. Cache failures degrade to a desk call.
func (c *CachedRates) MarketRate(ctx context.Context, from, to entities.Currency) (decimal.Decimal, error) {
	key := rateKey(from, to)

	raw, err := redis.Get(ctx, key)
	if err == nil {
		var cached cachedRate
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			return cached.Rate, nil
		}
	} else if !errors.Is(err, goredis.Nil) {
		logger.Warn(ctx, "rate cache read failed", zap.String("key", key), zap.Error(err))
	}

	rate, err := c.Client.MarketRate(ctx, from, to)
	if err != nil {
		return decimal.Zero, err
	}

	if raw, err := json.Marshal(cachedRate{Rate: rate}); err == nil {
		if err := redis.Set(ctx, key, string(raw), c.ttl); err != nil {
			logger.Warn(ctx, "rate cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return rate, nil
}

func rateKey(from, to entities.Currency) string {
	return fmt.Sprintf("rate:%s:%s", from, to)
}
