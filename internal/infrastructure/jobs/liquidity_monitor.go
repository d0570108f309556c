package jobs

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"wallet-ledger.backend/internal/config"
	"wallet-ledger.backend/internal/domain/entities"
	"wallet-ledger.backend/internal/domain/repositories"
	"wallet-ledger.backend/internal/infrastructure/bus"
	"wallet-ledger.backend/internal/metrics"
	"wallet-ledger.backend/internal/usecases"
	"wallet-ledger.backend/pkg/logger"
)

// LiquidityMonitorJob watches the system liquidity and fees pools. It
// exports their balances, raises floor alerts, queues a rebalance request
// when a pool drops below its floor and forwards queued requests, its own
// and the exchange path's, to the treasury desk via the bus.
type LiquidityMonitorJob struct {
	accounts  repositories.AccountRepository
	kv        repositories.KeyValueRepository
	publisher bus.Publisher
	system    *usecases.SystemAccounts
	cfg       *config.LedgerConfig
	interval  time.Duration
	stop      chan struct{}
}

func NewLiquidityMonitorJob(
	accounts repositories.AccountRepository,
	kv repositories.KeyValueRepository,
	publisher bus.Publisher,
	system *usecases.SystemAccounts,
	cfg *config.LedgerConfig,
) *LiquidityMonitorJob {
	return &LiquidityMonitorJob{
		accounts:  accounts,
		kv:        kv,
		publisher: publisher,
		system:    system,
		cfg:       cfg,
		interval:  cfg.LiquidityInterval,
		stop:      make(chan struct{}),
	}
}

func (j *LiquidityMonitorJob) Start(ctx context.Context) {
	logger.Info(ctx, "starting liquidity monitor", zap.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "liquidity monitor stopped")
			return
		case <-j.stop:
			logger.Info(ctx, "liquidity monitor stopped")
			return
		case <-ticker.C:
			j.checkPools(ctx)
			j.forwardRebalances(ctx)
		}
	}
}

func (j *LiquidityMonitorJob) Stop() {
	close(j.stop)
}

func (j *LiquidityMonitorJob) checkPools(ctx context.Context) {
	for _, cur := range j.cfg.SupportedCurrencies {
		currency := entities.Currency(cur)

		liquidity, ok := j.poolBalance(ctx, currency, "liquidity")
		if ok {
			if floor, found := j.cfg.LiquidityFloor[cur]; found && liquidity.LessThan(floor) {
				j.alert(ctx, entities.AlertReasonLiquidityLow, currency,
					"liquidity pool below floor: "+liquidity.String()+" < "+floor.String())
				j.queueRebalance(ctx, currency, floor.Sub(liquidity))
			}
		}

		fees, ok := j.feesBalance(ctx, currency)
		if ok {
			if floor, found := j.cfg.FeesFloor[cur]; found && fees.LessThan(floor) {
				j.alert(ctx, entities.AlertReasonFeesFloorBreach, currency,
					"fees reserve below floor: "+fees.String()+" < "+floor.String())
			}
		}
	}
}

func (j *LiquidityMonitorJob) poolBalance(ctx context.Context, currency entities.Currency, pool string) (decimal.Decimal, bool) {
	id, err := j.system.LiquidityCr(currency)
	if err != nil {
		return decimal.Zero, false
	}
	account, err := j.accounts.GetByID(ctx, id)
	if err != nil {
		logger.Error(ctx, "liquidity account lookup failed",
			zap.String("currency", string(currency)), zap.Error(err))
		return decimal.Zero, false
	}
	metrics.LiquidityBalance.WithLabelValues(string(currency), pool).Set(balanceGauge(account.Balance))
	return account.Balance, true
}

func (j *LiquidityMonitorJob) feesBalance(ctx context.Context, currency entities.Currency) (decimal.Decimal, bool) {
	id, err := j.system.FeesCr(currency)
	if err != nil {
		return decimal.Zero, false
	}
	account, err := j.accounts.GetByID(ctx, id)
	if err != nil {
		logger.Error(ctx, "fees account lookup failed",
			zap.String("currency", string(currency)), zap.Error(err))
		return decimal.Zero, false
	}
	metrics.LiquidityBalance.WithLabelValues(string(currency), "fees").Set(balanceGauge(account.Balance))
	return account.Balance, true
}

// queueRebalance journals a rebalance request for the drained pool, the
// same marker the exchange path writes. The marker keeps one request
// outstanding per currency until the forwarding pass drains it.
func (j *LiquidityMonitorJob) queueRebalance(ctx context.Context, currency entities.Currency, deficit decimal.Decimal) {
	id, err := j.system.LiquidityCr(currency)
	if err != nil {
		return
	}
	key := usecases.RebalanceKeyPrefix + string(currency)
	var existing usecases.RebalanceRequest
	if found, err := j.kv.Get(ctx, key, &existing); err != nil || found {
		return
	}
	if err := j.kv.Set(ctx, key, usecases.RebalanceRequest{
		Currency:    currency,
		AccountID:   id,
		Value:       deficit,
		RequestedAt: time.Now(),
	}); err != nil {
		logger.Warn(ctx, "failed to queue rebalance",
			zap.String("currency", string(currency)), zap.Error(err))
	}
}

// forwardRebalances drains the rebalance markers queued by exchanges. The
// treasury desk moves the funds; the marker only guards against queueing
// the same currency twice.
func (j *LiquidityMonitorJob) forwardRebalances(ctx context.Context) {
	raw, err := j.kv.ListByPrefix(ctx, usecases.RebalanceKeyPrefix)
	if err != nil {
		logger.Error(ctx, "rebalance marker scan failed", zap.Error(err))
		return
	}

	for key, value := range raw {
		var req usecases.RebalanceRequest
		if err := json.Unmarshal(value, &req); err != nil {
			logger.Error(ctx, "corrupt rebalance marker", zap.String("key", key), zap.Error(err))
			continue
		}

		j.alert(ctx, entities.AlertReasonLiquidityLow, req.Currency,
			"rebalance requested: replenish "+req.Value.String()+" "+string(req.Currency))
		metrics.RebalancesTotal.WithLabelValues(string(req.Currency)).Inc()

		if err := j.kv.Delete(ctx, key); err != nil {
			logger.Error(ctx, "rebalance marker delete failed", zap.String("key", key), zap.Error(err))
			continue
		}
		logger.Info(ctx, "rebalance forwarded",
			zap.String("currency", strings.TrimPrefix(key, usecases.RebalanceKeyPrefix)),
			zap.String("value", req.Value.String()))
	}
}

func (j *LiquidityMonitorJob) alert(ctx context.Context, reason entities.AlertReason, currency entities.Currency, message string) {
	metrics.AlertsPublishedTotal.WithLabelValues(string(reason)).Inc()
	if err := j.publisher.PublishAlert(ctx, &entities.Alert{
		Reason:   reason,
		Currency: currency,
		Message:  message,
	}); err != nil {
		logger.Error(ctx, "alert publish failed", zap.Error(err))
	}
}

func balanceGauge(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
