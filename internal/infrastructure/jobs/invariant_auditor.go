package jobs

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"wallet-ledger.backend/internal/config"
	"wallet-ledger.backend/internal/domain/entities"
	"wallet-ledger.backend/internal/domain/repositories"
	"wallet-ledger.backend/internal/infrastructure/blockchain"
	"wallet-ledger.backend/internal/infrastructure/bus"
	"wallet-ledger.backend/internal/metrics"
	"wallet-ledger.backend/internal/usecases"
	"wallet-ledger.backend/pkg/logger"
)

// InvariantAuditorJob periodically cross-checks the ledger against itself
// and against the chain. A detected violation raises an alert and, when
// configured, suspends new group commits until an operator intervenes.
type InvariantAuditorJob struct {
	accounts     repositories.AccountRepository
	transactions repositories.TransactionRepository
	groups       repositories.TxGroupRepository
	kv           repositories.KeyValueRepository
	gateways     *blockchain.Registry
	publisher    bus.Publisher
	cfg          *config.LedgerConfig
	interval     time.Duration
	stop         chan struct{}
}

func NewInvariantAuditorJob(
	accounts repositories.AccountRepository,
	transactions repositories.TransactionRepository,
	groups repositories.TxGroupRepository,
	kv repositories.KeyValueRepository,
	gateways *blockchain.Registry,
	publisher bus.Publisher,
	cfg *config.LedgerConfig,
) *InvariantAuditorJob {
	return &InvariantAuditorJob{
		accounts:     accounts,
		transactions: transactions,
		groups:       groups,
		kv:           kv,
		gateways:     gateways,
		publisher:    publisher,
		cfg:          cfg,
		interval:     cfg.AuditInterval,
		stop:         make(chan struct{}),
	}
}

func (j *InvariantAuditorJob) Start(ctx context.Context) {
	logger.Info(ctx, "starting invariant auditor", zap.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "invariant auditor stopped")
			return
		case <-j.stop:
			logger.Info(ctx, "invariant auditor stopped")
			return
		case <-ticker.C:
			j.runAudit(ctx)
		}
	}
}

func (j *InvariantAuditorJob) Stop() {
	close(j.stop)
}

func (j *InvariantAuditorJob) runAudit(ctx context.Context) {
	metrics.AuditRunsTotal.Inc()

	accounts, err := j.accounts.ListAll(ctx)
	if err != nil {
		logger.Error(ctx, "audit account scan failed", zap.Error(err))
		return
	}

	drTotals := make(map[entities.Currency]decimal.Decimal)
	crTotals := make(map[entities.Currency]decimal.Decimal)
	for _, account := range accounts {
		live, err := j.transactions.AccountBalance(ctx, account.ID, account.Kind)
		if err != nil {
			logger.Error(ctx, "audit balance derivation failed",
				zap.String("accountId", account.ID.String()), zap.Error(err))
			continue
		}

		if live.IsNegative() {
			j.violation(ctx, "negative_balance", account.Currency,
				"account "+account.ID.String()+" derives to "+live.String())
		}
		if !live.Equal(account.Balance) {
			j.violation(ctx, "cache_drift", account.Currency,
				"account "+account.ID.String()+" cache "+account.Balance.String()+" vs derived "+live.String())
		}

		if account.Kind == entities.AccountKindDr {
			drTotals[account.Currency] = drTotals[account.Currency].Add(live)
		} else {
			crTotals[account.Currency] = crTotals[account.Currency].Add(live)
		}
	}

	// Every claim must be covered by custody holdings of the same currency.
	for currency, crTotal := range crTotals {
		if drTotals[currency].LessThan(crTotal) {
			j.violation(ctx, "undercollateralized", currency,
				"claims "+crTotal.String()+" exceed custody "+drTotals[currency].String())
		}
	}

	j.auditWalletMirror(ctx, accounts)
	j.auditStalePending(ctx)
}

// auditWalletMirror compares each custody account against the chain. The
// chain is the source of truth for Dr accounts; a shortfall there means
// the ledger promises funds the wallets no longer hold.
func (j *InvariantAuditorJob) auditWalletMirror(ctx context.Context, accounts []*entities.Account) {
	for _, account := range accounts {
		if account.Kind != entities.AccountKindDr || account.Address == "" {
			continue
		}
		gateway, err := j.gateways.Get(account.Currency)
		if err != nil {
			continue
		}
		onChain, err := gateway.Balance(ctx, account.Currency, account.Address)
		if err != nil {
			logger.Warn(ctx, "audit chain balance fetch failed",
				zap.String("address", account.Address), zap.Error(err))
			continue
		}
		if onChain.LessThan(account.Balance) {
			j.violation(ctx, "wallet_mirror", account.Currency,
				"wallet "+account.Address+" holds "+onChain.String()+", ledger expects "+account.Balance.String())
		}
	}
}

// auditStalePending flags withdrawals stuck in PENDING past the configured
// window. Stale groups alert but never suspend; the funds are reserved,
// not lost.
func (j *InvariantAuditorJob) auditStalePending(ctx context.Context) {
	cutoff := time.Now().Add(-j.cfg.StalePendingAfter)
	stale, err := j.groups.ListPendingOlderThan(ctx, cutoff)
	if err != nil {
		logger.Error(ctx, "audit stale-pending scan failed", zap.Error(err))
		return
	}
	for _, group := range stale {
		metrics.AlertsPublishedTotal.WithLabelValues(string(entities.AlertReasonStalePending)).Inc()
		if err := j.publisher.PublishAlert(ctx, &entities.Alert{
			Reason:  entities.AlertReasonStalePending,
			Message: "group pending since " + group.CreatedAt.Format(time.RFC3339),
			GroupID: group.ID,
		}); err != nil {
			logger.Error(ctx, "alert publish failed", zap.Error(err))
		}
	}
}

func (j *InvariantAuditorJob) violation(ctx context.Context, invariant string, currency entities.Currency, message string) {
	metrics.InvariantViolationsTotal.WithLabelValues(invariant, string(currency)).Inc()
	logger.Error(ctx, "invariant violation",
		zap.String("invariant", invariant),
		zap.String("currency", string(currency)),
		zap.String("detail", message))

	metrics.AlertsPublishedTotal.WithLabelValues(string(entities.AlertReasonInvariantViolation)).Inc()
	if err := j.publisher.PublishAlert(ctx, &entities.Alert{
		Reason:   entities.AlertReasonInvariantViolation,
		Currency: currency,
		Message:  invariant + ": " + message,
	}); err != nil {
		logger.Error(ctx, "alert publish failed", zap.Error(err))
	}

	if j.cfg.SuspendOnViolation {
		if err := j.kv.Set(ctx, usecases.SuspendFlagKey, true); err != nil {
			logger.Error(ctx, "failed to set suspend flag", zap.Error(err))
			return
		}
		metrics.OperationsSuspended.Set(1)
	}
}
