package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"wallet-ledger.backend/internal/domain/entities"
	domainerrors "wallet-ledger.backend/internal/domain/errors"
	"wallet-ledger.backend/internal/domain/repositories"
	"wallet-ledger.backend/internal/metrics"
	"wallet-ledger.backend/pkg/logger"
)

// DeferredKeyPrefix namespaces deferred records in the key-value journal
const DeferredKeyPrefix = "deferred/"

// DeferredUsecase manages deferred intents: persisted state machines that
// fire a group build when a time or balance condition is met, or fall back
// to an expiry intent when the window closes first.
type DeferredUsecase struct {
	kv           repositories.KeyValueRepository
	accounts     repositories.AccountRepository
	transactions repositories.TransactionRepository
	ledger       *LedgerUsecase
}

// NewDeferredUsecase creates the deferred intent manager
func NewDeferredUsecase(
	kv repositories.KeyValueRepository,
	accounts repositories.AccountRepository,
	transactions repositories.TransactionRepository,
	ledger *LedgerUsecase,
) *DeferredUsecase {
	return &DeferredUsecase{
		kv:           kv,
		accounts:     accounts,
		transactions: transactions,
		ledger:       ledger,
	}
}

// Schedule registers a deferred record. The record id is client supplied
// and doubles as the idempotency key.
func (d *DeferredUsecase) Schedule(ctx context.Context, record *entities.DeferredRecord) error {
	if record.ID == uuid.Nil || record.Intent.ID == uuid.Nil {
		return domainerrors.ErrInvalidInput
	}
	switch record.Condition.Type {
	case entities.DeferredConditionTime:
		if record.Condition.At.IsZero() {
			return domainerrors.ErrInvalidInput
		}
	case entities.DeferredConditionBalance:
		if record.Condition.AccountID == uuid.Nil {
			return domainerrors.ErrInvalidInput
		}
		if record.Condition.Op != entities.BalanceOpGTE && record.Condition.Op != entities.BalanceOpLTE {
			return domainerrors.ErrInvalidInput
		}
	default:
		return domainerrors.ErrInvalidInput
	}
	if record.ExpiryIntent != nil && record.ExpiresAt == nil {
		return domainerrors.ErrInvalidInput
	}

	var existing entities.DeferredRecord
	found, err := d.kv.Get(ctx, DeferredKeyPrefix+record.ID.String(), &existing)
	if err != nil {
		return err
	}
	if found {
		return nil
	}

	record.Status = entities.DeferredStatusWaiting
	record.UpdatedAt = time.Now()
	return d.kv.Set(ctx, DeferredKeyPrefix+record.ID.String(), record)
}

// Cancel withdraws a waiting record. Operator initiated only; a record
// that already fired or expired cannot be taken back.
func (d *DeferredUsecase) Cancel(ctx context.Context, id uuid.UUID) error {
	key := DeferredKeyPrefix + id.String()
	var record entities.DeferredRecord
	found, err := d.kv.Get(ctx, key, &record)
	if err != nil {
		return err
	}
	if !found {
		return domainerrors.ErrNotFound
	}
	if record.Status != entities.DeferredStatusWaiting {
		return domainerrors.ErrIllegalTransition
	}

	record.Status = entities.DeferredStatusCancelled
	record.UpdatedAt = time.Now()
	logger.Info(ctx, "deferred record cancelled", zap.String("deferredId", id.String()))
	return d.kv.Set(ctx, key, &record)
}

// Get returns one deferred record
func (d *DeferredUsecase) Get(ctx context.Context, id uuid.UUID) (*entities.DeferredRecord, error) {
	var record entities.DeferredRecord
	found, err := d.kv.Get(ctx, DeferredKeyPrefix+id.String(), &record)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domainerrors.ErrNotFound
	}
	return &record, nil
}

// Tick evaluates every waiting record once. Evaluation errors on one
// record never block the rest of the pass.
func (d *DeferredUsecase) Tick(ctx context.Context) error {
	raw, err := d.kv.ListByPrefix(ctx, DeferredKeyPrefix)
	if err != nil {
		return err
	}

	waiting := 0
	now := time.Now()
	for key, value := range raw {
		var record entities.DeferredRecord
		if err := json.Unmarshal(value, &record); err != nil {
			logger.Error(ctx, "corrupt deferred record", zap.String("key", key), zap.Error(err))
			continue
		}
		if record.Status != entities.DeferredStatusWaiting {
			continue
		}

		advanced, err := d.evaluate(ctx, key, &record, now)
		if err != nil {
			logger.Error(ctx, "deferred evaluation failed",
				zap.String("deferredId", record.ID.String()), zap.Error(err))
		}
		if !advanced {
			waiting++
		}
	}
	metrics.DeferredWaiting.Set(float64(waiting))
	return nil
}

// evaluate advances one waiting record. Expiry wins over a condition that
// comes true on the same tick.
func (d *DeferredUsecase) evaluate(ctx context.Context, key string, record *entities.DeferredRecord, now time.Time) (bool, error) {
	if record.ExpiresAt != nil && !now.Before(*record.ExpiresAt) {
		if record.ExpiryIntent != nil {
			if _, err := d.ledger.Build(ctx, record.ExpiryIntent); err != nil && !buildSettled(err) {
				metrics.DeferredFiredTotal.WithLabelValues("error").Inc()
				return false, err
			}
		}
		record.Status = entities.DeferredStatusExpired
		record.UpdatedAt = now
		metrics.DeferredFiredTotal.WithLabelValues("expired").Inc()
		logger.Info(ctx, "deferred record expired", zap.String("deferredId", record.ID.String()))
		return true, d.kv.Set(ctx, key, record)
	}

	met, err := d.conditionMet(ctx, &record.Condition, now)
	if err != nil {
		return false, err
	}
	if !met {
		return false, nil
	}

	if _, err := d.ledger.Build(ctx, &record.Intent); err != nil && !buildSettled(err) {
		// Transient failures retry next tick; the intent id keeps the
		// retry idempotent.
		metrics.DeferredFiredTotal.WithLabelValues("error").Inc()
		return false, err
	}
	record.Status = entities.DeferredStatusFired
	record.UpdatedAt = now
	metrics.DeferredFiredTotal.WithLabelValues("fired").Inc()
	logger.Info(ctx, "deferred record fired",
		zap.String("deferredId", record.ID.String()),
		zap.String("groupId", record.Intent.ID.String()))
	return true, d.kv.Set(ctx, key, record)
}

func (d *DeferredUsecase) conditionMet(ctx context.Context, cond *entities.DeferredCondition, now time.Time) (bool, error) {
	switch cond.Type {
	case entities.DeferredConditionTime:
		return !now.Before(cond.At), nil
	case entities.DeferredConditionBalance:
		account, err := d.accounts.GetByID(ctx, cond.AccountID)
		if err != nil {
			return false, err
		}
		live, err := d.transactions.AccountBalance(ctx, account.ID, account.Kind)
		if err != nil {
			return false, err
		}
		if cond.Op == entities.BalanceOpGTE {
			return live.GreaterThanOrEqual(cond.Threshold), nil
		}
		return live.LessThanOrEqual(cond.Threshold), nil
	default:
		return false, domainerrors.ErrInvalidInput
	}
}

// buildSettled reports whether a build error means the intent already has
// a group and the record can advance anyway.
func buildSettled(err error) bool {
	return errors.Is(err, domainerrors.ErrConflict) || errors.Is(err, domainerrors.ErrIdempotentReplay)
}
