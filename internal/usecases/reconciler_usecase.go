package usecases

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"wallet-ledger.backend/internal/domain/entities"
	domainerrors "wallet-ledger.backend/internal/domain/errors"
	"wallet-ledger.backend/internal/domain/repositories"
	"wallet-ledger.backend/internal/infrastructure/bus"
	"wallet-ledger.backend/internal/infrastructure/exchange"
	"wallet-ledger.backend/internal/metrics"
	"wallet-ledger.backend/pkg/logger"
)

// ReconcilerUsecase turns observed on-chain transactions into ledger
// effects: it confirms pending withdrawals, books deposits and quarantines
// anything it cannot reconcile. Observations are idempotent; the seen-hash
// table serialises concurrent sightings of the same transaction.
type ReconcilerUsecase struct {
	uow           repositories.UnitOfWork
	ledger        *LedgerUsecase
	accounts      repositories.AccountRepository
	groups        repositories.TxGroupRepository
	blockchainTxs repositories.BlockchainTxRepository
	pendingTxs    repositories.PendingBlockchainTxRepository
	strangeTxs    repositories.StrangeBlockchainTxRepository
	seenHashes    repositories.SeenHashRepository
	exchange      exchange.Client
	publisher     bus.Publisher
	policy        *ConfirmationPolicy
}

// NewReconcilerUsecase creates the reconciler
func NewReconcilerUsecase(
	uow repositories.UnitOfWork,
	ledger *LedgerUsecase,
	accounts repositories.AccountRepository,
	groups repositories.TxGroupRepository,
	blockchainTxs repositories.BlockchainTxRepository,
	pendingTxs repositories.PendingBlockchainTxRepository,
	strangeTxs repositories.StrangeBlockchainTxRepository,
	seenHashes repositories.SeenHashRepository,
	exchangeClient exchange.Client,
	publisher bus.Publisher,
) *ReconcilerUsecase {
	return &ReconcilerUsecase{
		uow:           uow,
		ledger:        ledger,
		accounts:      accounts,
		groups:        groups,
		blockchainTxs: blockchainTxs,
		pendingTxs:    pendingTxs,
		strangeTxs:    strangeTxs,
		seenHashes:    seenHashes,
		exchange:      exchangeClient,
		publisher:     publisher,
		policy:        DefaultConfirmationPolicy(),
	}
}

// DepositGroupID derives the deterministic group id booked for an inbound
// observation, so re-observations of the same hash converge on one group.
func DepositGroupID(currency entities.Currency, hash string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("deposit/"+string(currency)+"/"+hash))
}

// ProcessObservation reconciles one observed on-chain transaction against
// the ledger. Safe to call repeatedly with the same transaction.
func (r *ReconcilerUsecase) ProcessObservation(ctx context.Context, obs *entities.BlockchainTransaction) error {
	currency := string(obs.Currency)

	seen, err := r.seenHashes.Exists(ctx, obs.Hash, obs.Currency)
	if err != nil {
		return err
	}
	if seen {
		// Already handled; only the confirmation count can still move.
		if err := r.refreshConfirmations(ctx, obs); err != nil {
			return err
		}
		metrics.ObservationsTotal.WithLabelValues(currency, "duplicate").Inc()
		return nil
	}

	pending, err := r.groups.FindPendingByHash(ctx, obs.Hash)
	if err != nil {
		return err
	}
	if len(pending) > 0 {
		return r.processOutbound(ctx, obs, pending[0])
	}

	destination, err := r.accounts.GetByAddress(ctx, obs.ToAddress, obs.Currency, entities.AccountKindDr)
	if err == nil {
		return r.processInbound(ctx, obs, destination)
	}
	if !errors.Is(err, domainerrors.ErrNotFound) {
		return err
	}

	return r.quarantine(ctx, obs, r.strangeCommentary(ctx, obs))
}

// processOutbound confirms a pending withdrawal once its transaction has
// enough confirmations. Under-confirmed sightings are skipped without a
// seen-hash write so a later sighting retries.
func (r *ReconcilerUsecase) processOutbound(ctx context.Context, obs *entities.BlockchainTransaction, group *entities.TransactionGroup) error {
	currency := string(obs.Currency)

	full, err := r.groups.GetByID(ctx, group.ID)
	if err != nil {
		return err
	}
	expected := decimal.Zero
	for i := range full.Transactions {
		if full.Transactions[i].Kind == entities.TransactionKindWithdrawal {
			expected = expected.Add(full.Transactions[i].Value)
		}
	}
	if !obs.Value.Equal(expected) {
		return r.quarantine(ctx, obs, fmt.Sprintf(
			"value mismatch: group %s expects %s, chain carries %s",
			group.ID, expected, obs.Value))
	}

	sufficient, err := r.sufficientlyConfirmed(ctx, obs)
	if err != nil {
		return err
	}
	if !sufficient {
		metrics.ObservationsTotal.WithLabelValues(currency, "waiting").Inc()
		return nil
	}

	// Confirmation runs in its own scope first. If the bookkeeping below
	// fails, a re-observation finds the group already DONE and only
	// records the sighting.
	if err := r.ledger.ConfirmWithdrawal(ctx, group.ID, obs.Fee); err != nil {
		return err
	}

	err = r.uow.Do(ctx, func(ctx context.Context) error {
		if err := r.seenHashes.Create(ctx, &entities.SeenHash{
			Hash:        obs.Hash,
			BlockNumber: obs.BlockNumber,
			Currency:    obs.Currency,
		}); err != nil {
			return err
		}
		if err := r.recordObserved(ctx, obs); err != nil {
			return err
		}
		return r.pendingTxs.DeleteByHash(ctx, obs.Hash)
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrConflict) {
			metrics.ObservationsTotal.WithLabelValues(currency, "duplicate").Inc()
			return nil
		}
		return err
	}

	metrics.ObservationsTotal.WithLabelValues(currency, "withdrawal_confirmed").Inc()
	logger.Info(ctx, "withdrawal confirmed",
		zap.String("groupId", group.ID.String()),
		zap.String("hash", obs.Hash),
		zap.String("actualFee", obs.Fee.String()))
	return nil
}

// processInbound books a deposit for a confirmed transfer into a custody
// address. Seen-hash, observed record and the deposit group commit in one
// scope; the event publishes after.
func (r *ReconcilerUsecase) processInbound(ctx context.Context, obs *entities.BlockchainTransaction, destination *entities.Account) error {
	currency := string(obs.Currency)

	sufficient, err := r.sufficientlyConfirmed(ctx, obs)
	if err != nil {
		return err
	}
	if !sufficient {
		metrics.ObservationsTotal.WithLabelValues(currency, "waiting").Inc()
		return nil
	}

	var group *entities.TransactionGroup
	err = r.uow.Do(ctx, func(ctx context.Context) error {
		if err := r.seenHashes.Create(ctx, &entities.SeenHash{
			Hash:        obs.Hash,
			BlockNumber: obs.BlockNumber,
			Currency:    obs.Currency,
		}); err != nil {
			return err
		}
		if err := r.recordObserved(ctx, obs); err != nil {
			return err
		}
		group, err = r.ledger.BuildDeposit(ctx, &entities.DepositObservation{
			IntentID: DepositGroupID(obs.Currency, obs.Hash),
			Account:  *destination,
			Value:    obs.Value,
			TxHash:   obs.Hash,
		})
		return err
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrConflict) {
			metrics.ObservationsTotal.WithLabelValues(currency, "duplicate").Inc()
			return nil
		}
		return err
	}

	metrics.ObservationsTotal.WithLabelValues(currency, "deposit_booked").Inc()
	logger.Info(ctx, "deposit booked",
		zap.String("groupId", group.ID.String()),
		zap.String("hash", obs.Hash),
		zap.String("value", obs.Value.String()))

	r.publishDepositEvent(ctx, group, obs)
	return nil
}

// quarantine records an unreconcilable observation and alerts the
// operator. The seen-hash write makes the quarantine final for this hash.
func (r *ReconcilerUsecase) quarantine(ctx context.Context, obs *entities.BlockchainTransaction, commentary string) error {
	err := r.uow.Do(ctx, func(ctx context.Context) error {
		if err := r.seenHashes.Create(ctx, &entities.SeenHash{
			Hash:        obs.Hash,
			BlockNumber: obs.BlockNumber,
			Currency:    obs.Currency,
		}); err != nil {
			return err
		}
		return r.strangeTxs.Create(ctx, &entities.StrangeBlockchainTransaction{
			BlockchainTransaction: *obs,
			Commentary:            commentary,
		})
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrConflict) {
			return nil
		}
		return err
	}

	metrics.StrangeTxTotal.WithLabelValues(string(obs.Currency)).Inc()
	metrics.ObservationsTotal.WithLabelValues(string(obs.Currency), "strange").Inc()
	logger.Warn(ctx, "strange transaction quarantined",
		zap.String("hash", obs.Hash),
		zap.String("commentary", commentary))

	metrics.AlertsPublishedTotal.WithLabelValues(string(entities.AlertReasonStrangeTx)).Inc()
	if err := r.publisher.PublishAlert(ctx, &entities.Alert{
		Reason:   entities.AlertReasonStrangeTx,
		Currency: obs.Currency,
		Message:  commentary,
		TxHash:   obs.Hash,
	}); err != nil {
		logger.Error(ctx, "alert publish failed", zap.Error(err))
	}
	return nil
}

// strangeCommentary explains why an observation did not reconcile
func (r *ReconcilerUsecase) strangeCommentary(ctx context.Context, obs *entities.BlockchainTransaction) string {
	others, err := r.accounts.ListByAddress(ctx, obs.ToAddress)
	if err == nil && len(others) > 0 {
		return fmt.Sprintf("currency mismatch at destination %s: address is a %s wallet, transfer carries %s",
			obs.ToAddress, others[0].Currency, obs.Currency)
	}
	return fmt.Sprintf("unknown destination %s", obs.ToAddress)
}

// sufficientlyConfirmed applies the value-scaled confirmation policy
func (r *ReconcilerUsecase) sufficientlyConfirmed(ctx context.Context, obs *entities.BlockchainTransaction) (bool, error) {
	rate, err := r.exchange.MarketRate(ctx, obs.Currency, entities.CurrencyUSD)
	if err != nil {
		return false, err
	}
	return r.policy.Sufficient(obs.Currency, obs.Value.Mul(rate), obs.Confirmations), nil
}

func (r *ReconcilerUsecase) recordObserved(ctx context.Context, obs *entities.BlockchainTransaction) error {
	if err := r.blockchainTxs.Create(ctx, obs); err != nil {
		if errors.Is(err, domainerrors.ErrConflict) {
			return r.blockchainTxs.UpdateConfirmations(ctx, obs.Hash, obs.Confirmations)
		}
		return err
	}
	return nil
}

// refreshConfirmations keeps the observed record's confirmation count
// moving for already-handled transactions.
func (r *ReconcilerUsecase) refreshConfirmations(ctx context.Context, obs *entities.BlockchainTransaction) error {
	_, err := r.blockchainTxs.GetByHash(ctx, obs.Hash)
	if errors.Is(err, domainerrors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return r.blockchainTxs.UpdateConfirmations(ctx, obs.Hash, obs.Confirmations)
}

func (r *ReconcilerUsecase) publishDepositEvent(ctx context.Context, group *entities.TransactionGroup, obs *entities.BlockchainTransaction) {
	event := &entities.GroupEvent{
		GroupID:          group.ID,
		Kind:             group.Kind,
		Status:           group.Status,
		BlockchainTxHash: obs.Hash,
		Values:           []string{obs.Value.String()},
	}
	for _, tx := range group.Transactions {
		event.AccountIDs = append(event.AccountIDs, tx.DrAccountID, tx.CrAccountID)
	}
	if err := r.publisher.PublishGroupEvent(ctx, event); err != nil {
		logger.Error(ctx, "group event publish failed", zap.String("groupId", group.ID.String()), zap.Error(err))
	}
}
