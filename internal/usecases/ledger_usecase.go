package usecases

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"
	"wallet-ledger.backend/internal/config"
	"wallet-ledger.backend/internal/domain/entities"
	domainerrors "wallet-ledger.backend/internal/domain/errors"
	"wallet-ledger.backend/internal/domain/repositories"
	"wallet-ledger.backend/internal/infrastructure/blockchain"
	"wallet-ledger.backend/internal/infrastructure/bus"
	"wallet-ledger.backend/internal/infrastructure/exchange"
	"wallet-ledger.backend/internal/metrics"
	"wallet-ledger.backend/pkg/logger"
)

// SuspendFlagKey is the journal key of the global mutation-suspend flag.
// The auditor sets it on an invariant violation; the builder reads it as a
// pre-commit gate.
const SuspendFlagKey = "audit/suspend"

// RebalanceKeyPrefix namespaces the journal markers tracking in-flight
// liquidity rebalance requests, one per (account, currency).
const RebalanceKeyPrefix = "rebalance/"

// RebalanceRequest is the journal record of one outstanding rebalance
type RebalanceRequest struct {
	Currency    entities.Currency `json:"currency"`
	AccountID   uuid.UUID         `json:"accountId"`
	Value       decimal.Decimal   `json:"value"`
	RequestedAt time.Time         `json:"requestedAt"`
}

// submitRetries bounds retry attempts against the custody signer
const submitRetries = 3

// shortfallError carries the account that would go negative so the caller
// can map it to the right sentinel.
type shortfallError struct {
	accountID uuid.UUID
}

func (e *shortfallError) Error() string {
	return fmt.Sprintf("balance shortfall on account %s", e.accountID)
}

// LedgerUsecase is the transaction group builder: it turns a validated
// intent into an atomic bundle of 1 to 4 double-entry transactions and
// commits them under one database scope.
type LedgerUsecase struct {
	uow          repositories.UnitOfWork
	accounts     repositories.AccountRepository
	transactions repositories.TransactionRepository
	groups       repositories.TxGroupRepository
	pendingTxs   repositories.PendingBlockchainTxRepository
	kv           repositories.KeyValueRepository
	gateways     *blockchain.Registry
	exchange     exchange.Client
	publisher    bus.Publisher
	system       *SystemAccounts
	nonces       *NonceJournal
	cfg          *config.LedgerConfig
}

// NewLedgerUsecase creates the group builder
func NewLedgerUsecase(
	uow repositories.UnitOfWork,
	accounts repositories.AccountRepository,
	transactions repositories.TransactionRepository,
	groups repositories.TxGroupRepository,
	pendingTxs repositories.PendingBlockchainTxRepository,
	kv repositories.KeyValueRepository,
	gateways *blockchain.Registry,
	exchangeClient exchange.Client,
	publisher bus.Publisher,
	system *SystemAccounts,
	cfg *config.LedgerConfig,
) *LedgerUsecase {
	return &LedgerUsecase{
		uow:          uow,
		accounts:     accounts,
		transactions: transactions,
		groups:       groups,
		pendingTxs:   pendingTxs,
		kv:           kv,
		gateways:     gateways,
		exchange:     exchangeClient,
		publisher:    publisher,
		system:       system,
		nonces:       NewNonceJournal(kv),
		cfg:          cfg,
	}
}

// CreateAccountPair provisions the Dr/Cr pair backing one wallet address
func (l *LedgerUsecase) CreateAccountPair(ctx context.Context, input *entities.CreateAccountPairInput) (*entities.Account, *entities.Account, error) {
	if input.UserID == uuid.Nil || input.Address == "" {
		return nil, nil, domainerrors.ErrInvalidInput
	}
	if !l.currencySupported(input.Currency) {
		return nil, nil, domainerrors.ErrCurrencyMismatch
	}
	if !blockchain.ValidAddress(input.Currency, input.Address) {
		return nil, nil, domainerrors.ErrInvalidInput
	}

	var dr, cr *entities.Account
	err := l.uow.Do(ctx, func(ctx context.Context) error {
		var err error
		dr, cr, err = l.accounts.CreatePair(ctx, input)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return dr, cr, nil
}

// Build dispatches an intent to its builder. The intent id doubles as the
// group id and idempotency key: a replayed id returns the prior group
// unchanged.
func (l *LedgerUsecase) Build(ctx context.Context, intent *entities.Intent) (*entities.TransactionGroup, error) {
	if intent.ID == uuid.Nil || intent.UserID == uuid.Nil {
		return nil, domainerrors.ErrInvalidInput
	}
	if !intent.Value.IsPositive() {
		return nil, domainerrors.ErrInvalidInput
	}

	if prior, err := l.groups.GetByID(ctx, intent.ID); err == nil {
		metrics.IdempotentReplaysTotal.WithLabelValues(string(prior.Kind)).Inc()
		logger.Debug(ctx, "idempotent replay", zap.String("groupId", intent.ID.String()))
		return prior, nil
	} else if !errors.Is(err, domainerrors.ErrNotFound) {
		return nil, err
	}

	suspended, err := l.isSuspended(ctx)
	if err != nil {
		return nil, err
	}
	if suspended {
		metrics.GroupsRejectedTotal.WithLabelValues(string(intent.Kind), "suspended").Inc()
		return nil, domainerrors.ErrOperationsSuspended
	}

	started := time.Now()
	var group *entities.TransactionGroup
	switch intent.Kind {
	case entities.GroupKindInternal:
		group, err = l.buildInternal(ctx, intent)
	case entities.GroupKindWithdrawal:
		group, err = l.buildWithdrawal(ctx, intent)
	case entities.GroupKindExchange:
		group, err = l.buildExchange(ctx, intent)
	case entities.GroupKindFeeAdjust:
		group, err = l.buildFeeAdjust(ctx, intent)
	default:
		return nil, domainerrors.ErrInvalidInput
	}
	if err != nil {
		// A concurrent request with the same id won the insert race.
		if errors.Is(err, domainerrors.ErrConflict) {
			if prior, getErr := l.groups.GetByID(ctx, intent.ID); getErr == nil {
				metrics.IdempotentReplaysTotal.WithLabelValues(string(prior.Kind)).Inc()
				return prior, nil
			}
		}
		metrics.GroupsRejectedTotal.WithLabelValues(string(intent.Kind), rejectReason(err)).Inc()
		return nil, err
	}

	metrics.GroupsCommittedTotal.WithLabelValues(string(group.Kind)).Inc()
	metrics.CommitLatency.WithLabelValues(string(group.Kind)).Observe(time.Since(started).Seconds())
	return group, nil
}

// BuildDeposit creates a done deposit group from a confirmed inbound
// observation. Called by the reconciler inside its own scope; the caller
// publishes the resulting event after its commit.
func (l *LedgerUsecase) BuildDeposit(ctx context.Context, obs *entities.DepositObservation) (*entities.TransactionGroup, error) {
	if prior, err := l.groups.GetByID(ctx, obs.IntentID); err == nil {
		return prior, nil
	} else if !errors.Is(err, domainerrors.ErrNotFound) {
		return nil, err
	}

	if obs.Account.Kind != entities.AccountKindDr {
		return nil, domainerrors.ErrUnknownAccount
	}
	crAccount, err := l.accounts.GetByAddress(ctx, obs.Account.Address, obs.Account.Currency, entities.AccountKindCr)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.ErrUnknownAccount
		}
		return nil, err
	}

	group := &entities.TransactionGroup{
		ID:               obs.IntentID,
		Kind:             entities.GroupKindDeposit,
		Status:           entities.GroupStatusDone,
		UserID:           obs.Account.UserID,
		BlockchainTxHash: null.StringFrom(obs.TxHash),
	}
	legs := []*entities.Transaction{{
		ID:          uuid.New(),
		GroupID:     group.ID,
		UserID:      obs.Account.UserID,
		DrAccountID: obs.Account.ID,
		CrAccountID: crAccount.ID,
		Currency:    obs.Account.Currency,
		Value:       obs.Value,
		Kind:        entities.TransactionKindDeposit,
		Status:      entities.TransactionStatusDone,
	}}

	if err := l.commitGroup(ctx, group, legs); err != nil {
		return nil, err
	}
	metrics.GroupsCommittedTotal.WithLabelValues(string(group.Kind)).Inc()
	return group, nil
}

func (l *LedgerUsecase) buildInternal(ctx context.Context, intent *entities.Intent) (*entities.TransactionGroup, error) {
	if intent.FromCurrency != intent.ToCurrency {
		return nil, domainerrors.ErrCurrencyMismatch
	}
	src, err := l.userCrAccount(ctx, intent.From, intent.UserID, intent.FromCurrency)
	if err != nil {
		return nil, err
	}

	if intent.ToType != entities.RecipientTypeAccount {
		return nil, domainerrors.ErrInvalidInput
	}
	dstID, err := uuid.Parse(intent.To)
	if err != nil {
		return nil, domainerrors.ErrInvalidInput
	}
	dst, err := l.accounts.GetByID(ctx, dstID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.ErrUnknownAccount
		}
		return nil, err
	}
	if dst.Kind != entities.AccountKindCr {
		return nil, domainerrors.ErrUnknownAccount
	}
	if dst.Currency != intent.FromCurrency {
		return nil, domainerrors.ErrCurrencyMismatch
	}

	group := &entities.TransactionGroup{
		ID:     intent.ID,
		Kind:   entities.GroupKindInternal,
		Status: entities.GroupStatusDone,
		UserID: intent.UserID,
	}
	legs := []*entities.Transaction{{
		ID:          uuid.New(),
		GroupID:     group.ID,
		UserID:      intent.UserID,
		DrAccountID: src.ID,
		CrAccountID: dst.ID,
		Currency:    intent.FromCurrency,
		Value:       intent.Value,
		Kind:        entities.TransactionKindInternal,
		Status:      entities.TransactionStatusDone,
	}}

	if err := l.commitGroup(ctx, group, legs); err != nil {
		return nil, mapShortfall(err, nil)
	}
	l.publishGroupEvent(ctx, group, legs, "")
	return group, nil
}

func (l *LedgerUsecase) buildWithdrawal(ctx context.Context, intent *entities.Intent) (*entities.TransactionGroup, error) {
	currency := intent.FromCurrency
	src, err := l.userCrAccount(ctx, intent.From, intent.UserID, currency)
	if err != nil {
		return nil, err
	}
	if intent.ToType != entities.RecipientTypeAddress || !blockchain.ValidAddress(currency, intent.To) {
		return nil, domainerrors.ErrInvalidInput
	}
	fee := intent.Fee
	if fee.IsNegative() {
		return nil, domainerrors.ErrInvalidInput
	}

	allocations, err := l.selectDrAccounts(ctx, currency, intent.Value, fee)
	if err != nil {
		return nil, err
	}

	group := &entities.TransactionGroup{
		ID:     intent.ID,
		Kind:   entities.GroupKindWithdrawal,
		Status: entities.GroupStatusPending,
		UserID: intent.UserID,
	}

	var legs []*entities.Transaction
	if fee.IsPositive() {
		feesCr, err := l.system.FeesCr(currency)
		if err != nil {
			return nil, err
		}
		legs = append(legs, &entities.Transaction{
			ID:          uuid.New(),
			GroupID:     group.ID,
			UserID:      intent.UserID,
			DrAccountID: src.ID,
			CrAccountID: feesCr,
			Currency:    currency,
			Value:       fee,
			Kind:        entities.TransactionKindFee,
			Status:      entities.TransactionStatusPending,
		})
	}
	fromAddresses := make([]string, 0, len(allocations))
	for _, alloc := range allocations {
		legs = append(legs, &entities.Transaction{
			ID:          uuid.New(),
			GroupID:     group.ID,
			UserID:      intent.UserID,
			DrAccountID: src.ID,
			CrAccountID: alloc.account.ID,
			Currency:    currency,
			Value:       alloc.value,
			Kind:        entities.TransactionKindWithdrawal,
			Status:      entities.TransactionStatusPending,
		})
		fromAddresses = append(fromAddresses, alloc.account.Address)
	}

	custodyShortfall := make(map[uuid.UUID]error, len(allocations))
	for _, alloc := range allocations {
		custodyShortfall[alloc.account.ID] = domainerrors.ErrInsufficientLiquidity
	}
	if err := l.commitGroup(ctx, group, legs); err != nil {
		return nil, mapShortfall(err, custodyShortfall)
	}

	l.submitWithdrawal(ctx, group, currency, fromAddresses, intent.To, intent.Value, fee)
	l.publishGroupEvent(ctx, group, legs, "")
	return group, nil
}

func (l *LedgerUsecase) buildExchange(ctx context.Context, intent *entities.Intent) (*entities.TransactionGroup, error) {
	if intent.FromCurrency == intent.ToCurrency {
		return nil, domainerrors.ErrCurrencyMismatch
	}
	if !l.currencySupported(intent.ToCurrency) {
		return nil, domainerrors.ErrCurrencyMismatch
	}
	if intent.RateID == uuid.Nil || !intent.Rate.IsPositive() {
		return nil, domainerrors.ErrInvalidInput
	}
	if !intent.RateExpiresAt.After(time.Now()) {
		return nil, domainerrors.ErrRateExpired
	}

	src, err := l.userCrAccount(ctx, intent.From, intent.UserID, intent.FromCurrency)
	if err != nil {
		return nil, err
	}
	if intent.ToType != entities.RecipientTypeAccount {
		return nil, domainerrors.ErrInvalidInput
	}
	dstID, err := uuid.Parse(intent.To)
	if err != nil {
		return nil, domainerrors.ErrInvalidInput
	}
	dst, err := l.userCrAccount(ctx, dstID, intent.UserID, intent.ToCurrency)
	if err != nil {
		return nil, err
	}

	liqSrcCr, err := l.system.LiquidityCr(intent.FromCurrency)
	if err != nil {
		return nil, err
	}
	liqDstCr, err := l.system.LiquidityCr(intent.ToCurrency)
	if err != nil {
		return nil, err
	}

	// Rate is the dst value of one src unit, fixed when the quote was
	// issued.
	dstValue := intent.Value.Mul(intent.Rate)
	if !dstValue.IsPositive() {
		return nil, domainerrors.ErrInvalidInput
	}

	group := &entities.TransactionGroup{
		ID:     intent.ID,
		Kind:   entities.GroupKindExchange,
		Status: entities.GroupStatusDone,
		UserID: intent.UserID,
	}
	legs := []*entities.Transaction{
		{
			ID:          uuid.New(),
			GroupID:     group.ID,
			UserID:      intent.UserID,
			DrAccountID: src.ID,
			CrAccountID: liqSrcCr,
			Currency:    intent.FromCurrency,
			Value:       intent.Value,
			Kind:        entities.TransactionKindExchangeFrom,
			Status:      entities.TransactionStatusDone,
		},
		{
			ID:          uuid.New(),
			GroupID:     group.ID,
			UserID:      intent.UserID,
			DrAccountID: liqDstCr,
			CrAccountID: dst.ID,
			Currency:    intent.ToCurrency,
			Value:       dstValue,
			Kind:        entities.TransactionKindExchangeTo,
			Status:      entities.TransactionStatusDone,
		},
	}

	if err := l.commitGroup(ctx, group, legs); err != nil {
		return nil, mapShortfall(err, map[uuid.UUID]error{
			liqDstCr: domainerrors.ErrInsufficientLiquidity,
		})
	}

	if err := l.exchange.Execute(ctx, intent.RateID); err != nil {
		logger.Error(ctx, "exchange execution failed after commit",
			zap.String("groupId", group.ID.String()),
			zap.String("rateId", intent.RateID.String()),
			zap.Error(err))
	}
	l.enqueueRebalance(ctx, intent.ToCurrency, liqDstCr, dstValue)
	l.publishGroupEvent(ctx, group, legs, "")
	return group, nil
}

func (l *LedgerUsecase) buildFeeAdjust(ctx context.Context, intent *entities.Intent) (*entities.TransactionGroup, error) {
	if intent.Rationale == "" {
		return nil, domainerrors.ErrInvalidInput
	}
	if intent.ToType != entities.RecipientTypeAccount {
		return nil, domainerrors.ErrInvalidInput
	}

	from, err := l.accounts.GetByID(ctx, intent.From)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.ErrUnknownAccount
		}
		return nil, err
	}
	toID, err := uuid.Parse(intent.To)
	if err != nil {
		return nil, domainerrors.ErrInvalidInput
	}
	to, err := l.accounts.GetByID(ctx, toID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.ErrUnknownAccount
		}
		return nil, err
	}
	// Corrections only credit claims: custody Dr accounts mirror chain
	// wallets and cannot be adjusted by hand.
	if to.Kind != entities.AccountKindCr {
		return nil, domainerrors.ErrInvalidInput
	}
	if from.Currency != to.Currency {
		return nil, domainerrors.ErrCurrencyMismatch
	}

	group := &entities.TransactionGroup{
		ID:     intent.ID,
		Kind:   entities.GroupKindFeeAdjust,
		Status: entities.GroupStatusDone,
		UserID: intent.UserID,
	}
	legs := []*entities.Transaction{{
		ID:          uuid.New(),
		GroupID:     group.ID,
		UserID:      intent.UserID,
		DrAccountID: from.ID,
		CrAccountID: to.ID,
		Currency:    from.Currency,
		Value:       intent.Value,
		Kind:        entities.TransactionKindFeeAdjust,
		Status:      entities.TransactionStatusDone,
	}}

	logger.Info(ctx, "manual fee adjustment",
		zap.String("groupId", group.ID.String()),
		zap.String("rationale", intent.Rationale))

	if err := l.commitGroup(ctx, group, legs); err != nil {
		return nil, mapShortfall(err, nil)
	}
	l.publishGroupEvent(ctx, group, legs, "")
	return group, nil
}

// ConfirmWithdrawal advances a pending withdrawal group after its on-chain
// transaction confirmed, settling the spread between expected and actual
// fee as an appended leaf.
func (l *LedgerUsecase) ConfirmWithdrawal(ctx context.Context, groupID uuid.UUID, actualFee decimal.Decimal) error {
	var (
		doneGroup *entities.TransactionGroup
		doneLegs  []*entities.Transaction
		alert     *entities.Alert
	)

	err := l.uow.Do(ctx, func(ctx context.Context) error {
		group, err := l.groups.GetByID(ctx, groupID)
		if err != nil {
			return err
		}
		if group.Status == entities.GroupStatusDone {
			return nil
		}
		if group.Status != entities.GroupStatusPending || group.Kind != entities.GroupKindWithdrawal {
			return domainerrors.ErrIllegalTransition
		}

		expectedFee := decimal.Zero
		var chosenDr uuid.UUID
		var currency entities.Currency
		for i := range group.Transactions {
			leaf := &group.Transactions[i]
			switch leaf.Kind {
			case entities.TransactionKindFee:
				expectedFee = expectedFee.Add(leaf.Value)
				currency = leaf.Currency
			case entities.TransactionKindWithdrawal:
				if chosenDr == uuid.Nil {
					chosenDr = leaf.CrAccountID
				}
				currency = leaf.Currency
			}
		}
		if chosenDr == uuid.Nil {
			return domainerrors.ErrInvariantViolation
		}

		if err := l.transactions.UpdateStatusByGroupID(ctx, groupID, entities.TransactionStatusDone); err != nil {
			return err
		}

		diff := expectedFee.Sub(actualFee).Abs()
		if !expectedFee.Equal(actualFee) && diff.IsPositive() {
			settled, err := l.settleFeeSpread(ctx, group, chosenDr, currency, diff)
			if err != nil {
				return err
			}
			if !settled {
				alert = &entities.Alert{
					Reason:   entities.AlertReasonFeesFloorBreach,
					Currency: currency,
					Message:  "fees reserve could not absorb the fee spread",
					GroupID:  group.ID,
				}
			}
		}

		if err := l.groups.UpdateStatus(ctx, groupID, entities.GroupStatusDone, ""); err != nil {
			return err
		}

		doneGroup, err = l.groups.GetByID(ctx, groupID)
		if err != nil {
			return err
		}
		for i := range doneGroup.Transactions {
			doneLegs = append(doneLegs, &doneGroup.Transactions[i])
		}
		return nil
	})
	if err != nil {
		return err
	}

	if doneGroup != nil {
		l.publishGroupEvent(ctx, doneGroup, doneLegs, actualFee.String())
	}
	if alert != nil {
		l.publishAlert(ctx, alert)
	}
	return nil
}

// settleFeeSpread appends the fee settlement leaf. When the fees reserve
// cannot absorb the spread the group still completes; the caller raises
// the floor alert.
func (l *LedgerUsecase) settleFeeSpread(ctx context.Context, group *entities.TransactionGroup, chosenDr uuid.UUID, currency entities.Currency, diff decimal.Decimal) (bool, error) {
	if len(group.TransactionIDs) >= entities.MaxGroupTransactions {
		return false, nil
	}
	feesCr, err := l.system.FeesCr(currency)
	if err != nil {
		return false, err
	}

	feesAccount, err := l.accounts.GetByIDForUpdate(ctx, feesCr)
	if err != nil {
		return false, err
	}
	live, err := l.transactions.AccountBalance(ctx, feesCr, feesAccount.Kind)
	if err != nil {
		return false, err
	}
	if live.LessThan(diff) {
		return false, nil
	}

	settlement := &entities.Transaction{
		ID:          uuid.New(),
		GroupID:     group.ID,
		UserID:      group.UserID,
		DrAccountID: feesCr,
		CrAccountID: chosenDr,
		Currency:    currency,
		Value:       diff,
		Kind:        entities.TransactionKindFeeSettlement,
		Status:      entities.TransactionStatusDone,
	}
	if err := l.transactions.Create(ctx, settlement); err != nil {
		return false, err
	}
	if err := l.groups.AppendLeaf(ctx, group.ID, settlement.ID); err != nil {
		return false, err
	}
	// Both sides shrink: the reserve pays out and the custody wallet
	// spent the fee on chain.
	if err := l.accounts.AddToBalance(ctx, feesCr, diff.Neg()); err != nil {
		return false, err
	}
	if err := l.accounts.AddToBalance(ctx, chosenDr, diff.Neg()); err != nil {
		return false, err
	}
	return true, nil
}

// drAllocation pairs a custody account with the slice of a withdrawal it
// funds.
type drAllocation struct {
	account *entities.Account
	value   decimal.Decimal
}

// selectDrAccounts picks the custody Dr accounts funding a withdrawal:
// descending balance, ascending account id on ties, greedy until the total
// covers value plus the expected fee. The leaf cap bounds the split, with
// one slot held back for the settlement leaf. A wallet counted on for fee
// headroom alone still joins the set with a zero-value allocation: every
// balance backing the submission must be one of the source addresses.
func (l *LedgerUsecase) selectDrAccounts(ctx context.Context, currency entities.Currency, value, fee decimal.Decimal) ([]drAllocation, error) {
	candidates, err := l.accounts.ListByKindCurrency(ctx, entities.AccountKindDr, currency)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Balance.GreaterThan(candidates[j].Balance)
	})

	maxLegs := entities.MaxGroupTransactions - 1
	if fee.IsPositive() {
		maxLegs--
	}

	target := value.Add(fee)
	remaining := value
	covered := decimal.Zero
	var chosen []drAllocation
	for _, account := range candidates {
		if len(chosen) == maxLegs {
			break
		}
		if !account.Balance.IsPositive() {
			break
		}
		portion := decimal.Min(remaining, account.Balance)
		chosen = append(chosen, drAllocation{account: account, value: portion})
		remaining = remaining.Sub(portion)
		covered = covered.Add(account.Balance)
		if remaining.IsZero() && covered.GreaterThanOrEqual(target) {
			return chosen, nil
		}
	}
	return nil, domainerrors.ErrInsufficientLiquidity
}

// submitWithdrawal hands the committed withdrawal to the custody signer.
// Submission failure leaves the group pending; the stale-pending pass
// alerts if it never reaches the chain.
func (l *LedgerUsecase) submitWithdrawal(ctx context.Context, group *entities.TransactionGroup, currency entities.Currency, fromAddresses []string, toAddress string, value, fee decimal.Decimal) {
	gateway, err := l.gateways.Get(currency)
	if err != nil {
		logger.Error(ctx, "no gateway for currency", zap.String("currency", string(currency)), zap.Error(err))
		return
	}

	req := &blockchain.SubmitRequest{
		Currency:      currency,
		FromAddresses: fromAddresses,
		ToAddress:     toAddress,
		Value:         value,
		FeePrice:      fee,
	}
	if currency == entities.CurrencyETH && len(fromAddresses) > 0 {
		if nonce, err := l.nonces.Reserve(ctx, fromAddresses[0]); err == nil && nonce != nil {
			req.Nonce = nonce
		}
	}

	var result *blockchain.SubmitResult
	backoff := 200 * time.Millisecond
	for attempt := 1; attempt <= submitRetries; attempt++ {
		result, err = gateway.Submit(ctx, req)
		if err == nil {
			break
		}
		logger.Warn(ctx, "withdrawal submission failed",
			zap.String("groupId", group.ID.String()),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt < submitRetries {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	if err != nil {
		l.publishAlert(ctx, &entities.Alert{
			Reason:   entities.AlertReasonStalePending,
			Currency: currency,
			Message:  "withdrawal submission failed, group left pending",
			GroupID:  group.ID,
		})
		return
	}

	if currency == entities.CurrencyETH && len(fromAddresses) > 0 {
		if err := l.nonces.Record(ctx, fromAddresses[0], result.Nonce); err != nil {
			logger.Warn(ctx, "nonce journal write failed", zap.Error(err))
		}
	}
	if err := l.groups.BindBlockchainTxHash(ctx, group.ID, result.Hash); err != nil {
		logger.Error(ctx, "failed to bind blockchain hash",
			zap.String("groupId", group.ID.String()),
			zap.String("hash", result.Hash),
			zap.Error(err))
		return
	}
	group.BlockchainTxHash = null.StringFrom(result.Hash)

	if err := l.pendingTxs.Create(ctx, &entities.PendingBlockchainTransaction{
		Hash:        result.Hash,
		FromAddress: fromAddresses[0],
		ToAddress:   toAddress,
		Currency:    currency,
		Value:       value,
		Fee:         result.Fee,
	}); err != nil && !errors.Is(err, domainerrors.ErrConflict) {
		logger.Error(ctx, "failed to record pending submission", zap.Error(err))
	}
}

// commitGroup inserts a group and its leaves atomically. Accounts are
// locked in ascending id order; every account whose balance shrinks is
// re-validated against its live balance inside the scope.
func (l *LedgerUsecase) commitGroup(ctx context.Context, group *entities.TransactionGroup, legs []*entities.Transaction) error {
	if len(legs) == 0 || len(legs) > entities.MaxGroupTransactions {
		return domainerrors.ErrInvalidInput
	}

	return l.uow.Do(ctx, func(ctx context.Context) error {
		ids := make([]uuid.UUID, 0, len(legs)*2)
		seen := make(map[uuid.UUID]bool, len(legs)*2)
		for _, leg := range legs {
			for _, id := range []uuid.UUID{leg.DrAccountID, leg.CrAccountID} {
				if !seen[id] {
					seen[id] = true
					ids = append(ids, id)
				}
			}
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

		locked := make(map[uuid.UUID]*entities.Account, len(ids))
		for _, id := range ids {
			account, err := l.accounts.GetByIDForUpdate(ctx, id)
			if err != nil {
				if errors.Is(err, domainerrors.ErrNotFound) {
					return domainerrors.ErrUnknownAccount
				}
				return err
			}
			locked[id] = account
		}

		for _, leg := range legs {
			if locked[leg.DrAccountID].Currency != leg.Currency || locked[leg.CrAccountID].Currency != leg.Currency {
				return domainerrors.ErrCurrencyMismatch
			}
		}

		deltas := accountDeltas(legs, locked)
		for _, id := range ids {
			delta := deltas[id]
			if !delta.IsNegative() {
				continue
			}
			live, err := l.transactions.AccountBalance(ctx, id, locked[id].Kind)
			if err != nil {
				return err
			}
			if live.Add(delta).IsNegative() {
				return &shortfallError{accountID: id}
			}
		}

		group.TransactionIDs = group.TransactionIDs[:0]
		for _, leg := range legs {
			group.TransactionIDs = append(group.TransactionIDs, leg.ID)
		}
		if err := l.groups.Create(ctx, group); err != nil {
			return err
		}
		for _, leg := range legs {
			if err := l.transactions.Create(ctx, leg); err != nil {
				return err
			}
		}
		for _, id := range ids {
			if deltas[id].IsZero() {
				continue
			}
			if err := l.accounts.AddToBalance(ctx, id, deltas[id]); err != nil {
				if errors.Is(err, domainerrors.ErrInsufficientFunds) {
					return &shortfallError{accountID: id}
				}
				return err
			}
		}
		return nil
	})
}

// accountDeltas computes the balance-cache movement each account sees from
// a set of legs. A leg debits its dr side and credits its cr side; debits
// grow Dr accounts (the custody wallet fills) and shrink Cr accounts (the
// claim is spent), credits the inverse.
func accountDeltas(legs []*entities.Transaction, accounts map[uuid.UUID]*entities.Account) map[uuid.UUID]decimal.Decimal {
	deltas := make(map[uuid.UUID]decimal.Decimal, len(accounts))
	for _, leg := range legs {
		dr := accounts[leg.DrAccountID]
		cr := accounts[leg.CrAccountID]
		if dr.Kind == entities.AccountKindDr {
			deltas[dr.ID] = deltas[dr.ID].Add(leg.Value)
		} else {
			deltas[dr.ID] = deltas[dr.ID].Sub(leg.Value)
		}
		if cr.Kind == entities.AccountKindCr {
			deltas[cr.ID] = deltas[cr.ID].Add(leg.Value)
		} else {
			deltas[cr.ID] = deltas[cr.ID].Sub(leg.Value)
		}
	}
	return deltas
}

// ListGroupsForUser returns a user's groups with leaves, newest first
func (l *LedgerUsecase) ListGroupsForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entities.TransactionGroup, error) {
	groups, err := l.groups.ListByUserID(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	for _, group := range groups {
		legs, err := l.transactions.ListByGroupID(ctx, group.ID)
		if err != nil {
			return nil, err
		}
		for _, leg := range legs {
			group.Transactions = append(group.Transactions, *leg)
		}
	}
	return groups, nil
}

// RebuildBalances recomputes every materialised balance from the
// transaction history.
func (l *LedgerUsecase) RebuildBalances(ctx context.Context) error {
	return l.uow.Do(ctx, func(ctx context.Context) error {
		accounts, err := l.accounts.ListAll(ctx)
		if err != nil {
			return err
		}
		for _, account := range accounts {
			live, err := l.transactions.AccountBalance(ctx, account.ID, account.Kind)
			if err != nil {
				return err
			}
			if !live.Equal(account.Balance) {
				logger.Warn(ctx, "balance cache drift",
					zap.String("accountId", account.ID.String()),
					zap.String("cached", account.Balance.String()),
					zap.String("derived", live.String()))
				if err := l.accounts.SetBalance(ctx, account.ID, live); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (l *LedgerUsecase) userCrAccount(ctx context.Context, accountID, userID uuid.UUID, currency entities.Currency) (*entities.Account, error) {
	if accountID == uuid.Nil {
		return nil, domainerrors.ErrUnknownAccount
	}
	account, err := l.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.ErrUnknownAccount
		}
		return nil, err
	}
	if account.UserID != userID || account.Kind != entities.AccountKindCr {
		return nil, domainerrors.ErrUnknownAccount
	}
	if account.Currency != currency {
		return nil, domainerrors.ErrCurrencyMismatch
	}
	return account, nil
}

func (l *LedgerUsecase) currencySupported(currency entities.Currency) bool {
	for _, c := range l.cfg.SupportedCurrencies {
		if entities.Currency(c) == currency {
			return true
		}
	}
	return false
}

func (l *LedgerUsecase) isSuspended(ctx context.Context) (bool, error) {
	var suspended bool
	found, err := l.kv.Get(ctx, SuspendFlagKey, &suspended)
	if err != nil {
		return false, err
	}
	return found && suspended, nil
}

func (l *LedgerUsecase) enqueueRebalance(ctx context.Context, currency entities.Currency, accountID uuid.UUID, value decimal.Decimal) {
	key := RebalanceKeyPrefix + string(currency)
	var existing RebalanceRequest
	if found, err := l.kv.Get(ctx, key, &existing); err == nil && found {
		return
	}
	if err := l.kv.Set(ctx, key, RebalanceRequest{
		Currency:    currency,
		AccountID:   accountID,
		Value:       value,
		RequestedAt: time.Now(),
	}); err != nil {
		logger.Warn(ctx, "failed to enqueue rebalance", zap.String("currency", string(currency)), zap.Error(err))
	}
}

func (l *LedgerUsecase) publishGroupEvent(ctx context.Context, group *entities.TransactionGroup, legs []*entities.Transaction, actualFee string) {
	event := &entities.GroupEvent{
		GroupID:          group.ID,
		Kind:             group.Kind,
		Status:           group.Status,
		BlockchainTxHash: group.BlockchainTxHash.String,
		ActualFee:        actualFee,
	}
	seen := make(map[uuid.UUID]bool, len(legs)*2)
	for _, leg := range legs {
		for _, id := range []uuid.UUID{leg.DrAccountID, leg.CrAccountID} {
			if !seen[id] {
				seen[id] = true
				event.AccountIDs = append(event.AccountIDs, id)
			}
		}
		event.Values = append(event.Values, leg.Value.String())
	}
	if err := l.publisher.PublishGroupEvent(ctx, event); err != nil {
		logger.Error(ctx, "group event publish failed", zap.String("groupId", group.ID.String()), zap.Error(err))
	}
}

func (l *LedgerUsecase) publishAlert(ctx context.Context, alert *entities.Alert) {
	metrics.AlertsPublishedTotal.WithLabelValues(string(alert.Reason)).Inc()
	if err := l.publisher.PublishAlert(ctx, alert); err != nil {
		logger.Error(ctx, "alert publish failed", zap.String("reason", string(alert.Reason)), zap.Error(err))
	}
}

// mapShortfall converts an internal shortfall into the sentinel the caller
// reports: ErrInsufficientLiquidity for the listed system accounts,
// ErrInsufficientFunds otherwise.
func mapShortfall(err error, overrides map[uuid.UUID]error) error {
	var sf *shortfallError
	if !errors.As(err, &sf) {
		return err
	}
	if mapped, ok := overrides[sf.accountID]; ok {
		return mapped
	}
	return domainerrors.ErrInsufficientFunds
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domainerrors.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domainerrors.ErrInsufficientLiquidity):
		return "insufficient_liquidity"
	case errors.Is(err, domainerrors.ErrRateExpired):
		return "rate_expired"
	case errors.Is(err, domainerrors.ErrUnknownAccount):
		return "unknown_account"
	case errors.Is(err, domainerrors.ErrCurrencyMismatch):
		return "currency_mismatch"
	case errors.Is(err, domainerrors.ErrInvalidInput):
		return "invalid_input"
	default:
		var sf *shortfallError
		if errors.As(err, &sf) {
			return "insufficient_funds"
		}
		return "internal"
	}
}
