package usecases_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"wallet-ledger.backend/internal/config"
	"wallet-ledger.backend/internal/domain/entities"
	domainrepos "wallet-ledger.backend/internal/domain/repositories"
	"wallet-ledger.backend/internal/infrastructure/blockchain"
	"wallet-ledger.backend/internal/infrastructure/exchange"
	infrarepos "wallet-ledger.backend/internal/infrastructure/repositories"
	"wallet-ledger.backend/internal/usecases"
)

// fixture wires the usecases against real repositories over sqlite, with
// stubbed bus, gateway and exchange adapters.
type fixture struct {
	db           *gorm.DB
	uow          domainrepos.UnitOfWork
	accounts     *infrarepos.AccountRepository
	transactions *infrarepos.TransactionRepository
	groups       *infrarepos.TxGroupRepository
	kv           *infrarepos.KeyValueRepository
	pendingTxs   *infrarepos.PendingBlockchainTxRepository
	strangeTxs   *infrarepos.StrangeBlockchainTxRepository
	seenHashes   *infrarepos.SeenHashRepository
	chainTxs     *infrarepos.BlockchainTxRepository

	publisher *stubPublisher
	gateway   *stubGateway
	desk      *stubDesk
	cfg       *config.LedgerConfig

	ledger     *usecases.LedgerUsecase
	reconciler *usecases.ReconcilerUsecase

	eth systemIDs
	btc systemIDs
}

type systemIDs struct {
	liquidityCr uuid.UUID
	liquidityDr uuid.UUID
	feesCr      uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err, "open sqlite")
	createTables(t, db)

	f := &fixture{
		db:           db,
		uow:          infrarepos.NewUnitOfWork(db),
		accounts:     infrarepos.NewAccountRepository(db),
		transactions: infrarepos.NewTransactionRepository(db),
		groups:       infrarepos.NewTxGroupRepository(db),
		kv:           infrarepos.NewKeyValueRepository(db),
		pendingTxs:   infrarepos.NewPendingBlockchainTxRepository(db),
		strangeTxs:   infrarepos.NewStrangeBlockchainTxRepository(db),
		seenHashes:   infrarepos.NewSeenHashRepository(db),
		chainTxs:     infrarepos.NewBlockchainTxRepository(db),
		publisher:    &stubPublisher{},
		gateway:      newStubGateway(),
		desk:         newStubDesk(),
		eth:          newSystemIDs(),
		btc:          newSystemIDs(),
	}

	f.cfg = &config.LedgerConfig{
		SupportedCurrencies: []string{"ETH", "BTC"},
		StalePendingAfter:   2 * time.Hour,
		SuspendOnViolation:  true,
		SystemAccounts: map[string]config.SystemAccountIDs{
			"ETH": {LiquidityCr: f.eth.liquidityCr, LiquidityDr: f.eth.liquidityDr, FeesCr: f.eth.feesCr},
			"BTC": {LiquidityCr: f.btc.liquidityCr, LiquidityDr: f.btc.liquidityDr, FeesCr: f.btc.feesCr},
		},
	}

	registry := blockchain.NewRegistry()
	registry.Register(entities.CurrencyETH, f.gateway)
	registry.Register(entities.CurrencyBTC, f.gateway)

	f.ledger = usecases.NewLedgerUsecase(
		f.uow, f.accounts, f.transactions, f.groups, f.pendingTxs, f.kv,
		registry, f.desk, f.publisher, usecases.NewSystemAccounts(f.cfg), f.cfg,
	)
	f.reconciler = usecases.NewReconcilerUsecase(
		f.uow, f.ledger, f.accounts, f.groups, f.chainTxs, f.pendingTxs,
		f.strangeTxs, f.seenHashes, f.desk, f.publisher,
	)

	f.seedSystemAccounts(t)
	return f
}

func newSystemIDs() systemIDs {
	return systemIDs{liquidityCr: uuid.New(), liquidityDr: uuid.New(), feesCr: uuid.New()}
}

func createTables(t *testing.T, db *gorm.DB) {
	t.Helper()
	for _, q := range []string{
		`CREATE TABLE accounts (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			currency TEXT NOT NULL,
			address TEXT NOT NULL,
			name TEXT,
			kind TEXT NOT NULL,
			balance NUMERIC NOT NULL DEFAULT 0 CONSTRAINT balance_non_negative CHECK (balance >= 0),
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE UNIQUE INDEX uidx_accounts_wallet_binding
			ON accounts (address, currency, kind) WHERE address <> '';`,
		`CREATE TABLE transactions (
			id TEXT PRIMARY KEY,
			group_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			dr_account_id TEXT NOT NULL,
			cr_account_id TEXT NOT NULL,
			currency TEXT NOT NULL,
			value TEXT NOT NULL,
			kind TEXT NOT NULL,
			status TEXT NOT NULL,
			hold_until DATETIME,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE tx_groups (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			status TEXT NOT NULL,
			user_id TEXT NOT NULL,
			blockchain_tx_hash TEXT,
			tx1_id TEXT,
			tx2_id TEXT,
			tx3_id TEXT,
			tx4_id TEXT,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE blockchain_transactions (
			hash TEXT PRIMARY KEY,
			from_address TEXT NOT NULL,
			to_address TEXT NOT NULL,
			currency TEXT NOT NULL,
			value TEXT NOT NULL,
			fee TEXT NOT NULL DEFAULT '0',
			block_number INTEGER,
			confirmations INTEGER,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE pending_blockchain_transactions (
			hash TEXT PRIMARY KEY,
			from_address TEXT NOT NULL,
			to_address TEXT NOT NULL,
			currency TEXT NOT NULL,
			value TEXT NOT NULL,
			fee TEXT NOT NULL DEFAULT '0',
			created_at DATETIME
		);`,
		`CREATE TABLE strange_blockchain_transactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			hash TEXT NOT NULL,
			from_address TEXT,
			to_address TEXT,
			currency TEXT NOT NULL,
			value TEXT NOT NULL,
			fee TEXT NOT NULL DEFAULT '0',
			block_number INTEGER,
			confirmations INTEGER,
			commentary TEXT NOT NULL,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE seen_hashes (
			hash TEXT NOT NULL,
			currency TEXT NOT NULL,
			block_number INTEGER,
			created_at DATETIME,
			PRIMARY KEY (hash, currency)
		);`,
		`CREATE TABLE key_values (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME,
			updated_at DATETIME
		);`,
	} {
		require.NoError(t, db.Exec(q).Error)
	}
}

func (f *fixture) seedSystemAccounts(t *testing.T) {
	t.Helper()
	systemUser := uuid.New()
	for _, row := range []struct {
		id       uuid.UUID
		currency string
		kind     string
		name     string
	}{
		{f.eth.liquidityCr, "ETH", "CR", "liquidity"},
		{f.eth.liquidityDr, "ETH", "DR", "liquidity"},
		{f.eth.feesCr, "ETH", "CR", "fees"},
		{f.btc.liquidityCr, "BTC", "CR", "liquidity"},
		{f.btc.liquidityDr, "BTC", "DR", "liquidity"},
		{f.btc.feesCr, "BTC", "CR", "fees"},
	} {
		require.NoError(t, f.db.Exec(
			`INSERT INTO accounts (id, user_id, currency, address, name, kind, balance, created_at, updated_at)
			 VALUES (?, ?, ?, '', ?, ?, 0, ?, ?)`,
			row.id, systemUser, row.currency, row.name, row.kind, time.Now(), time.Now(),
		).Error)
	}
}

// createUserPair provisions a wallet pair and returns (dr, cr)
func (f *fixture) createUserPair(t *testing.T, userID uuid.UUID, currency entities.Currency, address string) (*entities.Account, *entities.Account) {
	t.Helper()
	dr, cr, err := f.ledger.CreateAccountPair(context.Background(), &entities.CreateAccountPairInput{
		UserID:   userID,
		Currency: currency,
		Address:  address,
	})
	require.NoError(t, err)
	return dr, cr
}

// deposit books a confirmed deposit into a user wallet through the
// reconciler's builder path.
func (f *fixture) deposit(t *testing.T, account *entities.Account, value decimal.Decimal) *entities.TransactionGroup {
	t.Helper()
	group, err := f.ledger.BuildDeposit(context.Background(), &entities.DepositObservation{
		IntentID: uuid.New(),
		Account:  *account,
		Value:    value,
		TxHash:   "0xseed" + uuid.NewString()[:8],
	})
	require.NoError(t, err)
	return group
}

// fundSystem books value into a system Cr account backed by a custody Dr
// account, keeping the books balanced.
func (f *fixture) fundSystem(t *testing.T, drID, crID uuid.UUID, currency entities.Currency, value decimal.Decimal) {
	t.Helper()
	ctx := context.Background()
	groupID := uuid.New()
	txID := uuid.New()

	err := f.uow.Do(ctx, func(ctx context.Context) error {
		if err := f.groups.Create(ctx, &entities.TransactionGroup{
			ID:             groupID,
			Kind:           entities.GroupKindDeposit,
			Status:         entities.GroupStatusDone,
			UserID:         uuid.New(),
			TransactionIDs: []uuid.UUID{txID},
		}); err != nil {
			return err
		}
		if err := f.transactions.Create(ctx, &entities.Transaction{
			ID:          txID,
			GroupID:     groupID,
			UserID:      uuid.New(),
			DrAccountID: drID,
			CrAccountID: crID,
			Currency:    currency,
			Value:       value,
			Kind:        entities.TransactionKindDeposit,
			Status:      entities.TransactionStatusDone,
		}); err != nil {
			return err
		}
		if err := f.accounts.AddToBalance(ctx, drID, value); err != nil {
			return err
		}
		return f.accounts.AddToBalance(ctx, crID, value)
	})
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, id uuid.UUID) decimal.Decimal {
	t.Helper()
	account, err := f.accounts.GetByID(context.Background(), id)
	require.NoError(t, err)
	return account.Balance
}

func (f *fixture) derived(t *testing.T, id uuid.UUID) decimal.Decimal {
	t.Helper()
	account, err := f.accounts.GetByID(context.Background(), id)
	require.NoError(t, err)
	live, err := f.transactions.AccountBalance(context.Background(), id, account.Kind)
	require.NoError(t, err)
	return live
}

// stubPublisher records published events and alerts
type stubPublisher struct {
	mu     sync.Mutex
	events []*entities.GroupEvent
	alerts []*entities.Alert
}

func (p *stubPublisher) PublishGroupEvent(_ context.Context, event *entities.GroupEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *stubPublisher) PublishAlert(_ context.Context, alert *entities.Alert) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts = append(p.alerts, alert)
	return nil
}

func (p *stubPublisher) Close() error { return nil }

func (p *stubPublisher) alertReasons() []entities.AlertReason {
	p.mu.Lock()
	defer p.mu.Unlock()
	reasons := make([]entities.AlertReason, 0, len(p.alerts))
	for _, a := range p.alerts {
		reasons = append(reasons, a.Reason)
	}
	return reasons
}

// stubGateway acknowledges submissions with canned results
type stubGateway struct {
	mu        sync.Mutex
	submits   []*blockchain.SubmitRequest
	submitErr error
	nextHash  string
	nextFee   decimal.Decimal
	nextNonce uint64
	balances  map[string]decimal.Decimal
}

func newStubGateway() *stubGateway {
	return &stubGateway{
		nextHash: "0xbroadcast",
		nextFee:  decimal.Zero,
		balances: make(map[string]decimal.Decimal),
	}
}

func (g *stubGateway) Submit(_ context.Context, req *blockchain.SubmitRequest) (*blockchain.SubmitResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.submits = append(g.submits, req)
	if g.submitErr != nil {
		return nil, g.submitErr
	}
	return &blockchain.SubmitResult{Hash: g.nextHash, Fee: g.nextFee, Nonce: g.nextNonce}, nil
}

func (g *stubGateway) FetchByHash(context.Context, entities.Currency, string) (*entities.BlockchainTransaction, error) {
	return nil, nil
}

func (g *stubGateway) FetchByAddress(context.Context, entities.Currency, string) ([]*entities.BlockchainTransaction, error) {
	return nil, nil
}

func (g *stubGateway) Balance(_ context.Context, _ entities.Currency, address string) (decimal.Decimal, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.balances[address], nil
}

func (g *stubGateway) EstimateFee(context.Context, entities.Currency) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

// stubDesk implements the exchange desk with fixed market rates
type stubDesk struct {
	mu       sync.Mutex
	rates    map[string]decimal.Decimal
	executed []uuid.UUID
}

func newStubDesk() *stubDesk {
	return &stubDesk{rates: map[string]decimal.Decimal{
		"ETH/USD": decimal.NewFromInt(2000),
		"BTC/USD": decimal.NewFromInt(60000),
		"ETH/BTC": decimal.RequireFromString("0.25"),
		"BTC/ETH": decimal.NewFromInt(4),
	}}
}

func (d *stubDesk) setRate(from, to entities.Currency, rate decimal.Decimal) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rates[string(from)+"/"+string(to)] = rate
}

func (d *stubDesk) GetQuote(_ context.Context, from, to entities.Currency, _ decimal.Decimal) (*exchange.Quote, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rate, ok := d.rates[string(from)+"/"+string(to)]
	if !ok {
		return nil, fmt.Errorf("no rate for %s/%s", from, to)
	}
	return &exchange.Quote{
		ID:           uuid.New(),
		FromCurrency: from,
		ToCurrency:   to,
		Rate:         rate,
		ExpiresAt:    time.Now().Add(30 * time.Second),
	}, nil
}

func (d *stubDesk) MarketRate(_ context.Context, from, to entities.Currency) (decimal.Decimal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rate, ok := d.rates[string(from)+"/"+string(to)]
	if !ok {
		return decimal.Zero, fmt.Errorf("no rate for %s/%s", from, to)
	}
	return rate, nil
}

func (d *stubDesk) Execute(_ context.Context, quoteID uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.executed = append(d.executed, quoteID)
	return nil
}
