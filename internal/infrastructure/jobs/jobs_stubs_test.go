package jobs

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"wallet-ledger.backend/internal/domain/entities"
	domainerrors "wallet-ledger.backend/internal/domain/errors"
	"wallet-ledger.backend/internal/infrastructure/blockchain"
)

type jobPublisherStub struct {
	mu     sync.Mutex
	events []*entities.GroupEvent
	alerts []*entities.Alert
}

func (p *jobPublisherStub) PublishGroupEvent(_ context.Context, event *entities.GroupEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *jobPublisherStub) PublishAlert(_ context.Context, alert *entities.Alert) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts = append(p.alerts, alert)
	return nil
}

func (p *jobPublisherStub) Close() error { return nil }

func (p *jobPublisherStub) reasons() []entities.AlertReason {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]entities.AlertReason, 0, len(p.alerts))
	for _, a := range p.alerts {
		out = append(out, a.Reason)
	}
	return out
}

type accountRepoStub struct {
	accounts map[uuid.UUID]*entities.Account
}

func newAccountRepoStub(accounts ...*entities.Account) *accountRepoStub {
	s := &accountRepoStub{accounts: make(map[uuid.UUID]*entities.Account)}
	for _, a := range accounts {
		s.accounts[a.ID] = a
	}
	return s
}

func (s *accountRepoStub) CreatePair(context.Context, *entities.CreateAccountPairInput) (*entities.Account, *entities.Account, error) {
	return nil, nil, domainerrors.ErrInvalidInput
}

func (s *accountRepoStub) GetByID(_ context.Context, id uuid.UUID) (*entities.Account, error) {
	if a, ok := s.accounts[id]; ok {
		return a, nil
	}
	return nil, domainerrors.ErrNotFound
}

func (s *accountRepoStub) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Account, error) {
	return s.GetByID(ctx, id)
}

func (s *accountRepoStub) ListByAddress(_ context.Context, address string) ([]*entities.Account, error) {
	var out []*entities.Account
	for _, a := range s.accounts {
		if a.Address == address {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *accountRepoStub) GetByAddress(_ context.Context, address string, currency entities.Currency, kind entities.AccountKind) (*entities.Account, error) {
	for _, a := range s.accounts {
		if a.Address == address && a.Currency == currency && a.Kind == kind {
			return a, nil
		}
	}
	return nil, domainerrors.ErrNotFound
}

func (s *accountRepoStub) AddToBalance(_ context.Context, id uuid.UUID, delta decimal.Decimal) error {
	a, ok := s.accounts[id]
	if !ok {
		return domainerrors.ErrNotFound
	}
	a.Balance = a.Balance.Add(delta)
	return nil
}

func (s *accountRepoStub) SetBalance(_ context.Context, id uuid.UUID, balance decimal.Decimal) error {
	a, ok := s.accounts[id]
	if !ok {
		return domainerrors.ErrNotFound
	}
	a.Balance = balance
	return nil
}

func (s *accountRepoStub) ListByKindCurrency(_ context.Context, kind entities.AccountKind, currency entities.Currency) ([]*entities.Account, error) {
	var out []*entities.Account
	for _, a := range s.accounts {
		if a.Kind == kind && a.Currency == currency {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *accountRepoStub) ListAll(context.Context) ([]*entities.Account, error) {
	out := make([]*entities.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	return out, nil
}

// transactionRepoStub answers balance derivations from a fixed map; all
// writes are rejected since jobs never write leaves.
type transactionRepoStub struct {
	derived map[uuid.UUID]decimal.Decimal
}

func (s *transactionRepoStub) Create(context.Context, *entities.Transaction) error {
	return domainerrors.ErrInvalidInput
}

func (s *transactionRepoStub) GetByID(context.Context, uuid.UUID) (*entities.Transaction, error) {
	return nil, domainerrors.ErrNotFound
}

func (s *transactionRepoStub) ListByGroupID(context.Context, uuid.UUID) ([]*entities.Transaction, error) {
	return nil, nil
}

func (s *transactionRepoStub) ListByAccountID(context.Context, uuid.UUID) ([]*entities.Transaction, error) {
	return nil, nil
}

func (s *transactionRepoStub) AccountBalance(_ context.Context, accountID uuid.UUID, _ entities.AccountKind) (decimal.Decimal, error) {
	return s.derived[accountID], nil
}

func (s *transactionRepoStub) UpdateStatusByGroupID(context.Context, uuid.UUID, entities.TransactionStatus) error {
	return domainerrors.ErrInvalidInput
}

type groupRepoStub struct {
	stale []*entities.TransactionGroup
}

func (s *groupRepoStub) Create(context.Context, *entities.TransactionGroup) error {
	return domainerrors.ErrInvalidInput
}

func (s *groupRepoStub) GetByID(context.Context, uuid.UUID) (*entities.TransactionGroup, error) {
	return nil, domainerrors.ErrNotFound
}

func (s *groupRepoStub) FindPendingByHash(context.Context, string) ([]*entities.TransactionGroup, error) {
	return nil, nil
}

func (s *groupRepoStub) UpdateStatus(context.Context, uuid.UUID, entities.GroupStatus, string) error {
	return domainerrors.ErrIllegalTransition
}

func (s *groupRepoStub) BindBlockchainTxHash(context.Context, uuid.UUID, string) error {
	return domainerrors.ErrIllegalTransition
}

func (s *groupRepoStub) AppendLeaf(context.Context, uuid.UUID, uuid.UUID) error {
	return domainerrors.ErrInvalidInput
}

func (s *groupRepoStub) ListByUserID(context.Context, uuid.UUID, int, int) ([]*entities.TransactionGroup, error) {
	return nil, nil
}

func (s *groupRepoStub) ListPendingOlderThan(context.Context, time.Time) ([]*entities.TransactionGroup, error) {
	return s.stale, nil
}

type kvRepoStub struct {
	mu     sync.Mutex
	values map[string]json.RawMessage
}

func newKVRepoStub() *kvRepoStub {
	return &kvRepoStub{values: make(map[string]json.RawMessage)}
}

func (s *kvRepoStub) Get(_ context.Context, key string, out interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.values[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, out)
}

func (s *kvRepoStub) Set(_ context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = raw
	return nil
}

func (s *kvRepoStub) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

func (s *kvRepoStub) ListByPrefix(_ context.Context, prefix string) (map[string]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]json.RawMessage)
	for k, v := range s.values {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out, nil
}

// gatewayStub answers chain balance queries from a fixed map
type gatewayStub struct {
	balances map[string]decimal.Decimal
}

func (g *gatewayStub) Submit(context.Context, *blockchain.SubmitRequest) (*blockchain.SubmitResult, error) {
	return nil, domainerrors.ErrInvalidInput
}

func (g *gatewayStub) FetchByHash(context.Context, entities.Currency, string) (*entities.BlockchainTransaction, error) {
	return nil, domainerrors.ErrNotFound
}

func (g *gatewayStub) FetchByAddress(context.Context, entities.Currency, string) ([]*entities.BlockchainTransaction, error) {
	return nil, nil
}

func (g *gatewayStub) Balance(_ context.Context, _ entities.Currency, address string) (decimal.Decimal, error) {
	return g.balances[address], nil
}

func (g *gatewayStub) EstimateFee(context.Context, entities.Currency) (decimal.Decimal, error) {
	return decimal.Zero, nil
}
