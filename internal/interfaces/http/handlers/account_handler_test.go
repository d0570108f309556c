package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"wallet-ledger.backend/internal/domain/entities"
	domainerrors "wallet-ledger.backend/internal/domain/errors"
)

type accountServiceStub struct {
	createFn func(ctx context.Context, input *entities.CreateAccountPairInput) (*entities.Account, *entities.Account, error)
}

func (s accountServiceStub) CreateAccountPair(ctx context.Context, input *entities.CreateAccountPairInput) (*entities.Account, *entities.Account, error) {
	return s.createFn(ctx, input)
}

type accountReaderStub struct {
	getFn  func(ctx context.Context, id uuid.UUID) (*entities.Account, error)
	listFn func(ctx context.Context, address string) ([]*entities.Account, error)
}

func (s accountReaderStub) GetByID(ctx context.Context, id uuid.UUID) (*entities.Account, error) {
	return s.getFn(ctx, id)
}
func (s accountReaderStub) ListByAddress(ctx context.Context, address string) ([]*entities.Account, error) {
	return s.listFn(ctx, address)
}

type balanceReaderStub struct {
	balanceFn func(ctx context.Context, accountID uuid.UUID, kind entities.AccountKind) (decimal.Decimal, error)
}

func (s balanceReaderStub) AccountBalance(ctx context.Context, accountID uuid.UUID, kind entities.AccountKind) (decimal.Decimal, error) {
	return s.balanceFn(ctx, accountID, kind)
}

func TestAccountHandler_CreatePairAndReads(t *testing.T) {
	gin.SetMode(gin.TestMode)
	userID := uuid.New()
	accountID := uuid.New()

	service := accountServiceStub{
		createFn: func(_ context.Context, input *entities.CreateAccountPairInput) (*entities.Account, *entities.Account, error) {
			if input.Address == "bad" {
				return nil, nil, domainerrors.ErrInvalidInput
			}
			dr := &entities.Account{ID: uuid.New(), UserID: input.UserID, Currency: input.Currency, Kind: entities.AccountKindDr}
			cr := &entities.Account{ID: uuid.New(), UserID: input.UserID, Currency: input.Currency, Kind: entities.AccountKindCr}
			return dr, cr, nil
		},
	}
	reader := accountReaderStub{
		getFn: func(_ context.Context, id uuid.UUID) (*entities.Account, error) {
			if id == accountID {
				return &entities.Account{ID: id, Currency: entities.CurrencyETH, Kind: entities.AccountKindCr, Balance: decimal.NewFromInt(5)}, nil
			}
			return nil, domainerrors.ErrNotFound
		},
		listFn: func(_ context.Context, address string) ([]*entities.Account, error) {
			return []*entities.Account{{ID: accountID, Address: address}}, nil
		},
	}
	balances := balanceReaderStub{
		balanceFn: func(_ context.Context, _ uuid.UUID, _ entities.AccountKind) (decimal.Decimal, error) {
			return decimal.NewFromInt(5), nil
		},
	}

	h := NewAccountHandler(service, reader, balances)
	r := gin.New()
	r.POST("/accounts", h.CreatePair)
	r.GET("/accounts", h.ListByAddress)
	r.GET("/accounts/:id", h.GetAccount)
	r.GET("/accounts/:id/balance", h.GetBalance)

	// Create success
	body := []byte(`{"userId":"` + userID.String() + `","currency":"ETH","address":"0x1111111111111111111111111111111111111111","name":"main"}`)
	req := httptest.NewRequest(http.MethodPost, "/accounts", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", w.Code, w.Body.String())
	}

	// Create invalid address mapping
	body = []byte(`{"userId":"` + userID.String() + `","currency":"ETH","address":"bad"}`)
	req = httptest.NewRequest(http.MethodPost, "/accounts", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", w.Code, w.Body.String())
	}

	// Get success
	req = httptest.NewRequest(http.MethodGet, "/accounts/"+accountID.String(), nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}

	// Get not found
	req = httptest.NewRequest(http.MethodGet, "/accounts/"+uuid.NewString(), nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body=%s", w.Code, w.Body.String())
	}

	// Get malformed id
	req = httptest.NewRequest(http.MethodGet, "/accounts/not-a-uuid", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", w.Code, w.Body.String())
	}

	// Balance returns both cached and derived
	req = httptest.NewRequest(http.MethodGet, "/accounts/"+accountID.String()+"/balance", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(`"cached"`)) || !bytes.Contains(w.Body.Bytes(), []byte(`"derived"`)) {
		t.Fatalf("expected cached and derived balances, body=%s", w.Body.String())
	}

	// List requires address
	req = httptest.NewRequest(http.MethodGet, "/accounts", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", w.Code, w.Body.String())
	}

	// List success
	req = httptest.NewRequest(http.MethodGet, "/accounts?address=0x1111111111111111111111111111111111111111", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}
}
