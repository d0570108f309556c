package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"wallet-ledger.backend/internal/domain/entities"
	domainerrors "wallet-ledger.backend/internal/domain/errors"
	"wallet-ledger.backend/internal/interfaces/http/response"
)

type AccountService interface {
	CreateAccountPair(ctx context.Context, input *entities.CreateAccountPairInput) (*entities.Account, *entities.Account, error)
}

type AccountReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Account, error)
	ListByAddress(ctx context.Context, address string) ([]*entities.Account, error)
}

type BalanceReader interface {
	AccountBalance(ctx context.Context, accountID uuid.UUID, kind entities.AccountKind) (decimal.Decimal, error)
}

// AccountHandler handles ledger account endpoints
type AccountHandler struct {
	ledger   AccountService
	accounts AccountReader
	balances BalanceReader
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(ledger AccountService, accounts AccountReader, balances BalanceReader) *AccountHandler {
	return &AccountHandler{ledger: ledger, accounts: accounts, balances: balances}
}

// CreatePair provisions the Dr/Cr pair backing one wallet address
// POST /api/v1/accounts
func (h *AccountHandler) CreatePair(c *gin.Context) {
	var input entities.CreateAccountPairInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	dr, cr, err := h.ledger.CreateAccountPair(c.Request.Context(), &input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"dr": dr, "cr": cr})
}

// GetAccount gets an account by ID
// GET /api/v1/accounts/:id
func (h *AccountHandler) GetAccount(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("invalid account id"))
		return
	}

	account, err := h.accounts.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"account": account})
}

// GetBalance returns both the cached and the transaction-derived balance
// GET /api/v1/accounts/:id/balance
func (h *AccountHandler) GetBalance(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("invalid account id"))
		return
	}

	account, err := h.accounts.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	derived, err := h.balances.AccountBalance(c.Request.Context(), id, account.Kind)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"accountId": account.ID,
		"currency":  account.Currency,
		"kind":      account.Kind,
		"cached":    account.Balance,
		"derived":   derived,
	})
}

// ListByAddress lists the accounts bound to a wallet address
// GET /api/v1/accounts?address=...
func (h *AccountHandler) ListByAddress(c *gin.Context) {
	address := c.Query("address")
	if address == "" {
		response.Error(c, domainerrors.BadRequest("address query parameter required"))
		return
	}

	accounts, err := h.accounts.ListByAddress(c.Request.Context(), address)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"accounts": accounts})
}
