package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"wallet-ledger.backend/internal/domain/entities"
	domainerrors "wallet-ledger.backend/internal/domain/errors"
	"wallet-ledger.backend/internal/interfaces/http/response"
	"wallet-ledger.backend/internal/metrics"
	"wallet-ledger.backend/internal/usecases"
)

type StrangeTxReader interface {
	List(ctx context.Context, limit, offset int) ([]*entities.StrangeBlockchainTransaction, error)
}

type SuspendStore interface {
	Get(ctx context.Context, key string, out interface{}) (bool, error)
	Delete(ctx context.Context, key string) error
}

type BalanceRebuilder interface {
	RebuildBalances(ctx context.Context) error
}

// OpsHandler handles operator endpoints
type OpsHandler struct {
	strangeTxs StrangeTxReader
	kv         SuspendStore
	ledger     BalanceRebuilder
}

// NewOpsHandler creates a new operator handler
func NewOpsHandler(strangeTxs StrangeTxReader, kv SuspendStore, ledger BalanceRebuilder) *OpsHandler {
	return &OpsHandler{strangeTxs: strangeTxs, kv: kv, ledger: ledger}
}

// ListStrangeTransactions lists quarantined observations, newest first
// GET /api/v1/ops/strange-transactions
func (h *OpsHandler) ListStrangeTransactions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit < 1 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	strange, err := h.strangeTxs.List(c.Request.Context(), limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"strangeTransactions": strange})
}

// GetSuspendStatus reports whether group commits are suspended
// GET /api/v1/ops/suspend
func (h *OpsHandler) GetSuspendStatus(c *gin.Context) {
	var suspended bool
	found, err := h.kv.Get(c.Request.Context(), usecases.SuspendFlagKey, &suspended)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"suspended": found && suspended})
}

// Resume clears the suspend flag after an operator resolved the audit
// findings.
// DELETE /api/v1/ops/suspend
func (h *OpsHandler) Resume(c *gin.Context) {
	if err := h.kv.Delete(c.Request.Context(), usecases.SuspendFlagKey); err != nil {
		response.Error(c, err)
		return
	}
	metrics.OperationsSuspended.Set(0)

	response.Success(c, http.StatusOK, gin.H{"suspended": false})
}

// RebuildBalances recomputes every balance cache from the transaction
// history.
// POST /api/v1/ops/rebuild-balances
func (h *OpsHandler) RebuildBalances(c *gin.Context) {
	if err := h.ledger.RebuildBalances(c.Request.Context()); err != nil {
		response.Error(c, domainerrors.InternalError(err))
		return
	}

	response.Success(c, http.StatusOK, gin.H{"rebuilt": true})
}
