package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"wallet-ledger.backend/internal/domain/entities"
	domainerrors "wallet-ledger.backend/internal/domain/errors"
	"wallet-ledger.backend/internal/interfaces/http/response"
)

type ObservationService interface {
	ProcessObservation(ctx context.Context, obs *entities.BlockchainTransaction) error
}

// ObservationHandler receives on-chain sightings from the indexer
type ObservationHandler struct {
	reconciler ObservationService
}

// NewObservationHandler creates a new observation handler
func NewObservationHandler(reconciler ObservationService) *ObservationHandler {
	return &ObservationHandler{reconciler: reconciler}
}

// HandleObservation reconciles one observed transaction. The indexer may
// deliver the same transaction more than once; replays are no-ops.
// POST /api/v1/webhooks/observations
func (h *ObservationHandler) HandleObservation(c *gin.Context) {
	var obs entities.BlockchainTransaction
	if err := c.ShouldBindJSON(&obs); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}
	if obs.Hash == "" || obs.Currency == "" {
		response.Error(c, domainerrors.BadRequest("hash and currency required"))
		return
	}

	if err := h.reconciler.ProcessObservation(c.Request.Context(), &obs); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"processed": obs.Hash})
}
