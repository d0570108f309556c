package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"wallet-ledger.backend/internal/domain/entities"
	domainerrors "wallet-ledger.backend/internal/domain/errors"
	"wallet-ledger.backend/internal/interfaces/http/response"
)

type DeferredService interface {
	Schedule(ctx context.Context, record *entities.DeferredRecord) error
	Cancel(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*entities.DeferredRecord, error)
}

// DeferredHandler handles deferred intent endpoints
type DeferredHandler struct {
	deferred DeferredService
}

// NewDeferredHandler creates a new deferred handler
func NewDeferredHandler(deferred DeferredService) *DeferredHandler {
	return &DeferredHandler{deferred: deferred}
}

// Schedule registers a deferred intent
// POST /api/v1/deferred
func (h *DeferredHandler) Schedule(c *gin.Context) {
	var record entities.DeferredRecord
	if err := c.ShouldBindJSON(&record); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	if err := h.deferred.Schedule(c.Request.Context(), &record); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"deferred": record})
}

// GetDeferred gets one deferred record
// GET /api/v1/deferred/:id
func (h *DeferredHandler) GetDeferred(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("invalid deferred id"))
		return
	}

	record, err := h.deferred.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deferred": record})
}

// Cancel withdraws a waiting deferred record. Operator initiated.
// DELETE /api/v1/deferred/:id
func (h *DeferredHandler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("invalid deferred id"))
		return
	}

	if err := h.deferred.Cancel(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"cancelled": id})
}
