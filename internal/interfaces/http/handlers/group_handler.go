package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"wallet-ledger.backend/internal/domain/entities"
	domainerrors "wallet-ledger.backend/internal/domain/errors"
	"wallet-ledger.backend/internal/interfaces/http/response"
)

type GroupService interface {
	Build(ctx context.Context, intent *entities.Intent) (*entities.TransactionGroup, error)
	ListGroupsForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entities.TransactionGroup, error)
}

type GroupReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entities.TransactionGroup, error)
}

// GroupHandler handles transaction group endpoints
type GroupHandler struct {
	ledger GroupService
	groups GroupReader
}

// NewGroupHandler creates a new group handler
func NewGroupHandler(ledger GroupService, groups GroupReader) *GroupHandler {
	return &GroupHandler{ledger: ledger, groups: groups}
}

// BuildGroup builds and commits a transaction group from an intent. The
// client-supplied intent id is the idempotency key; replays return the
// existing group with 200 instead of 201.
// POST /api/v1/groups
func (h *GroupHandler) BuildGroup(c *gin.Context) {
	var intent entities.Intent
	if err := c.ShouldBindJSON(&intent); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	existing, getErr := h.groups.GetByID(c.Request.Context(), intent.ID)

	group, err := h.ledger.Build(c.Request.Context(), &intent)
	if err != nil {
		response.Error(c, err)
		return
	}

	status := http.StatusCreated
	if getErr == nil && existing != nil {
		status = http.StatusOK
	}
	response.Success(c, status, gin.H{"group": group})
}

// GetGroup gets a group with its leaf transactions
// GET /api/v1/groups/:id
func (h *GroupHandler) GetGroup(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("invalid group id"))
		return
	}

	group, err := h.groups.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"group": group})
}

// ListGroups lists a user's groups, newest first
// GET /api/v1/groups?userId=...&limit=...&offset=...
func (h *GroupHandler) ListGroups(c *gin.Context) {
	userID, err := uuid.Parse(c.Query("userId"))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("invalid userId"))
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	groups, err := h.ledger.ListGroupsForUser(c.Request.Context(), userID, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"groups": groups,
		"limit":  limit,
		"offset": offset,
	})
}
