package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mzansigig/gigwork-backend/internal/http/handlers/common"
	"github.com/mzansigig/gigwork-backend/internal/models"
	"github.com/mzansigig/gigwork-backend/internal/service"
)

type ApplicationHandler struct {
	svc    *service.ApplicationService
	escrow *service.EscrowService
}

func NewApplicationHandler(s *service.ApplicationService, escrow *service.EscrowService) *ApplicationHandler {
	return &ApplicationHandler{svc: s, escrow: escrow}
}

// Apply POST /gigs/:id/applications
func (h *ApplicationHandler) Apply(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	gigID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	var req struct {
		ProposedRate decimal.Decimal `json:"proposed_rate" binding:"required"`
		CoverNote    string          `json:"cover_note"`
	}
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	app, err := h.svc.Apply(c.Request.Context(), gigID, userID, req.ProposedRate, req.CoverNote)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, app)
}

// GetApplication GET /applications/:id
func (h *ApplicationHandler) GetApplication(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}
	app, err := h.svc.Get(c.Request.Context(), id, userID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// ListByGig GET /gigs/:id/applications
func (h *ApplicationHandler) ListByGig(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	gigID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}
	apps, err := h.svc.ListByGig(c.Request.Context(), gigID, userID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, apps)
}

// ListMine GET /applications/mine
func (h *ApplicationHandler) ListMine(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	limit, offset := common.GetPagination(c)
	apps, err := h.svc.ListMine(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, apps)
}

// Accept POST /applications/:id/accept
func (h *ApplicationHandler) Accept(c *gin.Context) {
	h.transition(c, h.svc.Accept)
}

// Reject POST /applications/:id/reject
func (h *ApplicationHandler) Reject(c *gin.Context) {
	h.transition(c, h.svc.Reject)
}

// Withdraw POST /applications/:id/withdraw
func (h *ApplicationHandler) Withdraw(c *gin.Context) {
	h.transition(c, h.svc.Withdraw)
}

// Counter POST /applications/:id/counter
func (h *ApplicationHandler) Counter(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	var req struct {
		Amount decimal.Decimal `json:"amount" binding:"required"`
		Note   *string         `json:"note"`
	}
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	app, err := h.svc.Counter(c.Request.Context(), id, userID, req.Amount, req.Note)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// Agree POST /applications/:id/agree
func (h *ApplicationHandler) Agree(c *gin.Context) {
	h.transition(c, h.svc.Agree)
}

// RequestCompletion POST /applications/:id/complete
func (h *ApplicationHandler) RequestCompletion(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}
	app, err := h.svc.RequestCompletion(c.Request.Context(), id, userID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	// Mirror onto the escrow gateway; the ledger state above is authoritative.
	h.escrow.NotifyCompletionRequested(c.Request.Context(), app.GigID)
	c.JSON(http.StatusOK, app)
}

type applicationTransition func(ctx context.Context, applicationID, actorID uuid.UUID) (*models.GigApplication, error)

func (h *ApplicationHandler) transition(c *gin.Context, op applicationTransition) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}
	app, err := op(c.Request.Context(), id, userID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}
