package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/mzansigig/gigwork-backend/internal/http/handlers/common"
	"github.com/mzansigig/gigwork-backend/internal/models"
	"github.com/mzansigig/gigwork-backend/internal/service"
)

type GigHandler struct {
	svc *service.GigService
}

func NewGigHandler(s *service.GigService) *GigHandler {
	return &GigHandler{svc: s}
}

// CreateGig POST /gigs
func (h *GigHandler) CreateGig(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	var req struct {
		Title         string          `json:"title" binding:"required"`
		Description   string          `json:"description"`
		Budget        decimal.Decimal `json:"budget" binding:"required"`
		MaxApplicants int             `json:"max_applicants"`
	}
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	gig, err := h.svc.Create(c.Request.Context(), userID, req.Title, req.Description, req.Budget, req.MaxApplicants)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gig)
}

// GetGig GET /gigs/:id
func (h *GigHandler) GetGig(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}
	gig, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gig)
}

// ListGigs GET /gigs
func (h *GigHandler) ListGigs(c *gin.Context) {
	limit, offset := common.GetPagination(c)
	status := models.GigStatus(c.Query("status"))
	gigs, err := h.svc.List(c.Request.Context(), status, limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gigs)
}

// ListMyGigs GET /gigs/mine
func (h *GigHandler) ListMyGigs(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	limit, offset := common.GetPagination(c)
	gigs, err := h.svc.ListMine(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gigs)
}

// CancelGig POST /gigs/:id/cancel
func (h *GigHandler) CancelGig(c *gin.Context) {
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
	gig, err := h.svc.Cancel(c.Request.Context(), id, userID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gig)
}
