package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/mzansigig/gigwork-backend/internal/http/handlers/common"
	"github.com/mzansigig/gigwork-backend/internal/models"
	"github.com/mzansigig/gigwork-backend/internal/service"
)

// AdminHandler groups the operator endpoints: fee configuration, payout
// processing and the scheduler triggers.
type AdminHandler struct {
	fees        *service.FeeConfigService
	withdrawals *service.WithdrawalService
	escrow      *service.EscrowService
}

func NewAdminHandler(fees *service.FeeConfigService, withdrawals *service.WithdrawalService, escrow *service.EscrowService) *AdminHandler {
	return &AdminHandler{fees: fees, withdrawals: withdrawals, escrow: escrow}
}

// GetFeeConfig GET /admin/fee-config
func (h *AdminHandler) GetFeeConfig(c *gin.Context) {
	cfg, err := h.fees.GetActive(c.Request.Context())
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// UpdateFeeConfig PUT /admin/fee-config
func (h *AdminHandler) UpdateFeeConfig(c *gin.Context) {
	var req struct {
		PlatformCommissionPercent decimal.Decimal `json:"platform_commission_percent" binding:"required"`
		MinimumGigAmount          decimal.Decimal `json:"minimum_gig_amount" binding:"required"`
		MaximumGigAmount          decimal.Decimal `json:"maximum_gig_amount" binding:"required"`
		EscrowAutoReleaseDays     int             `json:"escrow_auto_release_days" binding:"required"`
	}
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	cfg, err := h.fees.Update(c.Request.Context(), models.FeeConfig{
		PlatformCommissionPercent: req.PlatformCommissionPercent,
		MinimumGigAmount:          req.MinimumGigAmount,
		MaximumGigAmount:          req.MaximumGigAmount,
		EscrowAutoReleaseDays:     req.EscrowAutoReleaseDays,
	})
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// PreviewFees GET /admin/fee-config/preview?amount=5000
func (h *AdminHandler) PreviewFees(c *gin.Context) {
	amount, err := decimal.NewFromString(c.Query("amount"))
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be a positive number"})
		return
	}
	cfg, err := h.fees.GetActive(c.Request.Context())
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, service.CalculateFeeBreakdown(amount, cfg))
}

// ApproveWithdrawal POST /admin/withdrawals/:id/approve
func (h *AdminHandler) ApproveWithdrawal(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}
	w, err := h.withdrawals.Approve(c.Request.Context(), id)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// RejectWithdrawal POST /admin/withdrawals/:id/reject
func (h *AdminHandler) RejectWithdrawal(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}
	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}
	w, err := h.withdrawals.Reject(c.Request.Context(), id, req.Reason)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// ReleaseDueEscrows POST /admin/escrows/release-due
// Trigger for the external scheduler; idempotent.
func (h *AdminHandler) ReleaseDueEscrows(c *gin.Context) {
	released, err := h.escrow.ReleaseDueEscrows(c.Request.Context())
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"released": released})
}

// ExpireDuePayments POST /admin/payments/expire-due
// Trigger for the external scheduler; idempotent.
func (h *AdminHandler) ExpireDuePayments(c *gin.Context) {
	expired, err := h.escrow.ExpireDuePayments(c.Request.Context())
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expired": expired})
}
