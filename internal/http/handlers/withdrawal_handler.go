package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/mzansigig/gigwork-backend/internal/http/handlers/common"
	"github.com/mzansigig/gigwork-backend/internal/http/middleware"
	"github.com/mzansigig/gigwork-backend/internal/service"
)

type WithdrawalHandler struct {
	svc *service.WithdrawalService
}

func NewWithdrawalHandler(s *service.WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{svc: s}
}

// CreateWithdrawal POST /withdrawals
func (h *WithdrawalHandler) CreateWithdrawal(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	var req struct {
		Amount         decimal.Decimal `json:"amount" binding:"required"`
		BankName       string          `json:"bank_name" binding:"required"`
		AccountLast4   string          `json:"account_last4" binding:"required,len=4"`
		IdempotencyKey string          `json:"idempotency_key"`
	}
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	// The header wins when both the header and the body carry a key.
	key := c.GetHeader("Idempotency-Key")
	if key == "" {
		key = req.IdempotencyKey
	}

	w, err := h.svc.Request(c.Request.Context(), userID, req.Amount, req.BankName, req.AccountLast4, key)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, w)
}

// GetWithdrawal GET /withdrawals/:id
// Owners see their own requests; admins may inspect any of them.
func (h *WithdrawalHandler) GetWithdrawal(c *gin.Context) {
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
	role, _ := common.CurrentUserRole(c)
	w, err := h.svc.Get(c.Request.Context(), id, userID, role == middleware.RoleAdmin)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// ListWithdrawals GET /withdrawals
func (h *WithdrawalHandler) ListWithdrawals(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	limit, offset := common.GetPagination(c)
	withdrawals, err := h.svc.ListMine(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, withdrawals)
}
