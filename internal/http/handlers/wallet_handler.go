package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mzansigig/gigwork-backend/internal/http/handlers/common"
	"github.com/mzansigig/gigwork-backend/internal/service"
)

type WalletHandler struct {
	svc *service.WalletService
}

func NewWalletHandler(s *service.WalletService) *WalletHandler {
	return &WalletHandler{svc: s}
}

// GetBalance GET /wallet
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	wallet, err := h.svc.GetBalance(c.Request.Context(), userID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, wallet)
}

// ListHistory GET /wallet/history?type=earnings|payments
func (h *WalletHandler) ListHistory(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	limit, offset := common.GetPagination(c)
	entries, err := h.svc.ListHistory(c.Request.Context(), userID, c.Query("type"), limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}
