package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mzansigig/gigwork-backend/internal/gateway/truzo"
	"github.com/mzansigig/gigwork-backend/internal/http/handlers/common"
	"github.com/mzansigig/gigwork-backend/internal/pkg/apperror"
	"github.com/mzansigig/gigwork-backend/internal/service"
)

type PaymentHandler struct {
	svc *service.EscrowService
}

func NewPaymentHandler(s *service.EscrowService) *PaymentHandler {
	return &PaymentHandler{svc: s}
}

// InitiateCheckout POST /gigs/:id/checkout
// Opens a card/EFT funding attempt for the gig's accepted application.
func (h *PaymentHandler) InitiateCheckout(c *gin.Context) {
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
		Email string `json:"email" binding:"required,email"`
	}
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	checkout, err := h.svc.InitiateCardCheckout(c.Request.Context(), gigID, userID, req.Email)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, checkout)
}

// InitiateEscrowCheckout POST /gigs/:id/checkout/escrow
// Opens a funding attempt on the third-party escrow rail.
func (h *PaymentHandler) InitiateEscrowCheckout(c *gin.Context) {
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
		Buyer  truzo.Party `json:"buyer" binding:"required"`
		Seller truzo.Party `json:"seller" binding:"required"`
	}
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}
	if req.Buyer.Email == "" || req.Seller.Email == "" {
		common.Fail(c, apperror.New(apperror.ErrCodeValidation, "buyer and seller emails are required"))
		return
	}

	checkout, err := h.svc.InitiateEscrowCheckout(c.Request.Context(), gigID, userID, req.Buyer, req.Seller)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, checkout)
}

// VerifyPayment POST /payments/:id/verify
// The :id here is the gateway payment reference, not a UUID. Pull-based
// settlement check for when a webhook was missed.
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	reference := c.Param("id")
	if reference == "" {
		common.Fail(c, apperror.New(apperror.ErrCodeBadRequest, "payment reference is required"))
		return
	}
	result, err := h.svc.VerifyAndFund(c.Request.Context(), reference)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"payment":        result.Payment,
		"escrow":         result.Escrow,
		"already_funded": result.AlreadyFunded,
	})
}

// GetEscrow GET /gigs/:id/escrow
func (h *PaymentHandler) GetEscrow(c *gin.Context) {
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
	escrow, err := h.svc.GetEscrow(c.Request.Context(), gigID, userID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, escrow)
}

// ConfirmCompletion POST /gigs/:id/confirm
// Employer accepting the work: releases the full remaining escrow.
func (h *PaymentHandler) ConfirmCompletion(c *gin.Context) {
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
	escrow, err := h.svc.ConfirmCompletion(c.Request.Context(), gigID, userID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, escrow)
}

// DisputePayment POST /payments/:id/dispute
func (h *PaymentHandler) DisputePayment(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	paymentID, err := common.ParseUUIDParam(c, "id")
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

	escrow, err := h.svc.Dispute(c.Request.Context(), paymentID, userID, req.Reason)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, escrow)
}
