package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mzansigig/gigwork-backend/internal/gateway/paystack"
	"github.com/mzansigig/gigwork-backend/internal/gateway/truzo"
	"github.com/mzansigig/gigwork-backend/internal/logger"
	"github.com/mzansigig/gigwork-backend/internal/pkg/apperror"
	"github.com/mzansigig/gigwork-backend/internal/service"
)

// WebhookHandler receives gateway callbacks. Signatures are verified over the
// raw body before any parsing; funding is idempotent by provider reference,
// so duplicate deliveries are safe.
type WebhookHandler struct {
	svc          *service.EscrowService
	cardSecret   string
	escrowSecret string
}

func NewWebhookHandler(s *service.EscrowService, cardSecret, escrowSecret string) *WebhookHandler {
	return &WebhookHandler{svc: s, cardSecret: cardSecret, escrowSecret: escrowSecret}
}

type cardEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
		Status    string `json:"status"`
	} `json:"data"`
}

// HandleCardWebhook POST /webhooks/paystack
func (h *WebhookHandler) HandleCardWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	signature := c.GetHeader("X-Paystack-Signature")
	if !paystack.ValidSignature(body, signature, h.cardSecret) {
		logger.Log.Warn("card webhook signature rejected")
		c.Status(http.StatusUnauthorized)
		return
	}

	var event cardEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	switch event.Event {
	case "charge.success":
		amount := paystack.FromSubunits(event.Data.Amount)
		if _, err := h.svc.Fund(c.Request.Context(), event.Data.Reference, amount); err != nil {
			// References we never issued and intents that already settled
			// or expired cannot succeed on redelivery, so ack those.
			if apperror.IsNotFound(err) || apperror.IsInvalidState(err) {
				logger.Log.WithError(err).WithField("reference", event.Data.Reference).Warn("card webhook funding skipped")
				break
			}
			// Non-2xx makes the gateway redeliver; funding is idempotent.
			logger.Log.WithError(err).WithField("reference", event.Data.Reference).Error("card webhook funding failed")
			c.Status(http.StatusInternalServerError)
			return
		}
	case "charge.failed":
		if err := h.svc.MarkFailed(c.Request.Context(), event.Data.Reference); err != nil {
			logger.Log.WithError(err).WithField("reference", event.Data.Reference).Warn("card webhook failure not recorded")
		}
	default:
		logger.Log.WithField("event", event.Event).Debug("card webhook event ignored")
	}
	c.Status(http.StatusOK)
}

type escrowEvent struct {
	Event       string `json:"event"`
	Transaction struct {
		ID    string `json:"id"`
		Value string `json:"value"`
	} `json:"transaction"`
}

// HandleEscrowWebhook POST /webhooks/truzo
func (h *WebhookHandler) HandleEscrowWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	signature := c.GetHeader("X-Truzo-Signature")
	if !truzo.ValidSignature(body, signature, h.escrowSecret) {
		logger.Log.Warn("escrow webhook signature rejected")
		c.Status(http.StatusUnauthorized)
		return
	}

	var event escrowEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	// Escrow-rail payments use the gateway transaction id as the reference.
	switch event.Event {
	case "transaction.funded":
		result, err := h.svc.FundFromIntent(c.Request.Context(), event.Transaction.ID)
		if err != nil {
			if apperror.IsNotFound(err) || apperror.IsInvalidState(err) {
				logger.Log.WithError(err).WithField("transaction", event.Transaction.ID).Warn("escrow webhook funding skipped")
				break
			}
			logger.Log.WithError(err).WithFields(logrus.Fields{
				"transaction": event.Transaction.ID,
			}).Error("escrow webhook funding failed")
			c.Status(http.StatusInternalServerError)
			return
		}
		logger.Log.WithField("payment_id", result.Payment.ID).Info("escrow rail funded")
	case "transaction.cancelled":
		if err := h.svc.MarkFailed(c.Request.Context(), event.Transaction.ID); err != nil {
			logger.Log.WithError(err).WithField("transaction", event.Transaction.ID).Warn("escrow webhook cancellation not recorded")
		}
	default:
		logger.Log.WithField("event", event.Event).Debug("escrow webhook event ignored")
	}
	c.Status(http.StatusOK)
}
