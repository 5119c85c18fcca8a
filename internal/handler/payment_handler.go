package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stagepay/internal/service/billing"
	"stagepay/internal/service/manualpay"
	"stagepay/internal/service/webhook"
)

// maxWebhookBody bounds what the processor may send in one delivery.
const maxWebhookBody = 1 << 16

type PaymentHandler struct {
	manual  *manualpay.Service
	billing *billing.Service
	webhook *webhook.Service
	logger  *zap.Logger
}

func NewPaymentHandler(manual *manualpay.Service, billing *billing.Service, webhook *webhook.Service, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{manual: manual, billing: billing, webhook: webhook, logger: logger}
}

type paymentLinkRequest struct {
	URL string `json:"url" binding:"omitempty,http_url"`
}

// SetPaymentLink handles PUT /projects/:id/payment-link. An empty url clears the link.
func (h *PaymentHandler) SetPaymentLink(c *gin.Context) {
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req paymentLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "url must be an absolute http(s) URL")
		return
	}
	p, err := h.manual.SetPaymentLink(c.Request.Context(), actorFrom(c), projectID, req.URL)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// DeclarePayment handles POST /projects/:id/manual-payment/declare
func (h *PaymentHandler) DeclarePayment(c *gin.Context) {
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}
	p, err := h.manual.Declare(c.Request.Context(), actorFrom(c), projectID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// ConfirmPayment handles POST /projects/:id/manual-payment/confirm
func (h *PaymentHandler) ConfirmPayment(c *gin.Context) {
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}
	p, err := h.manual.Confirm(c.Request.Context(), actorFrom(c), projectID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// CreateSetupIntent handles POST /billing/setup-intent
func (h *PaymentHandler) CreateSetupIntent(c *gin.Context) {
	intent, err := h.billing.CreateSetupIntent(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"setup_intent_id": intent.ID, "client_secret": intent.ClientSecret})
}

type attachMethodRequest struct {
	PaymentMethodID string `json:"payment_method_id" binding:"required"`
	IsBackup        bool   `json:"is_backup"`
}

// AttachPaymentMethod handles POST /billing/payment-methods
func (h *PaymentHandler) AttachPaymentMethod(c *gin.Context) {
	var req attachMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "payment_method_id is required")
		return
	}
	m, err := h.billing.AttachPaymentMethod(c.Request.Context(), actorFrom(c), req.PaymentMethodID, req.IsBackup)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// ListPaymentMethods handles GET /billing/payment-methods
func (h *PaymentHandler) ListPaymentMethods(c *gin.Context) {
	methods, err := h.billing.ListPaymentMethods(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment_methods": methods})
}

// Webhook handles POST /webhooks/payments. The raw body is needed for the signature.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, errorBody{Error: "webhook body too large", Code: "payload_too_large"})
			return
		}
		badRequest(c, "unreadable body")
		return
	}
	if err := h.webhook.Handle(c.Request.Context(), body, c.GetHeader("Stripe-Signature")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
