package handlers

import (
	"errors"
	"net/http"

	"horizon/models"
	"horizon/services/booking"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PaymentHandler exposes the checkout and webhook endpoints.
type PaymentHandler struct {
	booking booking.BookingService
	logger  *zap.Logger
}

func NewPaymentHandler(bookingSvc booking.BookingService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{booking: bookingSvc, logger: logger}
}

// CreateCheckoutSession starts a checkout for a slot.
func (h *PaymentHandler) CreateCheckoutSession(c *gin.Context) {
	var req models.CheckoutSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	resp, err := h.booking.CreateCheckoutSession(c.Request.Context(), req)
	if err != nil {
		var vErr *booking.ValidationError
		if errors.As(err, &vErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Message})
			return
		}
		h.logger.Error("failed to create checkout session",
			zap.String("slot", req.SlotID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create payment session"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// StripeWebhook receives confirmation events. The body must stay raw for
// signature verification, so this route never goes through JSON binding.
func (h *PaymentHandler) StripeWebhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	sigHeader := c.GetHeader("Stripe-Signature")

	outcome, err := h.booking.HandleWebhookEvent(c.Request.Context(), payload, sigHeader)
	switch outcome {
	case booking.OutcomeBooked, booking.OutcomeAlreadyBooked:
		c.JSON(http.StatusOK, models.WebhookAck{Received: true})
	case booking.OutcomeSkipped:
		c.JSON(http.StatusOK, models.WebhookAck{Received: true, Skipped: true})
	case booking.OutcomeRejected:
		h.logger.Warn("webhook event rejected", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("webhook processing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "webhook processing failed"})
	}
}
