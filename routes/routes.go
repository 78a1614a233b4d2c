package routes

import (
	"net/http"

	"horizon/handlers"
	"horizon/utils"

	"github.com/gin-gonic/gin"
)

// RegisterAppointmentRoutes registers the availability read endpoints.
func RegisterAppointmentRoutes(r *gin.Engine, h *handlers.AppointmentHandler) {
	api := r.Group("/api/appointments")
	{
		api.GET("/available-dates", h.GetAvailableDates)
		api.GET("/available", h.GetAvailableSlots)
	}
}

// RegisterPaymentRoutes registers checkout and the Stripe webhook. The
// webhook handler reads the raw body itself; no binding middleware may be
// attached to that route.
func RegisterPaymentRoutes(r *gin.Engine, h *handlers.PaymentHandler) {
	api := r.Group("/api/payments")
	{
		api.POST("/create-checkout-session", h.CreateCheckoutSession)
		api.POST("/webhook", h.StripeWebhook)
	}
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "services": utils.GetHealthStatus()})
	})
}
