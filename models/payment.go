package models

// CheckoutSessionRequest is the payload for starting a checkout.
type CheckoutSessionRequest struct {
	SlotID string `json:"slotId" binding:"required"`
	Name   string `json:"name" binding:"required"`
	Email  string `json:"email" binding:"required,email"`
}

// CheckoutSessionResponse carries the redirect target back to the frontend.
type CheckoutSessionResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

// BookingMetadata is the identity bag attached to a checkout session and
// returned verbatim on the confirmation event.
type BookingMetadata struct {
	SlotID string
	Name   string
	Email  string
}

// WebhookAck is the acknowledgment body returned to Stripe.
type WebhookAck struct {
	Received bool `json:"received"`
	Skipped  bool `json:"skipped,omitempty"`
}
