package booking

import (
	"encoding/json"
	"fmt"

	"horizon/models"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

// Event types that gate a booking. Anything else is acknowledged and
// ignored.
const (
	eventSessionCompleted      = "checkout.session.completed"
	eventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	eventPaymentIntentSucceeded = "payment_intent.succeeded"
)

// verifyEvent checks the provider signature over the raw payload bytes.
// Fails closed: a mismatched signature, malformed body or expired timestamp
// rejects the whole event without processing any part of it.
func (s *DefaultBookingService) verifyEvent(payload []byte, sigHeader string) (*stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, sigHeader, s.WebhookSecret)
	if err != nil {
		return nil, NewValidationError("invalidSignature", fmt.Sprintf("webhook signature verification failed: %v", err))
	}
	return &event, nil
}

// resolveSession maps a verified event to the checkout session carrying the
// booking metadata. The session is always re-read from Stripe rather than
// trusted from the event payload. A nil session with a nil error means the
// event is valid but not actionable.
func (s *DefaultBookingService) resolveSession(event *stripe.Event) (*stripe.CheckoutSession, error) {
	switch string(event.Type) {
	case eventSessionCompleted, eventAsyncPaymentSucceeded:
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return nil, NewValidationError("malformedEvent", fmt.Sprintf("failed to decode checkout session: %v", err))
		}
		latest, err := s.Sessions.GetSession(cs.ID)
		if err != nil {
			return nil, NewStorageError("failed to retrieve checkout session "+cs.ID, err)
		}
		return latest, nil

	case eventPaymentIntentSucceeded:
		// Metadata lives on the session, not the intent; resolve it
		// indirectly.
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, NewValidationError("malformedEvent", fmt.Sprintf("failed to decode payment intent: %v", err))
		}
		cs, err := s.Sessions.SessionForPaymentIntent(pi.ID)
		if err != nil {
			return nil, NewStorageError("failed to list sessions for payment intent "+pi.ID, err)
		}
		if cs == nil {
			s.Logger.Warn("no checkout session found for payment intent", zap.String("paymentIntent", pi.ID))
			return nil, nil
		}
		return cs, nil

	default:
		s.Logger.Info("ignoring unhandled event type",
			zap.String("type", string(event.Type)), zap.String("event", event.ID))
		return nil, nil
	}
}

// metadataFromSession extracts the identity bag attached at checkout time.
func metadataFromSession(cs *stripe.CheckoutSession) (models.BookingMetadata, error) {
	meta := models.BookingMetadata{
		SlotID: cs.Metadata["slotId"],
		Name:   cs.Metadata["name"],
		Email:  cs.Metadata["email"],
	}
	if meta.SlotID == "" || meta.Name == "" || meta.Email == "" {
		return meta, NewValidationError("missingMetadata", "checkout session "+cs.ID+" is missing booking metadata")
	}
	return meta, nil
}
