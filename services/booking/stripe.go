package booking

import (
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
)

// StripeSessionAPI abstracts the Stripe checkout-session endpoints the
// pipeline needs, so the coordinator can be exercised with fakes.
type StripeSessionAPI interface {
	CreateSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	// GetSession re-reads a session from Stripe; the payment status on the
	// webhook payload is never trusted on its own.
	GetSession(id string) (*stripe.CheckoutSession, error)
	// SessionForPaymentIntent resolves the checkout session that produced a
	// payment intent. Returns nil with no error when none exists.
	SessionForPaymentIntent(paymentIntentID string) (*stripe.CheckoutSession, error)
}

// stripeSessions is the live implementation backed by the process-wide
// stripe-go client (stripe.Key is set once at startup).
type stripeSessions struct{}

// NewStripeSessions returns the live StripeSessionAPI.
func NewStripeSessions() StripeSessionAPI {
	return stripeSessions{}
}

func (stripeSessions) CreateSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return session.New(params)
}

func (stripeSessions) GetSession(id string) (*stripe.CheckoutSession, error) {
	return session.Get(id, nil)
}

func (stripeSessions) SessionForPaymentIntent(paymentIntentID string) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionListParams{
		PaymentIntent: stripe.String(paymentIntentID),
	}
	params.Limit = stripe.Int64(1)

	iter := session.List(params)
	for iter.Next() {
		return iter.CheckoutSession(), nil
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return nil, nil
}
