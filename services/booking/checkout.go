package booking

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	appointmentRepo "horizon/database/repository/appointment"
	"horizon/models"

	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"
)

var (
	bareScheme   = regexp.MustCompile(`(?i)^https?:[^/]`)
	schemePrefix = regexp.MustCompile(`(?i)^https?://`)
	doubleScheme = regexp.MustCompile(`(?i)^(https?://)(https?://)+`)
	anyScheme    = regexp.MustCompile(`(?i)^https?:`)
)

// normalizeFrontendURL repairs common misconfigurations of the frontend
// base URL (scheme-relative, missing or doubled schemes, trailing slash).
func normalizeFrontendURL(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return value
	}
	if strings.HasPrefix(value, "//") {
		value = "https:" + value
	}
	if bareScheme.MatchString(value) {
		value = anyScheme.ReplaceAllString(value, "https://")
	}
	if !schemePrefix.MatchString(value) {
		value = "https://" + value
	}
	value = doubleScheme.ReplaceAllString(value, "$1")
	if strings.HasSuffix(value, "/") && len(value) > len("https://") {
		value = strings.TrimSuffix(value, "/")
	}
	return value
}

// CreateCheckoutSession performs the advisory availability read and creates
// the Stripe checkout session. No mutation and no reservation happens here;
// two customers may race past this check and the conditional transition
// settles it later.
func (s *DefaultBookingService) CreateCheckoutSession(ctx context.Context, req models.CheckoutSessionRequest) (*models.CheckoutSessionResponse, error) {
	appt, err := s.Repo.GetByID(ctx, req.SlotID)
	if errors.Is(err, appointmentRepo.ErrNotFound) {
		return nil, ErrSlotUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check slot availability: %w", err)
	}
	if appt.IsBooked {
		return nil, ErrSlotUnavailable
	}

	base := normalizeFrontendURL(s.FrontendURL)

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		CustomerEmail:      stripe.String(req.Email),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:         stripe.String(base + "/?payment=success"),
		CancelURL:          stripe.String(base + "/payment-cancel"),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(string(stripe.CurrencyUSD)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String("Appointment Booking"),
						Description: stripe.String(fmt.Sprintf("Appointment slot: %s", appt.StartTime.Format("Mon, 02 Jan 2006 15:04 MST"))),
					},
					UnitAmount: stripe.Int64(s.CheckoutAmount),
				},
				Quantity: stripe.Int64(1),
			},
		},
		CustomerCreation:         stripe.String(string(stripe.CheckoutSessionCustomerCreationAlways)),
		BillingAddressCollection: stripe.String(string(stripe.CheckoutSessionBillingAddressCollectionRequired)),
	}
	// The metadata bag must come back verbatim on the confirmation event.
	params.AddMetadata("slotId", req.SlotID)
	params.AddMetadata("name", req.Name)
	params.AddMetadata("email", req.Email)

	cs, err := s.Sessions.CreateSession(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	s.Logger.Info("checkout session created",
		zap.String("slot", req.SlotID),
		zap.String("email", req.Email),
		zap.String("session", cs.ID))

	return &models.CheckoutSessionResponse{
		SessionID: cs.ID,
		URL:       cs.URL,
		Amount:    cs.AmountTotal,
		Currency:  string(cs.Currency),
	}, nil
}
