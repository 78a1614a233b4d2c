package booking

import (
	"context"
	"time"

	appointmentRepo "horizon/database/repository/appointment"
	"horizon/models"
	"horizon/services/notification"

	"go.uber.org/zap"
)

// Outcome is the result of processing one payment confirmation event.
type Outcome string

const (
	// OutcomeBooked means this event won the conditional transition.
	OutcomeBooked Outcome = "booked"
	// OutcomeAlreadyBooked covers both "already booked" and "missing":
	// a normal idempotent no-op, acknowledged like a success.
	OutcomeAlreadyBooked Outcome = "already_booked"
	// OutcomeSkipped covers unpaid sessions, unresolvable sessions and
	// unrecognized event types. Acknowledged, never retried.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeRejected means the event failed validation and must not be
	// processed. Stripe gets a 4xx and may redeliver.
	OutcomeRejected Outcome = "rejected"
	// OutcomeStorageFailure means the transition attempt itself errored.
	// Stripe gets a 5xx and retries delivery.
	OutcomeStorageFailure Outcome = "storage_failure"
)

// BookingService is the payment-gated booking pipeline.
type BookingService interface {
	CreateCheckoutSession(ctx context.Context, req models.CheckoutSessionRequest) (*models.CheckoutSessionResponse, error)
	HandleWebhookEvent(ctx context.Context, payload []byte, sigHeader string) (Outcome, error)
}

// ReminderScheduler queues a reminder ahead of a booked appointment.
type ReminderScheduler interface {
	ScheduleReminder(ctx context.Context, appt *models.Appointment) error
}

// DefaultBookingService implements BookingService.
type DefaultBookingService struct {
	Repo      appointmentRepo.AppointmentRepository
	Sessions  StripeSessionAPI
	Calendar  notification.CalendarService
	Mailer    notification.MailService
	Reminders ReminderScheduler
	Logger    *zap.Logger

	WebhookSecret  string
	OperatorEmail  string
	FrontendURL    string
	CheckoutAmount int64
	SlotDuration   time.Duration
}
