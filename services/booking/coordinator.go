package booking

import (
	"context"
	"errors"
	"fmt"

	appointmentRepo "horizon/database/repository/appointment"
	"horizon/models"

	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"
)

// HandleWebhookEvent turns one inbound confirmation event into at most one
// slot transition. Safe under concurrent delivery of duplicates: the
// conditional update in the repository is the only serialization point.
func (s *DefaultBookingService) HandleWebhookEvent(ctx context.Context, payload []byte, sigHeader string) (Outcome, error) {
	event, err := s.verifyEvent(payload, sigHeader)
	if err != nil {
		return OutcomeRejected, err
	}

	s.Logger.Info("received webhook event",
		zap.String("event", event.ID), zap.String("type", string(event.Type)))

	cs, err := s.resolveSession(event)
	if err != nil {
		var vErr *ValidationError
		if errors.As(err, &vErr) {
			return OutcomeRejected, err
		}
		return OutcomeStorageFailure, err
	}
	if cs == nil {
		return OutcomeSkipped, nil
	}

	if cs.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		s.Logger.Warn("skipping booking for unpaid session",
			zap.String("session", cs.ID),
			zap.String("paymentStatus", string(cs.PaymentStatus)))
		return OutcomeSkipped, nil
	}

	meta, err := metadataFromSession(cs)
	if err != nil {
		return OutcomeRejected, err
	}

	appt, err := s.Repo.Book(ctx, meta.SlotID, meta.Name, meta.Email, s.SlotDuration)
	if errors.Is(err, appointmentRepo.ErrNotEligible) {
		// Duplicate delivery or a lost race. Acknowledge without changes
		// so Stripe stops redelivering.
		s.Logger.Info("slot already booked or missing, acknowledging without changes",
			zap.String("slot", meta.SlotID), zap.String("event", event.ID))
		return OutcomeAlreadyBooked, nil
	}
	if err != nil {
		return OutcomeStorageFailure, NewStorageError("booking transition failed for slot "+meta.SlotID, err)
	}

	s.Logger.Info("appointment booked",
		zap.String("slot", appt.ID),
		zap.String("name", appt.Name),
		zap.String("email", appt.Email))

	s.finalizeBooking(ctx, appt)
	return OutcomeBooked, nil
}

// finalizeBooking runs the post-commit side effects. Each one is best
// effort: failures are logged and swallowed, and can never undo the booking
// that already committed. A calendar failure must not stop the emails.
func (s *DefaultBookingService) finalizeBooking(ctx context.Context, appt *models.Appointment) {
	meetLink := ""
	res, err := s.Calendar.CreateEvent(ctx,
		fmt.Sprintf("Appointment with %s", appt.Name),
		fmt.Sprintf("Email: %s", appt.Email),
		appt.StartTime, appt.EndTime)
	if err != nil {
		s.Logger.Error("failed to create calendar event",
			zap.String("slot", appt.ID), zap.Error(err))
	} else {
		meetLink = res.Link
		if err := s.Repo.SetMeetingLink(ctx, appt.ID, meetLink); err != nil {
			s.Logger.Error("failed to persist meeting link",
				zap.String("slot", appt.ID), zap.Error(err))
		}
	}

	if err := s.Mailer.SendMail(appt.Email, "Your appointment is confirmed", confirmationBody(appt, meetLink)); err != nil {
		s.Logger.Error("failed to send confirmation email",
			zap.String("slot", appt.ID), zap.String("to", appt.Email), zap.Error(err))
	}

	if err := s.Mailer.SendMail(s.OperatorEmail, fmt.Sprintf("New appointment booked by %s", appt.Name), operatorBody(appt)); err != nil {
		s.Logger.Error("failed to send operator notification email",
			zap.String("slot", appt.ID), zap.String("to", s.OperatorEmail), zap.Error(err))
	}

	if s.Reminders != nil {
		appt.MeetLink = meetLink
		if err := s.Reminders.ScheduleReminder(ctx, appt); err != nil {
			s.Logger.Error("failed to schedule reminder",
				zap.String("slot", appt.ID), zap.Error(err))
		}
	}
}

func confirmationBody(appt *models.Appointment, meetLink string) string {
	if meetLink == "" {
		meetLink = "link not available"
	}
	return fmt.Sprintf(
		"Hi %s,\n\nYour appointment is confirmed with the following details:\n\nStart Time: %s\nMeeting Link: %s\n\nThank you!",
		appt.Name, appt.StartTime.Format("Mon, 02 Jan 2006 15:04 MST"), meetLink)
}

func operatorBody(appt *models.Appointment) string {
	return fmt.Sprintf(
		"A new appointment has been booked:\n\nName: %s\nEmail: %s\nStart Time: %s",
		appt.Name, appt.Email, appt.StartTime.Format("Mon, 02 Jan 2006 15:04 MST"))
}
