package notification

import (
	"context"
	"time"
)

// EventResult carries the outcome of a calendar event creation.
type EventResult struct {
	// Link is a joinable/browsable URL for the created event, when the
	// backend produced one.
	Link string
}

// CalendarService creates calendar events for booked appointments.
type CalendarService interface {
	CreateEvent(ctx context.Context, summary, description string, start, end time.Time) (*EventResult, error)
}

// MailService sends plain-text notification emails.
type MailService interface {
	SendMail(to, subject, body string) error
}
