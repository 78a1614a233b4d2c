package notification

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// GoogleCalendarService implements CalendarService against the Google
// Calendar v3 API using a service-account credentials file.
type GoogleCalendarService struct {
	svc        *calendar.Service
	calendarID string
}

// NewGoogleCalendarService builds the calendar client once at startup; the
// returned service is shared for the process lifetime.
func NewGoogleCalendarService(ctx context.Context, credentialsFile, calendarID string) (*GoogleCalendarService, error) {
	svc, err := calendar.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(calendar.CalendarScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize calendar client: %w", err)
	}
	return &GoogleCalendarService{svc: svc, calendarID: calendarID}, nil
}

func (s *GoogleCalendarService) CreateEvent(ctx context.Context, summary, description string, start, end time.Time) (*EventResult, error) {
	event := &calendar.Event{
		Summary:     summary,
		Description: description,
		Start:       &calendar.EventDateTime{DateTime: start.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: end.Format(time.RFC3339)},
	}

	created, err := s.svc.Events.Insert(s.calendarID, event).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar event: %w", err)
	}
	return &EventResult{Link: created.HtmlLink}, nil
}
