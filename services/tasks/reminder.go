package tasks

import (
	"context"
	"encoding/json"
	"time"

	"horizon/models"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const TypeReminderSend = "reminder:send"

func NewReminderTask(payload models.ReminderPayload, fireAt time.Time) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeReminderSend, b)
	opts := []asynq.Option{asynq.ProcessAt(fireAt)}

	return task, opts, nil
}

// ReminderScheduler enqueues reminder emails ahead of booked appointments.
type ReminderScheduler struct {
	client *asynq.Client
	lead   time.Duration
}

func NewReminderScheduler(client *asynq.Client, lead time.Duration) *ReminderScheduler {
	return &ReminderScheduler{client: client, lead: lead}
}

// ScheduleReminder queues a reminder email to fire ahead of the appointment
// start. Appointments starting inside the lead window get no reminder.
func (s *ReminderScheduler) ScheduleReminder(ctx context.Context, appt *models.Appointment) error {
	fireAt := appt.StartTime.Add(-s.lead)
	if !fireAt.After(time.Now()) {
		return nil
	}

	payload := models.ReminderPayload{
		ReminderID:    uuid.New().String(),
		AppointmentID: appt.ID,
		Name:          appt.Name,
		Email:         appt.Email,
		StartTime:     appt.StartTime,
		MeetLink:      appt.MeetLink,
	}
	task, opts, err := NewReminderTask(payload, fireAt)
	if err != nil {
		return err
	}

	_, err = s.client.EnqueueContext(ctx, task, opts...)
	return err
}
