package models

import "time"

// Appointment represents a single bookable time slot.
type Appointment struct {
	ID        string    `bson:"id" json:"id"`
	Name      string    `bson:"name,omitempty" json:"name,omitempty"`   // holder name, set when booked
	Email     string    `bson:"email,omitempty" json:"email,omitempty"` // holder email, set when booked
	StartTime time.Time `bson:"startTime" json:"startTime"`
	EndTime   time.Time `bson:"endTime,omitempty" json:"endTime,omitempty"` // derived as startTime + slot duration at booking time
	IsBooked  bool      `bson:"isBooked" json:"isBooked"`
	MeetLink  string    `bson:"meetLink,omitempty" json:"meetLink,omitempty"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// AvailableSlot is the trimmed view returned by the availability API.
type AvailableSlot struct {
	ID        string    `json:"id"`
	StartTime time.Time `json:"startTime"`
}

// ReminderPayload is carried by queued reminder tasks.
type ReminderPayload struct {
	ReminderID    string    `json:"reminderId"`
	AppointmentID string    `json:"appointmentId"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	StartTime     time.Time `json:"startTime"`
	MeetLink      string    `json:"meetLink,omitempty"`
}
