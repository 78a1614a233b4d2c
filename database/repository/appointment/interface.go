// File: database/repository/appointment/interface.go
package appointmentRepo

import (
	"context"
	"errors"
	"time"

	"horizon/database"
	"horizon/models"

	"go.mongodb.org/mongo-driver/mongo"
)

// ErrNotFound is returned when no appointment exists for the given id.
var ErrNotFound = errors.New("appointment not found")

// ErrNotEligible is returned by Book when the appointment is missing or
// already booked. The two cases are deliberately indistinguishable.
var ErrNotEligible = errors.New("appointment missing or already booked")

type AppointmentRepository interface {
	GetByID(ctx context.Context, id string) (*models.Appointment, error)
	AvailableDates(ctx context.Context) ([]string, error)
	AvailableSlots(ctx context.Context, date string) ([]models.Appointment, error)
	// Book flips isBooked false->true in a single conditional update and
	// derives endTime as startTime + duration. Returns ErrNotEligible when
	// the guard does not match.
	Book(ctx context.Context, id, name, email string, duration time.Duration) (*models.Appointment, error)
	SetMeetingLink(ctx context.Context, id, link string) error
}

type mongoAppointmentRepo struct {
	coll *mongo.Collection
}

// NewMongoAppointmentRepo constructs a new MongoDB AppointmentRepository.
func NewMongoAppointmentRepo() AppointmentRepository {
	db := database.MongoClient.Database("horizon")
	return &mongoAppointmentRepo{
		coll: db.Collection("appointments"),
	}
}
