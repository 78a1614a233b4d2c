// File: database/repository/appointment/crud.go
package appointmentRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"horizon/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (r *mongoAppointmentRepo) GetByID(ctx context.Context, id string) (*models.Appointment, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var appt models.Appointment
	err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&appt)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch appointment %s: %w", id, err)
	}
	return &appt, nil
}

// AvailableDates returns the distinct dates that still have free slots,
// ascending.
func (r *mongoAppointmentRepo) AvailableDates(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"isBooked": false}}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id": bson.M{"$dateToString": bson.M{"format": "%Y-%m-%d", "date": "$startTime"}},
		}}},
		bson.D{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate available dates: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Date string `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	dates := make([]string, len(rows))
	for i, row := range rows {
		dates[i] = row.Date
	}
	return dates, nil
}

// AvailableSlots returns the free slots on the given date ("2006-01-02"),
// ordered by start time.
func (r *mongoAppointmentRepo) AvailableSlots(ctx context.Context, date string) ([]models.Appointment, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	dayStart, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}
	dayEnd := dayStart.AddDate(0, 0, 1)

	filter := bson.M{
		"isBooked":  false,
		"startTime": bson.M{"$gte": dayStart, "$lt": dayEnd},
	}
	opts := options.Find().SetSort(bson.M{"startTime": 1})

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query available slots: %w", err)
	}
	defer cursor.Close(ctx)

	var slots []models.Appointment
	if err := cursor.All(ctx, &slots); err != nil {
		return nil, err
	}
	return slots, nil
}

// Book performs the conditional transition. The filter guards on
// isBooked=false so concurrent confirmations for the same slot resolve at
// the storage layer: exactly one caller gets the updated document, the rest
// get ErrNotEligible. The end time is derived server-side from the stored
// start time.
func (r *mongoAppointmentRepo) Book(ctx context.Context, id, name, email string, duration time.Duration) (*models.Appointment, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"id": id, "isBooked": false}
	update := mongo.Pipeline{
		bson.D{{Key: "$set", Value: bson.M{
			"name":     name,
			"email":    email,
			"isBooked": true,
			"endTime": bson.M{"$dateAdd": bson.M{
				"startDate": "$startTime",
				"unit":      "minute",
				"amount":    int64(duration.Minutes()),
			}},
			"updatedAt": "$$NOW",
		}}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var appt models.Appointment
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&appt)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotEligible
	}
	if err != nil {
		return nil, fmt.Errorf("failed to book appointment %s: %w", id, err)
	}
	return &appt, nil
}

func (r *mongoAppointmentRepo) SetMeetingLink(ctx context.Context, id, link string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{"$set": bson.M{"meetLink": link, "updatedAt": time.Now()}}
	res, err := r.coll.UpdateOne(ctx, bson.M{"id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to set meeting link for %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
