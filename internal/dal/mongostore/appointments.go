package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"stealthcompany.com/appointmentbot/internal/domain"
	"stealthcompany.com/appointmentbot/internal/metrics"
)

// AppointmentStore keeps appointments in the appointments collection
type AppointmentStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

func confirmedFilter(patientID string) bson.D {
	return bson.D{
		{Key: "patientId", Value: patientID},
		{Key: "status", Value: string(domain.StatusConfirmed)},
	}
}

func (s *AppointmentStore) FindConfirmed(ctx context.Context, patientID string) (*domain.Appointment, error) {
	start := time.Now()
	var a domain.Appointment
	err := s.coll.FindOne(ctx, confirmedFilter(patientID)).Decode(&a)
	metrics.RecordStoreOperation(backendMongo, "find_confirmed", start, metrics.StoreResult(err, mongo.ErrNoDocuments))

	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find confirmed appointment: %w", err)
	}
	return &a, nil
}

// InsertConfirmed relies on the partial unique index over confirmed
// appointments; a duplicate key means another booking won the slot
func (s *AppointmentStore) InsertConfirmed(ctx context.Context, a *domain.Appointment) error {
	start := time.Now()
	now := s.now().UTC()
	a.Status = domain.StatusConfirmed
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := s.coll.InsertOne(ctx, a)
	if err == nil {
		metrics.RecordStoreOperation(backendMongo, "insert_confirmed", start, "ok")
		return nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		metrics.RecordStoreOperation(backendMongo, "insert_confirmed", start, "error")
		return fmt.Errorf("insert appointment: %w", err)
	}

	metrics.RecordStoreOperation(backendMongo, "insert_confirmed", start, "conflict")
	winner, findErr := s.FindConfirmed(ctx, a.PatientID)
	if findErr != nil {
		// the duplicate was on bookingId, or the winner has already moved on
		return fmt.Errorf("insert appointment: %w", err)
	}
	return domain.BookingConflict(winner.BookingID)
}
