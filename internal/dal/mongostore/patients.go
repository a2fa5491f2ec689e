package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"stealthcompany.com/appointmentbot/internal/domain"
	"stealthcompany.com/appointmentbot/internal/metrics"
)

// PatientStore keeps patients in the patients collection
type PatientStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

func identityFilter(firstName, lastName string, birthDate time.Time) bson.D {
	return bson.D{
		{Key: "firstName", Value: firstName},
		{Key: "lastName", Value: lastName},
		{Key: "birthDate", Value: birthDate.UTC()},
	}
}

func policyHolderFilter(policyNumber, patientID string) bson.D {
	return bson.D{
		{Key: "policyNumber", Value: policyNumber},
		{Key: "patientId", Value: bson.D{{Key: "$ne", Value: patientID}}},
	}
}

func (s *PatientStore) findOne(ctx context.Context, op string, filter bson.D) (*domain.Patient, error) {
	start := time.Now()
	var p domain.Patient
	err := s.coll.FindOne(ctx, filter).Decode(&p)
	metrics.RecordStoreOperation(backendMongo, op, start, metrics.StoreResult(err, mongo.ErrNoDocuments))

	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &p, nil
}

func (s *PatientStore) Get(ctx context.Context, patientID string) (*domain.Patient, error) {
	return s.findOne(ctx, "get_patient", bson.D{{Key: "patientId", Value: patientID}})
}

func (s *PatientStore) FindByIdentity(ctx context.Context, firstName, lastName string, birthDate time.Time) (*domain.Patient, error) {
	return s.findOne(ctx, "find_patient_identity", identityFilter(firstName, lastName, birthDate))
}

func (s *PatientStore) FindByPolicyExcluding(ctx context.Context, policyNumber, patientID string) (*domain.Patient, error) {
	return s.findOne(ctx, "find_policy_holder", policyHolderFilter(policyNumber, patientID))
}

func (s *PatientStore) Insert(ctx context.Context, p *domain.Patient) error {
	start := time.Now()
	now := s.now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.coll.InsertOne(ctx, p)
	metrics.RecordStoreOperation(backendMongo, "insert_patient", start, metrics.StoreResult(err))
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

// UpdatePolicy sets the policy number in one round trip. The unique sparse
// index rejects a number another patient took after the service's check.
func (s *PatientStore) UpdatePolicy(ctx context.Context, patientID, policyNumber string) (*domain.Patient, error) {
	start := time.Now()
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "policyNumber", Value: policyNumber},
		{Key: "updatedAt", Value: s.now().UTC()},
	}}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var p domain.Patient
	err := s.coll.FindOneAndUpdate(ctx, bson.D{{Key: "patientId", Value: patientID}}, update, opts).Decode(&p)
	metrics.RecordStoreOperation(backendMongo, "update_policy", start, metrics.StoreResult(err, mongo.ErrNoDocuments))

	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, domain.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return nil, fmt.Errorf("%s: %w", domain.MsgPolicyUniqueViolated, err)
	case err != nil:
		return nil, fmt.Errorf("update policy: %w", err)
	}
	return &p, nil
}
