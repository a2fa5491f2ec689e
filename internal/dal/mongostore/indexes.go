package mongostore

import (
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"stealthcompany.com/appointmentbot/internal/domain"
)

// indexModels lists the indexes per collection. The partial unique index on
// confirmed appointments is what makes a second concurrent booking fail.
func indexModels() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		PatientsCollection: {
			{
				Keys:    bson.D{{Key: "patientId", Value: 1}},
				Options: options.Index().SetName("uniq_patient_id").SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "policyNumber", Value: 1}},
				Options: options.Index().SetName("uniq_policy_number").SetUnique(true).SetSparse(true),
			},
			{
				Keys: bson.D{
					{Key: "firstName", Value: 1},
					{Key: "lastName", Value: 1},
					{Key: "birthDate", Value: 1},
				},
				Options: options.Index().SetName("idx_patient_identity"),
			},
		},
		AppointmentsCollection: {
			{
				Keys:    bson.D{{Key: "bookingId", Value: 1}},
				Options: options.Index().SetName("uniq_booking_id").SetUnique(true),
			},
			{
				Keys: bson.D{{Key: "patientId", Value: 1}},
				Options: options.Index().
					SetName("uniq_confirmed_per_patient").
					SetUnique(true).
					SetPartialFilterExpression(bson.D{{Key: "status", Value: string(domain.StatusConfirmed)}}),
			},
		},
	}
}
