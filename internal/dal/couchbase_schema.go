package dal

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/appointmentbot/internal/couchbase"
)

// couchbaseIndexes back the check-step queries of the stores
var couchbaseIndexes = []couchbase.Index{
	{Name: "idx_patients_identity", Collection: PatientsCollection, Keys: "firstName, lastName, birthDate"},
	{Name: "idx_patients_policy", Collection: PatientsCollection, Keys: "policyNumber, patientId", Where: "policyNumber IS VALUED"},
	{Name: "idx_appointments_confirmed", Collection: AppointmentsCollection, Keys: "patientId, status", Where: `status = "confirmed"`},
}

// EnsureCouchbaseSchema creates the collections and indexes the stores use
func EnsureCouchbaseSchema(ctx context.Context, client *couchbase.Client) error {
	log.Info().Msg("Provisioning Couchbase collections and indexes")

	if err := client.EnsureCollections(ctx, PatientsCollection, AppointmentsCollection, couchbase.ClaimsCollection); err != nil {
		return fmt.Errorf("ensure collections: %w", err)
	}
	if err := client.EnsureIndexes(ctx, couchbaseIndexes...); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}
	return nil
}
