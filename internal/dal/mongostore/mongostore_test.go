package mongostore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

func TestIdentityFilterNormalizesBirthDateToUTC(t *testing.T) {
	local := time.FixedZone("UTC+2", 2*60*60)
	birth := time.Date(1990, 1, 1, 2, 0, 0, 0, local)

	filter := identityFilter("John", "Doe", birth)

	require.Len(t, filter, 3)
	assert.Equal(t, "firstName", filter[0].Key)
	assert.Equal(t, time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC), filter[2].Value)
}

func TestPolicyHolderFilterExcludesPatient(t *testing.T) {
	filter := policyHolderFilter("INS12345", "P1")

	assert.Equal(t, bson.D{
		{Key: "policyNumber", Value: "INS12345"},
		{Key: "patientId", Value: bson.D{{Key: "$ne", Value: "P1"}}},
	}, filter)
}

func TestConfirmedFilter(t *testing.T) {
	assert.Equal(t, bson.D{
		{Key: "patientId", Value: "P1"},
		{Key: "status", Value: "confirmed"},
	}, confirmedFilter("P1"))
}

func TestIndexModelsDeclareUniqueness(t *testing.T) {
	models := indexModels()

	byName := func(list []mongo.IndexModel) map[string]*options.IndexOptions {
		out := make(map[string]*options.IndexOptions)
		for _, m := range list {
			opts := &options.IndexOptions{}
			for _, set := range m.Options.List() {
				require.NoError(t, set(opts))
			}
			out[*opts.Name] = opts
		}
		return out
	}

	patients := byName(models[PatientsCollection])
	require.Contains(t, patients, "uniq_policy_number")
	assert.True(t, *patients["uniq_policy_number"].Unique)
	assert.True(t, *patients["uniq_policy_number"].Sparse)
	assert.True(t, *patients["uniq_patient_id"].Unique)

	appointments := byName(models[AppointmentsCollection])
	require.Contains(t, appointments, "uniq_confirmed_per_patient")
	confirmed := appointments["uniq_confirmed_per_patient"]
	assert.True(t, *confirmed.Unique)
	assert.Equal(t, bson.D{{Key: "status", Value: "confirmed"}}, confirmed.PartialFilterExpression)
}
