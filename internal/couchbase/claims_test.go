package couchbase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stealthcompany.com/appointmentbot/internal/couchbase"
	"stealthcompany.com/appointmentbot/internal/couchbase/couchbasetest"
)

var confirmedP1 = couchbase.ClaimKey("confirmed", "P1")

func TestClaimAcquireContended(t *testing.T) {
	kv := couchbasetest.NewKeyValue()
	claims := couchbase.NewClaimManager(kv)
	ctx := context.Background()

	mine, _, acquired, err := claims.Acquire(ctx, confirmedP1, "B1")
	require.NoError(t, err)
	assert.True(t, acquired)
	assert.Equal(t, "B1", mine.Owner)

	current, cas, acquired, err := claims.Acquire(ctx, confirmedP1, "B2")
	require.NoError(t, err)
	assert.False(t, acquired)
	assert.Equal(t, "B1", current.Owner)
	assert.NotZero(t, cas)
}

func TestClaimAcquireAfterConcurrentRelease(t *testing.T) {
	kv := couchbasetest.NewKeyValue()
	claims := couchbase.NewClaimManager(kv)
	kv.Put(couchbase.ClaimsCollection, confirmedP1, couchbase.Claim{Owner: "B1"})

	released := false
	kv.OnOperation(func(op couchbasetest.Op, collection, docID string) error {
		if op == couchbasetest.OpGet && !released {
			released = true
			kv.Delete(collection, docID)
		}
		return nil
	})

	current, _, acquired, err := claims.Acquire(context.Background(), confirmedP1, "B2")
	require.NoError(t, err)
	assert.True(t, acquired, "a claim released between insert and read is retried")
	assert.Equal(t, "B2", current.Owner)

	var stored couchbase.Claim
	require.True(t, kv.Load(couchbase.ClaimsCollection, confirmedP1, &stored))
	assert.Equal(t, "B2", stored.Owner)
}

func TestClaimTakeoverRequiresCurrentCas(t *testing.T) {
	kv := couchbasetest.NewKeyValue()
	claims := couchbase.NewClaimManager(kv)
	ctx := context.Background()
	kv.Put(couchbase.ClaimsCollection, confirmedP1, couchbase.Claim{Owner: "B1"})

	_, cas, acquired, err := claims.Acquire(ctx, confirmedP1, "B2")
	require.NoError(t, err)
	require.False(t, acquired)

	kv.Put(couchbase.ClaimsCollection, confirmedP1, couchbase.Claim{Owner: "B3"})
	took, err := claims.Takeover(ctx, confirmedP1, cas, "B2")
	require.NoError(t, err)
	assert.False(t, took, "a claim changed since it was read is not taken over")

	_, cas, _, err = claims.Acquire(ctx, confirmedP1, "B2")
	require.NoError(t, err)
	took, err = claims.Takeover(ctx, confirmedP1, cas, "B2")
	require.NoError(t, err)
	assert.True(t, took)

	var stored couchbase.Claim
	require.True(t, kv.Load(couchbase.ClaimsCollection, confirmedP1, &stored))
	assert.Equal(t, "B2", stored.Owner)

	kv.Delete(couchbase.ClaimsCollection, confirmedP1)
	took, err = claims.Takeover(ctx, confirmedP1, cas, "B4")
	require.NoError(t, err)
	assert.False(t, took, "a vanished claim cannot be taken over")
}

func TestClaimReleaseOnlyByOwner(t *testing.T) {
	kv := couchbasetest.NewKeyValue()
	claims := couchbase.NewClaimManager(kv)
	ctx := context.Background()

	require.NoError(t, claims.Release(ctx, confirmedP1, "B1"), "releasing a missing claim is fine")

	_, _, _, err := claims.Acquire(ctx, confirmedP1, "B1")
	require.NoError(t, err)

	require.NoError(t, claims.Release(ctx, confirmedP1, "B2"))
	assert.True(t, kv.Exists(couchbase.ClaimsCollection, confirmedP1))

	require.NoError(t, claims.Release(ctx, confirmedP1, "B1"))
	assert.False(t, kv.Exists(couchbase.ClaimsCollection, confirmedP1))
}
