package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stealthcompany.com/appointmentbot/internal/domain"
)

func TestPatientStoreIdentityLookup(t *testing.T) {
	ctx := context.Background()
	store := NewPatientStore()
	birth := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := store.FindByIdentity(ctx, "John", "Doe", birth)
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, store.Insert(ctx, &domain.Patient{PatientID: "p1", FirstName: "John", LastName: "Doe", BirthDate: birth}))

	found, err := store.FindByIdentity(ctx, "John", "Doe", birth)
	require.NoError(t, err)
	assert.Equal(t, "p1", found.PatientID)
	assert.False(t, found.CreatedAt.IsZero())

	_, err = store.FindByIdentity(ctx, "John", "Doe", birth.AddDate(0, 0, 1))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPatientStoreRejectsDuplicateID(t *testing.T) {
	ctx := context.Background()
	store := NewPatientStore()

	require.NoError(t, store.Insert(ctx, &domain.Patient{PatientID: "p1"}))
	assert.ErrorIs(t, store.Insert(ctx, &domain.Patient{PatientID: "p1"}), ErrDuplicateKey)
}

func TestPatientStoreUpdatePolicy(t *testing.T) {
	ctx := context.Background()
	store := NewPatientStore()
	require.NoError(t, store.Insert(ctx, &domain.Patient{PatientID: "p1"}))
	require.NoError(t, store.Insert(ctx, &domain.Patient{PatientID: "p2"}))

	updated, err := store.UpdatePolicy(ctx, "p1", "POL-12345")
	require.NoError(t, err)
	assert.Equal(t, "POL-12345", updated.PolicyNumber)

	_, err = store.UpdatePolicy(ctx, "p2", "POL-12345")
	assert.ErrorIs(t, err, ErrDuplicateKey)

	_, err = store.UpdatePolicy(ctx, "missing", "POL-99999")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	holder, err := store.FindByPolicyExcluding(ctx, "POL-12345", "p2")
	require.NoError(t, err)
	assert.Equal(t, "p1", holder.PatientID)

	_, err = store.FindByPolicyExcluding(ctx, "POL-12345", "p1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAppointmentStoreSingleConfirmedPerPatient(t *testing.T) {
	ctx := context.Background()
	store := NewAppointmentStore()

	require.NoError(t, store.InsertConfirmed(ctx, &domain.Appointment{BookingID: "b1", PatientID: "p1"}))

	err := store.InsertConfirmed(ctx, &domain.Appointment{BookingID: "b2", PatientID: "p1"})
	bookingID, ok := domain.ConflictingBooking(err)
	require.True(t, ok)
	assert.Equal(t, "b1", bookingID)

	found, err := store.FindConfirmed(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "b1", found.BookingID)
	assert.Equal(t, domain.StatusConfirmed, found.Status)
}

func TestAppointmentStoreAllowsRebookAfterCompletion(t *testing.T) {
	ctx := context.Background()
	store := NewAppointmentStore()

	require.NoError(t, store.InsertConfirmed(ctx, &domain.Appointment{BookingID: "b1", PatientID: "p1"}))
	require.NoError(t, store.setStatus(ctx, "b1", domain.StatusCompleted))

	_, err := store.FindConfirmed(ctx, "p1")
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, store.InsertConfirmed(ctx, &domain.Appointment{BookingID: "b2", PatientID: "p1"}))
	assert.Len(t, store.listByPatient(ctx, "p1"), 2)
}

func TestAppointmentStoreConcurrentInserts(t *testing.T) {
	ctx := context.Background()
	store := NewAppointmentStore()

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := store.InsertConfirmed(ctx, &domain.Appointment{
				BookingID: string(rune('a' + i)),
				PatientID: "p1",
			})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Len(t, store.listByPatient(ctx, "p1"), 1)
}
