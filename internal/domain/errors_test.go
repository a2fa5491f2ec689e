package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"plain error", errors.New("boom"), KindUnknown},
		{"tagged", NewError(KindPatientNotFound, MsgPatientNotFound), KindPatientNotFound},
		{"wrapped tagged", fmt.Errorf("create: %w", NewError(KindDuplicatePolicy, MsgDuplicatePolicy)), KindDuplicatePolicy},
		{"store", StoreError("patients.insert", errors.New("timeout")), KindStore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "Patient not found", NewError(KindPatientNotFound, MsgPatientNotFound).Error())
	assert.Equal(t, "patients.get: timeout", StoreError("patients.get", errors.New("timeout")).Error())
	assert.Equal(t, "store_failure", (&Error{Kind: KindStore}).Error())
}

func TestStoreErrorUnwraps(t *testing.T) {
	err := StoreError("patients.get", ErrNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConflictingBooking(t *testing.T) {
	id, ok := ConflictingBooking(fmt.Errorf("insert: %w", BookingConflict("b-1")))
	assert.True(t, ok)
	assert.Equal(t, "b-1", id)
	assert.Equal(t, MsgAppointmentExists, BookingConflict("b-1").Error())

	_, ok = ConflictingBooking(NewError(KindPatientNotFound, MsgPatientNotFound))
	assert.False(t, ok)
}

func TestAppointmentTypeValid(t *testing.T) {
	assert.True(t, AppointmentConsultation.Valid())
	assert.True(t, AppointmentType("routine").Valid())
	assert.False(t, AppointmentType("follow-up").Valid())
	assert.False(t, AppointmentType("").Valid())
}
