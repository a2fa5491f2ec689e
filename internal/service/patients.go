package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"stealthcompany.com/appointmentbot/internal/domain"
	"stealthcompany.com/appointmentbot/internal/format"
)

// PatientService implements patient lookup and insurance updates
type PatientService struct {
	patients PatientStore
	newID    func() string
}

// NewPatientService creates a patient service over the given store
func NewPatientService(patients PatientStore) *PatientService {
	return &PatientService{
		patients: patients,
		newID:    uuid.NewString,
	}
}

// FindOrCreate returns the patient matching name and birth date, creating it
// when absent. Concurrent first calls for the same identity may both create.
func (s *PatientService) FindOrCreate(ctx context.Context, firstName, lastName string, birth domain.DateParts) (*domain.Patient, error) {
	birthDate, err := format.ToBirthTimestamp(birth)
	if err != nil {
		return nil, err
	}
	birthDate = birthDate.UTC()
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)

	existing, err := s.patients.FindByIdentity(ctx, firstName, lastName, birthDate)
	switch {
	case err == nil:
		log.Debug().
			Str("patientId", existing.PatientID).
			Msg("Found existing patient")
		return existing, nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, domain.StoreError("find patient", err)
	}

	patient := &domain.Patient{
		PatientID: s.newID(),
		FirstName: firstName,
		LastName:  lastName,
		BirthDate: birthDate,
	}
	if err := s.patients.Insert(ctx, patient); err != nil {
		return nil, domain.StoreError("create patient", err)
	}

	log.Info().
		Str("patientId", patient.PatientID).
		Msg("Created patient")
	return patient, nil
}

// UpdateInsurance stores policyNumber on the patient. The duplicate check and
// the update are two steps; the store's own uniqueness rule catches a lost race.
func (s *PatientService) UpdateInsurance(ctx context.Context, patientID, policyNumber string) (*domain.Patient, error) {
	holder, err := s.patients.FindByPolicyExcluding(ctx, policyNumber, patientID)
	switch {
	case err == nil:
		log.Warn().
			Str("patientId", patientID).
			Str("holderId", holder.PatientID).
			Msg("Policy number held by another patient")
		return nil, domain.NewError(domain.KindDuplicatePolicy, domain.MsgDuplicatePolicy)
	case !errors.Is(err, domain.ErrNotFound):
		return nil, domain.StoreError("find policy holder", err)
	}

	updated, err := s.patients.UpdatePolicy(ctx, patientID, policyNumber)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NewError(domain.KindPatientNotFound, domain.MsgUserNotFound)
	}
	if err != nil {
		return nil, domain.StoreError("update policy", err)
	}

	return updated, nil
}
