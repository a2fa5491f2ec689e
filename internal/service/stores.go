package service

import (
	"context"
	"time"

	"stealthcompany.com/appointmentbot/internal/domain"
)

// PatientStore persists patients. Lookups return domain.ErrNotFound when
// nothing matches.
type PatientStore interface {
	Get(ctx context.Context, patientID string) (*domain.Patient, error)
	FindByIdentity(ctx context.Context, firstName, lastName string, birthDate time.Time) (*domain.Patient, error)
	FindByPolicyExcluding(ctx context.Context, policyNumber, patientID string) (*domain.Patient, error)
	Insert(ctx context.Context, p *domain.Patient) error
	UpdatePolicy(ctx context.Context, patientID, policyNumber string) (*domain.Patient, error)
}

// AppointmentStore persists appointments. InsertConfirmed must fail with a
// domain booking conflict when the patient already holds a confirmed
// appointment and the backend can detect it atomically.
type AppointmentStore interface {
	FindConfirmed(ctx context.Context, patientID string) (*domain.Appointment, error)
	InsertConfirmed(ctx context.Context, a *domain.Appointment) error
}
